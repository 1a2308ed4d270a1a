package btree

import "testing"

func TestVacuumRemovesDeadTuples(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	const n = 40
	for i := int64(0); i < n; i++ {
		insertUser(t, users, tx.ID(), i, "user", i)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for i := int64(0); i < 10; i++ {
		if err := users.Delete(tx2.ID(), IntField(i)); err != nil {
			t.Fatalf("Delete(%d) failed: %v", i, err)
		}
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// The only transaction active during vacuum is tx3 itself, so
	// MinActiveTx reports tx3; every tombstone's xmax is tx2, which is
	// below it, so vacuum may reclaim every tombstoned version.
	tx3, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	removed, err := users.Vacuum(tx3.ID())
	if err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
	if removed != 10 {
		t.Fatalf("expected 10 tuples reclaimed, got %d", removed)
	}
	if err := users.CheckIntegrity(tx3.ID()); err != nil {
		t.Fatalf("integrity check failed after vacuum: %v", err)
	}
	if err := tx3.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tx4, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx4.Commit()
	for i := int64(10); i < n; i++ {
		_, found, err := users.Get(tx4.ID(), IntField(i))
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if !found {
			t.Fatalf("expected surviving row id=%d after vacuum", i)
		}
	}
}

func TestVacuumSkipsVersionsVisibleToActiveTx(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	setup, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertUser(t, users, setup.ID(), 1, "Alice", 30)
	if err := setup.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	longRunning, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	deleter, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := users.Delete(deleter.ID(), IntField(1)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := deleter.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	vacuumer, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	removed, err := users.Vacuum(vacuumer.ID())
	if err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected the version still visible to the long-running tx to be kept, got %d reclaimed", removed)
	}
	vacuumer.Commit()

	longRunning.Commit()
}
