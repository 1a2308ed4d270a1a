package btree

import "testing"

func TestCheckIntegrityPassesOnFreshTable(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Commit()
	if err := users.CheckIntegrity(tx.ID()); err != nil {
		t.Fatalf("expected a freshly bootstrapped table to pass integrity checks: %v", err)
	}
}

func TestCheckIntegrityDetectsCorruptedParentPointer(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertUser(t, users, tx.ID(), 1, "Alice", 30)
	insertUser(t, users, tx.ID(), 2, "Bob", 25)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	leafPID, err := users.findLeaf(tx2.ID(), ExclusiveLatch, searchLeftmost())
	if err != nil {
		t.Fatalf("findLeaf failed: %v", err)
	}
	leaf, err := users.getLeaf(tx2.ID(), ExclusiveLatch, leafPID)
	if err != nil {
		t.Fatalf("getLeaf failed: %v", err)
	}
	leaf.ParentPID = PageID{TableID: users.tableID, PageIndex: 99, Category: CategoryInternal}

	if err := users.CheckIntegrity(tx2.ID()); err == nil {
		t.Fatalf("expected CheckIntegrity to detect a corrupted parent pointer")
	}
	tx2.Abort()
}

func TestCheckIntegrityDetectsUnsortedLeaf(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertUser(t, users, tx.ID(), 1, "Alice", 30)
	insertUser(t, users, tx.ID(), 2, "Bob", 25)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	leafPID, err := users.findLeaf(tx2.ID(), ExclusiveLatch, searchLeftmost())
	if err != nil {
		t.Fatalf("findLeaf failed: %v", err)
	}
	leaf, err := users.getLeaf(tx2.ID(), ExclusiveLatch, leafPID)
	if err != nil {
		t.Fatalf("getLeaf failed: %v", err)
	}
	slots := leaf.SortedSlots()
	if len(slots) < 2 {
		t.Fatalf("expected at least 2 occupied slots, got %d", len(slots))
	}
	leaf.Tuples[slots[0]].Values[0] = IntField(1000)

	if err := users.CheckIntegrity(tx2.ID()); err == nil {
		t.Fatalf("expected CheckIntegrity to detect an unsorted leaf")
	}
	tx2.Abort()
}
