package btree

import (
	"testing"

	"github.com/small-db/smalldb/common/testutil"
)

func setupTestDB(t *testing.T) *Database {
	dir := testutil.TempDir(t)
	db, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func usersSchema() []FieldDesc {
	return []FieldDesc{
		{Name: "id", Type: FieldInt64, IsPrimary: true},
		{Name: "name", Type: FieldBytes, MaxBytes: 16},
		{Name: "age", Type: FieldInt64},
	}
}

func TestCreateTableAndReopen(t *testing.T) {
	dir := testutil.TempDir(t)
	cfg := DefaultConfig(dir)

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := db.CreateTable(tx, "users", usersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db2.Close()

	users, ok := db2.Table("users")
	if !ok {
		t.Fatalf("expected users table to survive reopen via catalog replay")
	}
	if users.schema.TableName != "users" {
		t.Fatalf("unexpected schema name %q", users.schema.TableName)
	}
	if len(users.schema.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(users.schema.Fields))
	}
}

func TestDatabaseStatsTracksCommitsAndAborts(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertUser(t, users, tx.ID(), 1, "Alice", 30)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	before := db.Stats()

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertUser(t, users, tx2.ID(), 2, "Bob", 25)
	if err := tx2.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	after := db.Stats()
	if after.AbortCount != before.AbortCount+1 {
		t.Fatalf("expected AbortCount to increase by 1, before=%d after=%d", before.AbortCount, after.AbortCount)
	}
	if after.CommitCount != before.CommitCount {
		t.Fatalf("expected CommitCount to stay the same after an abort, before=%d after=%d", before.CommitCount, after.CommitCount)
	}
	if after.NumPages <= 0 {
		t.Fatalf("expected a positive cached page count, got %d", after.NumPages)
	}
}

func TestCreateTableDuplicateName(t *testing.T) {
	db := setupTestDB(t)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := db.CreateTable(tx, "users", usersSchema()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := db.CreateTable(tx, "users", usersSchema()); err == nil {
		t.Fatalf("expected error creating duplicate table")
	}
	tx.Commit()
}
