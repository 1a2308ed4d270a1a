package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/small-db/smalldb/btree"
)

func main() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("smalldb Demo: a transactional B+tree storage engine")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	dir, err := os.MkdirTemp("", "smalldb-demo-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := btree.DefaultConfig(dir)
	db, err := btree.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	fmt.Println("✓ Opened database at", dir)

	demoCreateAndInsert(db)
	fmt.Println()
	demoScanAndUpdate(db)
	fmt.Println()
	demoTransactionAbort(db)
	fmt.Println()
	demoConcurrentLatching(db)
	fmt.Println()
	demoCrashRecovery(dir, cfg)
}

func demoCreateAndInsert(db *btree.Database) {
	fmt.Println("### Create table + insert ###")
	fmt.Println(strings.Repeat("-", 40))

	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	users, err := db.CreateTable(tx, "users", []btree.FieldDesc{
		{Name: "id", Type: btree.FieldInt64, IsPrimary: true},
		{Name: "name", Type: btree.FieldBytes, MaxBytes: 32},
		{Name: "age", Type: btree.FieldInt64},
	})
	if err != nil {
		log.Fatal(err)
	}

	rows := []struct {
		id   int64
		name string
		age  int64
	}{
		{1001, "Alice", 30},
		{1002, "Bob", 25},
		{1003, "Charlie", 35},
	}
	for _, r := range rows {
		err := users.Insert(tx.ID(), []btree.Field{
			btree.IntField(r.id),
			btree.BytesField([]byte(r.name)),
			btree.IntField(r.age),
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  INSERT id=%d name=%s age=%d\n", r.id, r.name, r.age)
	}

	if err := tx.Commit(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("✓ committed")
}

func demoScanAndUpdate(db *btree.Database) {
	fmt.Println("### Scan with a predicate, then point lookup ###")
	fmt.Println(strings.Repeat("-", 40))

	users, ok := db.Table("users")
	if !ok {
		log.Fatal("users table missing")
	}

	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}

	it, err := users.Scan(tx.ID(), btree.Predicate{
		FieldIndex: 2, Op: btree.OpGreaterEqual, Value: btree.IntField(30),
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("  Rows with age >= 30:")
	for it.Next() {
		wt := it.Value()
		fmt.Printf("    id=%s name=%s age=%s\n", wt.Tuple.Values[0], wt.Tuple.Values[1], wt.Tuple.Values[2])
	}
	if err := it.Error(); err != nil {
		log.Fatal(err)
	}
	it.Close()

	tup, found, err := users.Get(tx.ID(), btree.IntField(1002))
	if err != nil {
		log.Fatal(err)
	}
	if found {
		fmt.Printf("  GET id=1002 -> name=%s age=%s\n", tup.Values[1], tup.Values[2])
	}

	if err := tx.Commit(); err != nil {
		log.Fatal(err)
	}
}

func demoTransactionAbort(db *btree.Database) {
	fmt.Println("### Abort rolls back ###")
	fmt.Println(strings.Repeat("-", 40))

	users, _ := db.Table("users")

	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	if err := users.Insert(tx.ID(), []btree.Field{
		btree.IntField(9999),
		btree.BytesField([]byte("Ghost")),
		btree.IntField(1),
	}); err != nil {
		log.Fatal(err)
	}
	fmt.Println("  INSERT id=9999 name=Ghost age=1 (will abort)")
	if err := tx.Abort(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("✓ aborted")

	tx2, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	_, found, err := users.Get(tx2.ID(), btree.IntField(9999))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  GET id=9999 -> found=%t (expected false)\n", found)
	tx2.Commit()
}

func demoConcurrentLatching(db *btree.Database) {
	fmt.Println("### Concurrent readers, one writer ###")
	fmt.Println(strings.Repeat("-", 40))

	users, _ := db.Table("users")
	done := make(chan error, 4)

	for i := 0; i < 3; i++ {
		go func(n int) {
			tx, err := db.Begin()
			if err != nil {
				done <- err
				return
			}
			_, _, err = users.Get(tx.ID(), btree.IntField(1001))
			if err != nil {
				done <- err
				return
			}
			done <- tx.Commit()
		}(i)
	}
	go func() {
		tx, err := db.Begin()
		if err != nil {
			done <- err
			return
		}
		if err := users.Insert(tx.ID(), []btree.Field{
			btree.IntField(1004),
			btree.BytesField([]byte("Dana")),
			btree.IntField(28),
		}); err != nil {
			done <- err
			return
		}
		done <- tx.Commit()
	}()

	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			fmt.Printf("  worker error (deadlock/timeout is expected under contention): %v\n", err)
		}
	}
	fmt.Println("✓ concurrent workers finished")
}

func demoCrashRecovery(dir string, cfg btree.Config) {
	fmt.Println("### Crash recovery ###")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println("  Reopening the same data directory replays the WAL:")

	db, err := btree.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	users, ok := db.Table("users")
	if !ok {
		log.Fatal("users table missing after reopen")
	}
	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	defer tx.Commit()

	if err := users.CheckIntegrity(tx.ID()); err != nil {
		log.Fatalf("  tree integrity check failed after recovery: %v", err)
	}
	fmt.Println("  ✓ reopened, recovered, and tree invariants hold")
	_ = dir
}
