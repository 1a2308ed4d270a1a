package btree

import (
	"fmt"
	"sync/atomic"
)

// Tx is a handle to an in-flight transaction (spec.md §4.7 "Transaction
// façade"). Every Table operation takes a Tx's ID; Tx itself only knows
// how to commit or abort.
type Tx struct {
	id TxID
	db *Database

	completed int32 // 0 = active, 1 = completed (commit or abort already ran)
}

func (tx *Tx) ID() TxID { return tx.id }

// Begin allocates a monotonically increasing tx_id, registers it Active
// with the concurrency controller, appends a START record, and returns a
// handle (spec.md §4.7 "begin").
func (db *Database) Begin() (*Tx, error) {
	id := TxID(atomic.AddUint64(&db.nextTxID, 1))
	db.latch.BeginTx(id)
	if err := db.wal.LogStart(id); err != nil {
		return nil, err
	}
	return &Tx{id: id, db: db}, nil
}

// Commit flushes the transaction's dirty pages through the log, appends
// COMMIT, marks the transaction Committed, and releases its latches and
// dirty-page set (spec.md §4.7 "commit").
func (tx *Tx) Commit() error {
	if !atomic.CompareAndSwapInt32(&tx.completed, 0, 1) {
		return fmt.Errorf("btree: tx %d already completed", tx.id)
	}
	if err := tx.db.pager.FlushPages(tx.id); err != nil {
		return err
	}
	if err := tx.db.wal.LogCommit(tx.id); err != nil {
		return err
	}
	tx.db.latch.SetStatus(tx.id, TxCommitted)
	tx.db.latch.RemoveRelation(tx.id)
	atomic.AddInt64(&tx.db.commitCount, 1)
	return nil
}

// Abort executes the log-driven rollback, appends ABORT, discards the
// transaction's dirty pages from cache, marks it Aborted, and releases
// its latches (spec.md §4.7 "abort").
func (tx *Tx) Abort() error {
	if !atomic.CompareAndSwapInt32(&tx.completed, 0, 1) {
		return fmt.Errorf("btree: tx %d already completed", tx.id)
	}
	if err := tx.db.wal.Rollback(tx.id, tx.db.pager); err != nil {
		return err
	}
	// Rollback only undoes pages that were already flushed and logged; a
	// dirty page this transaction never flushed has no UPDATE record to
	// undo, so its mutated in-memory copy must be discarded directly or it
	// stays visible to every later transaction that fetches the same page
	// (spec.md §4.3 "discard_page").
	for _, pid := range tx.db.latch.DirtyPages(tx.id) {
		tx.db.pager.DiscardPage(pid)
	}
	if err := tx.db.wal.LogAbort(tx.id); err != nil {
		return err
	}
	tx.db.latch.SetStatus(tx.id, TxAborted)
	tx.db.latch.RemoveRelation(tx.id)
	atomic.AddInt64(&tx.db.abortCount, 1)
	return nil
}
