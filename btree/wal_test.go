package btree

import (
	"path/filepath"
	"testing"

	"github.com/small-db/smalldb/common/testutil"
)

// fakeRecoverer records every RecoverPage call, standing in for the
// buffer pool during WAL tests so they can assert on exactly which pages
// were restored without standing up a full Pager.
type fakeRecoverer struct {
	restored map[PageID][]byte
}

func newFakeRecoverer() *fakeRecoverer {
	return &fakeRecoverer{restored: make(map[PageID][]byte)}
}

func (f *fakeRecoverer) RecoverPage(pid PageID, bytes []byte) error {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)
	f.restored[pid] = cp
	return nil
}

func openTestWAL(t *testing.T) *WAL {
	t.Helper()
	dir := testutil.TempDir(t)
	w, err := OpenWAL(filepath.Join(dir, "wal.log"), nil)
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWALRollbackRestoresBeforeImages(t *testing.T) {
	w := openTestWAL(t)
	pid := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := w.LogStart(1); err != nil {
		t.Fatalf("LogStart failed: %v", err)
	}
	if err := w.LogUpdate(1, pid, []byte("before"), []byte("after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}

	recoverer := newFakeRecoverer()
	if err := w.Rollback(1, recoverer); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if string(recoverer.restored[pid]) != "before" {
		t.Fatalf("expected before-image restored, got %q", recoverer.restored[pid])
	}
}

func TestWALRollbackIgnoresOtherTransactions(t *testing.T) {
	w := openTestWAL(t)
	pidA := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}
	pidB := PageID{TableID: 1, PageIndex: 3, Category: CategoryLeaf}

	if err := w.LogStart(1); err != nil {
		t.Fatalf("LogStart(1) failed: %v", err)
	}
	if err := w.LogUpdate(1, pidA, []byte("a-before"), []byte("a-after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	if err := w.LogStart(2); err != nil {
		t.Fatalf("LogStart(2) failed: %v", err)
	}
	if err := w.LogUpdate(2, pidB, []byte("b-before"), []byte("b-after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}

	recoverer := newFakeRecoverer()
	if err := w.Rollback(1, recoverer); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if _, touched := recoverer.restored[pidB]; touched {
		t.Fatalf("rollback of tx1 should not touch tx2's page")
	}
	if string(recoverer.restored[pidA]) != "a-before" {
		t.Fatalf("expected tx1's page restored, got %q", recoverer.restored[pidA])
	}
}

func TestWALRecoverUndoesUncommittedLoser(t *testing.T) {
	w := openTestWAL(t)
	pidWinner := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}
	pidLoser := PageID{TableID: 1, PageIndex: 3, Category: CategoryLeaf}

	if err := w.LogStart(1); err != nil {
		t.Fatalf("LogStart(1) failed: %v", err)
	}
	if err := w.LogUpdate(1, pidWinner, []byte("w-before"), []byte("w-after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	if err := w.LogCommit(1); err != nil {
		t.Fatalf("LogCommit failed: %v", err)
	}

	if err := w.LogStart(2); err != nil {
		t.Fatalf("LogStart(2) failed: %v", err)
	}
	if err := w.LogUpdate(2, pidLoser, []byte("l-before"), []byte("l-after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	// tx 2 never commits or aborts: simulates a crash mid-transaction.

	recoverer := newFakeRecoverer()
	if err := w.Recover(recoverer); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if string(recoverer.restored[pidLoser]) != "l-before" {
		t.Fatalf("expected loser's before-image restored, got %q", recoverer.restored[pidLoser])
	}
	if _, touched := recoverer.restored[pidWinner]; touched {
		t.Fatalf("recovery should not touch the committed winner's page")
	}
}

func TestWALRecoverNoOpWhenAllCommitted(t *testing.T) {
	w := openTestWAL(t)
	pid := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := w.LogStart(1); err != nil {
		t.Fatalf("LogStart failed: %v", err)
	}
	if err := w.LogUpdate(1, pid, []byte("before"), []byte("after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	if err := w.LogCommit(1); err != nil {
		t.Fatalf("LogCommit failed: %v", err)
	}

	recoverer := newFakeRecoverer()
	if err := w.Recover(recoverer); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(recoverer.restored) != 0 {
		t.Fatalf("expected no pages restored, got %v", recoverer.restored)
	}
}

func TestWALCheckpointAnchorsRecovery(t *testing.T) {
	w := openTestWAL(t)
	pidBeforeCheckpoint := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := w.LogStart(1); err != nil {
		t.Fatalf("LogStart failed: %v", err)
	}
	if err := w.LogUpdate(1, pidBeforeCheckpoint, []byte("before"), []byte("after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	if err := w.LogCommit(1); err != nil {
		t.Fatalf("LogCommit failed: %v", err)
	}

	if err := w.LogCheckpoint(nil); err != nil {
		t.Fatalf("LogCheckpoint failed: %v", err)
	}

	if err := w.LogStart(2); err != nil {
		t.Fatalf("LogStart(2) failed: %v", err)
	}
	pidAfter := PageID{TableID: 1, PageIndex: 5, Category: CategoryLeaf}
	if err := w.LogUpdate(2, pidAfter, []byte("a-before"), []byte("a-after")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}

	recoverer := newFakeRecoverer()
	if err := w.Recover(recoverer); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if string(recoverer.restored[pidAfter]) != "a-before" {
		t.Fatalf("expected post-checkpoint loser undone, got %q", recoverer.restored[pidAfter])
	}
	if _, touched := recoverer.restored[pidBeforeCheckpoint]; touched {
		t.Fatalf("recovery should not redo pre-checkpoint committed work")
	}
}
