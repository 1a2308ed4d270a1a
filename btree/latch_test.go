package btree

import (
	"testing"
	"time"
)

func newTestLatchManager(timeout time.Duration) *LatchManager {
	return NewLatchManager(timeout, nil)
}

func TestRequestLatchIdempotentReRequest(t *testing.T) {
	m := newTestLatchManager(time.Second)
	m.BeginTx(1)
	pid := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := m.RequestLatch(1, SharedLatch, pid); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if err := m.RequestLatch(1, SharedLatch, pid); err != nil {
		t.Fatalf("idempotent re-request should succeed, got %v", err)
	}
}

func TestRequestLatchSharedSharedCompatible(t *testing.T) {
	m := newTestLatchManager(time.Second)
	m.BeginTx(1)
	m.BeginTx(2)
	pid := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := m.RequestLatch(1, SharedLatch, pid); err != nil {
		t.Fatalf("tx1 shared latch failed: %v", err)
	}
	if err := m.RequestLatch(2, SharedLatch, pid); err != nil {
		t.Fatalf("tx2 shared latch should be compatible, got %v", err)
	}
}

func TestRequestLatchTimesOutOnExclusiveConflict(t *testing.T) {
	m := newTestLatchManager(50 * time.Millisecond)
	m.BeginTx(1)
	m.BeginTx(2)
	pid := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := m.RequestLatch(1, ExclusiveLatch, pid); err != nil {
		t.Fatalf("tx1 exclusive latch failed: %v", err)
	}
	err := m.RequestLatch(2, ExclusiveLatch, pid)
	if err != ErrLatchTimeout {
		t.Fatalf("expected ErrLatchTimeout, got %v", err)
	}
}

func TestRequestLatchDetectsDeadlock(t *testing.T) {
	m := newTestLatchManager(2 * time.Second)
	m.BeginTx(1)
	m.BeginTx(2)
	pidA := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}
	pidB := PageID{TableID: 1, PageIndex: 3, Category: CategoryLeaf}

	if err := m.RequestLatch(1, ExclusiveLatch, pidA); err != nil {
		t.Fatalf("tx1 latch A failed: %v", err)
	}
	if err := m.RequestLatch(2, ExclusiveLatch, pidB); err != nil {
		t.Fatalf("tx2 latch B failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.RequestLatch(1, ExclusiveLatch, pidB)
	}()
	time.Sleep(20 * time.Millisecond) // let tx1's request register in the wait-for graph

	err := m.RequestLatch(2, ExclusiveLatch, pidA)
	if err != ErrDeadlockDetected {
		t.Fatalf("expected ErrDeadlockDetected for tx2, got %v", err)
	}
	m.ReleaseLatch(2, pidB)

	if err := <-errCh; err != nil {
		t.Fatalf("tx1's request should now succeed, got %v", err)
	}
}

func TestRemoveRelationReleasesAllLatches(t *testing.T) {
	m := newTestLatchManager(time.Second)
	m.BeginTx(1)
	m.BeginTx(2)
	pid := PageID{TableID: 1, PageIndex: 2, Category: CategoryLeaf}

	if err := m.RequestLatch(1, ExclusiveLatch, pid); err != nil {
		t.Fatalf("tx1 latch failed: %v", err)
	}
	m.RemoveRelation(1)

	if err := m.RequestLatch(2, ExclusiveLatch, pid); err != nil {
		t.Fatalf("tx2 should acquire the latch after tx1's release, got %v", err)
	}
}

func TestIsVisible(t *testing.T) {
	m := newTestLatchManager(time.Second)
	m.BeginTx(5)
	m.SetStatus(5, TxCommitted)
	m.BeginTx(10)

	if !m.IsVisible(10, 5, InfinityTxID) {
		t.Fatalf("tuple created by a committed earlier tx should be visible")
	}
	if m.IsVisible(10, 20, InfinityTxID) {
		t.Fatalf("tuple created by a later tx should not be visible")
	}
	if !m.IsVisible(20, 20, InfinityTxID) {
		t.Fatalf("a tx should see its own uncommitted write")
	}
	m.BeginTx(6)
	if m.IsVisible(10, 6, InfinityTxID) {
		t.Fatalf("tuple created by a still-active tx should not be visible to others")
	}
}

func TestMinActiveTx(t *testing.T) {
	m := newTestLatchManager(time.Second)
	if _, ok := m.MinActiveTx(); ok {
		t.Fatalf("expected no active tx initially")
	}
	m.BeginTx(3)
	m.BeginTx(1)
	m.BeginTx(2)
	m.SetStatus(1, TxCommitted)

	min, ok := m.MinActiveTx()
	if !ok || min != 2 {
		t.Fatalf("expected min active tx 2, got %d (ok=%v)", min, ok)
	}
}
