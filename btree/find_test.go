package btree

import "testing"

func buildTestInternalPage(t *testing.T) *InternalPage {
	t.Helper()
	keyDesc := FieldDesc{Name: "id", Type: FieldInt64, IsPrimary: true}
	capacity := InternalCapacity(testPageSize, keyDesc.DiskSize(), 12)
	id := PageID{TableID: 1, PageIndex: 3, Category: CategoryInternal}
	page := NewInternalPage(id, NoPage, CategoryLeaf, keyDesc, capacity)
	page.Leftmost = PageID{TableID: 1, PageIndex: 10, Category: CategoryLeaf}
	page.Entries[0] = InternalEntry{Key: IntField(20), Child: PageID{TableID: 1, PageIndex: 20, Category: CategoryLeaf}}
	page.Occupied[0] = true
	page.Entries[1] = InternalEntry{Key: IntField(10), Child: PageID{TableID: 1, PageIndex: 11, Category: CategoryLeaf}}
	page.Occupied[1] = true
	return page
}

func TestChildForLeftmostAndRightmost(t *testing.T) {
	page := buildTestInternalPage(t)

	if got := childFor(page, searchLeftmost()); got != page.Leftmost {
		t.Fatalf("expected leftmost descent to return %s, got %s", page.Leftmost, got)
	}

	want := PageID{TableID: 1, PageIndex: 20, Category: CategoryLeaf}
	if got := childFor(page, searchRightmost()); got != want {
		t.Fatalf("expected rightmost descent to return %s, got %s", want, got)
	}
}

func TestChildForTargetDescendsIntoCorrectChild(t *testing.T) {
	page := buildTestInternalPage(t)

	// keys below 10 belong left of the smallest separator: Leftmost.
	if got := childFor(page, searchTarget(Cell{Key: IntField(5)})); got != page.Leftmost {
		t.Fatalf("expected key 5 to descend into leftmost child %s, got %s", page.Leftmost, got)
	}
	// key == 10 descends into the child of the separator it matches.
	want10 := PageID{TableID: 1, PageIndex: 11, Category: CategoryLeaf}
	if got := childFor(page, searchTarget(Cell{Key: IntField(10)})); got != want10 {
		t.Fatalf("expected key 10 to descend into %s, got %s", want10, got)
	}
	// key between separators descends into the lower separator's child.
	if got := childFor(page, searchTarget(Cell{Key: IntField(15)})); got != want10 {
		t.Fatalf("expected key 15 to descend into %s, got %s", want10, got)
	}
	// key at or above the largest separator descends into its child.
	want20 := PageID{TableID: 1, PageIndex: 20, Category: CategoryLeaf}
	if got := childFor(page, searchTarget(Cell{Key: IntField(25)})); got != want20 {
		t.Fatalf("expected key 25 to descend into %s, got %s", want20, got)
	}
}

func TestFindLeafDescendsToTargetAcrossSplits(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	const n = 500
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
	defer tx2.Commit()

	for _, key := range []int64{0, 1, n / 2, n - 1} {
		pid, err := users.findLeaf(tx2.ID(), SharedLatch, searchTarget(Cell{Key: IntField(key)}))
		if err != nil {
			t.Fatalf("findLeaf(%d) failed: %v", key, err)
		}
		if pid.Category != CategoryLeaf {
			t.Fatalf("findLeaf(%d) returned non-leaf page %s", key, pid)
		}
		leaf, err := users.getLeaf(tx2.ID(), SharedLatch, pid)
		if err != nil {
			t.Fatalf("getLeaf failed: %v", err)
		}
		found := false
		for _, slot := range leaf.SortedSlots() {
			if leaf.Tuples[slot].Values[0].Int64Value == key {
				found = true
				break
			}
		}
		users.latch.ReleaseLatch(tx2.ID(), pid)
		if !found {
			t.Fatalf("expected key %d in the leaf findLeaf descended to", key)
		}
	}
}
