package btree

// searchMode selects how find_leaf_page picks a child at each internal
// level (spec.md §4.6 "Find-leaf descent").
type searchMode int

const (
	searchLeftMost searchMode = iota
	searchRightMost
	searchTargetMode
)

type search struct {
	mode searchMode
	key  Field
}

func searchLeftmost() search  { return search{mode: searchLeftMost} }
func searchRightmost() search { return search{mode: searchRightMost} }

// searchTarget builds a Target(cell) search that descends toward the
// leaf that would contain cell.Key.
func searchTarget(cell Cell) search { return search{mode: searchTargetMode, key: cell.Key} }

// childFor picks the next PageID to descend into given an internal
// page's sorted entries and this page's Leftmost pointer.
func childFor(page *InternalPage, s search) PageID {
	entries := page.SortedEntries()
	switch s.mode {
	case searchLeftMost:
		if len(entries) == 0 {
			return page.Leftmost
		}
		return page.Leftmost
	case searchRightMost:
		if len(entries) == 0 {
			return page.Leftmost
		}
		return entries[len(entries)-1].Child
	default: // Target
		for _, e := range entries {
			if s.key.Compare(e.Key) < 0 {
				// descend into the left child of the first entry whose
				// key > target: everything strictly before e belongs
				// left of e, so the running "current child" is the
				// previous entry's child (or Leftmost).
				break
			}
		}
		child := page.Leftmost
		for _, e := range entries {
			if s.key.Compare(e.Key) >= 0 {
				child = e.Child
			} else {
				break
			}
		}
		return child
	}
}

// findLeaf performs the per-page latched descent from the table's current
// root to the target leaf, returning the leaf's PageID still latched
// with perm (caller must release it). Each internal page is latched
// Shared and released before the next level is requested, so the descent
// never holds a parent and a child latch at the same time (no latch
// coupling); under the tree-latch strategy a single latch covers the
// whole traversal instead (spec.md §4.6).
func (t *Table) findLeaf(tx TxID, perm LatchMode, s search) (PageID, error) {
	rp, err := t.rootPointer(tx, SharedLatch)
	if err != nil {
		return PageID{}, err
	}
	current := rp.Root
	t.latch.ReleaseLatch(tx, RootPointerID(t.tableID))

	if t.config.LatchStrategy == TreeLatchStrategy {
		return t.findLeafTreeLatch(tx, perm, current, s)
	}

	for current.Category == CategoryInternal {
		ip, err := t.getInternal(tx, SharedLatch, current)
		if err != nil {
			return PageID{}, err
		}
		next := childFor(ip, s)
		t.latch.ReleaseLatch(tx, current)
		current = next
	}

	if err := t.latch.RequestLatch(tx, perm, current); err != nil {
		return PageID{}, err
	}
	return current, nil
}

// findLeafTreeLatch acquires a single exclusive latch on the tree's
// logical root identity (the root-pointer page) for the whole descent,
// instead of per-page crabbing.
func (t *Table) findLeafTreeLatch(tx TxID, perm LatchMode, root PageID, s search) (PageID, error) {
	treeLatchPID := RootPointerID(t.tableID)
	if err := t.latch.RequestLatch(tx, ExclusiveLatch, treeLatchPID); err != nil {
		return PageID{}, err
	}
	current := root
	for current.Category == CategoryInternal {
		ip, err := t.getInternal(tx, SharedLatch, current)
		if err != nil {
			t.latch.ReleaseLatch(tx, treeLatchPID)
			return PageID{}, err
		}
		current = childFor(ip, s)
		t.latch.ReleaseLatch(tx, current) // no-op if not yet held; keeps cache warm
	}
	if err := t.latch.RequestLatch(tx, perm, current); err != nil {
		t.latch.ReleaseLatch(tx, treeLatchPID)
		return PageID{}, err
	}
	return current, nil
}
