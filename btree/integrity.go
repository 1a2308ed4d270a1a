package btree

import "fmt"

// CheckIntegrity implements spec.md §4.6 "Integrity check": a recursive
// descent verifying sortedness and bounds at every level, a single
// left-to-right sibling chain across leaves, parent-pointer correctness,
// and the occupancy invariant at depth > 0.
func (t *Table) CheckIntegrity(tx TxID) error {
	rp, err := t.rootPointer(tx, SharedLatch)
	if err != nil {
		return err
	}
	defer t.latch.ReleaseLatch(tx, RootPointerID(t.tableID))

	if err := t.checkSubtree(tx, rp.Root, RootPointerID(t.tableID), nil, nil, 0); err != nil {
		return err
	}
	return t.checkLeafChain(tx, rp.Root)
}

// checkSubtree verifies invariants 1, 3, 5 recursively; it does not
// check that all leaves sit at the same depth (invariant 2). lower/upper
// are the exclusive-on-neither-end key bounds inherited from ancestors
// (nil means unbounded).
func (t *Table) checkSubtree(tx TxID, pid, expectedParent PageID, lower, upper *Field, depth int) error {
	switch pid.Category {
	case CategoryLeaf:
		leaf, err := t.getLeaf(tx, SharedLatch, pid)
		if err != nil {
			return err
		}
		defer t.latch.ReleaseLatch(tx, pid)
		if leaf.ParentPID != expectedParent {
			return fmt.Errorf("%w: leaf %s has parent %s, expected %s", ErrInvariantViolated, pid, leaf.ParentPID, expectedParent)
		}
		slots := leaf.SortedSlots()
		primary := t.schema.PrimaryIndex()
		for i := 1; i < len(slots); i++ {
			if leaf.Tuples[slots[i-1]].Values[primary].Compare(leaf.Tuples[slots[i]].Values[primary]) > 0 {
				return fmt.Errorf("%w: leaf %s not sorted", ErrInvariantViolated, pid)
			}
		}
		for _, s := range slots {
			k := leaf.Tuples[s].Values[primary]
			if lower != nil && k.Compare(*lower) < 0 {
				return fmt.Errorf("%w: leaf %s key below lower bound", ErrInvariantViolated, pid)
			}
			if upper != nil && k.Compare(*upper) > 0 {
				return fmt.Errorf("%w: leaf %s key above upper bound", ErrInvariantViolated, pid)
			}
		}
		if depth > 0 {
			stable := ceilDiv(leaf.Capacity(), 2)
			if leaf.Count() < stable {
				return fmt.Errorf("%w: leaf %s occupancy %d below stable threshold %d", ErrInvariantViolated, pid, leaf.Count(), stable)
			}
		}
		return nil

	case CategoryInternal:
		ip, err := t.getInternal(tx, SharedLatch, pid)
		if err != nil {
			return err
		}
		defer t.latch.ReleaseLatch(tx, pid)
		if ip.ParentPID != expectedParent {
			return fmt.Errorf("%w: internal %s has parent %s, expected %s", ErrInvariantViolated, pid, ip.ParentPID, expectedParent)
		}
		entries := ip.SortedEntries()
		for i := 1; i < len(entries); i++ {
			if entries[i-1].Key.Compare(entries[i].Key) > 0 {
				return fmt.Errorf("%w: internal %s entries not sorted", ErrInvariantViolated, pid)
			}
		}
		if depth > 0 {
			stable := ceilDiv(ip.Capacity(), 2)
			if ip.Count() < stable {
				return fmt.Errorf("%w: internal %s occupancy %d below stable threshold %d", ErrInvariantViolated, pid, ip.Count(), stable)
			}
		}

		children := []PageID{ip.Leftmost}
		for _, e := range entries {
			children = append(children, e.Child)
		}
		for i, child := range children {
			var lo, hi *Field
			if i > 0 {
				k := entries[i-1].Key
				lo = &k
			} else {
				lo = lower
			}
			if i < len(entries) {
				k := entries[i].Key
				hi = &k
			} else {
				hi = upper
			}
			if err := t.checkSubtree(tx, child, pid, lo, hi, depth+1); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("btree: unexpected page category %s in subtree", pid.Category)
	}
}

// checkLeafChain verifies invariant 4: right-sibling pointers traverse
// every leaf in ascending key order, and left-sibling pointers are the
// inverse.
func (t *Table) checkLeafChain(tx TxID, root PageID) error {
	leafPID, err := t.findLeaf(tx, SharedLatch, searchLeftmost())
	if err != nil {
		return err
	}
	t.latch.ReleaseLatch(tx, leafPID)

	var prevPID PageID
	var prevMax *Field
	primary := t.schema.PrimaryIndex()
	for !leafPID.IsZero() {
		leaf, err := t.getLeaf(tx, SharedLatch, leafPID)
		if err != nil {
			return err
		}
		if leaf.LeftSibling != prevPID {
			t.latch.ReleaseLatch(tx, leafPID)
			return fmt.Errorf("%w: leaf %s left-sibling %s does not match previous %s", ErrInvariantViolated, leafPID, leaf.LeftSibling, prevPID)
		}
		slots := leaf.SortedSlots()
		if len(slots) > 0 {
			firstKey := leaf.Tuples[slots[0]].Values[primary]
			if prevMax != nil && firstKey.Compare(*prevMax) < 0 {
				t.latch.ReleaseLatch(tx, leafPID)
				return fmt.Errorf("%w: leaf chain out of order at %s", ErrInvariantViolated, leafPID)
			}
			lastKey := leaf.Tuples[slots[len(slots)-1]].Values[primary]
			prevMax = &lastKey
		}
		prevPID = leafPID
		next := leaf.RightSibling
		t.latch.ReleaseLatch(tx, leafPID)
		leafPID = next
	}
	return nil
}
