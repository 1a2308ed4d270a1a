package btree

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// deleteTuple implements spec.md §4.6 "Deletion": locate the leaf holding
// key, tombstone the visible version by setting its xmax, then rebalance
// if the page drops below the stable threshold.
func (t *Table) deleteTuple(tx TxID, key Field) error {
	leafPID, err := t.findLeaf(tx, ExclusiveLatch, searchTarget(Cell{Key: key}))
	if err != nil {
		return err
	}
	leaf, err := t.getLeaf(tx, ExclusiveLatch, leafPID)
	if err != nil {
		return err
	}
	primary := t.schema.PrimaryIndex()
	found := -1
	for _, slot := range leaf.SortedSlots() {
		tup := leaf.Tuples[slot]
		if tup.Values[primary].Compare(key) == 0 && t.visible(tx, tup) {
			found = slot
			break
		}
	}
	if found == -1 {
		return ErrNotFound
	}
	leaf.Tuples[found].Xmax = tx

	stable := ceilDiv(leaf.Capacity(), 2)
	if leaf.Count() >= stable || leaf.ParentPID.Category == CategoryRootPointer {
		return nil
	}
	return t.rebalanceLeaf(tx, leaf)
}

// rebalanceLeaf implements spec.md §4.6 step 3: prefer redistributing
// with the left sibling, else the right; merge when the combined count
// fits in one page, otherwise steal entries until both sides are stable.
func (t *Table) rebalanceLeaf(tx TxID, leaf *LeafPage) error {
	rp, err := t.rootPointer(tx, ExclusiveLatch)
	if err != nil {
		return err
	}
	parent, err := t.getInternal(tx, ExclusiveLatch, leaf.ParentPID)
	if err != nil {
		return err
	}
	capacity := leaf.Capacity()
	stable := ceilDiv(capacity, 2)

	if !leaf.LeftSibling.IsZero() {
		left, err := t.getLeaf(tx, ExclusiveLatch, leaf.LeftSibling)
		if err != nil {
			return err
		}
		if left.ParentPID == leaf.ParentPID {
			if left.Count()+leaf.Count() <= capacity {
				return t.mergeLeaves(tx, left, leaf, parent, rp)
			}
			if left.Count() > stable {
				for leaf.Count() < stable && left.Count() > stable {
					if err := t.redistributeFromLeftLeaf(leaf, left, parent); err != nil {
						return err
					}
				}
				return nil
			}
		}
	}
	if !leaf.RightSibling.IsZero() {
		right, err := t.getLeaf(tx, ExclusiveLatch, leaf.RightSibling)
		if err != nil {
			return err
		}
		if right.ParentPID == leaf.ParentPID {
			if right.Count()+leaf.Count() <= capacity {
				return t.mergeLeaves(tx, leaf, right, parent, rp)
			}
			if right.Count() > stable {
				for leaf.Count() < stable && right.Count() > stable {
					if err := t.redistributeFromRightLeaf(leaf, right, parent); err != nil {
						return err
					}
				}
				return nil
			}
		}
	}
	return nil
}

// redistributeFromLeftLeaf steals left's last (highest-key) tuple and
// updates the parent separator to leaf's new first key.
func (t *Table) redistributeFromLeftLeaf(leaf, left *LeafPage, parent *InternalPage) error {
	leftSlots := left.SortedSlots()
	src := leftSlots[len(leftSlots)-1]
	moved := left.Tuples[src]
	left.Occupied[src] = false
	dst := leaf.FirstFreeSlot()
	leaf.Tuples[dst] = moved
	leaf.Occupied[dst] = true

	idx := parent.findEntryIndexByChild(leaf.ID())
	if idx != -1 {
		newKey, _ := leaf.FirstKey()
		parent.Entries[idx].Key = newKey
	}
	return nil
}

// redistributeFromRightLeaf steals right's first (lowest-key) tuple and
// updates the parent separator to right's new first key.
func (t *Table) redistributeFromRightLeaf(leaf, right *LeafPage, parent *InternalPage) error {
	rightSlots := right.SortedSlots()
	src := rightSlots[0]
	moved := right.Tuples[src]
	right.Occupied[src] = false
	dst := leaf.FirstFreeSlot()
	leaf.Tuples[dst] = moved
	leaf.Occupied[dst] = true

	idx := parent.findEntryIndexByChild(right.ID())
	if idx != -1 {
		newKey, _ := right.FirstKey()
		parent.Entries[idx].Key = newKey
	}
	return nil
}

// mergeLeaves appends right's tuples into left, fixes the sibling chain,
// deletes the parent separator referencing right, frees right's page
// index, and recurses into internal rebalance if the parent is now
// understable (spec.md §4.6 step 3 "merge into left").
func (t *Table) mergeLeaves(tx TxID, left, right *LeafPage, parent *InternalPage, rp *RootPointerPage) error {
	for _, s := range right.SortedSlots() {
		dst := left.FirstFreeSlot()
		if dst == -1 {
			return ErrInvariantViolated
		}
		left.Tuples[dst] = right.Tuples[s]
		left.Occupied[dst] = true
	}
	left.RightSibling = right.RightSibling
	if !right.RightSibling.IsZero() {
		rr, err := t.getLeaf(tx, ExclusiveLatch, right.RightSibling)
		if err != nil {
			return err
		}
		rr.LeftSibling = left.ID()
	}

	idx := parent.findEntryIndexByChild(right.ID())
	if idx != -1 {
		parent.Occupied[idx] = false
	}
	if err := t.freePageIndex(tx, rp, right.ID().PageIndex); err != nil {
		return err
	}
	t.pager.DiscardPage(right.ID())

	return t.rebalanceInternalIfNeeded(tx, parent, rp)
}

// --- internal-page rebalance ------------------------------------------

func (p *InternalPage) findEntryIndexByChild(child PageID) int {
	for i, occ := range p.Occupied {
		if occ && p.Entries[i].Child == child {
			return i
		}
	}
	return -1
}

// rebalanceInternalIfNeeded implements spec.md §4.6 step 4: internal-page
// rebalance is analogous to leaf rebalance but over entries, pulls the
// parent separator down into the merged/redistributed page ("rotate
// through the parent"), and updates every moved child's parent pointer.
// If page is the root and left with a single child, the root shrinks.
func (t *Table) rebalanceInternalIfNeeded(tx TxID, page *InternalPage, rp *RootPointerPage) error {
	capacity := page.Capacity()
	stable := ceilDiv(capacity, 2)

	if page.ParentPID.Category == CategoryRootPointer {
		if page.Count() == 0 {
			rp.Root = page.Leftmost
			if err := t.setParent(tx, page.Leftmost, RootPointerID(t.tableID)); err != nil {
				return err
			}
			if err := t.freePageIndex(tx, rp, page.ID().PageIndex); err != nil {
				return err
			}
			t.pager.DiscardPage(page.ID())
		}
		return nil
	}
	if page.Count() >= stable {
		return nil
	}

	grandparent, err := t.getInternal(tx, ExclusiveLatch, page.ParentPID)
	if err != nil {
		return err
	}

	// Find this page's position among its siblings via the grandparent's
	// entries (whose Child fields are this page's siblings/self).
	var leftSibPID, rightSibPID PageID
	idx := grandparent.findEntryIndexByChild(page.ID())
	entries := grandparent.SortedEntries()
	for i, e := range entries {
		if e.Child == page.ID() {
			if i > 0 {
				leftSibPID = entries[i-1].Child
			} else {
				leftSibPID = grandparent.Leftmost
			}
			if i+1 < len(entries) {
				rightSibPID = entries[i+1].Child
			}
			break
		}
	}
	if idx == -1 && page.ID() == grandparent.Leftmost && len(entries) > 0 {
		rightSibPID = entries[0].Child
	}

	if !leftSibPID.IsZero() {
		left, err := t.getInternal(tx, ExclusiveLatch, leftSibPID)
		if err != nil {
			return err
		}
		if left.Count()+page.Count()+1 <= capacity {
			return t.mergeInternal(tx, left, page, grandparent, rp)
		}
		if left.Count() > stable {
			return t.redistributeFromLeftInternal(tx, page, left, grandparent)
		}
	}
	if !rightSibPID.IsZero() {
		right, err := t.getInternal(tx, ExclusiveLatch, rightSibPID)
		if err != nil {
			return err
		}
		if right.Count()+page.Count()+1 <= capacity {
			return t.mergeInternal(tx, page, right, grandparent, rp)
		}
		if right.Count() > stable {
			return t.redistributeFromRightInternal(tx, page, right, grandparent)
		}
	}
	return nil
}

// mergeInternal merges right into left, rotating the grandparent's
// separator key for (left,right) down as the entry joining their entry
// lists, then deletes that separator and recurses upward if needed.
func (t *Table) mergeInternal(tx TxID, left, right *InternalPage, grandparent *InternalPage, rp *RootPointerPage) error {
	idx := grandparent.findEntryIndexByChild(right.ID())
	if idx == -1 {
		return ErrInvariantViolated
	}
	pulledKey := grandparent.Entries[idx].Key

	merged := append(left.SortedEntries(), InternalEntry{Key: pulledKey, Child: right.Leftmost})
	merged = append(merged, right.SortedEntries()...)

	for i := range left.Entries {
		left.Occupied[i] = false
	}
	for i, e := range merged {
		left.Entries[i] = e
		left.Occupied[i] = true
	}
	if err := t.setParent(tx, right.Leftmost, left.ID()); err != nil {
		return err
	}
	for _, e := range right.SortedEntries() {
		if err := t.setParent(tx, e.Child, left.ID()); err != nil {
			return err
		}
	}

	grandparent.Occupied[idx] = false
	if err := t.freePageIndex(tx, rp, right.ID().PageIndex); err != nil {
		return err
	}
	t.pager.DiscardPage(right.ID())

	return t.rebalanceInternalIfNeeded(tx, grandparent, rp)
}

// redistributeFromLeftInternal rotates left's last entry through the
// grandparent separator into page's front.
func (t *Table) redistributeFromLeftInternal(tx TxID, page, left *InternalPage, grandparent *InternalPage) error {
	idx := grandparent.findEntryIndexByChild(page.ID())
	if idx == -1 {
		return ErrInvariantViolated
	}
	leftEntries := left.SortedEntries()
	stolen := leftEntries[len(leftEntries)-1]

	for i := range left.Entries {
		if left.Occupied[i] && left.Entries[i] == stolen {
			left.Occupied[i] = false
			break
		}
	}

	newLeftmost := stolen.Child
	oldSeparator := grandparent.Entries[idx].Key

	// page's new leftmost becomes the stolen child; its old leftmost
	// becomes the first entry, keyed by the separator pulled from the
	// grandparent.
	insertIdx := firstFreeInternalSlot(page)
	page.Entries[insertIdx] = InternalEntry{Key: oldSeparator, Child: page.Leftmost}
	page.Occupied[insertIdx] = true
	page.Leftmost = newLeftmost

	grandparent.Entries[idx].Key = stolen.Key
	return t.setParent(tx, newLeftmost, page.ID())
}

// redistributeFromRightInternal rotates right's first entry through the
// grandparent separator into page's tail.
func (t *Table) redistributeFromRightInternal(tx TxID, page, right *InternalPage, grandparent *InternalPage) error {
	idx := grandparent.findEntryIndexByChild(right.ID())
	if idx == -1 {
		return ErrInvariantViolated
	}
	rightEntries := right.SortedEntries()
	stolen := rightEntries[0]

	for i := range right.Entries {
		if right.Occupied[i] && right.Entries[i] == stolen {
			right.Occupied[i] = false
			break
		}
	}

	oldSeparator := grandparent.Entries[idx].Key
	moved := right.Leftmost
	insertIdx := firstFreeInternalSlot(page)
	page.Entries[insertIdx] = InternalEntry{Key: oldSeparator, Child: moved}
	page.Occupied[insertIdx] = true

	grandparent.Entries[idx].Key = stolen.Key
	right.Leftmost = stolen.Child
	return t.setParent(tx, moved, page.ID())
}
