package btree

// insertTuple implements spec.md §4.6 "Insertion": descend to the target
// leaf with ReadWrite permission, insert directly if there is room,
// otherwise split and recursively insert a separator into the parent.
func (t *Table) insertTuple(tx TxID, tuple Tuple) error {
	key := tuple.Values[t.schema.PrimaryIndex()]
	leafPID, err := t.findLeaf(tx, ExclusiveLatch, searchTarget(Cell{Key: key}))
	if err != nil {
		return err
	}
	leaf, err := t.getLeaf(tx, ExclusiveLatch, leafPID)
	if err != nil {
		return err
	}

	if slot := leaf.FirstFreeSlot(); slot != -1 {
		leaf.Tuples[slot] = tuple
		leaf.Occupied[slot] = true
		return nil
	}
	return t.splitLeafAndInsert(tx, leaf, tuple)
}

// splitLeafAndInsert allocates a new right sibling, moves the upper half
// of tuples to it, relinks siblings, and inserts a separator for the new
// sibling into the parent (spec.md §4.6 step 3, "split key is the first
// key of the new right sibling").
func (t *Table) splitLeafAndInsert(tx TxID, left *LeafPage, tuple Tuple) error {
	rp, err := t.rootPointer(tx, ExclusiveLatch)
	if err != nil {
		return err
	}
	rightIndex, err := t.allocatePageIndex(tx, rp)
	if err != nil {
		return err
	}
	rightPID := PageID{TableID: t.tableID, PageIndex: rightIndex, Category: CategoryLeaf}
	right := NewLeafPage(rightPID, left.ParentPID, t.schema, t.leafCapacity)
	if err := t.pager.PutNewPage(tx, right); err != nil {
		return err
	}

	slots := left.SortedSlots()
	mid := len(slots) / 2
	for i, s := range slots {
		if i >= mid {
			freeIdx := right.FirstFreeSlot()
			right.Tuples[freeIdx] = left.Tuples[s]
			right.Occupied[freeIdx] = true
			left.Occupied[s] = false
		}
	}

	right.RightSibling = left.RightSibling
	right.LeftSibling = left.ID()
	left.RightSibling = right.ID()
	if !right.RightSibling.IsZero() {
		rightRight, err := t.getLeaf(tx, ExclusiveLatch, right.RightSibling)
		if err != nil {
			return err
		}
		rightRight.LeftSibling = right.ID()
	}

	primary := t.schema.PrimaryIndex()
	target := left
	if tuple.Values[primary].Compare(mustFirstKey(right)) >= 0 {
		target = right
	}
	if slot := target.FirstFreeSlot(); slot != -1 {
		target.Tuples[slot] = tuple
		target.Occupied[slot] = true
	} else {
		return ErrPageFull
	}

	splitKey, _ := right.FirstKey()
	return t.insertSeparator(tx, left.ParentPID, left.ID(), right.ID(), splitKey, rp, CategoryLeaf)
}

func mustFirstKey(p *LeafPage) Field {
	k, _ := p.FirstKey()
	return k
}

// insertSeparator inserts a (splitKey, rightChild) entry into parentPID,
// handling the three cases spec.md §4.6 step 4 describes: parent is the
// root-pointer page (install a new root), parent has room, or parent is
// full (recursive internal split).
func (t *Table) insertSeparator(tx TxID, parentPID, leftChild, rightChild PageID, splitKey Field, rp *RootPointerPage, childrenCategory PageCategory) error {
	if parentPID.Category == CategoryRootPointer {
		newRootIndex, err := t.allocatePageIndex(tx, rp)
		if err != nil {
			return err
		}
		newRootPID := PageID{TableID: t.tableID, PageIndex: newRootIndex, Category: CategoryInternal}
		newRoot := NewInternalPage(newRootPID, RootPointerID(t.tableID), childrenCategory, t.keyDesc, t.internalCapacity)
		newRoot.Leftmost = leftChild
		newRoot.Entries[0] = InternalEntry{Key: splitKey, Child: rightChild}
		newRoot.Occupied[0] = true
		if err := t.pager.PutNewPage(tx, newRoot); err != nil {
			return err
		}
		rp.Root = newRootPID
		if err := t.setParent(tx, leftChild, newRootPID); err != nil {
			return err
		}
		return t.setParent(tx, rightChild, newRootPID)
	}

	parent, err := t.getInternal(tx, ExclusiveLatch, parentPID)
	if err != nil {
		return err
	}
	if slot := firstFreeInternalSlot(parent); slot != -1 {
		parent.Entries[slot] = InternalEntry{Key: splitKey, Child: rightChild}
		parent.Occupied[slot] = true
		return t.setParent(tx, rightChild, parentPID)
	}
	return t.splitInternalAndInsert(tx, parent, InternalEntry{Key: splitKey, Child: rightChild}, rp)
}

func firstFreeInternalSlot(p *InternalPage) int {
	for i, occ := range p.Occupied {
		if !occ {
			return i
		}
	}
	return -1
}

// splitInternalAndInsert splits a full internal page: allocate a new
// right sibling, move the upper half of entries to it, push the median
// key up to the grandparent (spec.md §4.6 step 4 "If the parent is full").
func (t *Table) splitInternalAndInsert(tx TxID, left *InternalPage, newEntry InternalEntry, rp *RootPointerPage) error {
	all := left.SortedEntries()
	all = insertSortedEntry(all, newEntry)

	mid := len(all) / 2
	medianKey := all[mid].Key
	leftEntries := all[:mid]
	rightEntries := all[mid+1:]
	rightLeftmost := all[mid].Child

	rightIndex, err := t.allocatePageIndex(tx, rp)
	if err != nil {
		return err
	}
	rightPID := PageID{TableID: t.tableID, PageIndex: rightIndex, Category: CategoryInternal}
	right := NewInternalPage(rightPID, left.ParentPID, left.ChildrenCategory, t.keyDesc, t.internalCapacity)
	right.Leftmost = rightLeftmost
	for i, e := range rightEntries {
		right.Entries[i] = e
		right.Occupied[i] = true
	}
	if err := t.pager.PutNewPage(tx, right); err != nil {
		return err
	}
	for _, e := range rightEntries {
		if err := t.setParent(tx, e.Child, rightPID); err != nil {
			return err
		}
	}
	if err := t.setParent(tx, rightLeftmost, rightPID); err != nil {
		return err
	}

	for i := range left.Entries {
		left.Occupied[i] = false
	}
	for i, e := range leftEntries {
		left.Entries[i] = e
		left.Occupied[i] = true
	}

	return t.insertSeparator(tx, left.ParentPID, left.ID(), rightPID, medianKey, rp, CategoryInternal)
}

func insertSortedEntry(entries []InternalEntry, e InternalEntry) []InternalEntry {
	out := append([]InternalEntry{}, entries...)
	out = append(out, e)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Key.Compare(out[j].Key) > 0 {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// setParent updates child's parent_pid field (invariant 5), fetching it
// with an exclusive latch.
func (t *Table) setParent(tx TxID, child, parent PageID) error {
	switch child.Category {
	case CategoryLeaf:
		lp, err := t.getLeaf(tx, ExclusiveLatch, child)
		if err != nil {
			return err
		}
		lp.ParentPID = parent
	case CategoryInternal:
		ip, err := t.getInternal(tx, ExclusiveLatch, child)
		if err != nil {
			return err
		}
		ip.ParentPID = parent
	}
	return nil
}
