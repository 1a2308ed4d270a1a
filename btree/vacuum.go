package btree

// Vacuum implements spec.md §4.6 "delete_invisible_tuples": scan every
// leaf and physically remove tuples whose xmax is at or before the
// minimum active transaction, since no running transaction can still
// need that version's visibility window. Rebalances any leaf that drops
// below the stable threshold as a result.
func (t *Table) Vacuum(tx TxID) (int, error) {
	minActive, hasActive := t.latch.MinActiveTx()

	leafPID, err := t.findLeaf(tx, SharedLatch, searchLeftmost())
	if err != nil {
		return 0, err
	}
	t.latch.ReleaseLatch(tx, leafPID)

	removed := 0
	for !leafPID.IsZero() {
		leaf, err := t.getLeaf(tx, ExclusiveLatch, leafPID)
		if err != nil {
			return removed, err
		}
		next := leaf.RightSibling
		for _, slot := range leaf.SortedSlots() {
			tup := leaf.Tuples[slot]
			if tup.Xmax == InfinityTxID {
				continue
			}
			if hasActive && tup.Xmax > minActive {
				continue
			}
			leaf.Occupied[slot] = false
			removed++
		}
		if leaf.ParentPID.Category != CategoryRootPointer {
			stable := ceilDiv(leaf.Capacity(), 2)
			if leaf.Count() < stable {
				if err := t.rebalanceLeaf(tx, leaf); err != nil {
					return removed, err
				}
			}
		}
		t.latch.ReleaseLatch(tx, leafPID)
		leafPID = next
	}
	return removed, nil
}
