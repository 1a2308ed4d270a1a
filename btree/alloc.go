package btree

// allocatePageIndex finds a free page index via the header-page bitmap
// chain, growing the chain with a new header page when every existing
// one is saturated (spec.md §4.2 "HeaderPage(s)"; §4.6 "Full only if the
// header bitmap is saturated (implementation must grow it)"). The root-
// pointer page must already be held with an exclusive latch by the
// caller (tx) since HeaderHead may be written.
func (t *Table) allocatePageIndex(tx TxID, rp *RootPointerPage) (uint32, error) {
	if rp.HeaderHead.IsZero() {
		headerPID := PageID{TableID: t.tableID, PageIndex: 1, Category: CategoryHeader}
		hp := NewHeaderPage(headerPID, t.pageSize)
		hp.Bitmap[0] = true // the header page occupies its own first slot
		if err := t.pager.PutNewPage(tx, hp); err != nil {
			return 0, err
		}
		rp.HeaderHead = headerPID
	}

	headerPID := rp.HeaderHead
	base := uint32(1)
	for {
		hpAny, err := t.pager.GetPage(tx, ExclusiveLatch, headerPID, t)
		if err != nil {
			return 0, err
		}
		hp := hpAny.(*HeaderPage)
		if idx := hp.FindFree(); idx != -1 {
			hp.Bitmap[idx] = true
			return base + uint32(idx), nil
		}
		nextBase := base + uint32(len(hp.Bitmap))
		if hp.Next.IsZero() {
			nextPID := PageID{TableID: t.tableID, PageIndex: nextBase, Category: CategoryHeader}
			nhp := NewHeaderPage(nextPID, t.pageSize)
			nhp.Bitmap[0] = true
			if err := t.pager.PutNewPage(tx, nhp); err != nil {
				return 0, err
			}
			hp.Next = nextPID
			base = nextBase
			headerPID = nextPID
			continue
		}
		base = nextBase
		headerPID = hp.Next
	}
}

// freePageIndex clears the header bitmap bit for pageIndex, returning it
// to the free pool (spec.md §3 "discarded ... via a cleared header bit").
func (t *Table) freePageIndex(tx TxID, rp *RootPointerPage, pageIndex uint32) error {
	headerPID := rp.HeaderHead
	base := uint32(1)
	for !headerPID.IsZero() {
		hpAny, err := t.pager.GetPage(tx, ExclusiveLatch, headerPID, t)
		if err != nil {
			return err
		}
		hp := hpAny.(*HeaderPage)
		if pageIndex >= base && pageIndex < base+uint32(len(hp.Bitmap)) {
			hp.Bitmap[pageIndex-base] = false
			return nil
		}
		base += uint32(len(hp.Bitmap))
		headerPID = hp.Next
	}
	return nil
}
