package btree

import "fmt"

// Table is the per-table façade over the buffer pool: it knows the
// schema, the primary-key field descriptor, and the derived leaf/internal
// capacities, and implements PageLoader so the pager can decode raw bytes
// without a package-wide type switch keyed on schema. Grounded on the
// teacher's single BTree type (btree.go), split here into Table (schema,
// capacities, tree operations) plus Database (database.go, multi-table
// wiring) since this engine now hosts more than one table per process.
type Table struct {
	tableID uint32
	schema  *Schema
	keyDesc FieldDesc

	leafCapacity     int
	internalCapacity int
	pageSize         int

	pager  *Pager
	latch  *LatchManager
	wal    *WAL
	logger *Logger

	config Config
}

func newTable(tableID uint32, schema *Schema, pager *Pager, latch *LatchManager, wal *WAL, cfg Config) *Table {
	keyDesc := schema.PrimaryField()
	return &Table{
		tableID:          tableID,
		schema:           schema,
		keyDesc:          keyDesc,
		leafCapacity:     LeafCapacity(cfg.PageSize, TupleDiskSize(schema)),
		internalCapacity: InternalCapacity(cfg.PageSize, keyDesc.DiskSize(), 12),
		pageSize:         cfg.PageSize,
		pager:            pager,
		latch:            latch,
		wal:              wal,
		logger:           loggerOrNop(cfg.Logger),
		config:           cfg,
	}
}

// DecodePage implements PageLoader: the first 4 bytes of every page are
// its category tag, which selects the concrete decode function.
func (t *Table) DecodePage(pid PageID, buf []byte) (Page, error) {
	r := NewReadCursor(buf)
	cat, err := r.PageCategory()
	if err != nil {
		return nil, err
	}
	switch cat {
	case CategoryRootPointer:
		return DecodeRootPointerPage(pid, buf)
	case CategoryHeader:
		return DecodeHeaderPage(pid, buf)
	case CategoryInternal:
		return DecodeInternalPage(pid, buf, t.keyDesc, t.internalCapacity)
	case CategoryLeaf:
		return DecodeLeafPage(pid, buf, t.schema)
	default:
		return nil, fmt.Errorf("btree: page %s has unknown category %d", pid, cat)
	}
}

// bootstrap creates a brand-new table file: a root-pointer page (index 0)
// whose root is a single empty leaf (index 2), plus the first header page
// (index 1) with the slots of both already marked allocated.
func (t *Table) bootstrap(tx TxID) error {
	leafPID := PageID{TableID: t.tableID, PageIndex: 2, Category: CategoryLeaf}
	leaf := NewLeafPage(leafPID, RootPointerID(t.tableID), t.schema, t.leafCapacity)
	if err := t.pager.PutNewPage(tx, leaf); err != nil {
		return err
	}

	headerPID := PageID{TableID: t.tableID, PageIndex: 1, Category: CategoryHeader}
	hp := NewHeaderPage(headerPID, t.pageSize)
	hp.Bitmap[0] = true // header page's own slot
	hp.Bitmap[1] = true // root leaf's slot
	if err := t.pager.PutNewPage(tx, hp); err != nil {
		return err
	}

	rp := NewRootPointerPage(t.tableID, leafPID, headerPID)
	return t.pager.PutNewPage(tx, rp)
}

func (t *Table) rootPointer(tx TxID, perm LatchMode) (*RootPointerPage, error) {
	p, err := t.pager.GetPage(tx, perm, RootPointerID(t.tableID), t)
	if err != nil {
		return nil, err
	}
	return p.(*RootPointerPage), nil
}

func (t *Table) getLeaf(tx TxID, perm LatchMode, pid PageID) (*LeafPage, error) {
	p, err := t.pager.GetPage(tx, perm, pid, t)
	if err != nil {
		return nil, err
	}
	lp, ok := p.(*LeafPage)
	if !ok {
		return nil, fmt.Errorf("btree: page %s is not a leaf", pid)
	}
	return lp, nil
}

func (t *Table) getInternal(tx TxID, perm LatchMode, pid PageID) (*InternalPage, error) {
	p, err := t.pager.GetPage(tx, perm, pid, t)
	if err != nil {
		return nil, err
	}
	ip, ok := p.(*InternalPage)
	if !ok {
		return nil, fmt.Errorf("btree: page %s is not internal", pid)
	}
	return ip, nil
}

// Insert adds a new tuple version under tx (table operations §4.6).
func (t *Table) Insert(tx TxID, values []Field) error {
	if len(values) != len(t.schema.Fields) {
		return fmt.Errorf("btree: insert expects %d values, got %d", len(t.schema.Fields), len(values))
	}
	tuple := Tuple{Values: values, Xmin: tx, Xmax: InfinityTxID}
	return t.insertTuple(tx, tuple)
}

// Delete logically removes the tuple with the given primary key by
// setting its xmax (MVCC tombstone, spec.md §4.6 "Deletion" step 1),
// then rebalances if the owning leaf drops below the stable threshold.
func (t *Table) Delete(tx TxID, key Field) error {
	return t.deleteTuple(tx, key)
}

// Get returns the first tuple visible to tx with the given primary key,
// or found=false.
func (t *Table) Get(tx TxID, key Field) (Tuple, bool, error) {
	leafPID, err := t.findLeaf(tx, SharedLatch, searchTarget(Cell{Key: key}))
	if err != nil {
		return Tuple{}, false, err
	}
	leaf, err := t.getLeaf(tx, SharedLatch, leafPID)
	if err != nil {
		return Tuple{}, false, err
	}
	defer t.latch.ReleaseLatch(tx, leafPID)
	for _, slot := range leaf.SortedSlots() {
		tup := leaf.Tuples[slot]
		if tup.Values[t.schema.PrimaryIndex()].Compare(key) == 0 && t.visible(tx, tup) {
			return tup, true, nil
		}
	}
	return Tuple{}, false, nil
}

func (t *Table) visible(tx TxID, tup Tuple) bool {
	return t.latch.IsVisible(tx, tup.Xmin, tup.Xmax)
}
