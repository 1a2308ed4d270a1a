package btree

import "fmt"

// basePage carries the before_image every page type needs for undo
// (spec.md §4.2): a byte snapshot taken at load time and refreshed after a
// successful commit, used as the WAL's before-image when the page is next
// dirtied.
type basePage struct {
	id          PageID
	beforeImage []byte
}

func (p *basePage) ID() PageID { return p.id }

func (p *basePage) BeforeImage() []byte { return p.beforeImage }

func (p *basePage) SetBeforeImage(b []byte) {
	p.beforeImage = append([]byte(nil), b...)
}

// Page is the common shape every category-specific page type satisfies so
// the buffer pool (pager.go) can move bytes to and from disk without
// knowing which concrete type it holds, generalizing the teacher's single
// Page struct (page.go) into one interface per category.
type Page interface {
	ID() PageID
	BeforeImage() []byte
	SetBeforeImage([]byte)
	Encode(pageSize int) ([]byte, error)
}

// --- RootPointerPage -------------------------------------------------

// RootPointerPage is the fixed page-index-0 page every table has: it
// records the current tree root and the head of the header-page chain
// (spec.md §3 "RootPointerPage").
type RootPointerPage struct {
	basePage
	Root       PageID
	HeaderHead PageID
}

func NewRootPointerPage(tableID uint32, root, headerHead PageID) *RootPointerPage {
	return &RootPointerPage{
		basePage: basePage{id: RootPointerID(tableID)},
		Root:     root, HeaderHead: headerHead,
	}
}

func (p *RootPointerPage) Encode(pageSize int) ([]byte, error) {
	w := NewWriteBuf()
	w.PutPageCategory(CategoryRootPointer)
	w.PutPageID(p.Root)
	w.PutPageID(p.HeaderHead)
	return w.ToPaddedBytes(pageSize)
}

func DecodeRootPointerPage(id PageID, buf []byte) (*RootPointerPage, error) {
	r := NewReadCursor(buf)
	cat, err := r.PageCategory()
	if err != nil {
		return nil, err
	}
	if cat != CategoryRootPointer {
		return nil, fmt.Errorf("btree: page %s has category %s, expected RootPointer", id, cat)
	}
	root, err := r.PageID()
	if err != nil {
		return nil, err
	}
	headerHead, err := r.PageID()
	if err != nil {
		return nil, err
	}
	p := &RootPointerPage{basePage: basePage{id: id, beforeImage: append([]byte(nil), buf...)}, Root: root, HeaderHead: headerHead}
	return p, nil
}

// --- HeaderPage --------------------------------------------------------

// headerBitmapBits is the number of page-index bits a single header page
// can track, derived from its fixed overhead (category tag, next-pointer,
// bitmap length prefix) the way leaf/internal capacities are derived in
// §4.2.
func headerBitmapBits(pageSize int) int {
	overhead := 4 + 12 + 2 // category + next PageID + bitvec length prefix
	return (pageSize - overhead) * 8
}

// HeaderPage is one link in the singly linked allocation bitmap chain
// (spec.md §3 "HeaderPage(s)"; resolved per the Open Question in §9: the
// source's header-page linkage is partial, this implementation treats it
// as a singly linked list with the root-pointer page referencing the
// head).
type HeaderPage struct {
	basePage
	Next   PageID
	Bitmap []bool // true = allocated, false = free
}

func NewHeaderPage(id PageID, pageSize int) *HeaderPage {
	return &HeaderPage{
		basePage: basePage{id: id},
		Next:     NoPage,
		Bitmap:   make([]bool, headerBitmapBits(pageSize)),
	}
}

func (p *HeaderPage) Encode(pageSize int) ([]byte, error) {
	w := NewWriteBuf()
	w.PutPageCategory(CategoryHeader)
	w.PutPageID(p.Next)
	w.PutBitVec(p.Bitmap)
	return w.ToPaddedBytes(pageSize)
}

func DecodeHeaderPage(id PageID, buf []byte) (*HeaderPage, error) {
	r := NewReadCursor(buf)
	cat, err := r.PageCategory()
	if err != nil {
		return nil, err
	}
	if cat != CategoryHeader {
		return nil, fmt.Errorf("btree: page %s has category %s, expected Header", id, cat)
	}
	next, err := r.PageID()
	if err != nil {
		return nil, err
	}
	bitmap, err := r.BitVec()
	if err != nil {
		return nil, err
	}
	return &HeaderPage{basePage: basePage{id: id, beforeImage: append([]byte(nil), buf...)}, Next: next, Bitmap: bitmap}, nil
}

// FindFree returns the index of the first free (clear) bit, or -1 if the
// page is saturated (caller must grow the chain — ErrPageFull).
func (p *HeaderPage) FindFree() int {
	for i, b := range p.Bitmap {
		if !b {
			return i
		}
	}
	return -1
}

// --- InternalPage --------------------------------------------------------

// InternalCapacity computes M per spec.md §4.2's formula, returning the
// number of children (entries = M-1).
func InternalCapacity(pageSize, keySize, indexSize int) int {
	// overhead: category(4) + children-category(1) + parent PageID(12) +
	// leftmost-child PageID(12) + occupancy bitvec length prefix(2).
	overheadBits := (4 + 1 + 12 + 12 + 2) * 8
	entrySizeBits := 8*keySize + 8*indexSize + 1
	m := (8*pageSize-overheadBits)/entrySizeBits + 1
	return m
}

// InternalEntry is one (separator key, right child) slot. Keeping a
// dedicated Leftmost field on InternalPage instead of a wasted sentinel
// slot-0 key is logically equivalent to spec.md's "slot 0 key unused"
// description and avoids encoding a field that is never read.
type InternalEntry struct {
	Key   Field
	Child PageID
}

type InternalPage struct {
	basePage
	ParentPID        PageID
	ChildrenCategory PageCategory
	Leftmost         PageID
	Entries          []InternalEntry
	Occupied         []bool
	KeyDesc          FieldDesc
}

func NewInternalPage(id PageID, parent PageID, childrenCategory PageCategory, keyDesc FieldDesc, capacity int) *InternalPage {
	return &InternalPage{
		basePage:         basePage{id: id},
		ParentPID:        parent,
		ChildrenCategory: childrenCategory,
		Leftmost:         NoPage,
		Entries:          make([]InternalEntry, capacity-1),
		Occupied:         make([]bool, capacity-1),
		KeyDesc:          keyDesc,
	}
}

func (p *InternalPage) Encode(pageSize int) ([]byte, error) {
	w := NewWriteBuf()
	w.PutPageCategory(CategoryInternal)
	w.PutUint8(uint8(p.ChildrenCategory))
	w.PutPageID(p.ParentPID)
	w.PutPageID(p.Leftmost)
	w.PutBitVec(p.Occupied)
	for i, occ := range p.Occupied {
		if !occ {
			zero := InternalEntry{Key: zeroField(p.KeyDesc.Type), Child: NoPage}
			if err := encodeInternalEntry(w, p.KeyDesc, zero); err != nil {
				return nil, err
			}
			continue
		}
		if err := encodeInternalEntry(w, p.KeyDesc, p.Entries[i]); err != nil {
			return nil, err
		}
	}
	return w.ToPaddedBytes(pageSize)
}

func encodeInternalEntry(w *WriteBuf, keyDesc FieldDesc, e InternalEntry) error {
	if err := keyDesc.Encode(w, e.Key); err != nil {
		return err
	}
	w.PutPageID(e.Child)
	return nil
}

func zeroField(t FieldType) Field {
	switch t {
	case FieldInt64:
		return IntField(0)
	case FieldFloat64:
		return FloatField(0)
	case FieldBool:
		return BoolField(false)
	default:
		return Field{Type: t}
	}
}

func DecodeInternalPage(id PageID, buf []byte, keyDesc FieldDesc, capacity int) (*InternalPage, error) {
	r := NewReadCursor(buf)
	cat, err := r.PageCategory()
	if err != nil {
		return nil, err
	}
	if cat != CategoryInternal {
		return nil, fmt.Errorf("btree: page %s has category %s, expected Internal", id, cat)
	}
	childCatByte, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	parent, err := r.PageID()
	if err != nil {
		return nil, err
	}
	leftmost, err := r.PageID()
	if err != nil {
		return nil, err
	}
	occupied, err := r.BitVec()
	if err != nil {
		return nil, err
	}
	entries := make([]InternalEntry, len(occupied))
	for i := range occupied {
		key, err := keyDesc.Decode(r)
		if err != nil {
			return nil, err
		}
		child, err := r.PageID()
		if err != nil {
			return nil, err
		}
		entries[i] = InternalEntry{Key: key, Child: child}
	}
	return &InternalPage{
		basePage:         basePage{id: id, beforeImage: append([]byte(nil), buf...)},
		ParentPID:        parent,
		ChildrenCategory: PageCategory(childCatByte),
		Leftmost:         leftmost,
		Entries:          entries,
		Occupied:         occupied,
		KeyDesc:          keyDesc,
	}, nil
}

func (p *InternalPage) Count() int {
	n := 0
	for _, o := range p.Occupied {
		if o {
			n++
		}
	}
	return n
}

func (p *InternalPage) Capacity() int { return len(p.Entries) + 1 }

// SortedEntries returns the occupied entries in ascending key order.
func (p *InternalPage) SortedEntries() []InternalEntry {
	out := make([]InternalEntry, 0, p.Count())
	for i, occ := range p.Occupied {
		if occ {
			out = append(out, p.Entries[i])
		}
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Key.Compare(out[j].Key) > 0 {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// --- LeafPage --------------------------------------------------------

// LeafCapacity computes L per spec.md §4.2's formula.
func LeafCapacity(pageSize, tupleSize int) int {
	overheadBits := (4 + 12 + 12 + 12 + 2) * 8 // category + parent + left + right sibling + bitvec len
	return (8*pageSize - overheadBits) / (8*tupleSize + 1)
}

type LeafPage struct {
	basePage
	ParentPID    PageID
	LeftSibling  PageID
	RightSibling PageID
	Tuples       []Tuple
	Occupied     []bool
	Schema       *Schema
}

func NewLeafPage(id PageID, parent PageID, schema *Schema, capacity int) *LeafPage {
	return &LeafPage{
		basePage:     basePage{id: id},
		ParentPID:    parent,
		LeftSibling:  NoPage,
		RightSibling: NoPage,
		Tuples:       make([]Tuple, capacity),
		Occupied:     make([]bool, capacity),
		Schema:       schema,
	}
}

func (p *LeafPage) Encode(pageSize int) ([]byte, error) {
	w := NewWriteBuf()
	w.PutPageCategory(CategoryLeaf)
	w.PutPageID(p.ParentPID)
	w.PutPageID(p.LeftSibling)
	w.PutPageID(p.RightSibling)
	w.PutBitVec(p.Occupied)
	zero := Tuple{Values: zeroValues(p.Schema)}
	for i, occ := range p.Occupied {
		if occ {
			if err := EncodeTuple(w, p.Schema, p.Tuples[i]); err != nil {
				return nil, err
			}
		} else if err := EncodeTuple(w, p.Schema, zero); err != nil {
			return nil, err
		}
	}
	return w.ToPaddedBytes(pageSize)
}

func zeroValues(s *Schema) []Field {
	out := make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		if f.Type == FieldBytes {
			out[i] = BytesField(nil)
		} else {
			out[i] = zeroField(f.Type)
		}
	}
	return out
}

func DecodeLeafPage(id PageID, buf []byte, schema *Schema) (*LeafPage, error) {
	r := NewReadCursor(buf)
	cat, err := r.PageCategory()
	if err != nil {
		return nil, err
	}
	if cat != CategoryLeaf {
		return nil, fmt.Errorf("btree: page %s has category %s, expected Leaf", id, cat)
	}
	parent, err := r.PageID()
	if err != nil {
		return nil, err
	}
	left, err := r.PageID()
	if err != nil {
		return nil, err
	}
	right, err := r.PageID()
	if err != nil {
		return nil, err
	}
	occupied, err := r.BitVec()
	if err != nil {
		return nil, err
	}
	tuples := make([]Tuple, len(occupied))
	for i := range occupied {
		t, err := DecodeTuple(r, schema)
		if err != nil {
			return nil, err
		}
		tuples[i] = t
	}
	return &LeafPage{
		basePage:     basePage{id: id, beforeImage: append([]byte(nil), buf...)},
		ParentPID:    parent,
		LeftSibling:  left,
		RightSibling: right,
		Tuples:       tuples,
		Occupied:     occupied,
		Schema:       schema,
	}, nil
}

func (p *LeafPage) Count() int {
	n := 0
	for _, o := range p.Occupied {
		if o {
			n++
		}
	}
	return n
}

func (p *LeafPage) Capacity() int { return len(p.Tuples) }

func (p *LeafPage) IsFull() bool { return p.Count() == p.Capacity() }

// FirstFreeSlot returns the index of an empty slot, or -1 if full.
func (p *LeafPage) FirstFreeSlot() int {
	for i, occ := range p.Occupied {
		if !occ {
			return i
		}
	}
	return -1
}

// SortedSlots returns occupied slot indexes in ascending primary-key order.
func (p *LeafPage) SortedSlots() []int {
	primary := p.Schema.PrimaryIndex()
	out := make([]int, 0, p.Count())
	for i, occ := range p.Occupied {
		if occ {
			out = append(out, i)
		}
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && p.Tuples[out[j-1]].Values[primary].Compare(p.Tuples[out[j]].Values[primary]) > 0 {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

func (p *LeafPage) FirstKey() (Field, bool) {
	slots := p.SortedSlots()
	if len(slots) == 0 {
		return Field{}, false
	}
	return p.Tuples[slots[0]].Values[p.Schema.PrimaryIndex()], true
}
