package btree

import "fmt"

// CellType tags a Cell; CellSeparator, a (separator key, child pointer)
// pair, is the only kind. Leaf pages store full Tuples directly (page.go)
// and internal pages store InternalEntry values, not Cells; Cell carries
// a search key for tree descent (searchTarget) and has its own
// fixed-width encoding (CellDiskSize, Encode, DecodeCell), mirroring the
// teacher's page.go Cell concept.
type CellType uint8

const (
	CellSeparator CellType = iota
)

// Cell is an internal page's fixed-width (key, child) pair: the key is the
// smallest primary-key value reachable through Child (spec.md §4.2
// "Internal page"). Key re-uses Field so separator comparisons share code
// with tuple primary-key comparisons.
type Cell struct {
	Key   Field
	Child PageID
}

// CellDiskSize returns the fixed encoded size of a cell for a given primary
// key field descriptor.
func CellDiskSize(keyDesc FieldDesc) int {
	return keyDesc.DiskSize() + 12 // PageID: TableID(4)+PageIndex(4)+Category(4)
}

func (c Cell) Encode(w *WriteBuf, keyDesc FieldDesc) error {
	if err := keyDesc.Encode(w, c.Key); err != nil {
		return err
	}
	w.PutPageID(c.Child)
	return nil
}

func DecodeCell(r *ReadCursor, keyDesc FieldDesc) (Cell, error) {
	key, err := keyDesc.Decode(r)
	if err != nil {
		return Cell{}, err
	}
	child, err := r.PageID()
	if err != nil {
		return Cell{}, err
	}
	return Cell{Key: key, Child: child}, nil
}

// Compare orders cells by key only; used for internal-page binary search.
func (c Cell) Compare(other Cell) int {
	return c.Key.Compare(other.Key)
}

func (c Cell) String() string {
	return fmt.Sprintf("Cell{key:%s child:%s}", c.Key, c.Child)
}
