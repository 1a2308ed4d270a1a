package btree

import "fmt"

// TxID identifies a transaction for MVCC visibility purposes and as the
// WAL's unit of undo/redo (spec.md §3 "Transaction"). It is distinct from
// the concurrency controller's internal bookkeeping key, though in
// practice the same value is used for both.
type TxID uint64

// InfinityTxID marks a tuple version with no upper bound: Xmax ==
// InfinityTxID means the version has not been superseded or deleted.
const InfinityTxID TxID = 0

// Tuple is one MVCC version of a row: its typed column values plus the
// transaction ids that created (Xmin) and, if superseded or deleted,
// retired (Xmax) it (spec.md §3 "Tuple", the xmin/xmax visibility window).
type Tuple struct {
	Values []Field
	Xmin   TxID
	Xmax   TxID
}

// IsVisibleTo reports whether this version is visible to readerTx, with
// isActive reporting whether a given TxID is still uncommitted, following
// the classic MVCC rule: a version is visible if its creator is the reader
// or committed before it, and it has not been retired by a committed
// transaction older than the reader. This engine only supports
// read-committed-style single-statement snapshots (spec.md §9, resolved
// Open Question): a version is visible iff (Xmin == readerTx, or
// Xmin < readerTx and Xmin is not active) and (Xmax == InfinityTxID, or
// Xmax > readerTx, or Xmax < readerTx and Xmax is still active). A
// version retired by readerTx itself is not visible to it.
func (t Tuple) IsVisibleTo(readerTx TxID, isActive func(TxID) bool) bool {
	if t.Xmin != readerTx {
		if t.Xmin > readerTx {
			return false
		}
		if isActive(t.Xmin) {
			return false
		}
	}
	if t.Xmax == InfinityTxID {
		return true
	}
	if t.Xmax == readerTx {
		return false
	}
	if t.Xmax > readerTx {
		return true
	}
	return isActive(t.Xmax)
}

// PrimaryKey returns the tuple's primary-key field, used for tree
// ordering, separator construction and WAL record keys.
func (t Tuple) PrimaryKey(s *Schema) Field {
	return t.Values[s.PrimaryIndex()]
}

func EncodeTuple(w *WriteBuf, s *Schema, t Tuple) error {
	w.PutUint64(uint64(t.Xmin))
	w.PutUint64(uint64(t.Xmax))
	if len(t.Values) != len(s.Fields) {
		return fmt.Errorf("btree: tuple has %d values, schema %q declares %d", len(t.Values), s.TableName, len(s.Fields))
	}
	for i, fd := range s.Fields {
		if err := fd.Encode(w, t.Values[i]); err != nil {
			return err
		}
	}
	return nil
}

func DecodeTuple(r *ReadCursor, s *Schema) (Tuple, error) {
	xmin, err := r.Uint64()
	if err != nil {
		return Tuple{}, err
	}
	xmax, err := r.Uint64()
	if err != nil {
		return Tuple{}, err
	}
	values := make([]Field, len(s.Fields))
	for i, fd := range s.Fields {
		v, err := fd.Decode(r)
		if err != nil {
			return Tuple{}, err
		}
		values[i] = v
	}
	return Tuple{Values: values, Xmin: TxID(xmin), Xmax: TxID(xmax)}, nil
}

// TupleDiskSize is the fixed on-disk size of an MVCC tuple: the 16-byte
// xmin/xmax header plus the schema's field payload.
func TupleDiskSize(s *Schema) int {
	return 16 + s.TupleDiskSize()
}

// WrappedTuple pairs a Tuple with the RecordID (its owning page and slot)
// it was read from — the same role the teacher's iterator.go Key()/Value()
// pair plays, generalized to carry slot identity. No write operation takes
// a WrappedTuple: Table.Delete locates its target by primary key and
// searches the tree again.
type WrappedTuple struct {
	Tuple  Tuple
	PageID PageID
	Slot   int
}

func (wt WrappedTuple) String() string {
	return fmt.Sprintf("WrappedTuple{page:%s slot:%d xmin:%d xmax:%d}", wt.PageID, wt.Slot, wt.Tuple.Xmin, wt.Tuple.Xmax)
}
