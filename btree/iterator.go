package btree

import "github.com/small-db/smalldb/common"

// TupleIterator satisfies the pack's shared cursor shape (common.Iterator)
// so callers that range over any of this corpus's engines via that
// interface work unmodified against a transactional scan too.
var _ common.Iterator = (*TupleIterator)(nil)

// PredicateOp enumerates the comparison operators a scan predicate may
// use (spec.md §4.6 "Predicate scan iterator").
type PredicateOp int

const (
	OpEqual PredicateOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpLike
)

// Predicate filters tuples during a scan by comparing one field against
// a literal value.
type Predicate struct {
	FieldIndex int
	Op         PredicateOp
	Value      Field
}

func (p Predicate) matches(tup Tuple) bool {
	field := tup.Values[p.FieldIndex]
	switch p.Op {
	case OpEqual:
		return field.Compare(p.Value) == 0
	case OpNotEqual:
		return field.Compare(p.Value) != 0
	case OpLess:
		return field.Compare(p.Value) < 0
	case OpLessEqual:
		return field.Compare(p.Value) <= 0
	case OpGreater:
		return field.Compare(p.Value) > 0
	case OpGreaterEqual:
		return field.Compare(p.Value) >= 0
	case OpLike:
		return likeMatch(string(field.BytesValue), string(p.Value.BytesValue))
	default:
		return false
	}
}

// likeMatch implements a minimal SQL LIKE: '%' matches any run of bytes,
// '_' matches exactly one byte.
func likeMatch(s, pattern string) bool {
	return likeMatchBytes([]byte(s), []byte(pattern))
}

func likeMatchBytes(s, p []byte) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatchBytes(s[i:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchBytes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchBytes(s[1:], p[1:])
	}
}

// TupleIterator is a single-pass forward cursor over a table's leaves,
// following right-sibling pointers and yielding only tuples visible to
// the iterating transaction and matching every predicate (spec.md §4.6
// "Predicate scan iterator"). Grounded on the teacher's Iterator
// (iterator.go) for the leaf-chain walk; rewritten to filter by MVCC
// visibility and to carry RecordID identity via WrappedTuple instead of
// raw key/value pairs.
type TupleIterator struct {
	table      *Table
	tx         TxID
	predicates []Predicate

	leafPID  PageID
	leaf     *LeafPage
	slots    []int
	slotPos  int

	current WrappedTuple
	err     error
	started bool
	closed  bool
}

// Scan starts a new iterator from the leftmost leaf.
func (t *Table) Scan(tx TxID, predicates ...Predicate) (*TupleIterator, error) {
	leafPID, err := t.findLeaf(tx, SharedLatch, searchLeftmost())
	if err != nil {
		return nil, err
	}
	return &TupleIterator{table: t, tx: tx, predicates: predicates, leafPID: leafPID}, nil
}

func (it *TupleIterator) loadLeaf() error {
	leaf, err := it.table.getLeaf(it.tx, SharedLatch, it.leafPID)
	if err != nil {
		return err
	}
	it.leaf = leaf
	it.slots = leaf.SortedSlots()
	it.slotPos = 0
	return nil
}

// Next advances the cursor, returning false at end-of-scan or on error
// (check Error()).
func (it *TupleIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
		if err := it.loadLeaf(); err != nil {
			it.err = err
			return false
		}
	}
	for {
		if it.slotPos >= len(it.slots) {
			it.table.latch.ReleaseLatch(it.tx, it.leafPID)
			next := it.leaf.RightSibling
			if next.IsZero() {
				return false
			}
			it.leafPID = next
			if err := it.loadLeaf(); err != nil {
				it.err = err
				return false
			}
			continue
		}
		slot := it.slots[it.slotPos]
		it.slotPos++
		tup := it.leaf.Tuples[slot]
		if !it.table.visible(it.tx, tup) {
			continue
		}
		if !it.matchesAll(tup) {
			continue
		}
		it.current = WrappedTuple{Tuple: tup, PageID: it.leafPID, Slot: slot}
		return true
	}
}

func (it *TupleIterator) matchesAll(tup Tuple) bool {
	for _, p := range it.predicates {
		if !p.matches(tup) {
			return false
		}
	}
	return true
}

func (it *TupleIterator) Value() WrappedTuple { return it.current }

func (it *TupleIterator) Error() error { return it.err }

func (it *TupleIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.leaf != nil {
		it.table.latch.ReleaseLatch(it.tx, it.leafPID)
	}
	return nil
}
