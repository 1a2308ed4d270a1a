package btree

import "testing"

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema("t", []FieldDesc{
		{Name: "id", Type: FieldInt64, IsPrimary: true},
		{Name: "name", Type: FieldBytes, MaxBytes: 8},
	})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return s
}

func TestTupleEncodeDecodeRoundTrip(t *testing.T) {
	s := testSchema(t)
	tup := Tuple{
		Values: []Field{IntField(7), BytesField([]byte("abc"))},
		Xmin:   3,
		Xmax:   InfinityTxID,
	}

	w := NewWriteBuf()
	if err := EncodeTuple(w, s, tup); err != nil {
		t.Fatalf("EncodeTuple failed: %v", err)
	}
	if w.Len() != TupleDiskSize(s) {
		t.Fatalf("expected %d bytes, got %d", TupleDiskSize(s), w.Len())
	}

	r := NewReadCursor(w.Bytes())
	got, err := DecodeTuple(r, s)
	if err != nil {
		t.Fatalf("DecodeTuple failed: %v", err)
	}
	if got.Xmin != tup.Xmin || got.Xmax != tup.Xmax {
		t.Fatalf("xmin/xmax mismatch: got (%d,%d) want (%d,%d)", got.Xmin, got.Xmax, tup.Xmin, tup.Xmax)
	}
	if got.Values[0].Int64Value != 7 || string(got.Values[1].BytesValue) != "abc" {
		t.Fatalf("values mismatch: got %+v", got.Values)
	}
}

func TestTuplePrimaryKey(t *testing.T) {
	s := testSchema(t)
	tup := Tuple{Values: []Field{IntField(99), BytesField([]byte("x"))}}
	if tup.PrimaryKey(s).Int64Value != 99 {
		t.Fatalf("expected primary key 99, got %v", tup.PrimaryKey(s))
	}
}

func TestTupleIsVisibleTo(t *testing.T) {
	active := map[TxID]bool{5: true}
	isActive := func(tx TxID) bool { return active[tx] }

	committed := Tuple{Xmin: 3, Xmax: InfinityTxID}
	if !committed.IsVisibleTo(10, isActive) {
		t.Fatalf("expected tuple committed by an earlier finished tx to be visible")
	}

	fromActive := Tuple{Xmin: 5, Xmax: InfinityTxID}
	if fromActive.IsVisibleTo(10, isActive) {
		t.Fatalf("expected tuple created by a still-active tx to be invisible to others")
	}
	if !fromActive.IsVisibleTo(5, isActive) {
		t.Fatalf("expected a tx to see its own write")
	}

	deleted := Tuple{Xmin: 3, Xmax: 4}
	if deleted.IsVisibleTo(10, isActive) {
		t.Fatalf("expected tuple deleted by an earlier finished tx to be invisible")
	}
}
