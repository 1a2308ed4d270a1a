package btree

import "testing"

func TestCellEncodeDecodeRoundTrip(t *testing.T) {
	keyDesc := FieldDesc{Name: "id", Type: FieldInt64, IsPrimary: true}
	cell := Cell{Key: IntField(42), Child: PageID{TableID: 1, PageIndex: 9, Category: CategoryLeaf}}

	w := NewWriteBuf()
	if err := cell.Encode(w, keyDesc); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if w.Len() != CellDiskSize(keyDesc) {
		t.Fatalf("expected encoded size %d, got %d", CellDiskSize(keyDesc), w.Len())
	}

	r := NewReadCursor(w.Bytes())
	got, err := DecodeCell(r, keyDesc)
	if err != nil {
		t.Fatalf("DecodeCell failed: %v", err)
	}
	if got.Key.Compare(cell.Key) != 0 {
		t.Fatalf("key mismatch: got %s want %s", got.Key, cell.Key)
	}
	if got.Child != cell.Child {
		t.Fatalf("child mismatch: got %s want %s", got.Child, cell.Child)
	}
}

func TestCellCompareOrdersByKey(t *testing.T) {
	a := Cell{Key: IntField(1)}
	b := Cell{Key: IntField(2)}
	if a.Compare(b) >= 0 {
		t.Fatalf("expected cell with key 1 to sort before key 2")
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("expected cell with key 2 to sort after key 1")
	}
}
