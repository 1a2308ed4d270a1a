package btree

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriteBuf()
	w.PutUint8(7)
	w.PutUint16(1234)
	w.PutUint32(987654)
	w.PutInt64(-42)
	w.PutFloat64(3.14159)
	w.PutBool(true)
	if err := w.PutPadded([]byte("hi"), 8); err != nil {
		t.Fatalf("PutPadded failed: %v", err)
	}
	w.PutBitVec([]bool{true, false, true, true, false, false, false, false, true})
	pid := PageID{TableID: 3, PageIndex: 9, Category: CategoryLeaf}
	w.PutPageID(pid)

	r := NewReadCursor(w.Bytes())
	if v, err := r.Uint8(); err != nil || v != 7 {
		t.Fatalf("Uint8: got %d, %v", v, err)
	}
	if v, err := r.Uint16(); err != nil || v != 1234 {
		t.Fatalf("Uint16: got %d, %v", v, err)
	}
	if v, err := r.Uint32(); err != nil || v != 987654 {
		t.Fatalf("Uint32: got %d, %v", v, err)
	}
	if v, err := r.Int64(); err != nil || v != -42 {
		t.Fatalf("Int64: got %d, %v", v, err)
	}
	if v, err := r.Float64(); err != nil || v != 3.14159 {
		t.Fatalf("Float64: got %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("Bool: got %v, %v", v, err)
	}
	if v, err := r.Padded(8); err != nil || string(v) != "hi" {
		t.Fatalf("Padded: got %q, %v", v, err)
	}
	bits, err := r.BitVec()
	if err != nil {
		t.Fatalf("BitVec failed: %v", err)
	}
	want := []bool{true, false, true, true, false, false, false, false, true}
	if len(bits) != len(want) {
		t.Fatalf("BitVec length mismatch: got %d want %d", len(bits), len(want))
	}
	for i := range want {
		if bits[i] != want[i] {
			t.Fatalf("BitVec[%d]: got %v want %v", i, bits[i], want[i])
		}
	}
	gotPid, err := r.PageID()
	if err != nil {
		t.Fatalf("PageID failed: %v", err)
	}
	if gotPid != pid {
		t.Fatalf("PageID: got %+v want %+v", gotPid, pid)
	}
}

func TestPaddedRejectsOversizedValue(t *testing.T) {
	w := NewWriteBuf()
	if err := w.PutPadded([]byte("toolong"), 3); err == nil {
		t.Fatalf("expected error padding a value past its declared max size")
	}
}

func TestReadPastEndFails(t *testing.T) {
	r := NewReadCursor([]byte{1, 2})
	if _, err := r.Uint32(); err == nil {
		t.Fatalf("expected error reading 4 bytes from a 2-byte buffer")
	}
}

func TestToPaddedBytesRejectsOverflow(t *testing.T) {
	w := NewWriteBuf()
	w.PutUint64(0)
	if _, err := w.ToPaddedBytes(4); err == nil {
		t.Fatalf("expected error padding an 8-byte buffer into a 4-byte page")
	}
	out, err := w.ToPaddedBytes(16)
	if err != nil {
		t.Fatalf("ToPaddedBytes failed: %v", err)
	}
	if len(out) != 16 {
		t.Fatalf("expected 16-byte output, got %d", len(out))
	}
}
