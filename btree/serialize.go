package btree

import (
	"encoding/binary"
	"fmt"
	"math"
)

// WriteBuf accumulates bytes for a page-sized buffer and pads to a
// declared size on finalize (spec.md §4.1). It generalizes the teacher's
// ad-hoc binary.BigEndian.PutUint* calls scattered through page.go into a
// single reusable encoder; encoding is little-endian throughout, per
// spec.md's explicit contract (the teacher used big-endian — a detail this
// spec overrides).
type WriteBuf struct {
	buf []byte
}

// NewWriteBuf creates an empty write buffer.
func NewWriteBuf() *WriteBuf {
	return &WriteBuf{buf: make([]byte, 0, 64)}
}

func (w *WriteBuf) PutUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *WriteBuf) PutUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *WriteBuf) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *WriteBuf) PutUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *WriteBuf) PutInt64(v int64)     { w.PutUint64(uint64(v)) }
func (w *WriteBuf) PutFloat64(v float64) { w.PutUint64(math.Float64bits(v)) }

func (w *WriteBuf) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

// PutBytes writes a length-prefixed (u16) byte string. The caller is
// responsible for honoring the schema's declared maximum length
// (spec.md §4.1): this function does not pad.
func (w *WriteBuf) PutBytes(b []byte) error {
	if len(b) > 0xFFFF {
		return fmt.Errorf("btree: byte string too long for u16 length prefix: %d", len(b))
	}
	w.PutUint16(uint16(len(b)))
	w.buf = append(w.buf, b...)
	return nil
}

// PutFixed writes exactly n raw bytes with no length prefix, for columns
// whose width is a type-level constant rather than a schema-declared
// maximum (e.g. a UUID's 16 bytes).
func (w *WriteBuf) PutFixed(b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("btree: fixed-width value has %d bytes, expected %d", len(b), n)
	}
	w.buf = append(w.buf, b...)
	return nil
}

// PutPadded writes a length-prefixed byte string padded with zeros to
// exactly maxSize bytes of payload (schema's declared Bytes(n) width).
func (w *WriteBuf) PutPadded(b []byte, maxSize int) error {
	if len(b) > maxSize {
		return fmt.Errorf("btree: value of %d bytes exceeds declared max size %d", len(b), maxSize)
	}
	w.PutUint16(uint16(len(b)))
	w.buf = append(w.buf, b...)
	if pad := maxSize - len(b); pad > 0 {
		w.buf = append(w.buf, make([]byte, pad)...)
	}
	return nil
}

// PutBitVec encodes a bit vector as a length-prefixed (u16, number of
// bits) byte array with each byte holding 8 bits MSB-first.
func (w *WriteBuf) PutBitVec(bits []bool) {
	w.PutUint16(uint16(len(bits)))
	nbytes := (len(bits) + 7) / 8
	out := make([]byte, nbytes)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	w.buf = append(w.buf, out...)
}

// PutPageCategory writes a PageCategory as 4 bytes: three zero bytes
// followed by the discriminant (spec.md §4.1).
func (w *WriteBuf) PutPageCategory(c PageCategory) {
	w.buf = append(w.buf, 0, 0, 0, byte(c))
}

// PutPageID writes a PageID as TableID(4) + PageIndex(4) + Category(4).
func (w *WriteBuf) PutPageID(p PageID) {
	w.PutUint32(p.TableID)
	w.PutUint32(p.PageIndex)
	w.PutPageCategory(p.Category)
}

// Bytes returns the accumulated, unpadded buffer.
func (w *WriteBuf) Bytes() []byte { return w.buf }

func (w *WriteBuf) Len() int { return len(w.buf) }

// ToPaddedBytes pads the buffer to exactly n bytes with zeros. It returns
// an error (rather than silently truncating) if content exceeds n, per
// spec.md §4.1's explicit contract.
func (w *WriteBuf) ToPaddedBytes(n int) ([]byte, error) {
	if len(w.buf) > n {
		return nil, fmt.Errorf("btree: buffer of %d bytes exceeds page size %d", len(w.buf), n)
	}
	out := make([]byte, n)
	copy(out, w.buf)
	return out, nil
}

// ReadCursor is a forward-only cursor over a byte slice, the decode-side
// counterpart of WriteBuf.
type ReadCursor struct {
	buf []byte
	pos int
}

func NewReadCursor(buf []byte) *ReadCursor {
	return &ReadCursor{buf: buf}
}

func (r *ReadCursor) Pos() int { return r.pos }

func (r *ReadCursor) Seek(pos int) { r.pos = pos }

func (r *ReadCursor) ensure(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("btree: read past end of buffer (pos=%d need=%d len=%d)", r.pos, n, len(r.buf))
	}
	return nil
}

func (r *ReadCursor) Uint8() (uint8, error) {
	if err := r.ensure(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *ReadCursor) Uint16() (uint16, error) {
	if err := r.ensure(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *ReadCursor) Uint32() (uint32, error) {
	if err := r.ensure(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *ReadCursor) Uint64() (uint64, error) {
	if err := r.ensure(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *ReadCursor) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *ReadCursor) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *ReadCursor) Bool() (bool, error) {
	v, err := r.Uint8()
	return v != 0, err
}

// Bytes reads a length-prefixed (u16) byte string.
func (r *ReadCursor) Bytes() ([]byte, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if err := r.ensure(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// Fixed reads exactly n raw bytes with no length prefix, the
// counterpart to PutFixed.
func (r *ReadCursor) Fixed(n int) ([]byte, error) {
	if err := r.ensure(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// Padded reads a length-prefixed byte string written with PutPadded,
// consuming maxSize payload bytes regardless of the declared length.
func (r *ReadCursor) Padded(maxSize int) ([]byte, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if int(n) > maxSize {
		return nil, fmt.Errorf("btree: padded length %d exceeds max size %d", n, maxSize)
	}
	if err := r.ensure(maxSize); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += maxSize
	return out, nil
}

func (r *ReadCursor) BitVec() ([]bool, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	nbytes := (int(n) + 7) / 8
	if err := r.ensure(nbytes); err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := 0; i < int(n); i++ {
		b := r.buf[r.pos+i/8]
		out[i] = b&(1<<(7-uint(i%8))) != 0
	}
	r.pos += nbytes
	return out, nil
}

func (r *ReadCursor) PageCategory() (PageCategory, error) {
	if err := r.ensure(4); err != nil {
		return 0, err
	}
	c := PageCategory(r.buf[r.pos+3])
	r.pos += 4
	return c, nil
}

func (r *ReadCursor) PageID() (PageID, error) {
	tableID, err := r.Uint32()
	if err != nil {
		return PageID{}, err
	}
	pageIndex, err := r.Uint32()
	if err != nil {
		return PageID{}, err
	}
	cat, err := r.PageCategory()
	if err != nil {
		return PageID{}, err
	}
	return PageID{TableID: tableID, PageIndex: pageIndex, Category: cat}, nil
}

func (r *ReadCursor) Remaining() []byte {
	return r.buf[r.pos:]
}

func (r *ReadCursor) Skip(n int) error {
	if err := r.ensure(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}
