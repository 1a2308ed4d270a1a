package btree

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// FieldType enumerates the column types a Schema can declare (spec.md §3
// "Field"). Non-goal: no variable-length tuples, so Bytes columns carry a
// fixed declared width rather than an arbitrary length.
type FieldType uint8

const (
	FieldInt64 FieldType = iota
	FieldFloat64
	FieldBool
	FieldBytes
	FieldUUID
)

// uuidDiskSize is a UUID's fixed 16-byte wire representation (RFC 4122),
// grounded on the way other_examples' tinySQL storage layer treats
// uuid.UUID as a raw 16-byte value (UUIDToBytes).
const uuidDiskSize = 16

func (t FieldType) String() string {
	switch t {
	case FieldInt64:
		return "Int64"
	case FieldFloat64:
		return "Float64"
	case FieldBool:
		return "Bool"
	case FieldBytes:
		return "Bytes"
	case FieldUUID:
		return "UUID"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Field is a single typed value. Exactly one of the Int64Value/Float64Value/
// BoolValue/BytesValue/UUIDValue fields is meaningful, selected by Type — a tagged
// struct in the style of the teacher's page-level cell variants rather than
// an interface{}, so comparisons stay allocation-free.
type Field struct {
	Type         FieldType
	Int64Value   int64
	Float64Value float64
	BoolValue    bool
	BytesValue   []byte
	UUIDValue    uuid.UUID
}

func IntField(v int64) Field      { return Field{Type: FieldInt64, Int64Value: v} }
func FloatField(v float64) Field  { return Field{Type: FieldFloat64, Float64Value: v} }
func BoolField(v bool) Field      { return Field{Type: FieldBool, BoolValue: v} }
func BytesField(v []byte) Field   { return Field{Type: FieldBytes, BytesValue: v} }
func UUIDField(v uuid.UUID) Field { return Field{Type: FieldUUID, UUIDValue: v} }

// Compare orders two fields of the same type. It switches on the
// receiver's Type only and compares that type's value field of both
// operands; the other field's Type is not checked, so comparing fields of
// different types yields an arbitrary order rather than an error.
func (f Field) Compare(other Field) int {
	switch f.Type {
	case FieldInt64:
		switch {
		case f.Int64Value < other.Int64Value:
			return -1
		case f.Int64Value > other.Int64Value:
			return 1
		default:
			return 0
		}
	case FieldFloat64:
		switch {
		case f.Float64Value < other.Float64Value:
			return -1
		case f.Float64Value > other.Float64Value:
			return 1
		default:
			return 0
		}
	case FieldBool:
		if f.BoolValue == other.BoolValue {
			return 0
		}
		if !f.BoolValue {
			return -1
		}
		return 1
	case FieldBytes:
		return bytes.Compare(f.BytesValue, other.BytesValue)
	case FieldUUID:
		return bytes.Compare(f.UUIDValue[:], other.UUIDValue[:])
	default:
		return 0
	}
}

func (f Field) String() string {
	switch f.Type {
	case FieldInt64:
		return fmt.Sprintf("%d", f.Int64Value)
	case FieldFloat64:
		return fmt.Sprintf("%g", f.Float64Value)
	case FieldBool:
		return fmt.Sprintf("%t", f.BoolValue)
	case FieldBytes:
		return fmt.Sprintf("%q", f.BytesValue)
	case FieldUUID:
		return f.UUIDValue.String()
	default:
		return "<invalid field>"
	}
}

// FieldDesc declares one schema column: its name, type, and (for Bytes)
// the fixed on-disk width every value of this column is padded to.
type FieldDesc struct {
	Name      string
	Type      FieldType
	MaxBytes  int // only meaningful when Type == FieldBytes
	IsPrimary bool
}

// DiskSize returns the fixed number of bytes this field occupies on disk,
// including its length prefix for Bytes columns (spec.md §4.1 tuple
// encoding: every column has a fixed disk footprint).
func (d FieldDesc) DiskSize() int {
	switch d.Type {
	case FieldInt64, FieldFloat64:
		return 8
	case FieldBool:
		return 1
	case FieldBytes:
		return 2 + d.MaxBytes // u16 length prefix + padded payload
	case FieldUUID:
		return uuidDiskSize
	default:
		return 0
	}
}

func (d FieldDesc) Encode(w *WriteBuf, f Field) error {
	if f.Type != d.Type {
		return fmt.Errorf("%w: column %q expects %s, got %s", ErrTypeMismatch, d.Name, d.Type, f.Type)
	}
	switch d.Type {
	case FieldInt64:
		w.PutInt64(f.Int64Value)
	case FieldFloat64:
		w.PutFloat64(f.Float64Value)
	case FieldBool:
		w.PutBool(f.BoolValue)
	case FieldBytes:
		return w.PutPadded(f.BytesValue, d.MaxBytes)
	case FieldUUID:
		return w.PutFixed(f.UUIDValue[:], uuidDiskSize)
	}
	return nil
}

func (d FieldDesc) Decode(r *ReadCursor) (Field, error) {
	switch d.Type {
	case FieldInt64:
		v, err := r.Int64()
		return IntField(v), err
	case FieldFloat64:
		v, err := r.Float64()
		return FloatField(v), err
	case FieldBool:
		v, err := r.Bool()
		return BoolField(v), err
	case FieldBytes:
		v, err := r.Padded(d.MaxBytes)
		return BytesField(v), err
	case FieldUUID:
		raw, err := r.Fixed(uuidDiskSize)
		if err != nil {
			return Field{}, err
		}
		u, err := uuid.FromBytes(raw)
		if err != nil {
			return Field{}, fmt.Errorf("btree: decoding uuid column %q: %w", d.Name, err)
		}
		return UUIDField(u), nil
	default:
		return Field{}, fmt.Errorf("btree: unknown field type %d", d.Type)
	}
}
