package btree

import "fmt"

// Schema describes a table's columns, in the style of the catalog rows
// original_source/.../common/catalog.rs builds at database open. Exactly
// one column is primary: the key the B+tree orders leaves and internal
// separators by.
type Schema struct {
	TableName string
	Fields    []FieldDesc
	primary   int
}

// NewSchema validates and builds a Schema, locating its primary-key column.
func NewSchema(tableName string, fields []FieldDesc) (*Schema, error) {
	primary := -1
	for i, f := range fields {
		if f.IsPrimary {
			if primary != -1 {
				return nil, fmt.Errorf("btree: schema %q declares more than one primary field", tableName)
			}
			primary = i
		}
		if f.Type == FieldBytes && f.MaxBytes <= 0 {
			return nil, fmt.Errorf("btree: schema %q field %q: Bytes columns need a positive MaxBytes", tableName, f.Name)
		}
	}
	if primary == -1 {
		return nil, fmt.Errorf("btree: schema %q declares no primary field", tableName)
	}
	return &Schema{TableName: tableName, Fields: fields, primary: primary}, nil
}

// PrimaryIndex returns the index of the primary-key column within Fields.
func (s *Schema) PrimaryIndex() int { return s.primary }

func (s *Schema) PrimaryField() FieldDesc { return s.Fields[s.primary] }

// TupleDiskSize returns the fixed number of bytes a Tuple's field payload
// occupies on disk, not counting the xmin/xmax MVCC header (added
// separately by EncodeTuple/DecodeTuple, tuple.go).
func (s *Schema) TupleDiskSize() int {
	total := 0
	for _, f := range s.Fields {
		total += f.DiskSize()
	}
	return total
}

func (s *Schema) FieldByName(name string) (int, FieldDesc, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, f, true
		}
	}
	return -1, FieldDesc{}, false
}

// CatalogSchema is the bootstrap schema the database uses to record every
// user table's columns (spec.md §4.7 "Table operations" implies a catalog
// must exist to reopen tables across restarts). Modeled on
// original_source/.../common/catalog.rs, expressed through this engine's
// own fixed-width Bytes columns instead of a separate file format.
func CatalogSchema() *Schema {
	s, err := NewSchema("__catalog", []FieldDesc{
		{Name: "row_id", Type: FieldInt64, IsPrimary: true}, // table_id*1000 + field_index
		{Name: "table_id", Type: FieldInt64},
		{Name: "table_name", Type: FieldBytes, MaxBytes: 64},
		{Name: "field_index", Type: FieldInt64},
		{Name: "field_name", Type: FieldBytes, MaxBytes: 32},
		{Name: "field_type", Type: FieldInt64},
		{Name: "max_bytes", Type: FieldInt64},
		{Name: "is_primary", Type: FieldBool},
	})
	if err != nil {
		panic(err) // static schema, never fails
	}
	return s
}
