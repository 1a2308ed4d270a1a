package btree

import "fmt"

// catalogTableID is the fixed table_id the bootstrap catalog occupies;
// user tables start numbering after it (spec.md §6 "Catalog table").
const catalogTableID uint32 = 0

// catalogRow mirrors one row of the catalog schema (schema.go
// CatalogSchema) as a Go struct, for convenience when building or
// reading back a table's column list.
type catalogRow struct {
	TableID    uint32
	TableName  string
	FieldIndex int
	FieldName  string
	FieldType  FieldType
	MaxBytes   int
	IsPrimary  bool
}

func (r catalogRow) toValues() []Field {
	rowID := int64(r.TableID)*1000 + int64(r.FieldIndex)
	return []Field{
		IntField(rowID),
		IntField(int64(r.TableID)),
		BytesField([]byte(r.TableName)),
		IntField(int64(r.FieldIndex)),
		BytesField([]byte(r.FieldName)),
		IntField(int64(r.FieldType)),
		IntField(int64(r.MaxBytes)),
		BoolField(r.IsPrimary),
	}
}

func catalogRowFromValues(values []Field) catalogRow {
	return catalogRow{
		TableID:    uint32(values[1].Int64Value),
		TableName:  string(values[2].BytesValue),
		FieldIndex: int(values[3].Int64Value),
		FieldName:  string(values[4].BytesValue),
		FieldType:  FieldType(values[5].Int64Value),
		MaxBytes:   int(values[6].Int64Value),
		IsPrimary:  values[7].BoolValue,
	}
}

// recordTableSchema writes one catalog row per field of schema, under
// the given committed-or-in-flight transaction.
func (db *Database) recordTableSchema(tx TxID, tableID uint32, schema *Schema) error {
	for i, f := range schema.Fields {
		row := catalogRow{
			TableID: tableID, TableName: schema.TableName, FieldIndex: i,
			FieldName: f.Name, FieldType: f.Type, MaxBytes: f.MaxBytes, IsPrimary: f.IsPrimary,
		}
		if err := db.catalogTable.Insert(tx, row.toValues()); err != nil {
			return err
		}
	}
	return nil
}

// loadSchemas reads every catalog row and reconstructs each table's
// Schema, grouping rows by table_id and ordering by field_index.
func (db *Database) loadSchemas(tx TxID) (map[uint32]*Schema, error) {
	it, err := db.catalogTable.Scan(tx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	type partial struct {
		name   string
		fields map[int]FieldDesc
	}
	byTable := make(map[uint32]*partial)
	for it.Next() {
		row := catalogRowFromValues(it.Value().Tuple.Values)
		p, ok := byTable[row.TableID]
		if !ok {
			p = &partial{name: row.TableName, fields: make(map[int]FieldDesc)}
			byTable[row.TableID] = p
		}
		p.fields[row.FieldIndex] = FieldDesc{
			Name: row.FieldName, Type: row.FieldType, MaxBytes: row.MaxBytes, IsPrimary: row.IsPrimary,
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	out := make(map[uint32]*Schema)
	for tableID, p := range byTable {
		fields := make([]FieldDesc, len(p.fields))
		for idx, fd := range p.fields {
			if idx < 0 || idx >= len(fields) {
				return nil, fmt.Errorf("btree: catalog field_index %d out of range for table %d", idx, tableID)
			}
			fields[idx] = fd
		}
		schema, err := NewSchema(p.name, fields)
		if err != nil {
			return nil, err
		}
		out[tableID] = schema
	}
	return out, nil
}
