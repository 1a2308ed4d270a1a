package btree

import (
	"fmt"
	"sync/atomic"

	"github.com/small-db/smalldb/common"
)

// Database wires the buffer pool (C3), concurrency controller (C4), and
// log manager (C5) together and owns the table/catalog lifecycle —
// generalizing the teacher's single-tree BTree (btree.go) into a
// multi-table process, the way database.go does in
// original_source/.../database.rs.
type Database struct {
	cfg      Config
	pager    *Pager
	latch    *LatchManager
	wal      *WAL
	nextTxID uint64

	commitCount int64
	abortCount  int64

	catalogTable *Table
	tables       map[uint32]*Table
	tableIDs     map[string]uint32
	nextTableID  uint32
}

// Open creates or reopens a database at cfg.DataDir, running crash
// recovery against the log before any table is made available (spec.md
// §4.5 "Recovery scan" runs at startup).
func Open(cfg Config) (*Database, error) {
	if cfg.PageSize == 0 {
		cfg = DefaultConfig(cfg.DataDir)
	}
	logger := loggerOrNop(cfg.Logger)

	latch := NewLatchManager(cfg.LatchTimeout, logger)
	wal, err := OpenWAL(cfg.DataDir+"/wal.log", logger)
	if err != nil {
		return nil, err
	}
	pager, err := NewPager(cfg.DataDir, cfg.PageSize, cfg.CacheSize, latch, wal, logger)
	if err != nil {
		return nil, err
	}

	db := &Database{
		cfg: cfg, pager: pager, latch: latch, wal: wal,
		tables: make(map[uint32]*Table), tableIDs: make(map[string]uint32),
		nextTableID: 1,
	}

	if err := wal.Recover(pager); err != nil {
		return nil, fmt.Errorf("btree: recovery failed: %w", err)
	}
	db.nextTxID = uint64(wal.MaxTxID())

	db.catalogTable = newTable(catalogTableID, CatalogSchema(), pager, latch, wal, cfg)
	if !pager.TableExists(catalogTableID) {
		tx, err := db.Begin()
		if err != nil {
			return nil, err
		}
		if err := db.catalogTable.bootstrap(tx.id); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	schemas, err := db.loadSchemas(tx.id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	for tableID, schema := range schemas {
		db.tables[tableID] = newTable(tableID, schema, pager, latch, wal, cfg)
		db.tableIDs[schema.TableName] = tableID
		if tableID >= db.nextTableID {
			db.nextTableID = tableID + 1
		}
	}

	return db, nil
}

// CreateTable registers a new table under tx, persisting its schema to
// the catalog and bootstrapping its root-pointer/leaf pages.
func (db *Database) CreateTable(tx *Tx, name string, fields []FieldDesc) (*Table, error) {
	if _, exists := db.tableIDs[name]; exists {
		return nil, fmt.Errorf("btree: table %q already exists", name)
	}
	schema, err := NewSchema(name, fields)
	if err != nil {
		return nil, err
	}
	tableID := db.nextTableID
	db.nextTableID++

	table := newTable(tableID, schema, db.pager, db.latch, db.wal, db.cfg)
	if err := table.bootstrap(tx.id); err != nil {
		return nil, err
	}
	if err := db.recordTableSchema(tx.id, tableID, schema); err != nil {
		return nil, err
	}
	db.tables[tableID] = table
	db.tableIDs[name] = tableID
	return table, nil
}

// Table returns a previously created table by name.
func (db *Database) Table(name string) (*Table, bool) {
	id, ok := db.tableIDs[name]
	if !ok {
		return nil, false
	}
	t, ok := db.tables[id]
	return t, ok
}

// Stats reports a snapshot of operational counters across the buffer
// pool, concurrency controller, and transaction facade, in the shared
// shape the rest of the pack's engines report through (common.Stats).
func (db *Database) Stats() common.Stats {
	reads, writes := db.pager.Stats()
	grants, denials := db.latch.Counts()
	return common.Stats{
		NumPages:      db.pager.CachedPageCount(),
		ReadCount:     reads,
		WriteCount:    writes,
		CommitCount:   atomic.LoadInt64(&db.commitCount),
		AbortCount:    atomic.LoadInt64(&db.abortCount),
		LatchGrants:   grants,
		LatchDenials:  denials,
		TotalDiskSize: int64(db.pager.CachedPageCount()) * int64(db.cfg.PageSize),
	}
}

func (db *Database) Close() error {
	if err := db.pager.Sync(); err != nil {
		return err
	}
	if err := db.wal.Sync(); err != nil {
		return err
	}
	if err := db.pager.Close(); err != nil {
		return err
	}
	return db.wal.Close()
}
