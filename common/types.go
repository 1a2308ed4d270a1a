package common

// Stats contains engine-level operational counters. It generalizes the
// teacher's single-engine Stats (NumKeys/NumSegments/WriteAmp/SpaceAmp) to
// a transactional, multi-table engine: segments become pages, and commit
// and latch-contention counters are added since those replace "compaction"
// as the operational signal worth reporting.
type Stats struct {
	NumKeys       int64
	NumPages      int
	TotalDiskSize int64

	WriteCount int64
	ReadCount  int64

	CommitCount int64
	AbortCount  int64

	LatchGrants  int64
	LatchDenials int64

	WriteAmp float64 // bytes written to disk / bytes written by user
	SpaceAmp float64 // disk space used / logical data size
}

// Iterator is the minimal cursor shape shared by range scans across the
// pack (teacher's btree.Iterator, lsm/hashindex equivalents). Table's
// TupleIterator implements it over WrappedTuple instead of raw key/value
// pairs.
type Iterator interface {
	Next() bool
	Error() error
	Close() error
}
