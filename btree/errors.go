package btree

import "github.com/small-db/smalldb/common"

// Error kinds are defined once in common so every engine package (and
// future callers outside btree) can compare against the same sentinels
// without importing btree itself (spec.md §7 "Error Handling Design").
var (
	ErrDeadlockDetected  = common.ErrDeadlockDetected
	ErrLatchTimeout      = common.ErrLatchTimeout
	ErrPageFull          = common.ErrPageFull
	ErrInvariantViolated = common.ErrInvariantViolated
	ErrIO                = common.ErrIO
	ErrTypeMismatch      = common.ErrTypeMismatch
	ErrNotFound          = common.ErrNotFound
	ErrTxNotActive       = common.ErrTxNotActive
)
