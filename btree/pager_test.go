package btree

import (
	"testing"

	"github.com/small-db/smalldb/common"
	"github.com/small-db/smalldb/common/testutil"
)

// TestResourceLimiterBoundsPagerGrowth drives real inserts through the
// pager while tracking every page allocation against a ResourceLimiter
// disk budget sized for only a handful of pages. This is the kind of
// bound a longer benchmark/stress run wants on the data directory it
// writes into without touching the filesystem itself.
func TestResourceLimiterBoundsPagerGrowth(t *testing.T) {
	db := setupTestDB(t)
	users := createUsers(t, db)

	budget := testutil.NewResourceLimiter(int64(4*DefaultPageSize), 0)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Commit()

	before := users.pager.CachedPageCount()
	tracked := before
	exceeded := false
	for i := int64(0); i < 2000 && !exceeded; i++ {
		if err := users.Insert(tx.ID(), []Field{
			IntField(i), BytesField([]byte("user")), IntField(i),
		}); err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
		for ; tracked < users.pager.CachedPageCount(); tracked++ {
			if err := budget.AllocDisk(int64(DefaultPageSize)); err != nil {
				if err != common.ErrDiskFull {
					t.Fatalf("unexpected limiter error: %v", err)
				}
				exceeded = true
				break
			}
		}
	}
	if !exceeded {
		t.Fatalf("expected the disk budget to be exhausted well before 2000 inserts")
	}

	after := users.pager.CachedPageCount()
	if after <= before {
		t.Fatalf("expected the pager's cache to have grown, before=%d after=%d", before, after)
	}

	freed := int64(DefaultPageSize)
	budget.FreeDisk(freed)
	if budget.DiskUsed() != 4*int64(DefaultPageSize)-freed {
		t.Fatalf("unexpected DiskUsed after FreeDisk: %d", budget.DiskUsed())
	}
}
