package btree

import "fmt"

// DefaultPageSize is the process-wide page size; spec.md §4.2 allows it to
// be configured at startup (Config.PageSize), defaulting to 4096.
const DefaultPageSize = 4096

// PageCategory tags a page's on-disk layout. Values follow
// _examples/original_source/small-rows-rust/src/btree/page/page_category.rs's
// discriminant ordering, since spec.md leaves the exact numbering an
// implementer choice.
type PageCategory uint8

const (
	CategoryRootPointer PageCategory = iota
	CategoryHeader
	CategoryInternal
	CategoryLeaf
)

func (c PageCategory) String() string {
	switch c {
	case CategoryRootPointer:
		return "RootPointer"
	case CategoryHeader:
		return "Header"
	case CategoryInternal:
		return "Internal"
	case CategoryLeaf:
		return "Leaf"
	default:
		return fmt.Sprintf("PageCategory(%d)", uint8(c))
	}
}

// PageID identifies a single on-disk page: spec.md §3's
// (table_id, page_index, category) triple. Every parent/child/sibling
// reference in the tree is a PageID, never a live pointer — resolution
// always goes through the buffer pool (spec.md §9 "Arena+index instead of
// cyclic ownership").
type PageID struct {
	TableID   uint32
	PageIndex uint32
	Category  PageCategory
}

// NoPage is the all-zero sentinel PageID used for absent sibling, child
// and header-chain links. It is equal to table 0's root-pointer ID
// (RootPointerID(0)); those links never refer to a root-pointer page, so
// the zero value is safe to use as "absent" there.
var NoPage = PageID{}

func (p PageID) IsZero() bool {
	return p == PageID{}
}

func (p PageID) String() string {
	return fmt.Sprintf("PageID{table:%d idx:%d cat:%s}", p.TableID, p.PageIndex, p.Category)
}

// RootPointerID returns the PageID of table t's root-pointer page (always
// page index 0, spec.md §3).
func RootPointerID(tableID uint32) PageID {
	return PageID{TableID: tableID, PageIndex: 0, Category: CategoryRootPointer}
}
