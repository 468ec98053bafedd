package accessible

import (
	"verge/internal/mir"
)

// Borrowed carries the maybe-borrowed place sets at one program point.
//
// The producer must guarantee that places within one set are pairwise either
// nested or disjoint; sequential removal is order-independent only under that
// assumption. The combinator checks prefix-freeness of its own output and
// fails on violation instead of trusting arbitrary inputs.
type Borrowed struct {
	MaybeMut    mir.PlaceSet
	MaybeShared mir.PlaceSet
}

// InitFacts supplies definitely-initialized places per program point. It is
// produced by an external forward dataflow analysis and must be total over
// all reachable points of the procedure.
type InitFacts interface {
	// InitializedBefore returns the places definitely initialized just
	// before the given location.
	InitializedBefore(loc mir.Location) (mir.PlaceSet, bool)
	// InitializedOnEdge returns the places definitely initialized on the
	// edge from a block's terminator to the given successor.
	InitializedOnEdge(from, to mir.BlockID) (mir.PlaceSet, bool)
}

// BorrowFacts supplies maybe-borrowed places per program point, produced by
// an external borrow-check oracle with the same totality obligation as
// InitFacts.
type BorrowFacts interface {
	BorrowedBefore(loc mir.Location) (Borrowed, bool)
	BorrowedOnEdge(from, to mir.BlockID) (Borrowed, bool)
}

// InitTable is a map-backed InitFacts.
type InitTable struct {
	table Pointwise[mir.PlaceSet]
}

// NewInitTable returns an empty fact table.
func NewInitTable() *InitTable {
	return &InitTable{table: NewPointwise[mir.PlaceSet]()}
}

func (t *InitTable) SetBefore(loc mir.Location, places mir.PlaceSet) {
	t.table.SetBefore(loc, places)
}

func (t *InitTable) SetEdge(from, to mir.BlockID, places mir.PlaceSet) {
	t.table.SetEdge(from, to, places)
}

func (t *InitTable) InitializedBefore(loc mir.Location) (mir.PlaceSet, bool) {
	return t.table.Before(loc)
}

func (t *InitTable) InitializedOnEdge(from, to mir.BlockID) (mir.PlaceSet, bool) {
	return t.table.Edge(from, to)
}

// BorrowTable is a map-backed BorrowFacts.
type BorrowTable struct {
	table Pointwise[Borrowed]
}

// NewBorrowTable returns an empty fact table.
func NewBorrowTable() *BorrowTable {
	return &BorrowTable{table: NewPointwise[Borrowed]()}
}

func (t *BorrowTable) SetBefore(loc mir.Location, b Borrowed) {
	t.table.SetBefore(loc, b)
}

func (t *BorrowTable) SetEdge(from, to mir.BlockID, b Borrowed) {
	t.table.SetEdge(from, to, b)
}

func (t *BorrowTable) BorrowedBefore(loc mir.Location) (Borrowed, bool) {
	return t.table.Before(loc)
}

func (t *BorrowTable) BorrowedOnEdge(from, to mir.BlockID) (Borrowed, bool) {
	return t.table.Edge(from, to)
}
