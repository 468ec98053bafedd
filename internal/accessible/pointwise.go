package accessible

import (
	"fmt"
	"sort"

	"verge/internal/mir"
)

// Edge identifies the program point on the edge from a block's terminator to
// one of its successors.
type Edge struct {
	From mir.BlockID
	To   mir.BlockID
}

func (e Edge) String() string {
	return fmt.Sprintf("bb%d -> bb%d", e.From, e.To)
}

// Pointwise is a partial map from program point to a value, split into
// before-statement points and terminator-successor edges. Facts may
// legitimately differ per branch target, which is why edges are keyed by
// (from, to) and not by the successor block alone.
type Pointwise[T any] struct {
	before map[mir.Location]T
	edges  map[Edge]T
}

// NewPointwise returns an empty map.
func NewPointwise[T any]() Pointwise[T] {
	return Pointwise[T]{
		before: make(map[mir.Location]T),
		edges:  make(map[Edge]T),
	}
}

func (p Pointwise[T]) SetBefore(loc mir.Location, value T) {
	p.before[loc] = value
}

func (p Pointwise[T]) Before(loc mir.Location) (T, bool) {
	v, ok := p.before[loc]
	return v, ok
}

func (p Pointwise[T]) SetEdge(from, to mir.BlockID, value T) {
	p.edges[Edge{From: from, To: to}] = value
}

func (p Pointwise[T]) Edge(from, to mir.BlockID) (T, bool) {
	v, ok := p.edges[Edge{From: from, To: to}]
	return v, ok
}

// Locations returns the before-statement points in block/statement order.
func (p Pointwise[T]) Locations() []mir.Location {
	out := make([]mir.Location, 0, len(p.before))
	for loc := range p.before {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block < out[j].Block
		}
		return out[i].Statement < out[j].Statement
	})
	return out
}

// Edges returns the edge points ordered by source, then target block.
func (p Pointwise[T]) Edges() []Edge {
	out := make([]Edge, 0, len(p.edges))
	for e := range p.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
