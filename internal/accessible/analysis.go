package accessible

import (
	"verge/internal/mir"
	"verge/internal/types"
)

// Analysis combines externally produced initialization and borrow facts into
// per-point accessibility states. The typing context and fact providers are
// read-only; one Analysis value serves a single procedure.
type Analysis struct {
	types   *types.Interner
	fn      *mir.Func
	init    InitFacts
	borrows BorrowFacts
}

// NewAnalysis builds the combinator for one procedure.
func NewAnalysis(ti *types.Interner, fn *mir.Func, init InitFacts, borrows BorrowFacts) *Analysis {
	return &Analysis{types: ti, fn: fn, init: init, borrows: borrows}
}

// Run computes the accessibility state before every statement and on every
// terminator-successor edge of the procedure. Missing facts and invariant
// violations abort with a typed error; the procedure's siblings are
// unaffected.
func (a *Analysis) Run() (Pointwise[*State], error) {
	result := NewPointwise[*State]()

	for bi := range a.fn.Blocks {
		block := &a.fn.Blocks[bi]

		// One point before every statement, plus one before the terminator.
		for si := 0; si <= len(block.Instrs); si++ {
			loc := mir.Location{Block: block.ID, Statement: si}
			init, ok := a.init.InitializedBefore(loc)
			if !ok {
				return result, &MissingFactError{Proc: a.fn.Name, Analysis: "init", Point: loc.String()}
			}
			borrowed, ok := a.borrows.BorrowedBefore(loc)
			if !ok {
				return result, &MissingFactError{Proc: a.fn.Name, Analysis: "borrow", Point: loc.String()}
			}
			state, err := a.compute(init, borrowed)
			if err != nil {
				return result, &InvariantError{Proc: a.fn.Name, Point: loc.String(), Detail: err.Error()}
			}
			if err := state.CheckInvariant(); err != nil {
				return result, &InvariantError{Proc: a.fn.Name, Point: loc.String(), Detail: err.Error()}
			}
			result.SetBefore(loc, state)
		}

		// Facts may be specialized per branch target, so each successor edge
		// gets its own state.
		for _, succ := range block.Term.Successors() {
			edge := Edge{From: block.ID, To: succ}
			init, ok := a.init.InitializedOnEdge(block.ID, succ)
			if !ok {
				return result, &MissingFactError{Proc: a.fn.Name, Analysis: "init", Point: edge.String()}
			}
			borrowed, ok := a.borrows.BorrowedOnEdge(block.ID, succ)
			if !ok {
				return result, &MissingFactError{Proc: a.fn.Name, Analysis: "borrow", Point: edge.String()}
			}
			state, err := a.compute(init, borrowed)
			if err != nil {
				return result, &InvariantError{Proc: a.fn.Name, Point: edge.String(), Detail: err.Error()}
			}
			if err := state.CheckInvariant(); err != nil {
				return result, &InvariantError{Proc: a.fn.Name, Point: edge.String(), Detail: err.Error()}
			}
			result.SetEdge(block.ID, succ, state)
		}
	}

	return result, nil
}

// compute subtracts the maybe-borrowed sets from the definitely-initialized
// one: a mutable borrow suspends both read and write access, a shared borrow
// only write access.
func (a *Analysis) compute(init mir.PlaceSet, borrowed Borrowed) (*State, error) {
	accessible := init.Clone()
	for _, b := range borrowed.MaybeMut.Places() {
		next, err := a.removePlace(b, accessible)
		if err != nil {
			return nil, err
		}
		accessible = next
	}
	owned := accessible.Clone()
	for _, b := range borrowed.MaybeShared.Places() {
		next, err := a.removePlace(b, owned)
		if err != nil {
			return nil, err
		}
		owned = next
	}
	return &State{Accessible: accessible, Owned: owned}, nil
}

// removePlace removes all extensions of target from the set, unpacking
// coarser members as far as needed so that everything outside target
// survives.
func (a *Analysis) removePlace(target mir.Place, set mir.PlaceSet) (mir.PlaceSet, error) {
	out := make(mir.PlaceSet, len(set))
	for _, p := range set.Places() {
		switch {
		case target.IsPrefixOf(p):
			// p lies inside the borrowed region: gone entirely.
		case p.IsProperPrefixOf(target):
			// The set only holds a coarser fact: unpack p and keep the
			// parts not covered by target.
			expanded, err := mir.Expand(a.types, a.fn, p, target)
			if err != nil {
				return nil, err
			}
			for _, e := range expanded {
				out.Add(e)
			}
		default:
			out.Add(p)
		}
	}
	return out, nil
}
