package vir

import (
	"verge/internal/mir"
	"verge/internal/types"
)

// Engine simulates the effect of verification-language statements on a
// permission state. One engine handles one linear statement sequence;
// permissions that lose their name along the way (overwriting, call-target
// invalidation) accumulate in Dropped in statement order, for the caller to
// discharge explicitly.
type Engine struct {
	types   *types.Interner
	fn      *mir.Func
	preds   PredicateTable
	state   *State
	dropped []Perm
}

// NewEngine builds an engine over the given typing context and predicate
// table, starting from state. The table and typing context are read-only and
// may be shared; the state becomes owned by the engine.
func NewEngine(ti *types.Interner, fn *mir.Func, preds PredicateTable, state *State) *Engine {
	return &Engine{types: ti, fn: fn, preds: preds, state: state}
}

// State returns the threaded permission state.
func (e *Engine) State() *State {
	return e.state
}

// Dropped returns the ordered accumulator of dropped permissions.
func (e *Engine) Dropped() []Perm {
	return e.dropped
}

// ApplyAll applies the statements in order, stopping at the first failure.
func (e *Engine) ApplyAll(stmts []Stmt) error {
	for i := range stmts {
		if err := e.Apply(&stmts[i]); err != nil {
			return err
		}
	}
	return nil
}

// Apply simulates one statement. A returned error is always a
// *MalformedError: the statement sequence violates a transfer precondition
// and the upstream encoder is buggy.
func (e *Engine) Apply(st *Stmt) error {
	switch st.Kind {
	case StmtComment, StmtLabel, StmtAssert, StmtObtain, StmtWeakObtain:
		return nil
	case StmtInhale:
		e.state.InsertPerms(grantedPerms(st.Expr, e.preds))
		return nil
	case StmtExhale:
		if err := e.state.RemovePerms(grantedPerms(st.Expr, e.preds)); err != nil {
			return malformedf(st, "%v", err)
		}
		return nil
	case StmtMethodCall:
		return e.applyMethodCall(st)
	case StmtAssign:
		return e.applyAssign(st)
	case StmtFold:
		return e.applyFold(st)
	case StmtUnfold:
		return e.applyUnfold(st)
	case StmtHavoc:
		e.state.RemoveAccMatching(func(p mir.Place) bool { return !p.IsBase() })
		e.state.RemovePredMatching(func(mir.Place) bool { return true })
		return nil
	case StmtBeginFrame:
		e.state.BeginFrame()
		return nil
	case StmtEndFrame:
		if err := e.state.EndFrame(); err != nil {
			return malformedf(st, "%v", err)
		}
		return nil
	case StmtExpireBorrow:
		return e.applyExpireBorrow(st)
	default:
		return malformedf(st, "unknown statement kind %d", st.Kind)
	}
}

// grantedPerms computes the permission set an assertion grants, excluding
// bare whole-variable access permissions, which are always implicit.
func grantedPerms(expr Expr, preds PredicateTable) []Perm {
	all := expr.Permissions(preds)
	out := all[:0:0]
	for _, p := range all {
		if p.IsAcc() && p.Place.IsBase() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *Engine) applyMethodCall(st *Stmt) error {
	call := &st.MethodCall
	if len(call.Pres) != 0 || len(call.Posts) != 0 {
		return malformedf(st, "callee %q has a non-empty contract", call.Name)
	}
	isTarget := func(local mir.LocalID) bool {
		for _, t := range call.Targets {
			if t == local {
				return true
			}
		}
		return false
	}

	// A call havocs its targets: folded ownership and sub-structure
	// permissions under them lose their meaning and must be discharged.
	for _, p := range e.state.PredPerms() {
		if isTarget(p.Place.Local) {
			e.dropped = append(e.dropped, p)
		}
	}
	for _, p := range e.state.AccPerms() {
		if !p.Place.IsBase() && isTarget(p.Place.Local) {
			e.dropped = append(e.dropped, p)
		}
	}
	e.state.RemoveMovedMatching(func(p mir.Place) bool { return isTarget(p.Local) })
	e.state.RemovePredMatching(func(p mir.Place) bool { return isTarget(p.Local) })
	e.state.RemoveAccMatching(func(p mir.Place) bool { return !p.IsBase() && isTarget(p.Local) })
	return nil
}

func (e *Engine) applyAssign(st *Stmt) error {
	lhs := st.Assign.Lhs
	rhsPlace, rhsIsPlace := st.Assign.Rhs.AsPlace()
	rhsIsRef := false
	if rhsIsPlace {
		typ, err := mir.TypeOf(e.types, e.fn, rhsPlace)
		if err != nil {
			return malformedf(st, "rhs does not type-check: %v", err)
		}
		if t, ok := e.types.Lookup(typ); ok && t.Kind == types.KindReference {
			rhsIsRef = true
		}
	}

	switch st.Assign.Kind {
	case AssignMove, AssignMutableBorrow:
		if !rhsIsPlace {
			return malformedf(st, "%s of a non-place expression", st.Assign.Kind)
		}
		if !rhsIsRef {
			return malformedf(st, "%s of non-reference %s", st.Assign.Kind, rhsPlace)
		}
		if e.state.IsPrefixOfSomeMoved(rhsPlace) {
			return malformedf(st, "rhs %s contains a moved-out place", rhsPlace)
		}
		if e.state.HasPredProperAncestor(rhsPlace) {
			return malformedf(st, "rhs %s is hidden behind a fold", rhsPlace)
		}
	case AssignCopy:
		if rhsIsRef {
			return malformedf(st, "copy of reference-typed %s", rhsPlace)
		}
	}

	original := e.state.Clone()

	if st.Assign.Kind == AssignMove {
		e.state.InsertMoved(rhsPlace)
	}

	// The lhs is being overwritten: folded ownership rooted there and
	// sub-structure permissions lose their name.
	for _, p := range original.PredPerms() {
		if lhs.IsPrefixOf(p.Place) {
			e.dropped = append(e.dropped, p)
		}
	}
	for _, p := range original.AccPerms() {
		if lhs.IsProperPrefixOf(p.Place) {
			e.dropped = append(e.dropped, p)
		}
	}
	e.state.RemoveMovedMatching(func(p mir.Place) bool { return lhs.IsPrefixOf(p) })
	e.state.RemovePredMatching(func(p mir.Place) bool { return lhs.IsPrefixOf(p) })
	e.state.RemoveAccMatching(func(p mir.Place) bool { return lhs.IsProperPrefixOf(p) })

	if st.Assign.Kind == AssignCopy {
		// Copy leaves rhs permissions untouched.
		return nil
	}

	// Move or mutable borrow: relocate everything rooted at rhs onto lhs.
	e.state.RemovePredMatching(func(p mir.Place) bool { return rhsPlace.IsPrefixOf(p) })
	e.state.RemoveAccMatching(func(p mir.Place) bool { return rhsPlace.IsPrefixOf(p) })
	e.state.RemovePredMatching(func(p mir.Place) bool { return lhs.IsPrefixOf(p) })
	e.state.RemoveAccMatching(func(p mir.Place) bool { return lhs.IsPrefixOf(p) })

	for _, p := range original.AccPerms() {
		if rhsPlace.IsPrefixOf(p.Place) {
			e.state.InsertPerm(p.Relocated(rhsPlace, lhs))
		}
	}
	for _, p := range original.PredPerms() {
		if rhsPlace.IsPrefixOf(p.Place) {
			e.state.InsertPerm(p.Relocated(rhsPlace, lhs))
		}
	}
	return nil
}

func (e *Engine) applyFold(st *Stmt) error {
	fold := &st.Fold
	pred, ok := e.preds.Get(fold.Pred)
	if !ok {
		return malformedf(st, "unknown predicate %q", fold.Pred)
	}
	if err := pred.Validate(); err != nil {
		return malformedf(st, "%v", err)
	}
	if e.state.ContainsPred(fold.Place) {
		return malformedf(st, "%s already holds a predicate permission", fold.Place)
	}
	if e.state.IsPrefixOfSomeMoved(fold.Place) {
		return malformedf(st, "%s contains a moved-out place", fold.Place)
	}

	inside := pred.InstancePermissions(fold.Place, fold.Frac)
	if err := e.state.RemovePerms(inside); err != nil {
		return malformedf(st, "body permissions not available: %v", err)
	}
	e.state.InsertPerm(PredPerm(fold.Pred, fold.Place, fold.Frac))
	return nil
}

func (e *Engine) applyUnfold(st *Stmt) error {
	unfold := &st.Unfold
	pred, ok := e.preds.Get(unfold.Pred)
	if !ok {
		return malformedf(st, "unknown predicate %q", unfold.Pred)
	}
	if err := pred.Validate(); err != nil {
		return malformedf(st, "%v", err)
	}
	name, frac, held := e.state.PredAt(unfold.Place)
	if !held || name != unfold.Pred || frac.Less(unfold.Frac) {
		return malformedf(st, "%s does not hold %s at %s", unfold.Place, unfold.Pred, unfold.Frac)
	}
	if e.state.IsPrefixOfSomeMoved(unfold.Place) {
		return malformedf(st, "%s contains a moved-out place", unfold.Place)
	}

	inside := pred.InstancePermissions(unfold.Place, unfold.Frac)
	for _, p := range inside {
		if p.IsAcc() && e.state.ContainsAcc(p.Place) {
			return malformedf(st, "unfolding would duplicate access on %s", p.Place)
		}
		if p.IsPred() && e.state.ContainsPred(p.Place) {
			return malformedf(st, "unfolding would duplicate predicate on %s", p.Place)
		}
	}

	if err := e.state.RemovePerm(PredPerm(unfold.Pred, unfold.Place, unfold.Frac)); err != nil {
		return malformedf(st, "%v", err)
	}
	e.state.InsertPerms(inside)
	return nil
}

func (e *Engine) applyExpireBorrow(st *Stmt) error {
	lhs := st.ExpireBorrow.Lhs
	rhs := st.ExpireBorrow.Rhs

	lhsType, err := mir.TypeOf(e.types, e.fn, lhs)
	if err != nil {
		return malformedf(st, "lhs does not type-check: %v", err)
	}
	rhsType, err := mir.TypeOf(e.types, e.fn, rhs)
	if err != nil {
		return malformedf(st, "rhs does not type-check: %v", err)
	}
	if t, ok := e.types.Lookup(lhsType); !ok || t.Kind != types.KindReference {
		return malformedf(st, "lhs %s is not reference-typed", lhs)
	}
	if lhsType != rhsType {
		return malformedf(st, "lhs %s and rhs %s differ in type", lhs, rhs)
	}
	if e.state.HasAccProperDescendant(rhs) {
		return malformedf(st, "access permission remains under %s", rhs)
	}
	if e.state.HasPredWithPrefix(rhs) {
		return malformedf(st, "%s still holds a predicate permission", rhs)
	}
	if e.state.IsPrefixOfSomeMoved(rhs) {
		return malformedf(st, "rhs %s contains a moved-out place", rhs)
	}
	if e.state.IsPrefixOfSomeMoved(lhs) {
		return malformedf(st, "lhs %s contains a moved-out place", lhs)
	}

	original := e.state.Clone()

	e.state.RemovePredMatching(func(p mir.Place) bool { return lhs.IsPrefixOf(p) })
	e.state.RemoveAccMatching(func(p mir.Place) bool { return lhs.IsPrefixOf(p) })
	e.state.RemovePredMatching(func(p mir.Place) bool { return rhs.IsPrefixOf(p) })
	e.state.RemoveAccMatching(func(p mir.Place) bool { return rhs.IsPrefixOf(p) })

	// The borrow is over: the rhs value is back in place.
	e.state.RemoveMovedMatching(func(p mir.Place) bool { return rhs.IsPrefixOf(p) })

	for _, p := range original.AccPerms() {
		if lhs.IsPrefixOf(p.Place) {
			e.state.InsertPerm(p.Relocated(lhs, rhs))
		}
	}
	for _, p := range original.PredPerms() {
		if lhs.IsPrefixOf(p.Place) {
			e.state.InsertPerm(p.Relocated(lhs, rhs))
		}
	}
	return nil
}
