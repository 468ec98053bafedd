package vir_test

import (
	"errors"
	"testing"

	"verge/internal/mir"
	"verge/internal/types"
	"verge/internal/vir"
)

// newEngineFixture declares locals
//
//	L0 "x": &mut Point   L1 "y": &mut Point
//	L2 "s": Point        L3 "t": Point
//
// and a predicate Point(self) = acc(self.x) && acc(self.y).
func newEngineFixture(t *testing.T) (*types.Interner, *mir.Func, vir.PredicateTable) {
	t.Helper()
	ti := types.NewInterner()
	intT := ti.Builtins().Int

	point := ti.RegisterStruct("Point")
	ti.SetStructFields(point, []types.StructField{
		{Name: "x", Type: intT},
		{Name: "y", Type: intT},
	})
	refPoint := ti.Intern(types.MakeReference(point, true))

	f := &mir.Func{
		Name: "fixture",
		Locals: []mir.Local{
			{Name: "x", Type: refPoint},
			{Name: "y", Type: refPoint},
			{Name: "s", Type: point},
			{Name: "t", Type: point},
		},
		Blocks: []mir.Block{
			{ID: 0, Term: mir.Terminator{Kind: mir.TermReturn}},
		},
	}

	self := mir.PlaceFor(0)
	preds := vir.PredicateTable{
		"Point": &vir.Predicate{
			Name: "Point",
			Self: self,
			Body: vir.AndExpr(
				vir.AccExpr(self.Child(mir.FieldProj("x", 0)), vir.Full),
				vir.AccExpr(self.Child(mir.FieldProj("y", 1)), vir.Full),
			),
		},
	}
	return ti, f, preds
}

func fieldX(p mir.Place) mir.Place { return p.Child(mir.FieldProj("x", 0)) }
func fieldY(p mir.Place) mir.Place { return p.Child(mir.FieldProj("y", 1)) }

func TestFoldUnfoldRoundTrip(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	s := mir.PlaceFor(2)

	for _, frac := range []vir.Frac{vir.Full, vir.MustFrac(1, 2)} {
		state := vir.NewState()
		state.InsertPerm(vir.AccPerm(fieldX(s), frac))
		state.InsertPerm(vir.AccPerm(fieldY(s), frac))
		initial := state.Clone()

		eng := vir.NewEngine(ti, f, preds, state)
		err := eng.ApplyAll([]vir.Stmt{
			{Kind: vir.StmtFold, Fold: vir.FoldStmt{Pred: "Point", Place: s, Frac: frac}},
		})
		if err != nil {
			t.Fatalf("frac %s: fold: %v", frac, err)
		}
		if !state.ContainsPred(s) || state.ContainsAcc(fieldX(s)) {
			t.Fatalf("frac %s: fold did not swap field access for the predicate: %s", frac, state)
		}
		err = eng.ApplyAll([]vir.Stmt{
			{Kind: vir.StmtUnfold, Unfold: vir.UnfoldStmt{Pred: "Point", Place: s, Frac: frac}},
		})
		if err != nil {
			t.Fatalf("frac %s: unfold: %v", frac, err)
		}
		if !state.Equal(initial) {
			t.Fatalf("frac %s: fold/unfold is not the identity:\n got %s\nwant %s", frac, state, initial)
		}
	}
}

func TestFoldRejectsForeignBodyPlace(t *testing.T) {
	ti, f, _ := newEngineFixture(t)
	s := mir.PlaceFor(2)

	// The body grants access on a place not rooted at the formal self
	// parameter, so substitution is undefined.
	preds := vir.PredicateTable{
		"Stray": &vir.Predicate{
			Name: "Stray",
			Self: fieldX(s),
			Body: vir.AccExpr(s, vir.Full),
		},
	}
	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(s, vir.Full))
	eng := vir.NewEngine(ti, f, preds, state)

	err := eng.Apply(&vir.Stmt{Kind: vir.StmtFold, Fold: vir.FoldStmt{
		Pred: "Stray", Place: fieldX(s), Frac: vir.Full,
	}})
	var malformed *vir.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("fold of a foreign-body predicate: err = %v, want MalformedError", err)
	}

	state = vir.NewState()
	state.InsertPerm(vir.PredPerm("Stray", fieldX(s), vir.Full))
	eng = vir.NewEngine(ti, f, preds, state)
	err = eng.Apply(&vir.Stmt{Kind: vir.StmtUnfold, Unfold: vir.UnfoldStmt{
		Pred: "Stray", Place: fieldX(s), Frac: vir.Full,
	}})
	if !errors.As(err, &malformed) {
		t.Fatalf("unfold of a foreign-body predicate: err = %v, want MalformedError", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(fieldX(mir.PlaceFor(2)), vir.Full))
	initial := state.Clone()

	eng := vir.NewEngine(ti, f, preds, state)
	err := eng.ApplyAll([]vir.Stmt{
		{Kind: vir.StmtBeginFrame},
		{Kind: vir.StmtEndFrame},
	})
	if err != nil {
		t.Fatalf("frame pair: %v", err)
	}
	if !state.Equal(initial) {
		t.Fatalf("begin/end frame is not the identity:\n got %s\nwant %s", state, initial)
	}
}

func TestAssignMoveTransfersPermissions(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	x := mir.PlaceFor(0)
	y := mir.PlaceFor(1)

	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(x, vir.Full))

	eng := vir.NewEngine(ti, f, preds, state)
	err := eng.Apply(&vir.Stmt{
		Kind:   vir.StmtAssign,
		Assign: vir.AssignStmt{Lhs: y, Rhs: vir.PlaceExpr(x), Kind: vir.AssignMove},
	})
	if err != nil {
		t.Fatalf("move assign: %v", err)
	}

	if state.ContainsAcc(x) {
		t.Fatalf("moved-from place still holds access: %s", state)
	}
	if frac, ok := state.AccFrac(y); !ok || !frac.IsFull() {
		t.Fatalf("move target does not hold full access: %s", state)
	}
	if !state.IsPrefixOfSomeMoved(x) {
		t.Fatalf("moved-from place not marked: %s", state)
	}
	if err := state.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
}

func TestAssignOverwriteDropsSubstructure(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	s := mir.PlaceFor(2)

	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(s, vir.Full))
	state.InsertPerm(vir.AccPerm(fieldX(s), vir.Full))

	eng := vir.NewEngine(ti, f, preds, state)
	err := eng.Apply(&vir.Stmt{
		Kind:   vir.StmtAssign,
		Assign: vir.AssignStmt{Lhs: s, Rhs: vir.LitExpr("0"), Kind: vir.AssignCopy},
	})
	if err != nil {
		t.Fatalf("copy assign: %v", err)
	}

	if state.ContainsAcc(fieldX(s)) {
		t.Fatalf("overwritten sub-structure access survived: %s", state)
	}
	if !state.ContainsAcc(s) {
		t.Fatalf("access on the overwritten place itself must survive: %s", state)
	}
	dropped := eng.Dropped()
	if len(dropped) != 1 || !dropped[0].Place.Equal(fieldX(s)) {
		t.Fatalf("dropped accumulator = %v, want exactly acc(%s)", dropped, fieldX(s))
	}
}

func TestMethodCallDropsTargetRooted(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	tp := mir.PlaceFor(3)
	half := vir.MustFrac(1, 2)

	state := vir.NewState()
	state.InsertPerm(vir.PredPerm("Point", fieldX(tp), half))
	state.InsertPerm(vir.AccPerm(mir.PlaceFor(2), vir.Full))
	state.InsertMoved(fieldY(tp))

	eng := vir.NewEngine(ti, f, preds, state)
	err := eng.Apply(&vir.Stmt{
		Kind:       vir.StmtMethodCall,
		MethodCall: vir.MethodCallStmt{Name: "havoc_t", Targets: []mir.LocalID{3}},
	})
	if err != nil {
		t.Fatalf("method call: %v", err)
	}

	if state.ContainsPred(fieldX(tp)) {
		t.Fatalf("predicate under call target survived: %s", state)
	}
	if state.IsPrefixOfSomeMoved(tp) {
		t.Fatalf("moved marker under call target survived: %s", state)
	}
	if !state.ContainsAcc(mir.PlaceFor(2)) {
		t.Fatalf("unrelated permission was disturbed: %s", state)
	}
	dropped := eng.Dropped()
	if len(dropped) != 1 || !dropped[0].IsPred() || !dropped[0].Frac.Equal(half) {
		t.Fatalf("dropped accumulator = %v, want the half predicate permission", dropped)
	}
}

func TestMethodCallRejectsContract(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	eng := vir.NewEngine(ti, f, preds, vir.NewState())
	err := eng.Apply(&vir.Stmt{
		Kind: vir.StmtMethodCall,
		MethodCall: vir.MethodCallStmt{
			Name: "contracted",
			Pres: []vir.Expr{vir.TrueExpr()},
		},
	})
	var malformed *vir.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("non-empty contract must be malformed, got %v", err)
	}
}

func TestExpireBorrowUndoesMutableBorrow(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	x := mir.PlaceFor(0)
	y := mir.PlaceFor(1)
	deref := x.Child(mir.DerefProj())

	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(x, vir.Full))
	state.InsertPerm(vir.AccPerm(fieldX(deref), vir.Full))
	state.InsertPerm(vir.AccPerm(fieldY(deref), vir.Full))
	initial := state.Clone()

	eng := vir.NewEngine(ti, f, preds, state)
	err := eng.Apply(&vir.Stmt{
		Kind:   vir.StmtAssign,
		Assign: vir.AssignStmt{Lhs: y, Rhs: vir.PlaceExpr(x), Kind: vir.AssignMutableBorrow},
	})
	if err != nil {
		t.Fatalf("borrow assign: %v", err)
	}
	if state.ContainsAcc(x) || !state.ContainsAcc(y) {
		t.Fatalf("borrow did not relocate the reference access: %s", state)
	}

	err = eng.Apply(&vir.Stmt{
		Kind:         vir.StmtExpireBorrow,
		ExpireBorrow: vir.ExpireBorrowStmt{Lhs: y, Rhs: x},
	})
	if err != nil {
		t.Fatalf("expire borrow: %v", err)
	}
	if !state.Equal(initial) {
		t.Fatalf("expire did not undo the borrow:\n got %s\nwant %s", state, initial)
	}
}

func TestHavocKeepsOnlyBaseAccess(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	s := mir.PlaceFor(2)

	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(mir.PlaceFor(0), vir.Full))
	state.InsertPerm(vir.AccPerm(fieldX(s), vir.Full))
	state.InsertPerm(vir.PredPerm("Point", mir.PlaceFor(3), vir.Full))

	eng := vir.NewEngine(ti, f, preds, state)
	if err := eng.Apply(&vir.Stmt{Kind: vir.StmtHavoc}); err != nil {
		t.Fatalf("havoc: %v", err)
	}

	if !state.ContainsAcc(mir.PlaceFor(0)) {
		t.Fatalf("bare whole-variable access must survive havoc: %s", state)
	}
	if state.ContainsAcc(fieldX(s)) || state.ContainsPred(mir.PlaceFor(3)) {
		t.Fatalf("havoc left non-base permissions behind: %s", state)
	}
}

func TestInhaleExhale(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	s := mir.PlaceFor(2)
	half := vir.MustFrac(1, 2)

	assertion := vir.AndExpr(
		vir.AccExpr(mir.PlaceFor(0), vir.Full), // bare whole-variable access: implicit
		vir.AccExpr(fieldX(s), half),
		vir.PredAccessExpr("Point", mir.PlaceFor(3), half),
	)

	state := vir.NewState()
	eng := vir.NewEngine(ti, f, preds, state)
	if err := eng.Apply(&vir.Stmt{Kind: vir.StmtInhale, Expr: assertion}); err != nil {
		t.Fatalf("inhale: %v", err)
	}
	if state.ContainsAcc(mir.PlaceFor(0)) {
		t.Fatalf("bare whole-variable access must not be tracked: %s", state)
	}
	if frac, ok := state.AccFrac(fieldX(s)); !ok || !frac.Equal(half) {
		t.Fatalf("inhale missed acc(%s, 1/2): %s", fieldX(s), state)
	}
	if !state.ContainsPred(mir.PlaceFor(3)) {
		t.Fatalf("inhale missed the predicate instance: %s", state)
	}

	if err := eng.Apply(&vir.Stmt{Kind: vir.StmtExhale, Expr: assertion}); err != nil {
		t.Fatalf("exhale: %v", err)
	}
	if !state.Equal(vir.NewState()) {
		t.Fatalf("exhale left permissions behind: %s", state)
	}

	err := eng.Apply(&vir.Stmt{Kind: vir.StmtExhale, Expr: assertion})
	var malformed *vir.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("exhaling absent permissions must be malformed, got %v", err)
	}
}

func TestMalformedSequences(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	s := mir.PlaceFor(2)

	cases := []struct {
		name  string
		setup func(st *vir.State)
		stmt  vir.Stmt
	}{
		{
			name: "double fold",
			setup: func(st *vir.State) {
				st.InsertPerm(vir.PredPerm("Point", s, vir.Full))
			},
			stmt: vir.Stmt{Kind: vir.StmtFold, Fold: vir.FoldStmt{Pred: "Point", Place: s, Frac: vir.Full}},
		},
		{
			name:  "unfold without predicate",
			setup: func(*vir.State) {},
			stmt:  vir.Stmt{Kind: vir.StmtUnfold, Unfold: vir.UnfoldStmt{Pred: "Point", Place: s, Frac: vir.Full}},
		},
		{
			name:  "move of non-reference",
			setup: func(*vir.State) {},
			stmt: vir.Stmt{Kind: vir.StmtAssign, Assign: vir.AssignStmt{
				Lhs: mir.PlaceFor(3), Rhs: vir.PlaceExpr(s), Kind: vir.AssignMove,
			}},
		},
		{
			name: "move of moved-out place",
			setup: func(st *vir.State) {
				st.InsertMoved(mir.PlaceFor(0))
			},
			stmt: vir.Stmt{Kind: vir.StmtAssign, Assign: vir.AssignStmt{
				Lhs: mir.PlaceFor(1), Rhs: vir.PlaceExpr(mir.PlaceFor(0)), Kind: vir.AssignMove,
			}},
		},
		{
			name:  "end frame without begin",
			setup: func(*vir.State) {},
			stmt:  vir.Stmt{Kind: vir.StmtEndFrame},
		},
		{
			name: "premature borrow expiry",
			setup: func(st *vir.State) {
				// An access permission still lives under the borrowed-from place.
				st.InsertPerm(vir.AccPerm(fieldX(mir.PlaceFor(0).Child(mir.DerefProj())), vir.Full))
			},
			stmt: vir.Stmt{Kind: vir.StmtExpireBorrow, ExpireBorrow: vir.ExpireBorrowStmt{
				Lhs: mir.PlaceFor(1), Rhs: mir.PlaceFor(0),
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := vir.NewState()
			tc.setup(state)
			eng := vir.NewEngine(ti, f, preds, state)
			err := eng.Apply(&tc.stmt)
			var malformed *vir.MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("want MalformedError, got %v", err)
			}
		})
	}
}

func TestNoOpStatements(t *testing.T) {
	ti, f, preds := newEngineFixture(t)
	state := vir.NewState()
	state.InsertPerm(vir.AccPerm(fieldX(mir.PlaceFor(2)), vir.Full))
	initial := state.Clone()

	eng := vir.NewEngine(ti, f, preds, state)
	err := eng.ApplyAll([]vir.Stmt{
		{Kind: vir.StmtComment, Comment: "no effect"},
		{Kind: vir.StmtLabel, Label: "l0"},
		{Kind: vir.StmtAssert, Expr: vir.TrueExpr()},
		{Kind: vir.StmtObtain, Expr: vir.AccExpr(fieldX(mir.PlaceFor(2)), vir.Full)},
		{Kind: vir.StmtWeakObtain, Expr: vir.TrueExpr()},
	})
	if err != nil {
		t.Fatalf("no-op statements: %v", err)
	}
	if !state.Equal(initial) {
		t.Fatalf("no-op statements changed the state:\n got %s\nwant %s", state, initial)
	}
}
