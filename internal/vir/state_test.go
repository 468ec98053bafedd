package vir_test

import (
	"testing"

	"verge/internal/mir"
	"verge/internal/vir"
)

func TestStateInsertRemoveAcc(t *testing.T) {
	st := vir.NewState()
	x := mir.PlaceFor(0)
	xf := x.Child(mir.FieldProj("f", 0))
	half := vir.MustFrac(1, 2)

	st.InsertPerm(vir.AccPerm(xf, half))
	if !st.ContainsAcc(xf) {
		t.Fatalf("inserted access missing")
	}
	if st.ContainsPerm(vir.AccPerm(xf, vir.Full)) {
		t.Fatalf("half an access reported as covering a full one")
	}
	st.InsertPerm(vir.AccPerm(xf, half))
	if frac, _ := st.AccFrac(xf); !frac.IsFull() {
		t.Fatalf("amounts did not sum: %s", frac)
	}
	if !st.ContainsPerm(vir.AccPerm(xf, vir.Full)) {
		t.Fatalf("summed access does not cover a full permission")
	}

	if err := st.RemovePerm(vir.AccPerm(xf, half)); err != nil {
		t.Fatalf("RemovePerm: %v", err)
	}
	if frac, _ := st.AccFrac(xf); !frac.Equal(half) {
		t.Fatalf("partial removal left %s, want 1/2", frac)
	}
	if err := st.RemovePerm(vir.AccPerm(xf, vir.Full)); err == nil {
		t.Fatalf("removing more than held must fail")
	}
	if err := st.RemovePerm(vir.AccPerm(xf, half)); err != nil {
		t.Fatalf("RemovePerm: %v", err)
	}
	if st.ContainsAcc(xf) {
		t.Fatalf("fully removed access still present")
	}
	if err := st.RemovePerm(vir.AccPerm(x, half)); err == nil {
		t.Fatalf("removing from an empty place must fail")
	}
}

func TestStateMovedQueries(t *testing.T) {
	st := vir.NewState()
	x := mir.PlaceFor(0)
	xf := x.Child(mir.FieldProj("f", 0))

	st.InsertMoved(xf)
	if !st.IsPrefixOfSomeMoved(x) {
		t.Fatalf("ancestor of a moved place not detected")
	}
	if !st.IsPrefixOfSomeMoved(xf) {
		t.Fatalf("the moved place itself not detected")
	}
	if st.IsPrefixOfSomeMoved(x.Child(mir.FieldProj("g", 1))) {
		t.Fatalf("sibling wrongly related to moved place")
	}

	st.RemoveMovedMatching(func(p mir.Place) bool { return x.IsPrefixOf(p) })
	if st.IsPrefixOfSomeMoved(x) {
		t.Fatalf("moved marker not cleared")
	}
}

func TestStateConsistency(t *testing.T) {
	x := mir.PlaceFor(0)
	xf := x.Child(mir.FieldProj("f", 0))

	st := vir.NewState()
	st.InsertPerm(vir.PredPerm("P", x, vir.Full))
	st.InsertPerm(vir.AccPerm(xf, vir.Full))
	if err := st.CheckConsistency(); err == nil {
		t.Fatalf("access inside a folded region must be inconsistent")
	}

	st = vir.NewState()
	st.InsertMoved(x)
	st.InsertPerm(vir.AccPerm(x, vir.Full))
	if err := st.CheckConsistency(); err == nil {
		t.Fatalf("permission on a moved place must be inconsistent")
	}

	st = vir.NewState()
	st.InsertPerm(vir.PredPerm("P", x, vir.Full))
	st.InsertPerm(vir.AccPerm(mir.PlaceFor(1), vir.Full))
	if err := st.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
}

func TestStatePredNameSticksOnSum(t *testing.T) {
	st := vir.NewState()
	p := mir.PlaceFor(0)
	half := vir.MustFrac(1, 2)

	st.InsertPerm(vir.PredPerm("P", p, half))
	st.InsertPerm(vir.PredPerm("Q", p, half))
	name, frac, held := st.PredAt(p)
	if !held || name != "P" {
		t.Fatalf("PredAt = %q (held=%v), want the first-inserted name", name, held)
	}
	if !frac.IsFull() {
		t.Fatalf("amounts did not sum: %s", frac)
	}
	if !st.ContainsPerm(vir.PredPerm("P", p, vir.Full)) {
		t.Fatalf("summed predicate does not cover a full permission")
	}
}

func TestStateFrames(t *testing.T) {
	st := vir.NewState()
	x := mir.PlaceFor(0)
	st.InsertPerm(vir.AccPerm(x.Child(mir.FieldProj("f", 0)), vir.Full))
	saved := st.Clone()

	if st.FrameDepth() != 0 {
		t.Fatalf("fresh state has frame depth %d", st.FrameDepth())
	}
	st.BeginFrame()
	if st.FrameDepth() != 1 {
		t.Fatalf("after BeginFrame depth = %d, want 1", st.FrameDepth())
	}
	st.InsertPerm(vir.PredPerm("P", mir.PlaceFor(1), vir.Full))
	st.InsertMoved(mir.PlaceFor(2))
	if err := st.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if st.FrameDepth() != 0 {
		t.Fatalf("after EndFrame depth = %d, want 0", st.FrameDepth())
	}
	if !st.Equal(saved) {
		t.Fatalf("EndFrame did not restore the snapshot:\n got %s\nwant %s", st, saved)
	}

	if err := st.EndFrame(); err == nil {
		t.Fatalf("EndFrame without BeginFrame must fail")
	}
}
