package spec_test

import (
	"testing"

	"verge/internal/spec"
)

func TestParseType(t *testing.T) {
	cases := []struct {
		keyword string
		want    spec.Type
	}{
		{"requires", spec.TypePrecondition},
		{"ensures", spec.TypePostcondition},
		{"invariant", spec.TypeInvariant},
	}
	for _, tc := range cases {
		got, err := spec.ParseType(tc.keyword)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", tc.keyword, err)
		}
		if got != tc.want {
			t.Fatalf("ParseType(%q) = %v, want %v", tc.keyword, got, tc.want)
		}
		if got.String() != tc.keyword {
			t.Fatalf("String() = %q, want %q", got.String(), tc.keyword)
		}
	}

	if _, err := spec.ParseType("assures"); err == nil {
		t.Fatal("ParseType accepted an unknown keyword")
	}
}

func TestIDGenFresh(t *testing.T) {
	g := spec.NewIDGen()
	a := g.Fresh()
	b := g.Fresh()
	if a != 100 {
		t.Fatalf("first ID = %d, want 100", a)
	}
	if b <= a {
		t.Fatalf("IDs not increasing: %d then %d", a, b)
	}
}

func TestSetAdd(t *testing.T) {
	g := spec.NewIDGen()
	var s spec.Set
	attrs := []spec.Raw{
		{ID: g.Fresh(), Type: spec.TypePrecondition, Proc: "push", Expr: "acc(self.len)"},
		{ID: g.Fresh(), Type: spec.TypePostcondition, Proc: "push", Expr: "acc(self.len)"},
		{ID: g.Fresh(), Type: spec.TypePrecondition, Proc: "push", Expr: "acc(self.buf)"},
	}
	for _, a := range attrs {
		if err := s.Add(a); err != nil {
			t.Fatalf("Add(%v): %v", a, err)
		}
	}
	if len(s.Pres) != 2 || len(s.Posts) != 1 || len(s.Invariants) != 0 {
		t.Fatalf("set shape = %d/%d/%d, want 2/1/0", len(s.Pres), len(s.Posts), len(s.Invariants))
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if s.Pres[0].ID != 100 || s.Pres[1].ID != 102 {
		t.Fatalf("attachment order lost: %d, %d", s.Pres[0].ID, s.Pres[1].ID)
	}

	if err := s.Add(spec.Raw{Type: spec.TypeInvalid}); err == nil {
		t.Fatal("Add accepted an invalid attribute type")
	}
}
