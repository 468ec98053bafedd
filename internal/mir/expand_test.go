package mir_test

import (
	"testing"

	"verge/internal/mir"
	"verge/internal/types"
)

// newRectFunc builds a procedure with locals
//
//	L0: Rect { min: Point, max: Point }   Point { x: int, y: int }
//	L1: &mut Point
//	L2: Option { None, Some(Point) }
func newRectFunc(t *testing.T) (*types.Interner, *mir.Func) {
	t.Helper()
	ti := types.NewInterner()
	intT := ti.Builtins().Int

	point := ti.RegisterStruct("Point")
	ti.SetStructFields(point, []types.StructField{
		{Name: "x", Type: intT},
		{Name: "y", Type: intT},
	})
	rect := ti.RegisterStruct("Rect")
	ti.SetStructFields(rect, []types.StructField{
		{Name: "min", Type: point},
		{Name: "max", Type: point},
	})
	option := ti.RegisterEnum("Option")
	ti.SetEnumVariants(option, []types.EnumVariant{
		{Name: "None"},
		{Name: "Some", Payload: point},
	})

	f := &mir.Func{
		Name: "fixture",
		Locals: []mir.Local{
			{Name: "r", Type: rect},
			{Name: "p", Type: ti.Intern(types.MakeReference(point, true))},
			{Name: "o", Type: option},
		},
		Blocks: []mir.Block{
			{ID: 0, Term: mir.Terminator{Kind: mir.TermReturn}},
		},
	}
	return ti, f
}

func TestTypeOfWalksProjections(t *testing.T) {
	ti, f := newRectFunc(t)

	r := mir.PlaceFor(0)
	rMinX := r.Child(mir.FieldProj("min", 0)).Child(mir.FieldProj("x", 0))
	typ, err := mir.TypeOf(ti, f, rMinX)
	if err != nil {
		t.Fatalf("TypeOf(%s): %v", rMinX, err)
	}
	if typ != ti.Builtins().Int {
		t.Fatalf("TypeOf(%s) = %d, want int", rMinX, typ)
	}

	pDerefY := mir.PlaceFor(1).Child(mir.DerefProj()).Child(mir.FieldProj("y", 1))
	if _, err := mir.TypeOf(ti, f, pDerefY); err != nil {
		t.Fatalf("TypeOf(%s): %v", pDerefY, err)
	}

	someX := mir.PlaceFor(2).Child(mir.VariantProj("Some")).Child(mir.FieldProj("x", 0))
	if _, err := mir.TypeOf(ti, f, someX); err != nil {
		t.Fatalf("TypeOf(%s): %v", someX, err)
	}

	bad := r.Child(mir.DerefProj())
	if _, err := mir.TypeOf(ti, f, bad); err == nil {
		t.Fatalf("TypeOf(%s) must fail: deref of a struct", bad)
	}
}

func TestExpandCollectsSiblings(t *testing.T) {
	ti, f := newRectFunc(t)

	r := mir.PlaceFor(0)
	rMin := r.Child(mir.FieldProj("min", 0))
	rMax := r.Child(mir.FieldProj("max", 1))
	rMinX := rMin.Child(mir.FieldProj("x", 0))
	rMinY := rMin.Child(mir.FieldProj("y", 1))

	got, err := mir.Expand(ti, f, r, rMinX)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := mir.NewPlaceSet(rMax, rMinY)
	if !mir.NewPlaceSet(got...).Equal(want) {
		t.Fatalf("Expand(%s, %s) = %v, want %s", r, rMinX, got, want)
	}
}

func TestExpandDegenerateEqual(t *testing.T) {
	ti, f := newRectFunc(t)
	r := mir.PlaceFor(0)
	got, err := mir.Expand(ti, f, r, r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Expand(r, r) = %v, want empty", got)
	}
}

func TestExpandThroughDerefAndVariant(t *testing.T) {
	ti, f := newRectFunc(t)

	// Deref levels have no siblings; only the struct level below contributes.
	p := mir.PlaceFor(1)
	target := p.Child(mir.DerefProj()).Child(mir.FieldProj("x", 0))
	got, err := mir.Expand(ti, f, p, target)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := mir.NewPlaceSet(p.Child(mir.DerefProj()).Child(mir.FieldProj("y", 1)))
	if !mir.NewPlaceSet(got...).Equal(want) {
		t.Fatalf("Expand = %v, want %s", got, want)
	}

	// A variant downcast is exclusive: no sibling variants appear.
	o := mir.PlaceFor(2)
	someY := o.Child(mir.VariantProj("Some")).Child(mir.FieldProj("y", 1))
	got, err = mir.Expand(ti, f, o, someY)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want = mir.NewPlaceSet(o.Child(mir.VariantProj("Some")).Child(mir.FieldProj("x", 0)))
	if !mir.NewPlaceSet(got...).Equal(want) {
		t.Fatalf("Expand = %v, want %s", got, want)
	}
}

func TestExpandRejectsUnrelated(t *testing.T) {
	ti, f := newRectFunc(t)
	if _, err := mir.Expand(ti, f, mir.PlaceFor(0), mir.PlaceFor(1)); err == nil {
		t.Fatalf("Expand across bases must fail")
	}
}
