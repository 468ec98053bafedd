package diagfmt_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"verge/internal/accessible"
	"verge/internal/diag"
	"verge/internal/diagfmt"
	"verge/internal/mir"
)

func sampleAccess() accessible.Pointwise[*accessible.State] {
	a := mir.PlaceFor(0)
	af := a.Child(mir.FieldProj("f", 0))
	access := accessible.NewPointwise[*accessible.State]()
	access.SetBefore(mir.Location{Block: 0, Statement: 0}, &accessible.State{
		Accessible: mir.NewPlaceSet(a),
		Owned:      mir.NewPlaceSet(a),
	})
	access.SetBefore(mir.Location{Block: 0, Statement: 1}, &accessible.State{
		Accessible: mir.NewPlaceSet(af),
		Owned:      mir.NewPlaceSet(),
	})
	access.SetEdge(0, 1, &accessible.State{
		Accessible: mir.NewPlaceSet(a),
		Owned:      mir.NewPlaceSet(a),
	})
	return access
}

func TestWriteAccessibility(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	if err := diagfmt.WriteAccessibility(&buf, "push", sampleAccess(), diagfmt.PrettyOpts{}); err != nil {
		t.Fatalf("WriteAccessibility: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"procedure push", "bb0[0]", "bb0[1]", "bb0 -> bb1", "L0.f"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	// Empty owned sets render as a placeholder, not as nothing.
	if !strings.Contains(out, "-") {
		t.Fatalf("empty set placeholder missing:\n%s", out)
	}
}

func TestWriteDiagnostics(t *testing.T) {
	color.NoColor = true
	bag := diag.NewBag(8)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.AccMissingFact,
		Proc:     "push",
		Point:    "bb0[1]",
		Message:  "no \"init\" fact",
	})
	var buf bytes.Buffer
	if err := diagfmt.WriteDiagnostics(&buf, bag, diagfmt.PrettyOpts{}); err != nil {
		t.Fatalf("WriteDiagnostics: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ERROR V2001 [push at bb0[1]]") {
		t.Fatalf("unexpected rendering:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	payload := diagfmt.ProcPayload("push", true, sampleAccess(), true, nil)
	var buf bytes.Buffer
	if err := diagfmt.WriteJSON(&buf, []diagfmt.ProcJSON{payload}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded []diagfmt.ProcJSON
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Procedure != "push" || !decoded[0].Cached {
		t.Fatalf("decoded = %+v", decoded)
	}
	if len(decoded[0].Points) != 3 {
		t.Fatalf("got %d points, want 3", len(decoded[0].Points))
	}
}
