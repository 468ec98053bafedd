package diagfmt

import (
	"encoding/json"
	"io"

	"verge/internal/accessible"
	"verge/internal/diag"
	"verge/internal/mir"
)

// PointJSON is one program point's accessibility state.
type PointJSON struct {
	Point      string   `json:"point"`
	Accessible []string `json:"accessible"`
	Owned      []string `json:"owned"`
}

// ProcJSON is the machine-readable result of one procedure.
type ProcJSON struct {
	Procedure   string           `json:"procedure"`
	Cached      bool             `json:"cached,omitempty"`
	Points      []PointJSON      `json:"points,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics,omitempty"`
}

type DiagnosticJSON struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Point    string `json:"point,omitempty"`
	Message  string `json:"message"`
}

// ProcPayload collects one procedure's output for JSON rendering.
func ProcPayload(proc string, cached bool, access accessible.Pointwise[*accessible.State], hasAccess bool, bag *diag.Bag) ProcJSON {
	out := ProcJSON{Procedure: proc, Cached: cached}
	if hasAccess {
		for _, loc := range access.Locations() {
			st, ok := access.Before(loc)
			if !ok {
				continue
			}
			out.Points = append(out.Points, PointJSON{
				Point:      loc.String(),
				Accessible: placeStrings(st.Accessible),
				Owned:      placeStrings(st.Owned),
			})
		}
		for _, e := range access.Edges() {
			st, ok := access.Edge(e.From, e.To)
			if !ok {
				continue
			}
			out.Points = append(out.Points, PointJSON{
				Point:      e.String(),
				Accessible: placeStrings(st.Accessible),
				Owned:      placeStrings(st.Owned),
			})
		}
	}
	if bag != nil {
		bag.Sort()
		for _, d := range bag.Items() {
			out.Diagnostics = append(out.Diagnostics, DiagnosticJSON{
				Severity: d.Severity.String(),
				Code:     d.Code.String(),
				Point:    d.Point,
				Message:  d.Message,
			})
		}
	}
	return out
}

// WriteJSON renders procedure payloads as an indented JSON array.
func WriteJSON(w io.Writer, procs []ProcJSON) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(procs)
}

func placeStrings(set mir.PlaceSet) []string {
	places := set.Places()
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.String()
	}
	return out
}
