// Package diagfmt renders analysis results and diagnostics for human and
// machine consumers.
package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"verge/internal/accessible"
	"verge/internal/diag"
	"verge/internal/mir"
)

// PrettyOpts configures pretty-printing.
type PrettyOpts struct {
	// Width caps each place-list column. 0 means unlimited.
	Width int
}

var (
	headerColor  = color.New(color.Bold)
	pointColor   = color.New(color.FgCyan)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// WriteAccessibility renders the per-point accessibility table of one
// procedure. Points come out in deterministic order: statement points first,
// then terminator edges.
func WriteAccessibility(w io.Writer, proc string, access accessible.Pointwise[*accessible.State], opts PrettyOpts) error {
	type row struct {
		point      string
		accessible string
		owned      string
	}
	rows := make([]row, 0, 16)
	for _, loc := range access.Locations() {
		st, ok := access.Before(loc)
		if !ok {
			continue
		}
		rows = append(rows, row{
			point:      loc.String(),
			accessible: placeList(st.Accessible, opts.Width),
			owned:      placeList(st.Owned, opts.Width),
		})
	}
	for _, e := range access.Edges() {
		st, ok := access.Edge(e.From, e.To)
		if !ok {
			continue
		}
		rows = append(rows, row{
			point:      e.String(),
			accessible: placeList(st.Accessible, opts.Width),
			owned:      placeList(st.Owned, opts.Width),
		})
	}

	if _, err := fmt.Fprintf(w, "%s %s\n", headerColor.Sprint("procedure"), proc); err != nil {
		return err
	}
	pointW, accW := runewidth.StringWidth("point"), runewidth.StringWidth("accessible")
	for _, r := range rows {
		pointW = max(pointW, runewidth.StringWidth(r.point))
		accW = max(accW, runewidth.StringWidth(r.accessible))
	}
	if _, err := fmt.Fprintf(w, "  %s  %s  %s\n",
		headerColor.Sprint(pad("point", pointW)),
		headerColor.Sprint(pad("accessible", accW)),
		headerColor.Sprint("owned")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "  %s  %s  %s\n",
			pointColor.Sprint(pad(r.point, pointW)),
			pad(r.accessible, accW),
			r.owned); err != nil {
			return err
		}
	}
	return nil
}

// WriteDiagnostics renders a sorted bag, one diagnostic per line.
func WriteDiagnostics(w io.Writer, bag *diag.Bag, opts PrettyOpts) error {
	bag.Sort()
	for _, d := range bag.Items() {
		sev := d.Severity.String()
		switch d.Severity {
		case diag.SevError:
			sev = errorColor.Sprint(sev)
		case diag.SevWarning:
			sev = warningColor.Sprint(sev)
		default:
			sev = infoColor.Sprint(sev)
		}
		loc := d.Proc
		if d.Point != "" {
			loc += " at " + d.Point
		}
		if _, err := fmt.Fprintf(w, "%s %s [%s]: %s\n", sev, d.Code, loc, d.Message); err != nil {
			return err
		}
	}
	return nil
}

// placeList renders a set as a comma-separated list, truncated to width.
func placeList(set mir.PlaceSet, width int) string {
	places := set.Places()
	if len(places) == 0 {
		return "-"
	}
	parts := make([]string, len(places))
	for i, p := range places {
		parts[i] = p.String()
	}
	s := strings.Join(parts, ", ")
	if width > 0 && runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-runewidth.StringWidth(s)))
}
