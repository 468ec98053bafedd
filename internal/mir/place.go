package mir

import (
	"fmt"
	"strings"
)

type FuncID int32
type BlockID int32
type LocalID int32

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

// PlaceProjKind enumerates projection steps a place may take from its base.
type PlaceProjKind uint8

const (
	PlaceProjDeref PlaceProjKind = iota
	PlaceProjField
	PlaceProjIndex
	PlaceProjVariant
)

// PlaceProj is a single projection step.
type PlaceProj struct {
	Kind PlaceProjKind

	FieldName string
	FieldIdx  int
	Index     uint32
	Variant   string
}

// Place denotes a rooted access path: a base local plus an ordered projection
// list. Places are value types and treated as immutable once built; Child and
// ReplacePrefix return fresh projection slices.
type Place struct {
	Local LocalID
	Proj  []PlaceProj
}

// PlaceFor returns the base place of a local.
func PlaceFor(local LocalID) Place {
	return Place{Local: local}
}

// FieldProj builds a field selection step.
func FieldProj(name string, idx int) PlaceProj {
	return PlaceProj{Kind: PlaceProjField, FieldName: name, FieldIdx: idx}
}

// DerefProj builds a dereference step.
func DerefProj() PlaceProj {
	return PlaceProj{Kind: PlaceProjDeref}
}

// IndexProj builds a constant array-index step.
func IndexProj(index uint32) PlaceProj {
	return PlaceProj{Kind: PlaceProjIndex, Index: index}
}

// VariantProj builds an enum-variant downcast step.
func VariantProj(name string) PlaceProj {
	return PlaceProj{Kind: PlaceProjVariant, Variant: name}
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

// IsBase reports whether the place names a whole variable.
func (p Place) IsBase() bool {
	return p.IsValid() && len(p.Proj) == 0
}

// Base returns the whole-variable place this place is rooted at.
func (p Place) Base() Place {
	return Place{Local: p.Local}
}

// Child extends the place by one projection without aliasing p's projections.
func (p Place) Child(proj PlaceProj) Place {
	out := make([]PlaceProj, len(p.Proj)+1)
	copy(out, p.Proj)
	out[len(p.Proj)] = proj
	return Place{Local: p.Local, Proj: out}
}

// Parent strips the last projection. The second result is false for base
// places.
func (p Place) Parent() (Place, bool) {
	if len(p.Proj) == 0 {
		return Place{Local: NoLocalID}, false
	}
	return Place{Local: p.Local, Proj: p.Proj[:len(p.Proj)-1]}, true
}

func projEqual(a, b PlaceProj) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case PlaceProjDeref:
		return true
	case PlaceProjField:
		return a.FieldIdx == b.FieldIdx
	case PlaceProjIndex:
		return a.Index == b.Index
	case PlaceProjVariant:
		return a.Variant == b.Variant
	default:
		return false
	}
}

// Equal reports structural equality.
func (p Place) Equal(other Place) bool {
	if p.Local != other.Local || len(p.Proj) != len(other.Proj) {
		return false
	}
	for i := range p.Proj {
		if !projEqual(p.Proj[i], other.Proj[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether other extends p by zero or more projections:
// p then denotes an ancestor storage region containing other.
func (p Place) IsPrefixOf(other Place) bool {
	if p.Local != other.Local || len(p.Proj) > len(other.Proj) {
		return false
	}
	for i := range p.Proj {
		if !projEqual(p.Proj[i], other.Proj[i]) {
			return false
		}
	}
	return true
}

// IsProperPrefixOf is IsPrefixOf with equality excluded.
func (p Place) IsProperPrefixOf(other Place) bool {
	return len(p.Proj) < len(other.Proj) && p.IsPrefixOf(other)
}

// ReplacePrefix rewrites the leading from-portion of the place onto to.
// The place must have from as a prefix.
func (p Place) ReplacePrefix(from, to Place) Place {
	tail := p.Proj[len(from.Proj):]
	out := make([]PlaceProj, len(to.Proj)+len(tail))
	copy(out, to.Proj)
	copy(out[len(to.Proj):], tail)
	return Place{Local: to.Local, Proj: out}
}

// Key returns a canonical encoding usable as a map key. Two places share a
// key iff they are structurally equal.
func (p Place) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "L%d", p.Local)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjDeref:
			sb.WriteByte('*')
		case PlaceProjField:
			fmt.Fprintf(&sb, ".%d", proj.FieldIdx)
		case PlaceProjIndex:
			fmt.Fprintf(&sb, "[%d]", proj.Index)
		case PlaceProjVariant:
			sb.WriteByte('@')
			sb.WriteString(proj.Variant)
		}
	}
	return sb.String()
}

func (p Place) String() string {
	if !p.IsValid() {
		return "L?"
	}
	out := fmt.Sprintf("L%d", p.Local)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjDeref:
			out = fmt.Sprintf("(*%s)", out)
		case PlaceProjField:
			if proj.FieldName != "" {
				out += "." + proj.FieldName
			} else {
				out += fmt.Sprintf(".#%d", proj.FieldIdx)
			}
		case PlaceProjIndex:
			out += fmt.Sprintf("[%d]", proj.Index)
		case PlaceProjVariant:
			out += "@" + proj.Variant
		default:
			out += ".<?>"
		}
	}
	return out
}
