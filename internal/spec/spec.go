// Package spec carries raw, not-yet-encoded specification attributes
// attached to procedures. The permission engine consumes their encoded form
// (vir expressions); this package only identifies and orders them.
package spec

import (
	"fmt"
	"sync/atomic"
)

// Type classifies a specification attribute.
type Type uint8

const (
	TypeInvalid Type = iota
	// TypePrecondition holds before the procedure body runs.
	TypePrecondition
	// TypePostcondition holds after the procedure body returns.
	TypePostcondition
	// TypeInvariant holds at every iteration of the loop it annotates.
	TypeInvariant
)

// ParseType maps an attribute keyword to its Type.
func ParseType(keyword string) (Type, error) {
	switch keyword {
	case "requires":
		return TypePrecondition, nil
	case "ensures":
		return TypePostcondition, nil
	case "invariant":
		return TypeInvariant, nil
	}
	return TypeInvalid, fmt.Errorf("spec: unknown attribute keyword %q", keyword)
}

func (t Type) String() string {
	switch t {
	case TypePrecondition:
		return "requires"
	case TypePostcondition:
		return "ensures"
	case TypeInvariant:
		return "invariant"
	}
	return "invalid"
}

// ID uniquely identifies one specification attribute within a run.
type ID uint64

// NoID marks the absence of a specification attribute.
const NoID ID = 0

// firstID leaves room below for reserved IDs.
const firstID = 100

// IDGen hands out fresh specification IDs. Safe for concurrent use.
type IDGen struct {
	next atomic.Uint64
}

func NewIDGen() *IDGen {
	g := &IDGen{}
	g.next.Store(firstID)
	return g
}

// Fresh returns a new unique ID.
func (g *IDGen) Fresh() ID {
	return ID(g.next.Add(1) - 1)
}

// Raw is one specification attribute as attached to a procedure, before
// encoding. Expr is the attribute's source text; encoding it is the
// front end's job.
type Raw struct {
	ID   ID
	Type Type
	Proc string
	Expr string
}

func (r Raw) String() string {
	return fmt.Sprintf("#%d %s(%s)", r.ID, r.Type, r.Expr)
}

// Set groups the raw attributes of one procedure by type, in attachment
// order.
type Set struct {
	Pres       []Raw
	Posts      []Raw
	Invariants []Raw
}

// Add appends a raw attribute to the slice its type selects.
func (s *Set) Add(r Raw) error {
	switch r.Type {
	case TypePrecondition:
		s.Pres = append(s.Pres, r)
	case TypePostcondition:
		s.Posts = append(s.Posts, r)
	case TypeInvariant:
		s.Invariants = append(s.Invariants, r)
	default:
		return fmt.Errorf("spec: cannot add attribute of type %d", r.Type)
	}
	return nil
}

// Len returns the total number of attributes in the set.
func (s *Set) Len() int {
	return len(s.Pres) + len(s.Posts) + len(s.Invariants)
}
