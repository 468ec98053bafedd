package vir

import (
	"fmt"

	"verge/internal/mir"
)

// PermKind distinguishes the two permission flavors.
type PermKind uint8

const (
	// PermAcc is the right to read/write exactly the storage the place
	// denotes, exclusive of nested sub-structure.
	PermAcc PermKind = iota
	// PermPred is abstract folded ownership of the whole structure rooted at
	// the place.
	PermPred
)

// Perm is a permission amount attached to a place. The predicate name is only
// set for PermPred.
type Perm struct {
	Kind  PermKind
	Pred  string
	Place mir.Place
	Frac  Frac
}

// AccPerm builds an access permission.
func AccPerm(place mir.Place, frac Frac) Perm {
	return Perm{Kind: PermAcc, Place: place, Frac: frac}
}

// PredPerm builds a predicate permission.
func PredPerm(pred string, place mir.Place, frac Frac) Perm {
	return Perm{Kind: PermPred, Pred: pred, Place: place, Frac: frac}
}

func (p Perm) IsAcc() bool  { return p.Kind == PermAcc }
func (p Perm) IsPred() bool { return p.Kind == PermPred }

// Scaled returns the permission with its amount multiplied by frac.
func (p Perm) Scaled(frac Frac) Perm {
	p.Frac = p.Frac.Mul(frac)
	return p
}

// Relocated rewrites the from-prefix of the permission's place onto to.
func (p Perm) Relocated(from, to mir.Place) Perm {
	p.Place = p.Place.ReplacePrefix(from, to)
	return p
}

func (p Perm) String() string {
	switch p.Kind {
	case PermAcc:
		return fmt.Sprintf("acc(%s, %s)", p.Place, p.Frac)
	case PermPred:
		return fmt.Sprintf("%s(%s, %s)", p.Pred, p.Place, p.Frac)
	default:
		return fmt.Sprintf("perm?(%s)", p.Place)
	}
}
