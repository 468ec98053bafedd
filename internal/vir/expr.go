package vir

import (
	"fmt"
	"strings"

	"verge/internal/mir"
)

// ExprKind enumerates the assertion forms the engine needs to interpret.
// Pure boolean structure beyond conjunction is irrelevant to permission
// bookkeeping and folded into ExprTrue leaves.
type ExprKind uint8

const (
	// ExprTrue is a pure assertion carrying no permission.
	ExprTrue ExprKind = iota
	// ExprPlace is a place-valued expression (assignment right-hand side).
	ExprPlace
	// ExprLit is a literal-valued expression.
	ExprLit
	// ExprAcc asserts an access permission on a place.
	ExprAcc
	// ExprPredAccess asserts a folded predicate instance on a place.
	ExprPredAccess
	// ExprAnd is a separating conjunction.
	ExprAnd
	// ExprUnfolding evaluates its body under a temporarily unfolded
	// predicate instance.
	ExprUnfolding
)

// Expr is an assertion or value expression of the verification language.
type Expr struct {
	Kind ExprKind

	Place    mir.Place
	Frac     Frac
	Pred     string
	Lit      string
	Operands []Expr
	Body     *Expr
}

// TrueExpr returns a pure leaf.
func TrueExpr() Expr {
	return Expr{Kind: ExprTrue}
}

// PlaceExpr wraps a place as a value expression.
func PlaceExpr(place mir.Place) Expr {
	return Expr{Kind: ExprPlace, Place: place}
}

// LitExpr wraps a literal as a value expression.
func LitExpr(lit string) Expr {
	return Expr{Kind: ExprLit, Lit: lit}
}

// AccExpr asserts acc(place, frac).
func AccExpr(place mir.Place, frac Frac) Expr {
	return Expr{Kind: ExprAcc, Place: place, Frac: frac}
}

// PredAccessExpr asserts pred(place, frac).
func PredAccessExpr(pred string, place mir.Place, frac Frac) Expr {
	return Expr{Kind: ExprPredAccess, Pred: pred, Place: place, Frac: frac}
}

// AndExpr conjoins the operands.
func AndExpr(operands ...Expr) Expr {
	return Expr{Kind: ExprAnd, Operands: operands}
}

// UnfoldingExpr evaluates body with pred(place, frac) unfolded.
func UnfoldingExpr(pred string, place mir.Place, frac Frac, body Expr) Expr {
	return Expr{Kind: ExprUnfolding, Pred: pred, Place: place, Frac: frac, Body: &body}
}

// AsPlace returns the place of a place-valued expression.
func (e Expr) AsPlace() (mir.Place, bool) {
	if e.Kind != ExprPlace {
		return mir.Place{Local: mir.NoLocalID}, false
	}
	return e.Place, true
}

// Permissions computes the permission multiset the expression logically
// grants, by structural recursion. Unfolding contexts contribute their body's
// permissions; the folded instance itself is the enclosing statement's
// business.
func (e Expr) Permissions(preds PredicateTable) []Perm {
	switch e.Kind {
	case ExprAcc:
		return []Perm{AccPerm(e.Place, e.Frac)}
	case ExprPredAccess:
		return []Perm{PredPerm(e.Pred, e.Place, e.Frac)}
	case ExprAnd:
		var out []Perm
		for _, op := range e.Operands {
			out = append(out, op.Permissions(preds)...)
		}
		return out
	case ExprUnfolding:
		if e.Body == nil {
			return nil
		}
		return e.Body.Permissions(preds)
	default:
		return nil
	}
}

func (e Expr) String() string {
	switch e.Kind {
	case ExprTrue:
		return "true"
	case ExprPlace:
		return e.Place.String()
	case ExprLit:
		return e.Lit
	case ExprAcc:
		return fmt.Sprintf("acc(%s, %s)", e.Place, e.Frac)
	case ExprPredAccess:
		return fmt.Sprintf("%s(%s, %s)", e.Pred, e.Place, e.Frac)
	case ExprAnd:
		parts := make([]string, len(e.Operands))
		for i, op := range e.Operands {
			parts[i] = op.String()
		}
		return "(" + strings.Join(parts, " && ") + ")"
	case ExprUnfolding:
		return fmt.Sprintf("(unfolding %s(%s, %s) in %s)", e.Pred, e.Place, e.Frac, e.Body)
	default:
		return "<expr?>"
	}
}
