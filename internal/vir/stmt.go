package vir

import (
	"fmt"
	"strings"

	"verge/internal/mir"
)

// StmtKind enumerates the statement kinds of the verification language.
type StmtKind uint8

const (
	StmtComment StmtKind = iota
	StmtLabel
	StmtAssert
	StmtObtain
	StmtWeakObtain
	StmtInhale
	StmtExhale
	StmtMethodCall
	StmtAssign
	StmtFold
	StmtUnfold
	StmtHavoc
	StmtBeginFrame
	StmtEndFrame
	StmtExpireBorrow
)

// AssignKind distinguishes how an assignment treats the right-hand side.
type AssignKind uint8

const (
	// AssignCopy duplicates the value; rhs permissions are untouched.
	AssignCopy AssignKind = iota
	// AssignMove relocates rhs permissions onto lhs and marks rhs moved.
	AssignMove
	// AssignMutableBorrow relocates rhs permissions onto lhs for the
	// duration of the borrow.
	AssignMutableBorrow
)

func (k AssignKind) String() string {
	switch k {
	case AssignCopy:
		return "copy"
	case AssignMove:
		return "move"
	case AssignMutableBorrow:
		return "mut borrow"
	default:
		return fmt.Sprintf("AssignKind(%d)", k)
	}
}

// MethodCallStmt invokes an opaque method. In this profile the callee's
// contract must be empty; the fields exist so the restriction is checkable.
type MethodCallStmt struct {
	Name    string
	Targets []mir.LocalID
	Pres    []Expr
	Posts   []Expr
}

// AssignStmt stores lhs := rhs with the given kind.
type AssignStmt struct {
	Lhs  mir.Place
	Rhs  Expr
	Kind AssignKind
}

// FoldStmt folds pred(place, frac).
type FoldStmt struct {
	Pred  string
	Place mir.Place
	Frac  Frac
}

// UnfoldStmt unfolds pred(place, frac).
type UnfoldStmt struct {
	Pred  string
	Place mir.Place
	Frac  Frac
}

// ExpireBorrowStmt expires the borrow lhs of rhs, restoring permissions.
type ExpireBorrowStmt struct {
	Lhs mir.Place
	Rhs mir.Place
}

// Stmt is one statement of the verification language.
type Stmt struct {
	Kind StmtKind

	Comment string
	Label   string
	Expr    Expr // Assert, Obtain, WeakObtain, Inhale, Exhale

	MethodCall   MethodCallStmt
	Assign       AssignStmt
	Fold         FoldStmt
	Unfold       UnfoldStmt
	ExpireBorrow ExpireBorrowStmt
}

func (s *Stmt) String() string {
	switch s.Kind {
	case StmtComment:
		return "// " + s.Comment
	case StmtLabel:
		return "label " + s.Label
	case StmtAssert:
		return "assert " + s.Expr.String()
	case StmtObtain:
		return "obtain " + s.Expr.String()
	case StmtWeakObtain:
		return "weak obtain " + s.Expr.String()
	case StmtInhale:
		return "inhale " + s.Expr.String()
	case StmtExhale:
		return "exhale " + s.Expr.String()
	case StmtMethodCall:
		targets := make([]string, len(s.MethodCall.Targets))
		for i, t := range s.MethodCall.Targets {
			targets[i] = fmt.Sprintf("L%d", t)
		}
		return fmt.Sprintf("call %s -> (%s)", s.MethodCall.Name, strings.Join(targets, ", "))
	case StmtAssign:
		return fmt.Sprintf("%s := %s (%s)", s.Assign.Lhs, s.Assign.Rhs, s.Assign.Kind)
	case StmtFold:
		return fmt.Sprintf("fold %s(%s, %s)", s.Fold.Pred, s.Fold.Place, s.Fold.Frac)
	case StmtUnfold:
		return fmt.Sprintf("unfold %s(%s, %s)", s.Unfold.Pred, s.Unfold.Place, s.Unfold.Frac)
	case StmtHavoc:
		return "havoc"
	case StmtBeginFrame:
		return "begin frame"
	case StmtEndFrame:
		return "end frame"
	case StmtExpireBorrow:
		return fmt.Sprintf("expire borrow %s -> %s", s.ExpireBorrow.Lhs, s.ExpireBorrow.Rhs)
	default:
		return fmt.Sprintf("<stmt %d>", s.Kind)
	}
}
