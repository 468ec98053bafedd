package vir

import "fmt"

// MalformedError reports a transfer-function precondition failure. It always
// signals a bug in the component that produced the statement sequence, never
// a property of the program under verification.
type MalformedError struct {
	Stmt   string
	Detail string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("vir: malformed statement sequence at %q: %s", e.Stmt, e.Detail)
}

func malformedf(st *Stmt, format string, args ...any) error {
	return &MalformedError{Stmt: st.String(), Detail: fmt.Sprintf(format, args...)}
}
