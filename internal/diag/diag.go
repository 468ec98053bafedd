// Package diag carries structured diagnostics from analysis runs to their
// consumers (driver, CLI). A diagnostic names the procedure it concerns, not
// a source span: this library analyzes already-encoded procedures.
package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Diagnostic describes one reportable condition of one procedure analysis.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Proc     string
	Point    string
	Message  string
}
