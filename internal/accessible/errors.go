package accessible

import "fmt"

// MissingFactError reports that an external analysis has no result for a
// required program point. It is fatal for the current procedure only.
type MissingFactError struct {
	Proc     string
	Analysis string
	Point    string
}

func (e *MissingFactError) Error() string {
	return fmt.Sprintf("accessible: %s: no %q fact at %s", e.Proc, e.Analysis, e.Point)
}

// InvariantError reports that a computed accessibility state violates the
// structural invariants. It signals a bug in this engine or its fact
// producers, never a property of the analyzed program.
type InvariantError struct {
	Proc   string
	Point  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("accessible: %s: invariant violated at %s: %s", e.Proc, e.Point, e.Detail)
}
