package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Input handling
	InpMalformedDump  Code = 1001
	InpUnknownType    Code = 1002
	InpInvalidCFG     Code = 1003
	InpInvalidPlace   Code = 1004
	InpSchemaMismatch Code = 1005

	// Accessibility analysis
	AccMissingFact        Code = 2001
	AccInvariantViolation Code = 2002

	// Permission transfer engine
	PermMalformedSequence Code = 3001
)

func (c Code) String() string {
	return fmt.Sprintf("V%04d", uint16(c))
}
