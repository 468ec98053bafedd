package mir

import (
	"fmt"

	"verge/internal/types"
)

// Local declares one variable slot of a procedure body.
type Local struct {
	Name string
	Type types.TypeID
}

// InstrKind enumerates instruction kinds in the procedure CFG. The
// accessibility analysis treats instructions as opaque program points; the
// payloads exist for validation and printing.
type InstrKind uint8

const (
	// InstrAssign represents an assignment instruction.
	InstrAssign InstrKind = iota
	// InstrCall represents a call instruction.
	InstrCall
	// InstrDrop represents a drop instruction.
	InstrDrop
	// InstrNop represents a no-op instruction.
	InstrNop
)

// Instr represents a CFG instruction.
type Instr struct {
	Kind InstrKind

	Assign AssignInstr
	Call   CallInstr
	Drop   DropInstr
}

// AssignInstr represents an assignment instruction.
type AssignInstr struct {
	Dst Place
	Src Place
}

// CallInstr represents a function call instruction.
type CallInstr struct {
	HasDst bool
	Dst    Place
	Callee string
	Args   []Place
}

// DropInstr represents a drop instruction.
type DropInstr struct {
	Place Place
}

// TermKind enumerates terminator kinds.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermGoto
	TermIf
	TermSwitchVariant
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Goto          GotoTerm
	If            IfTerm
	SwitchVariant SwitchVariantTerm
}

type GotoTerm struct {
	Target BlockID
}

type IfTerm struct {
	Cond Place
	Then BlockID
	Else BlockID
}

type SwitchVariantCase struct {
	Variant string
	Target  BlockID
}

type SwitchVariantTerm struct {
	Value   Place
	Cases   []SwitchVariantCase
	Default BlockID
}

// Successors returns the explicit successor list of the terminator, in
// declaration order and without duplicates.
func (t Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermIf:
		if t.If.Then == t.If.Else {
			return []BlockID{t.If.Then}
		}
		return []BlockID{t.If.Then, t.If.Else}
	case TermSwitchVariant:
		seen := make(map[BlockID]bool, len(t.SwitchVariant.Cases)+1)
		out := make([]BlockID, 0, len(t.SwitchVariant.Cases)+1)
		for _, c := range t.SwitchVariant.Cases {
			if !seen[c.Target] {
				seen[c.Target] = true
				out = append(out, c.Target)
			}
		}
		if t.SwitchVariant.Default != NoBlockID && !seen[t.SwitchVariant.Default] {
			out = append(out, t.SwitchVariant.Default)
		}
		return out
	default:
		return nil
	}
}

type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

type Func struct {
	ID   FuncID
	Name string

	Locals []Local
	Blocks []Block
	Entry  BlockID
}

// LocalType returns the declared type of a local, or NoTypeID if out of range.
func (f *Func) LocalType(id LocalID) types.TypeID {
	if f == nil || id < 0 || int(id) >= len(f.Locals) {
		return types.NoTypeID
	}
	return f.Locals[id].Type
}

// Location designates the program point immediately before the instruction at
// the given index inside a block. The index one past the last instruction
// designates the point just before the terminator.
type Location struct {
	Block     BlockID
	Statement int
}

func (l Location) String() string {
	return fmt.Sprintf("bb%d[%d]", l.Block, l.Statement)
}
