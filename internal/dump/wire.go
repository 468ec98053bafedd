// Package dump defines the serialized form of procedure dumps: the CFG of
// each procedure, its initialization and borrow fact tables, the predicate
// table and the statement sequence the permission engine replays. The same
// encoding backs the driver's result cache.
package dump

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"verge/internal/diag"
)

// SchemaVersion is bumped whenever the wire format changes shape.
const SchemaVersion uint16 = 1

// File is the top-level payload of a dump.
type File struct {
	Schema uint16
	Types  []TypeDef
	Procs  []ProcDef
}

// TypeDef describes one type. Structural types (array, reference) refer to
// other entries by index; references to struct/enum entries may point
// forward, references to structural entries may not.
type TypeDef struct {
	Kind    uint8
	Elem    int32 // index into Types, -1 for none
	Count   uint32
	Mutable bool

	Name     string // structs and enums
	Fields   []FieldDef
	Variants []VariantDef
}

type FieldDef struct {
	Name string
	Type int32
}

type VariantDef struct {
	Name    string
	Payload int32 // -1 for payload-free variants
}

// ProcDef bundles everything the analyses need for one procedure.
type ProcDef struct {
	Name   string
	Locals []LocalDef
	Entry  int32
	Blocks []BlockDef

	InitBefore []FactPoint
	InitEdges  []FactEdge

	BorrowBefore []BorrowPoint
	BorrowEdges  []BorrowEdge

	Preds []PredDef
	Stmts []StmtDef
}

type LocalDef struct {
	Name string
	Type int32
}

type BlockDef struct {
	ID     int32
	Instrs []InstrDef
	Term   TermDef
}

type InstrDef struct {
	Kind uint8

	Dst    PlaceRef
	Src    PlaceRef
	HasDst bool
	Callee string
	Args   []PlaceRef
	Place  PlaceRef
}

type TermDef struct {
	Kind uint8

	Target  int32
	Cond    PlaceRef
	Then    int32
	Else    int32
	Value   PlaceRef
	Cases   []CaseDef
	Default int32
}

type CaseDef struct {
	Variant string
	Target  int32
}

// PlaceRef is the wire form of a place: a base local plus projections.
type PlaceRef struct {
	Local int32
	Proj  []ProjRef
}

type ProjRef struct {
	Kind     uint8
	Field    string
	FieldIdx int32
	Index    uint32
	Variant  string
}

// FactPoint gives the initialized places before one statement.
type FactPoint struct {
	Block     int32
	Statement int32
	Places    []PlaceRef
}

// FactEdge gives the initialized places on one terminator edge.
type FactEdge struct {
	From   int32
	To     int32
	Places []PlaceRef
}

type BorrowPoint struct {
	Block       int32
	Statement   int32
	MaybeMut    []PlaceRef
	MaybeShared []PlaceRef
}

type BorrowEdge struct {
	From        int32
	To          int32
	MaybeMut    []PlaceRef
	MaybeShared []PlaceRef
}

type PredDef struct {
	Name string
	Self PlaceRef
	Body ExprDef
}

// ExprDef mirrors the assertion language. Kind selects which fields matter.
type ExprDef struct {
	Kind     uint8
	Place    PlaceRef
	Num      uint64
	Den      uint64
	Pred     string
	Lit      string
	Operands []ExprDef
	Body     *ExprDef
}

// StmtDef mirrors the statement language replayed by the permission engine.
type StmtDef struct {
	Kind uint8

	Comment string
	Label   string
	Expr    *ExprDef

	CallName    string
	CallTargets []int32
	CallPres    []ExprDef
	CallPosts   []ExprDef

	AssignLhs  PlaceRef
	AssignRhs  ExprDef
	AssignKind uint8

	Pred  string
	Place PlaceRef
	Num   uint64
	Den   uint64

	ExpireLhs PlaceRef
	ExpireRhs PlaceRef
}

// Encode writes the msgpack form of a file.
func Encode(w io.Writer, f *File) error {
	return msgpack.NewEncoder(w).Encode(f)
}

// Decode reads the msgpack form of a file. The schema is checked here so
// callers never see a payload of the wrong shape.
func Decode(r io.Reader) (*File, error) {
	var f File
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, &LoadError{Code: diag.InpMalformedDump, Detail: err.Error()}
	}
	if f.Schema != SchemaVersion {
		return nil, &LoadError{
			Code:   diag.InpSchemaMismatch,
			Detail: fmt.Sprintf("schema %d, tool expects %d", f.Schema, SchemaVersion),
		}
	}
	return &f, nil
}
