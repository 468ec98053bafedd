package dump

import (
	"fmt"

	"fortio.org/safecast"

	"verge/internal/accessible"
	"verge/internal/diag"
	"verge/internal/mir"
	"verge/internal/types"
	"verge/internal/vir"
)

// LoadError reports a defect in a dump payload.
type LoadError struct {
	Code   diag.Code
	Proc   string
	Detail string
}

func (e *LoadError) Error() string {
	if e.Proc == "" {
		return fmt.Sprintf("dump: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("dump: %s: procedure %q: %s", e.Code, e.Proc, e.Detail)
}

func loadErrf(code diag.Code, proc, format string, args ...any) error {
	return &LoadError{Code: code, Proc: proc, Detail: fmt.Sprintf(format, args...)}
}

// Unit is a fully decoded dump: an interner shared by all procedures plus
// the per-procedure inputs of the analyses.
type Unit struct {
	Types *types.Interner
	Procs []Proc
}

// Proc is one procedure's analysis inputs.
type Proc struct {
	Fn      *mir.Func
	Init    *accessible.InitTable
	Borrows *accessible.BorrowTable
	Preds   vir.PredicateTable
	Stmts   []vir.Stmt
}

// Build resolves a decoded file into analysis-ready form, validating as it
// goes. The CFGs it returns pass mir.Validate.
func Build(f *File) (*Unit, error) {
	b := &builder{ti: types.NewInterner()}
	if err := b.buildTypes(f.Types); err != nil {
		return nil, err
	}
	unit := &Unit{Types: b.ti, Procs: make([]Proc, 0, len(f.Procs))}
	for i := range f.Procs {
		funcID, err := safecast.Conv[int32](i)
		if err != nil {
			return nil, loadErrf(diag.InpMalformedDump, f.Procs[i].Name, "procedure count overflow: %v", err)
		}
		p, err := b.buildProc(mir.FuncID(funcID), &f.Procs[i])
		if err != nil {
			return nil, err
		}
		unit.Procs = append(unit.Procs, p)
	}
	return unit, nil
}

type builder struct {
	ti  *types.Interner
	ids []types.TypeID // wire index -> interned ID
}

// buildTypes resolves the type table in three passes: nominal registration,
// structural interning, then field/variant attachment (which may refer to
// any entry, including later nominals).
func (b *builder) buildTypes(defs []TypeDef) error {
	b.ids = make([]types.TypeID, len(defs))
	for i, d := range defs {
		switch types.Kind(d.Kind) {
		case types.KindStruct:
			b.ids[i] = b.ti.RegisterStruct(d.Name)
		case types.KindEnum:
			b.ids[i] = b.ti.RegisterEnum(d.Name)
		}
	}
	bi := b.ti.Builtins()
	for i, d := range defs {
		switch types.Kind(d.Kind) {
		case types.KindStruct, types.KindEnum:
			// registered above
		case types.KindUnit:
			b.ids[i] = bi.Unit
		case types.KindBool:
			b.ids[i] = bi.Bool
		case types.KindInt:
			b.ids[i] = bi.Int
		case types.KindUint:
			b.ids[i] = bi.Uint
		case types.KindFloat:
			b.ids[i] = bi.Float
		case types.KindArray:
			elem, err := b.typeAt(d.Elem, i)
			if err != nil {
				return err
			}
			b.ids[i] = b.ti.Intern(types.MakeArray(elem, d.Count))
		case types.KindReference:
			elem, err := b.typeAt(d.Elem, i)
			if err != nil {
				return err
			}
			b.ids[i] = b.ti.Intern(types.MakeReference(elem, d.Mutable))
		default:
			return loadErrf(diag.InpUnknownType, "", "type entry %d has unknown kind %d", i, d.Kind)
		}
	}
	for i, d := range defs {
		switch types.Kind(d.Kind) {
		case types.KindStruct:
			fields := make([]types.StructField, len(d.Fields))
			for j, fd := range d.Fields {
				ft, err := b.typeRef(fd.Type)
				if err != nil {
					return loadErrf(diag.InpUnknownType, "", "struct %q field %q: %v", d.Name, fd.Name, err)
				}
				fields[j] = types.StructField{Name: fd.Name, Type: ft}
			}
			b.ti.SetStructFields(b.ids[i], fields)
		case types.KindEnum:
			variants := make([]types.EnumVariant, len(d.Variants))
			for j, vd := range d.Variants {
				payload := types.NoTypeID
				if vd.Payload >= 0 {
					pt, err := b.typeRef(vd.Payload)
					if err != nil {
						return loadErrf(diag.InpUnknownType, "", "enum %q variant %q: %v", d.Name, vd.Name, err)
					}
					payload = pt
				}
				variants[j] = types.EnumVariant{Name: vd.Name, Payload: payload}
			}
			b.ti.SetEnumVariants(b.ids[i], variants)
		}
	}
	return nil
}

// typeAt resolves a structural element reference during the second pass.
// Structural entries resolve in order, so the referenced entry must already
// have an ID; nominal entries always do.
func (b *builder) typeAt(ref int32, at int) (types.TypeID, error) {
	id, err := b.typeRef(ref)
	if err != nil {
		return types.NoTypeID, loadErrf(diag.InpUnknownType, "", "type entry %d: %v", at, err)
	}
	if id == types.NoTypeID {
		return types.NoTypeID, loadErrf(diag.InpUnknownType, "",
			"type entry %d refers forward to structural entry %d", at, ref)
	}
	return id, nil
}

func (b *builder) typeRef(ref int32) (types.TypeID, error) {
	if ref < 0 || int(ref) >= len(b.ids) {
		return types.NoTypeID, fmt.Errorf("type index %d out of range", ref)
	}
	return b.ids[ref], nil
}

func (b *builder) buildProc(id mir.FuncID, d *ProcDef) (Proc, error) {
	fn := &mir.Func{
		ID:    id,
		Name:  d.Name,
		Entry: mir.BlockID(d.Entry),
	}
	fn.Locals = make([]mir.Local, len(d.Locals))
	for i, ld := range d.Locals {
		t, err := b.typeRef(ld.Type)
		if err != nil {
			return Proc{}, loadErrf(diag.InpUnknownType, d.Name, "local %q: %v", ld.Name, err)
		}
		fn.Locals[i] = mir.Local{Name: ld.Name, Type: t}
	}
	fn.Blocks = make([]mir.Block, len(d.Blocks))
	for i, bd := range d.Blocks {
		blk, err := buildBlock(d.Name, &bd)
		if err != nil {
			return Proc{}, err
		}
		fn.Blocks[i] = blk
	}
	if err := mir.Validate(fn, b.ti); err != nil {
		return Proc{}, loadErrf(diag.InpInvalidCFG, d.Name, "%v", err)
	}

	proc := Proc{
		Fn:      fn,
		Init:    accessible.NewInitTable(),
		Borrows: accessible.NewBorrowTable(),
		Preds:   make(vir.PredicateTable, len(d.Preds)),
	}
	for _, pt := range d.InitBefore {
		loc := mir.Location{Block: mir.BlockID(pt.Block), Statement: int(pt.Statement)}
		proc.Init.SetBefore(loc, ToPlaceSet(pt.Places))
	}
	for _, ed := range d.InitEdges {
		proc.Init.SetEdge(mir.BlockID(ed.From), mir.BlockID(ed.To), ToPlaceSet(ed.Places))
	}
	for _, pt := range d.BorrowBefore {
		loc := mir.Location{Block: mir.BlockID(pt.Block), Statement: int(pt.Statement)}
		proc.Borrows.SetBefore(loc, accessible.Borrowed{
			MaybeMut:    ToPlaceSet(pt.MaybeMut),
			MaybeShared: ToPlaceSet(pt.MaybeShared),
		})
	}
	for _, ed := range d.BorrowEdges {
		proc.Borrows.SetEdge(mir.BlockID(ed.From), mir.BlockID(ed.To), accessible.Borrowed{
			MaybeMut:    ToPlaceSet(ed.MaybeMut),
			MaybeShared: ToPlaceSet(ed.MaybeShared),
		})
	}
	for _, pd := range d.Preds {
		body, err := buildExpr(d.Name, &pd.Body)
		if err != nil {
			return Proc{}, err
		}
		pred := &vir.Predicate{
			Name: pd.Name,
			Self: pd.Self.Place(),
			Body: body,
		}
		if err := pred.Validate(); err != nil {
			return Proc{}, loadErrf(diag.InpInvalidPlace, d.Name, "%v", err)
		}
		proc.Preds[pd.Name] = pred
	}
	proc.Stmts = make([]vir.Stmt, len(d.Stmts))
	for i := range d.Stmts {
		st, err := buildStmt(d.Name, &d.Stmts[i])
		if err != nil {
			return Proc{}, err
		}
		proc.Stmts[i] = st
	}
	return proc, nil
}

func buildBlock(proc string, d *BlockDef) (mir.Block, error) {
	blk := mir.Block{ID: mir.BlockID(d.ID)}
	blk.Instrs = make([]mir.Instr, len(d.Instrs))
	for i, id := range d.Instrs {
		switch mir.InstrKind(id.Kind) {
		case mir.InstrAssign:
			blk.Instrs[i] = mir.Instr{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
				Dst: id.Dst.Place(),
				Src: id.Src.Place(),
			}}
		case mir.InstrCall:
			args := make([]mir.Place, len(id.Args))
			for j, a := range id.Args {
				args[j] = a.Place()
			}
			blk.Instrs[i] = mir.Instr{Kind: mir.InstrCall, Call: mir.CallInstr{
				HasDst: id.HasDst,
				Dst:    id.Dst.Place(),
				Callee: id.Callee,
				Args:   args,
			}}
		case mir.InstrDrop:
			blk.Instrs[i] = mir.Instr{Kind: mir.InstrDrop, Drop: mir.DropInstr{Place: id.Place.Place()}}
		case mir.InstrNop:
			blk.Instrs[i] = mir.Instr{Kind: mir.InstrNop}
		default:
			return mir.Block{}, loadErrf(diag.InpInvalidCFG, proc,
				"bb%d[%d]: unknown instruction kind %d", d.ID, i, id.Kind)
		}
	}
	td := d.Term
	switch mir.TermKind(td.Kind) {
	case mir.TermReturn:
		blk.Term = mir.Terminator{Kind: mir.TermReturn}
	case mir.TermGoto:
		blk.Term = mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: mir.BlockID(td.Target)}}
	case mir.TermIf:
		blk.Term = mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{
			Cond: td.Cond.Place(),
			Then: mir.BlockID(td.Then),
			Else: mir.BlockID(td.Else),
		}}
	case mir.TermSwitchVariant:
		cases := make([]mir.SwitchVariantCase, len(td.Cases))
		for j, c := range td.Cases {
			cases[j] = mir.SwitchVariantCase{Variant: c.Variant, Target: mir.BlockID(c.Target)}
		}
		blk.Term = mir.Terminator{Kind: mir.TermSwitchVariant, SwitchVariant: mir.SwitchVariantTerm{
			Value:   td.Value.Place(),
			Cases:   cases,
			Default: mir.BlockID(td.Default),
		}}
	case mir.TermUnreachable:
		blk.Term = mir.Terminator{Kind: mir.TermUnreachable}
	default:
		return mir.Block{}, loadErrf(diag.InpInvalidCFG, proc,
			"bb%d: unknown terminator kind %d", d.ID, td.Kind)
	}
	return blk, nil
}

func buildFrac(proc string, num, den uint64, what string) (vir.Frac, error) {
	f, err := vir.NewFrac(num, den)
	if err != nil {
		return vir.Frac{}, loadErrf(diag.InpMalformedDump, proc, "%s: %v", what, err)
	}
	return f, nil
}

func buildExpr(proc string, d *ExprDef) (vir.Expr, error) {
	switch vir.ExprKind(d.Kind) {
	case vir.ExprTrue:
		return vir.TrueExpr(), nil
	case vir.ExprPlace:
		return vir.PlaceExpr(d.Place.Place()), nil
	case vir.ExprLit:
		return vir.LitExpr(d.Lit), nil
	case vir.ExprAcc:
		f, err := buildFrac(proc, d.Num, d.Den, "acc fraction")
		if err != nil {
			return vir.Expr{}, err
		}
		return vir.AccExpr(d.Place.Place(), f), nil
	case vir.ExprPredAccess:
		f, err := buildFrac(proc, d.Num, d.Den, "predicate fraction")
		if err != nil {
			return vir.Expr{}, err
		}
		return vir.PredAccessExpr(d.Pred, d.Place.Place(), f), nil
	case vir.ExprAnd:
		ops := make([]vir.Expr, len(d.Operands))
		for i := range d.Operands {
			op, err := buildExpr(proc, &d.Operands[i])
			if err != nil {
				return vir.Expr{}, err
			}
			ops[i] = op
		}
		return vir.AndExpr(ops...), nil
	case vir.ExprUnfolding:
		if d.Body == nil {
			return vir.Expr{}, loadErrf(diag.InpMalformedDump, proc, "unfolding expression without a body")
		}
		f, err := buildFrac(proc, d.Num, d.Den, "unfolding fraction")
		if err != nil {
			return vir.Expr{}, err
		}
		body, err := buildExpr(proc, d.Body)
		if err != nil {
			return vir.Expr{}, err
		}
		return vir.UnfoldingExpr(d.Pred, d.Place.Place(), f, body), nil
	}
	return vir.Expr{}, loadErrf(diag.InpMalformedDump, proc, "unknown expression kind %d", d.Kind)
}

func buildExprs(proc string, defs []ExprDef) ([]vir.Expr, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]vir.Expr, len(defs))
	for i := range defs {
		e, err := buildExpr(proc, &defs[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func buildStmt(proc string, d *StmtDef) (vir.Stmt, error) {
	kind := vir.StmtKind(d.Kind)
	switch kind {
	case vir.StmtComment:
		return vir.Stmt{Kind: kind, Comment: d.Comment}, nil
	case vir.StmtLabel:
		return vir.Stmt{Kind: kind, Label: d.Label}, nil
	case vir.StmtAssert, vir.StmtObtain, vir.StmtWeakObtain, vir.StmtInhale, vir.StmtExhale:
		if d.Expr == nil {
			return vir.Stmt{}, loadErrf(diag.InpMalformedDump, proc, "statement kind %d without an expression", d.Kind)
		}
		e, err := buildExpr(proc, d.Expr)
		if err != nil {
			return vir.Stmt{}, err
		}
		return vir.Stmt{Kind: kind, Expr: e}, nil
	case vir.StmtMethodCall:
		targets := make([]mir.LocalID, len(d.CallTargets))
		for i, t := range d.CallTargets {
			targets[i] = mir.LocalID(t)
		}
		pres, err := buildExprs(proc, d.CallPres)
		if err != nil {
			return vir.Stmt{}, err
		}
		posts, err := buildExprs(proc, d.CallPosts)
		if err != nil {
			return vir.Stmt{}, err
		}
		return vir.Stmt{Kind: kind, MethodCall: vir.MethodCallStmt{
			Name:    d.CallName,
			Targets: targets,
			Pres:    pres,
			Posts:   posts,
		}}, nil
	case vir.StmtAssign:
		rhs, err := buildExpr(proc, &d.AssignRhs)
		if err != nil {
			return vir.Stmt{}, err
		}
		if d.AssignKind > uint8(vir.AssignMutableBorrow) {
			return vir.Stmt{}, loadErrf(diag.InpMalformedDump, proc, "unknown assign kind %d", d.AssignKind)
		}
		return vir.Stmt{Kind: kind, Assign: vir.AssignStmt{
			Lhs:  d.AssignLhs.Place(),
			Rhs:  rhs,
			Kind: vir.AssignKind(d.AssignKind),
		}}, nil
	case vir.StmtFold, vir.StmtUnfold:
		f, err := buildFrac(proc, d.Num, d.Den, "fold fraction")
		if err != nil {
			return vir.Stmt{}, err
		}
		if kind == vir.StmtFold {
			return vir.Stmt{Kind: kind, Fold: vir.FoldStmt{Pred: d.Pred, Place: d.Place.Place(), Frac: f}}, nil
		}
		return vir.Stmt{Kind: kind, Unfold: vir.UnfoldStmt{Pred: d.Pred, Place: d.Place.Place(), Frac: f}}, nil
	case vir.StmtHavoc, vir.StmtBeginFrame, vir.StmtEndFrame:
		return vir.Stmt{Kind: kind}, nil
	case vir.StmtExpireBorrow:
		return vir.Stmt{Kind: kind, ExpireBorrow: vir.ExpireBorrowStmt{
			Lhs: d.ExpireLhs.Place(),
			Rhs: d.ExpireRhs.Place(),
		}}, nil
	}
	return vir.Stmt{}, loadErrf(diag.InpMalformedDump, proc, "unknown statement kind %d", d.Kind)
}
