package mir

import (
	"errors"
	"fmt"

	"verge/internal/types"
)

// Validate checks procedure CFG invariants: every block is terminated, every
// terminator target exists, and every place mentioned by an instruction
// type-checks against the local declarations.
func Validate(f *Func, typesIn *types.Interner) error {
	if f == nil {
		return nil
	}
	var errs []error
	if err := validateBlocksTerminated(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}
	if err := validatePlaces(f, typesIn); err != nil {
		errs = append(errs, err)
	}
	if f.Entry < 0 || int(f.Entry) >= len(f.Blocks) {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", f.Entry))
	}
	return errors.Join(errs...)
}

func validateBlocksTerminated(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

func validateBlockTargets(f *Func) error {
	var errs []error

	blockExists := func(id BlockID) bool {
		return id >= 0 && int(id) < len(f.Blocks)
	}

	for i := range f.Blocks {
		for _, succ := range f.Blocks[i].Term.Successors() {
			if !blockExists(succ) {
				errs = append(errs, fmt.Errorf("bb%d: successor bb%d does not exist", i, succ))
			}
		}
	}
	return errors.Join(errs...)
}

func validatePlaces(f *Func, typesIn *types.Interner) error {
	var errs []error

	check := func(block int, p Place) {
		if !p.IsValid() {
			errs = append(errs, fmt.Errorf("bb%d: invalid place", block))
			return
		}
		if _, err := TypeOf(typesIn, f, p); err != nil {
			errs = append(errs, fmt.Errorf("bb%d: %w", block, err))
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			switch ins.Kind {
			case InstrAssign:
				check(i, ins.Assign.Dst)
				check(i, ins.Assign.Src)
			case InstrCall:
				if ins.Call.HasDst {
					check(i, ins.Call.Dst)
				}
				for _, arg := range ins.Call.Args {
					check(i, arg)
				}
			case InstrDrop:
				check(i, ins.Drop.Place)
			}
		}
	}
	return errors.Join(errs...)
}
