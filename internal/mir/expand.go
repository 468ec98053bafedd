package mir

import (
	"fmt"

	"verge/internal/types"
)

// TypeOf resolves the type denoted by a place by walking its projections
// against the function's local declarations.
func TypeOf(ti *types.Interner, f *Func, p Place) (types.TypeID, error) {
	cur := f.LocalType(p.Local)
	if cur == types.NoTypeID {
		return types.NoTypeID, fmt.Errorf("mir: local L%d has no declared type", p.Local)
	}
	for i, proj := range p.Proj {
		t, ok := ti.Lookup(cur)
		if !ok {
			return types.NoTypeID, fmt.Errorf("mir: %s: unknown type at projection %d", p, i)
		}
		switch proj.Kind {
		case PlaceProjDeref:
			if t.Kind != types.KindReference {
				return types.NoTypeID, fmt.Errorf("mir: %s: deref of non-reference %s", p, t.Kind)
			}
			cur = t.Elem
		case PlaceProjField:
			fields := ti.StructFields(cur)
			if fields == nil {
				return types.NoTypeID, fmt.Errorf("mir: %s: field access on non-struct %s", p, t.Kind)
			}
			if proj.FieldIdx < 0 || proj.FieldIdx >= len(fields) {
				return types.NoTypeID, fmt.Errorf("mir: %s: field index %d out of range", p, proj.FieldIdx)
			}
			cur = fields[proj.FieldIdx].Type
		case PlaceProjIndex:
			if t.Kind != types.KindArray {
				return types.NoTypeID, fmt.Errorf("mir: %s: index into non-array %s", p, t.Kind)
			}
			cur = t.Elem
		case PlaceProjVariant:
			v, ok := ti.EnumVariant(cur, proj.Variant)
			if !ok {
				return types.NoTypeID, fmt.Errorf("mir: %s: enum has no variant %q", p, proj.Variant)
			}
			cur = v.Payload
		default:
			return types.NoTypeID, fmt.Errorf("mir: %s: unknown projection kind %d", p, proj.Kind)
		}
	}
	return cur, nil
}

// Expand unpacks place one projection level at a time toward excluded,
// collecting at every level the sibling projections not on the path. The
// returned places are prefix-free and, together with excluded, their storage
// reconstitutes exactly the storage denoted by place. Requires place to be a
// prefix of excluded; the degenerate equal case yields an empty result.
//
// Struct levels contribute the other fields. Deref, index and variant levels
// contribute nothing: a reference has a single pointee, sibling indices are
// not enumerable at this granularity, and only one enum variant is active at
// a time.
func Expand(ti *types.Interner, f *Func, place, excluded Place) ([]Place, error) {
	if !place.IsPrefixOf(excluded) {
		return nil, fmt.Errorf("mir: expand: %s is not a prefix of %s", place, excluded)
	}
	var out []Place
	current := place
	for len(current.Proj) < len(excluded.Proj) {
		proj := excluded.Proj[len(current.Proj)]
		if proj.Kind == PlaceProjField {
			typ, err := TypeOf(ti, f, current)
			if err != nil {
				return nil, err
			}
			fields := ti.StructFields(typ)
			if fields == nil {
				return nil, fmt.Errorf("mir: expand: %s is not a struct", current)
			}
			if proj.FieldIdx < 0 || proj.FieldIdx >= len(fields) {
				return nil, fmt.Errorf("mir: expand: field index %d out of range at %s", proj.FieldIdx, current)
			}
			for i, fld := range fields {
				if i == proj.FieldIdx {
					continue
				}
				out = append(out, current.Child(FieldProj(fld.Name, i)))
			}
		}
		current = current.Child(proj)
	}
	return out, nil
}
