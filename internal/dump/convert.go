package dump

import "verge/internal/mir"

// FromPlace converts a place back to its wire form. Used by the result cache
// and by tooling that writes dumps.
func FromPlace(p mir.Place) PlaceRef {
	r := PlaceRef{Local: int32(p.Local)}
	if len(p.Proj) == 0 {
		return r
	}
	r.Proj = make([]ProjRef, len(p.Proj))
	for i, pr := range p.Proj {
		r.Proj[i] = ProjRef{
			Kind:     uint8(pr.Kind),
			Field:    pr.FieldName,
			FieldIdx: int32(pr.FieldIdx),
			Index:    pr.Index,
			Variant:  pr.Variant,
		}
	}
	return r
}

// Place resolves the wire form into a place. An unknown projection kind
// yields an invalid place; CFG validation rejects it with context.
func (r PlaceRef) Place() mir.Place {
	p := mir.PlaceFor(mir.LocalID(r.Local))
	if len(r.Proj) == 0 {
		return p
	}
	proj := make([]mir.PlaceProj, len(r.Proj))
	for i, pr := range r.Proj {
		switch mir.PlaceProjKind(pr.Kind) {
		case mir.PlaceProjDeref:
			proj[i] = mir.DerefProj()
		case mir.PlaceProjField:
			proj[i] = mir.FieldProj(pr.Field, int(pr.FieldIdx))
		case mir.PlaceProjIndex:
			proj[i] = mir.IndexProj(pr.Index)
		case mir.PlaceProjVariant:
			proj[i] = mir.VariantProj(pr.Variant)
		default:
			return mir.Place{Local: mir.NoLocalID}
		}
	}
	p.Proj = proj
	return p
}

// ToPlaceSet resolves a slice of wire places into a set.
func ToPlaceSet(refs []PlaceRef) mir.PlaceSet {
	set := mir.NewPlaceSet()
	for _, r := range refs {
		set.Add(r.Place())
	}
	return set
}

// FromPlaceSet converts a place set to wire form in deterministic order.
func FromPlaceSet(s mir.PlaceSet) []PlaceRef {
	places := s.Places()
	if len(places) == 0 {
		return nil
	}
	out := make([]PlaceRef, len(places))
	for i, p := range places {
		out[i] = FromPlace(p)
	}
	return out
}
