package mir

import (
	"sort"
	"strings"
)

// PlaceSet is a hash set of places keyed by their canonical encoding.
type PlaceSet map[string]Place

// NewPlaceSet builds a set from the given places.
func NewPlaceSet(places ...Place) PlaceSet {
	s := make(PlaceSet, len(places))
	for _, p := range places {
		s.Add(p)
	}
	return s
}

func (s PlaceSet) Add(p Place) {
	s[p.Key()] = p
}

func (s PlaceSet) Remove(p Place) {
	delete(s, p.Key())
}

func (s PlaceSet) Contains(p Place) bool {
	_, ok := s[p.Key()]
	return ok
}

func (s PlaceSet) Clone() PlaceSet {
	out := make(PlaceSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// AddAll inserts every member of other.
func (s PlaceSet) AddAll(other PlaceSet) {
	for k, v := range other {
		s[k] = v
	}
}

// Places returns the members in deterministic (key-sorted) order.
func (s PlaceSet) Places() []Place {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Place, len(keys))
	for i, k := range keys {
		out[i] = s[k]
	}
	return out
}

// Equal reports whether both sets hold the same places.
func (s PlaceSet) Equal(other PlaceSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every member of s is in other.
func (s PlaceSet) SubsetOf(other PlaceSet) bool {
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// ProperPrefixMember returns a pair (ancestor, descendant) of distinct members
// related by the prefix order, if one exists. A set naming maximal places has
// none.
func (s PlaceSet) ProperPrefixMember() (Place, Place, bool) {
	places := s.Places()
	for i, a := range places {
		for j, b := range places {
			if i == j {
				continue
			}
			if a.IsProperPrefixOf(b) {
				return a, b, true
			}
		}
	}
	return Place{Local: NoLocalID}, Place{Local: NoLocalID}, false
}

func (s PlaceSet) String() string {
	parts := make([]string, 0, len(s))
	for _, p := range s.Places() {
		parts = append(parts, p.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
