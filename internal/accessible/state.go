package accessible

import (
	"fmt"

	"verge/internal/mir"
)

// State is the accessibility verdict at one program point: places that are
// definitely safe to read, and the subset definitely safe to write or move.
// Both sets always name maximal known places.
type State struct {
	Accessible mir.PlaceSet
	Owned      mir.PlaceSet
}

// CheckInvariant verifies owned ⊆ accessible and prefix-freeness of both
// sets.
func (s *State) CheckInvariant() error {
	if !s.Owned.SubsetOf(s.Accessible) {
		return fmt.Errorf("owned set is not contained in the accessible set")
	}
	if a, b, ok := s.Accessible.ProperPrefixMember(); ok {
		return fmt.Errorf("accessible set holds related places %s and %s", a, b)
	}
	if a, b, ok := s.Owned.ProperPrefixMember(); ok {
		return fmt.Errorf("owned set holds related places %s and %s", a, b)
	}
	return nil
}

func (s *State) String() string {
	return fmt.Sprintf("accessible=%s owned=%s", s.Accessible, s.Owned)
}
