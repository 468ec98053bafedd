package vir

import (
	"fmt"
	"sort"
	"strings"

	"verge/internal/mir"
)

type accEntry struct {
	place mir.Place
	frac  Frac
}

type predEntry struct {
	pred  string
	place mir.Place
	frac  Frac
}

// State is the permission state threaded through one statement sequence:
// an access-map, a predicate-map, a moved-place set, and a LIFO stack of
// snapshots for frame scoping. It is mutated in place and not safe for
// concurrent use.
type State struct {
	acc    map[string]accEntry
	pred   map[string]predEntry
	moved  map[string]mir.Place
	frames []*State
}

// NewState returns an empty permission state.
func NewState() *State {
	return &State{
		acc:   make(map[string]accEntry),
		pred:  make(map[string]predEntry),
		moved: make(map[string]mir.Place),
	}
}

// Clone copies the maps; the frame stack is not carried over.
func (s *State) Clone() *State {
	out := &State{
		acc:   make(map[string]accEntry, len(s.acc)),
		pred:  make(map[string]predEntry, len(s.pred)),
		moved: make(map[string]mir.Place, len(s.moved)),
	}
	for k, v := range s.acc {
		out.acc[k] = v
	}
	for k, v := range s.pred {
		out.pred[k] = v
	}
	for k, v := range s.moved {
		out.moved[k] = v
	}
	return out
}

// ContainsAcc reports whether the place holds any access permission.
func (s *State) ContainsAcc(place mir.Place) bool {
	_, ok := s.acc[place.Key()]
	return ok
}

// AccFrac returns the access amount held on the place.
func (s *State) AccFrac(place mir.Place) (Frac, bool) {
	e, ok := s.acc[place.Key()]
	return e.frac, ok
}

// ContainsPred reports whether the place holds a predicate permission.
func (s *State) ContainsPred(place mir.Place) bool {
	_, ok := s.pred[place.Key()]
	return ok
}

// PredAt returns the predicate name and amount held on the place.
func (s *State) PredAt(place mir.Place) (string, Frac, bool) {
	e, ok := s.pred[place.Key()]
	return e.pred, e.frac, ok
}

// ContainsPerm reports whether a permission of the given kind, on the same
// place, with at least the given amount is held.
func (s *State) ContainsPerm(p Perm) bool {
	switch p.Kind {
	case PermAcc:
		e, ok := s.acc[p.Place.Key()]
		return ok && !e.frac.Less(p.Frac)
	case PermPred:
		e, ok := s.pred[p.Place.Key()]
		return ok && !e.frac.Less(p.Frac)
	default:
		return false
	}
}

// InsertPerm adds the permission, summing with an existing amount on the same
// place. Amount-sum discipline (never above 1) is the caller's obligation.
func (s *State) InsertPerm(p Perm) {
	key := p.Place.Key()
	switch p.Kind {
	case PermAcc:
		e, ok := s.acc[key]
		if ok {
			e.frac = e.frac.Add(p.Frac)
		} else {
			e = accEntry{place: p.Place, frac: p.Frac}
		}
		s.acc[key] = e
	case PermPred:
		e, ok := s.pred[key]
		if ok {
			// A place holds at most one predicate; the established name
			// stays so a mismatched insert cannot relabel the instance.
			e.frac = e.frac.Add(p.Frac)
		} else {
			e = predEntry{pred: p.Pred, place: p.Place, frac: p.Frac}
		}
		s.pred[key] = e
	}
}

// InsertPerms adds every permission.
func (s *State) InsertPerms(perms []Perm) {
	for _, p := range perms {
		s.InsertPerm(p)
	}
}

// RemovePerm subtracts the permission's amount from what the place holds.
// Removing more than is held, or from a place holding nothing, fails.
func (s *State) RemovePerm(p Perm) error {
	key := p.Place.Key()
	switch p.Kind {
	case PermAcc:
		e, ok := s.acc[key]
		if !ok {
			return fmt.Errorf("no access permission on %s", p.Place)
		}
		if e.frac.Less(p.Frac) {
			return fmt.Errorf("access on %s holds %s, cannot remove %s", p.Place, e.frac, p.Frac)
		}
		rest, keep := e.frac.Sub(p.Frac)
		if !keep {
			delete(s.acc, key)
			return nil
		}
		e.frac = rest
		s.acc[key] = e
	case PermPred:
		e, ok := s.pred[key]
		if !ok {
			return fmt.Errorf("no predicate permission on %s", p.Place)
		}
		if e.frac.Less(p.Frac) {
			return fmt.Errorf("predicate on %s holds %s, cannot remove %s", p.Place, e.frac, p.Frac)
		}
		rest, keep := e.frac.Sub(p.Frac)
		if !keep {
			delete(s.pred, key)
			return nil
		}
		e.frac = rest
		s.pred[key] = e
	}
	return nil
}

// RemovePerms subtracts every permission, failing on the first shortfall.
func (s *State) RemovePerms(perms []Perm) error {
	for _, p := range perms {
		if err := s.RemovePerm(p); err != nil {
			return err
		}
	}
	return nil
}

// AccPerms returns the held access permissions in deterministic order.
func (s *State) AccPerms() []Perm {
	keys := sortedKeys(s.acc)
	out := make([]Perm, 0, len(keys))
	for _, k := range keys {
		e := s.acc[k]
		out = append(out, AccPerm(e.place, e.frac))
	}
	return out
}

// PredPerms returns the held predicate permissions in deterministic order.
func (s *State) PredPerms() []Perm {
	keys := make([]string, 0, len(s.pred))
	for k := range s.pred {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Perm, 0, len(keys))
	for _, k := range keys {
		e := s.pred[k]
		out = append(out, PredPerm(e.pred, e.place, e.frac))
	}
	return out
}

// RemoveAccMatching drops every access permission whose place satisfies match.
func (s *State) RemoveAccMatching(match func(mir.Place) bool) {
	for k, e := range s.acc {
		if match(e.place) {
			delete(s.acc, k)
		}
	}
}

// RemovePredMatching drops every predicate permission whose place satisfies
// match.
func (s *State) RemovePredMatching(match func(mir.Place) bool) {
	for k, e := range s.pred {
		if match(e.place) {
			delete(s.pred, k)
		}
	}
}

// InsertMoved marks the place as moved-out.
func (s *State) InsertMoved(place mir.Place) {
	s.moved[place.Key()] = place
}

// RemoveMovedMatching clears moved markers whose place satisfies match.
func (s *State) RemoveMovedMatching(match func(mir.Place) bool) {
	for k, p := range s.moved {
		if match(p) {
			delete(s.moved, k)
		}
	}
}

// MovedPlaces returns the moved-out places in deterministic order.
func (s *State) MovedPlaces() []mir.Place {
	keys := make([]string, 0, len(s.moved))
	for k := range s.moved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]mir.Place, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.moved[k])
	}
	return out
}

// IsPrefixOfSomeMoved reports whether place is an ancestor (or equal) of a
// moved-out place.
func (s *State) IsPrefixOfSomeMoved(place mir.Place) bool {
	for _, m := range s.moved {
		if place.IsPrefixOf(m) {
			return true
		}
	}
	return false
}

// HasAccProperDescendant reports whether an access permission is held on a
// proper descendant of place.
func (s *State) HasAccProperDescendant(place mir.Place) bool {
	for _, e := range s.acc {
		if place.IsProperPrefixOf(e.place) {
			return true
		}
	}
	return false
}

// HasPredWithPrefix reports whether a predicate permission is held on place
// or one of its descendants.
func (s *State) HasPredWithPrefix(place mir.Place) bool {
	for _, e := range s.pred {
		if place.IsPrefixOf(e.place) {
			return true
		}
	}
	return false
}

// HasPredProperAncestor reports whether a proper prefix of place holds a
// predicate permission (i.e. place is hidden behind a fold).
func (s *State) HasPredProperAncestor(place mir.Place) bool {
	for _, e := range s.pred {
		if e.place.IsProperPrefixOf(place) {
			return true
		}
	}
	return false
}

// BeginFrame pushes a full snapshot of the permission maps.
func (s *State) BeginFrame() {
	s.frames = append(s.frames, s.Clone())
}

// EndFrame pops the latest snapshot and restores it wholesale.
func (s *State) EndFrame() error {
	if len(s.frames) == 0 {
		return fmt.Errorf("no matching BeginFrame")
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.acc = top.acc
	s.pred = top.pred
	s.moved = top.moved
	return nil
}

// FrameDepth returns the number of unmatched BeginFrame snapshots.
func (s *State) FrameDepth() int {
	return len(s.frames)
}

// CheckConsistency verifies the structural invariants: a moved place holds no
// permission, and a folded region is opaque (no permission under a place
// holding a predicate).
func (s *State) CheckConsistency() error {
	for _, m := range s.moved {
		if s.ContainsAcc(m) || s.ContainsPred(m) {
			return fmt.Errorf("moved place %s still holds a permission", m)
		}
	}
	for _, e := range s.pred {
		for _, a := range s.acc {
			if e.place.IsProperPrefixOf(a.place) {
				return fmt.Errorf("access on %s inside folded %s", a.place, e.place)
			}
		}
		for _, o := range s.pred {
			if e.place.IsProperPrefixOf(o.place) {
				return fmt.Errorf("predicate on %s inside folded %s", o.place, e.place)
			}
		}
	}
	return nil
}

// Equal compares the permission maps and moved set; frame stacks are ignored.
func (s *State) Equal(other *State) bool {
	if len(s.acc) != len(other.acc) || len(s.pred) != len(other.pred) || len(s.moved) != len(other.moved) {
		return false
	}
	for k, e := range s.acc {
		o, ok := other.acc[k]
		if !ok || !e.frac.Equal(o.frac) {
			return false
		}
	}
	for k, e := range s.pred {
		o, ok := other.pred[k]
		if !ok || e.pred != o.pred || !e.frac.Equal(o.frac) {
			return false
		}
	}
	for k := range s.moved {
		if _, ok := other.moved[k]; !ok {
			return false
		}
	}
	return true
}

func (s *State) String() string {
	parts := make([]string, 0, len(s.acc)+len(s.pred)+len(s.moved))
	for _, p := range s.AccPerms() {
		parts = append(parts, p.String())
	}
	for _, p := range s.PredPerms() {
		parts = append(parts, p.String())
	}
	for _, m := range s.MovedPlaces() {
		parts = append(parts, "moved("+m.String()+")")
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]accEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
