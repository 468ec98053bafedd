package vir

import (
	"fmt"

	"verge/internal/mir"
)

// Predicate is a named abstraction over the permissions of one structure:
// a formal self place and a body assertion phrased in terms of it.
type Predicate struct {
	Name string
	Self mir.Place
	Body Expr
}

// PredicateTable maps predicate names to their definitions. It is read-only
// during analysis and may be shared across parallel procedure runs.
type PredicateTable map[string]*Predicate

// Get returns the named predicate.
func (t PredicateTable) Get(name string) (*Predicate, bool) {
	p, ok := t[name]
	return p, ok
}

// Validate checks that every permission the body grants is rooted at the
// formal self parameter. Substitution is only defined for such bodies.
func (p *Predicate) Validate() error {
	for _, perm := range p.Body.Permissions(nil) {
		if !p.Self.IsPrefixOf(perm.Place) {
			return fmt.Errorf("predicate %q: body place %s is not rooted at %s", p.Name, perm.Place, p.Self)
		}
	}
	return nil
}

// InstancePermissions substitutes place for the predicate's formal self
// parameter in its body and scales every resulting permission by frac.
// The body must satisfy Validate.
func (p *Predicate) InstancePermissions(place mir.Place, frac Frac) []Perm {
	body := p.Body.Permissions(nil)
	out := make([]Perm, 0, len(body))
	for _, perm := range body {
		out = append(out, perm.Relocated(p.Self, place).Scaled(frac))
	}
	return out
}
