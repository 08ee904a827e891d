package filter

import (
	"errors"
	"fmt"
	"sort"
)

// Apply narrows q with every supplied filter of spec. Values are bound before
// any predicate is applied, so a malformed value never yields a partial query.
// Filters combine with AND; the result carries no ordering of its own.
func Apply(q Query, spec *Spec, req Request) (Query, error) {
	if spec == nil {
		return Query{}, errors.New("apply filters: nil spec")
	}
	if q.Table() != spec.Table() {
		return Query{}, fmt.Errorf("apply filters: %s spec cannot narrow a query over %s", spec.Entity(), tableName(q.Table()))
	}

	bindings, err := spec.Bind(req)
	if err != nil {
		return Query{}, err
	}

	for _, b := range bindings {
		next, err := b.apply(q)
		if err != nil {
			return Query{}, fmt.Errorf("apply %s filter %q: %w", spec.Entity(), b.Field.Name, err)
		}
		q = next
	}
	return q, nil
}

func tableName(t *Table) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// Registry indexes specs by entity name.
type Registry struct {
	specs map[string]*Spec
}

// NewRegistry rejects two specs for the same entity.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]*Spec, len(specs))}
	for _, s := range specs {
		if s == nil {
			return nil, errors.New("registry: nil spec")
		}
		if _, dup := r.specs[s.Entity()]; dup {
			return nil, fmt.Errorf("registry: duplicate spec for %s", s.Entity())
		}
		r.specs[s.Entity()] = s
	}
	return r, nil
}

func MustRegistry(specs ...*Spec) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the spec registered for entity.
func (r *Registry) Lookup(entity string) (*Spec, bool) {
	s, ok := r.specs[entity]
	return s, ok
}

// Entities returns registered entity names, sorted.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
