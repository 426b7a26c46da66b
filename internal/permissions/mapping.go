package permissions

import (
	"fmt"
	"sort"

	"github.com/charmverse/governance/pkg/response"
)

// Level is a named permission level of a resource.
type Level string

// Mapping is the static level to operations table of one resource type.
type Mapping struct {
	resource string
	universe OperationSet
	levels   map[Level]OperationSet
}

func newMapping(resource string, universe []Operation, levels map[Level][]Operation) *Mapping {
	m := &Mapping{
		resource: resource,
		universe: NewOperationSet(universe...),
		levels:   make(map[Level]OperationSet, len(levels)),
	}
	for level, ops := range levels {
		m.levels[level] = NewOperationSet(ops...)
	}
	return m
}

func (m *Mapping) Resource() string { return m.resource }

// Operations returns a copy of the operations granted by level.
func (m *Mapping) Operations(level Level) (OperationSet, error) {
	ops, ok := m.levels[level]
	if !ok {
		return nil, response.NewInvalidInput("unknown %s permission level: %s", m.resource, level)
	}
	return ops.Union(nil), nil
}

// Allows reports whether level grants op. Unknown levels allow nothing.
func (m *Mapping) Allows(level Level, op Operation) bool {
	ops, ok := m.levels[level]
	return ok && ops.Has(op)
}

// Levels returns the known levels sorted by name.
func (m *Mapping) Levels() []Level {
	out := make([]Level, 0, len(m.levels))
	for level := range m.levels {
		out = append(out, level)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Universe returns a copy of every operation of the resource.
func (m *Mapping) Universe() OperationSet {
	return m.universe.Union(nil)
}

// HasLevel reports whether level belongs to the mapping.
func (m *Mapping) HasLevel(level Level) bool {
	_, ok := m.levels[level]
	return ok
}

// ForResource looks up the mapping of a resource type by name.
func ForResource(resource string) (*Mapping, error) {
	switch resource {
	case Bounty.resource:
		return Bounty, nil
	case Page.resource:
		return Page, nil
	case Space.resource:
		return Space, nil
	}
	return nil, response.NewInvalidInput("unknown resource type: %s", resource)
}

// mustOps panics on a level missing from a static table.
func mustOps(m *Mapping, level Level) OperationSet {
	ops, err := m.Operations(level)
	if err != nil {
		panic(fmt.Sprintf("permissions: %v", err))
	}
	return ops
}
