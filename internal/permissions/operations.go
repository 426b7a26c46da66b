// Package permissions maps permission levels to the operations they allow.
package permissions

import (
	"encoding/json"
	"sort"
)

// Operation is a single permitted action on a resource.
type Operation string

// OperationSet is an unordered set of operations.
type OperationSet map[Operation]struct{}

// NewOperationSet builds a set from the given operations.
func NewOperationSet(ops ...Operation) OperationSet {
	s := make(OperationSet, len(ops))
	for _, op := range ops {
		s[op] = struct{}{}
	}
	return s
}

func (s OperationSet) Has(op Operation) bool {
	_, ok := s[op]
	return ok
}

// Union returns a new set holding the operations of s and other.
func (s OperationSet) Union(other OperationSet) OperationSet {
	out := make(OperationSet, len(s)+len(other))
	for op := range s {
		out[op] = struct{}{}
	}
	for op := range other {
		out[op] = struct{}{}
	}
	return out
}

// SubsetOf reports whether every operation of s is also in other.
func (s OperationSet) SubsetOf(other OperationSet) bool {
	for op := range s {
		if !other.Has(op) {
			return false
		}
	}
	return true
}

// Slice returns the operations sorted by name.
func (s OperationSet) Slice() []Operation {
	out := make([]Operation, 0, len(s))
	for op := range s {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s OperationSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// Flags renders the set as an operation to bool map covering the whole universe.
func (s OperationSet) Flags(universe OperationSet) map[Operation]bool {
	out := make(map[Operation]bool, len(universe))
	for op := range universe {
		out[op] = s.Has(op)
	}
	return out
}
