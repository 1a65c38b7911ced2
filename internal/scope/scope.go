// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package scope holds the variable environment shared by the directives of a
// single render call. Values written by one directive are bound into every
// directive evaluated after it, which is how a `var` declared in one code
// block becomes visible to later blocks and to loop bodies.
//
// A Scope belongs to exactly one render call and is not safe for concurrent
// use; concurrent renders each get their own.
package scope

// Scope maps variable names to their last known value and remembers the order
// in which names were first set.
type Scope struct {
	names  []string
	values map[string]any
}

// New returns an empty scope.
func New() *Scope {
	return &Scope{values: make(map[string]any)}
}

// Set records the value of name.
func (s *Scope) Set(name string, v any) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = v
}

// Get returns the value of name and whether it has been set.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns every name in first-set order. The slice is a copy.
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of names in the scope.
func (s *Scope) Len() int {
	return len(s.names)
}

// Merge writes back the post-execution values of names. Names missing from
// values are left untouched.
func (s *Scope) Merge(names []string, values map[string]any) {
	for _, name := range names {
		if v, ok := values[name]; ok {
			s.Set(name, v)
		}
	}
}
