// Package set implements the order-insensitive fact sets used by every
// dataflow equation.
//
// Design: a thin wrapper over golang-set that exposes in-place union,
// subtraction and intersection, matching how gen/kill equations are written.
package set

import (
	"cmp"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Set is a mutable set over a comparable element type.
// The zero value is not usable; construct with New.
type Set[T comparable] struct {
	s mapset.Set[T]
}

// New returns a set holding elems.
func New[T comparable](elems ...T) *Set[T] {
	return &Set[T]{s: mapset.NewThreadUnsafeSet[T](elems...)}
}

// Add inserts x.
func (s *Set[T]) Add(x T) {
	s.s.Add(x)
}

// Remove deletes x if present.
func (s *Set[T]) Remove(x T) {
	s.s.Remove(x)
}

// Contains reports whether x is a member.
func (s *Set[T]) Contains(x T) bool {
	return s.s.Contains(x)
}

// Len returns the number of members.
func (s *Set[T]) Len() int {
	return s.s.Cardinality()
}

// IsEmpty reports whether the set has no members.
func (s *Set[T]) IsEmpty() bool {
	return s.s.Cardinality() == 0
}

// Union adds every member of other to s and returns s.
func (s *Set[T]) Union(other *Set[T]) *Set[T] {
	other.s.Each(func(x T) bool {
		s.s.Add(x)
		return false
	})
	return s
}

// Sub removes every member of other from s and returns s.
func (s *Set[T]) Sub(other *Set[T]) *Set[T] {
	other.s.Each(func(x T) bool {
		s.s.Remove(x)
		return false
	})
	return s
}

// Intersection keeps only the members also in other and returns s.
func (s *Set[T]) Intersection(other *Set[T]) *Set[T] {
	s.s = s.s.Intersect(other.s)
	return s
}

// Clone returns an independent copy.
func (s *Set[T]) Clone() *Set[T] {
	return &Set[T]{s: s.s.Clone()}
}

// IsSame reports structural equality, ignoring order.
func (s *Set[T]) IsSame(other *Set[T]) bool {
	return s.s.Equal(other.s)
}

// IsSubset reports whether every member of s is in other.
func (s *Set[T]) IsSubset(other *Set[T]) bool {
	return s.s.IsSubset(other.s)
}

// Each calls fn for every member until fn returns false.
func (s *Set[T]) Each(fn func(T) bool) {
	s.s.Each(func(x T) bool {
		return !fn(x)
	})
}

// Slice returns the members in unspecified order.
func (s *Set[T]) Slice() []T {
	return s.s.ToSlice()
}

// SortedFunc returns the members ordered by compare.
func (s *Set[T]) SortedFunc(compare func(a, b T) int) []T {
	out := s.s.ToSlice()
	slices.SortFunc(out, compare)
	return out
}

// Sorted returns the members of an ordered set in ascending order.
func Sorted[T cmp.Ordered](s *Set[T]) []T {
	out := s.s.ToSlice()
	slices.Sort(out)
	return out
}
