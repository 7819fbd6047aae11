package serial

// Set is an insertion-ordered set of comparable values. It serializes under
// the built-in "Set" name and supports two-phase reconstruction, so sets may
// sit inside reference cycles.
type Set struct {
	items []any
	index map[any]int
}

// NewSet creates a set holding the given items, in order, duplicates
// dropped.
func NewSet(items ...any) *Set {
	s := &Set{index: make(map[any]int)}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts v, reporting whether it was absent. Items must be comparable.
func (s *Set) Add(v any) bool {
	if s.index == nil {
		s.index = make(map[any]int)
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, v)
	return true
}

// Has reports whether v is in the set.
func (s *Set) Has(v any) bool {
	_, ok := s.index[v]
	return ok
}

// Items returns the set's items in insertion order. The slice is a copy.
func (s *Set) Items() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items.
func (s *Set) Len() int {
	return len(s.items)
}
