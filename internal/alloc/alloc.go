// Package alloc provides a deduplicating table that assigns dense,
// sequential ids to values.
package alloc

// Table assigns a sequential id to each distinct value it is given. Lookup
// by value goes through a map while iteration in id order uses a slice, so
// both are O(1). The zero value is an empty table ready for use.
type Table[T comparable] struct {
	index    map[T]uint32
	elements []T
}

// Allocate returns the id of v, assigning the next id if v has not been
// seen before.
func (t *Table[T]) Allocate(v T) uint32 {
	if id, ok := t.index[v]; ok {
		return id
	}
	if t.index == nil {
		t.index = make(map[T]uint32)
	}
	id := uint32(len(t.elements))
	t.index[v] = id
	t.elements = append(t.elements, v)
	return id
}

// Lookup returns the id of v without allocating.
func (t *Table[T]) Lookup(v T) (uint32, bool) {
	id, ok := t.index[v]
	return id, ok
}

// At returns the value with the given id.
func (t *Table[T]) At(id uint32) T {
	return t.elements[id]
}

// Len returns the number of allocated values.
func (t *Table[T]) Len() int {
	return len(t.elements)
}

// Elements returns a copy of all values in id order.
func (t *Table[T]) Elements() []T {
	if len(t.elements) == 0 {
		return nil
	}
	out := make([]T, len(t.elements))
	copy(out, t.elements)
	return out
}
