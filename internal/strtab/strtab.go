// Package strtab holds the uniquing string and regular expression tables a
// module accumulates while its functions are generated.
package strtab

import (
	"fmt"
	"sort"

	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/internal/alloc"
)

// Strings is a uniquing string table that also remembers which strings are
// used as identifiers. The zero value is an empty table.
type Strings struct {
	table       alloc.Table[string]
	identifiers map[uint32]struct{}
}

// Add returns the id of s, appending it if needed. Once a string has been
// added as an identifier it stays one.
func (s *Strings) Add(str string, isIdentifier bool) uint32 {
	id := s.table.Allocate(str)
	if isIdentifier {
		if s.identifiers == nil {
			s.identifiers = map[uint32]struct{}{}
		}
		s.identifiers[id] = struct{}{}
	}
	return id
}

// Lookup returns the id of str without adding it.
func (s *Strings) Lookup(str string) (uint32, bool) {
	return s.table.Lookup(str)
}

// Len returns the number of strings in the table.
func (s *Strings) Len() int {
	return s.table.Len()
}

// Strings returns the strings in id order.
func (s *Strings) Strings() []string {
	return s.table.Elements()
}

// IsIdentifier reports whether the string with the given id was added as
// an identifier.
func (s *Strings) IsIdentifier(id uint32) bool {
	_, ok := s.identifiers[id]
	return ok
}

// Identifiers returns the ids of all identifier strings in ascending order.
func (s *Strings) Identifiers() []uint32 {
	if len(s.identifiers) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(s.identifiers))
	for id := range s.identifiers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Seed adds every string of a previously built storage in id order, so
// ids recorded against the storage stay valid. A storage holding the same
// string twice cannot keep its ids and is rejected before anything is
// added.
func (s *Strings) Seed(storage bytecode.StringStorage) error {
	seen := make(map[string]int, storage.Count())
	for i := 0; i < storage.Count(); i++ {
		str := storage.StringAt(i)
		if first, dup := seen[str]; dup {
			return fmt.Errorf("string %q at id %d repeats id %d", str, i, first)
		}
		seen[str] = i
	}
	for i := 0; i < storage.Count(); i++ {
		s.table.Allocate(storage.StringAt(i))
	}
	return nil
}

// Storage lays the table out as compacted string storage.
func (s *Strings) Storage(optimize bool) bytecode.StringStorage {
	return bytecode.NewStringStorage(s.table.Elements(), optimize)
}

// RegExps is a uniquing table of regular expression literals keyed by
// pattern and flags.
type RegExps struct {
	table alloc.Table[bytecode.RegExp]
}

// Add returns the id of re, appending it if needed.
func (r *RegExps) Add(re bytecode.RegExp) uint32 {
	return r.table.Allocate(re)
}

// Len returns the number of regular expressions in the table.
func (r *RegExps) Len() int {
	return r.table.Len()
}

// RegExps returns the regular expressions in id order.
func (r *RegExps) RegExps() []bytecode.RegExp {
	return r.table.Elements()
}
