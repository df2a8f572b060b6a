package bytecode

import (
	"bytes"
	"sort"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// StringEntry locates one string inside a StringStorage.
type StringEntry struct {
	Offset  uint32 // byte offset into the storage
	Length  uint32 // length in characters (bytes for ASCII, code units for UTF-16)
	IsUTF16 bool
}

// byteLen returns the number of storage bytes the entry spans.
func (e StringEntry) byteLen() int {
	if e.IsUTF16 {
		return int(e.Length) * 2
	}
	return int(e.Length)
}

// StringStorage is the compacted form of a string table: a single byte
// array holding every string, plus one entry per string id. ASCII strings
// take one byte per character and all other strings are stored as
// UTF-16LE. Entries may overlap when one string's encoding occurs inside
// another's.
type StringStorage struct {
	entries []StringEntry
	storage []byte
}

// NewStringStorage lays out the given strings, indexed by position. When
// optimize is set, strings are placed longest first and any string whose
// encoding already occurs in the storage shares those bytes.
func NewStringStorage(strs []string, optimize bool) StringStorage {
	encoded := make([][]byte, len(strs))
	entries := make([]StringEntry, len(strs))
	for i, s := range strs {
		enc, utf16 := encodeString(s)
		encoded[i] = enc
		entries[i].IsUTF16 = utf16
		if utf16 {
			entries[i].Length = uint32(len(enc) / 2)
		} else {
			entries[i].Length = uint32(len(enc))
		}
	}

	order := make([]int, len(strs))
	for i := range order {
		order[i] = i
	}
	if optimize {
		sort.SliceStable(order, func(a, b int) bool {
			return len(encoded[order[a]]) > len(encoded[order[b]])
		})
	}

	var storage []byte
	for _, i := range order {
		enc := encoded[i]
		if len(enc) == 0 {
			continue
		}
		if optimize {
			if off, ok := findEncoded(storage, enc, entries[i].IsUTF16); ok {
				entries[i].Offset = uint32(off)
				continue
			}
		}
		if entries[i].IsUTF16 && len(storage)%2 != 0 {
			storage = append(storage, 0)
		}
		entries[i].Offset = uint32(len(storage))
		storage = append(storage, enc...)
	}
	return StringStorage{entries: entries, storage: storage}
}

// encodeString returns the storage encoding of s and whether it is UTF-16.
func encodeString(s string) ([]byte, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			// The UTF-16 encoder substitutes U+FFFD for invalid UTF-8
			// rather than failing.
			enc, _ := utf16le.NewEncoder().Bytes([]byte(s))
			return enc, true
		}
	}
	return []byte(s), false
}

// findEncoded searches storage for enc. UTF-16 matches must start at an
// even offset.
func findEncoded(storage, enc []byte, utf16 bool) (int, bool) {
	base := 0
	for {
		idx := bytes.Index(storage[base:], enc)
		if idx < 0 {
			return 0, false
		}
		off := base + idx
		if !utf16 || off%2 == 0 {
			return off, true
		}
		base = off + 1
	}
}

// Count returns the number of strings.
func (s StringStorage) Count() int {
	return len(s.entries)
}

// EntryAt returns the storage entry of the string with the given id.
func (s StringStorage) EntryAt(id int) StringEntry {
	return s.entries[id]
}

// StringAt decodes the string with the given id.
func (s StringStorage) StringAt(id int) string {
	e := s.entries[id]
	raw := s.storage[e.Offset : int(e.Offset)+e.byteLen()]
	if !e.IsUTF16 {
		return string(raw)
	}
	dec, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(dec)
}

// Strings decodes every string in id order.
func (s StringStorage) Strings() []string {
	out := make([]string, len(s.entries))
	for i := range s.entries {
		out[i] = s.StringAt(i)
	}
	return out
}

// Size returns the size of the storage array in bytes.
func (s StringStorage) Size() int {
	return len(s.storage)
}

// Bytes returns a copy of the storage array.
func (s StringStorage) Bytes() []byte {
	return clone(s.storage)
}
