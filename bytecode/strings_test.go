package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringStorageRoundTrip(t *testing.T) {
	strs := []string{"", "hello", "héllo", "日本語", "hello"}
	for _, optimize := range []bool{false, true} {
		storage := NewStringStorage(strs, optimize)
		require.Equal(t, len(strs), storage.Count())
		require.Equal(t, strs, storage.Strings())
	}
}

func TestStringStorageEncoding(t *testing.T) {
	storage := NewStringStorage([]string{"abc", "é"}, false)
	ascii := storage.EntryAt(0)
	require.False(t, ascii.IsUTF16)
	require.Equal(t, uint32(3), ascii.Length)

	wide := storage.EntryAt(1)
	require.True(t, wide.IsUTF16)
	require.Equal(t, uint32(1), wide.Length)
	require.Equal(t, uint32(0), wide.Offset%2)
	require.Equal(t, []byte{'a', 'b', 'c', 0, 0xe9, 0x00}, storage.Bytes())
}

func TestStringStorageSharesSubstrings(t *testing.T) {
	strs := []string{"get", "target", "arg"}
	plain := NewStringStorage(strs, false)
	packed := NewStringStorage(strs, true)
	require.Equal(t, 12, plain.Size())
	require.Equal(t, 6, packed.Size())
	require.Equal(t, strs, packed.Strings())

	// "get" is the suffix of "target"
	require.Equal(t, packed.EntryAt(1).Offset+3, packed.EntryAt(0).Offset)
}

func TestStringStorageUTF16Alignment(t *testing.T) {
	// "\ue961\u0100" encodes as 61 e9 00 01, which contains the encoding
	// of "é" (e9 00) at an odd offset. That occurrence must not be shared.
	strs := []string{"\ue961\u0100", "é"}
	storage := NewStringStorage(strs, true)
	require.Equal(t, strs, storage.Strings())
	require.Equal(t, uint32(4), storage.EntryAt(1).Offset)
	require.Equal(t, 6, storage.Size())
}
