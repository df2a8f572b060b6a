package suggest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"mov", "mov", 0},
		{"nope", "not", 2},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, distance(tt.a, tt.b), "%s/%s", tt.a, tt.b)
	}
}

func TestSimilar(t *testing.T) {
	names := []string{"Mov", "Not", "Ret", "LoadConstString", "LoadConstTrue", "Jmp"}
	require.Equal(t, []string{"Not"}, Similar("Nope", names))
	require.Equal(t, []string{"LoadConstString", "LoadConstTrue"}, Similar("LoadConstStrng", names))
	require.Empty(t, Similar("mov", names))
	require.Empty(t, Similar("", names))
	require.Empty(t, Similar("Xyzzy", names))
}

func TestSimilarLimit(t *testing.T) {
	names := []string{"abcd", "abce", "abcf", "abcg"}
	require.Equal(t, []string{"abcd", "abce", "abcf"}, Similar("abcx", names))
}

func TestHint(t *testing.T) {
	require.Equal(t, ` (did you mean "Not"?)`, Hint("Nope", []string{"Not", "Mov"}))
	require.Equal(t, ` (did you mean one of: "Jmp", "Jmp2"?)`, Hint("Jmpq", []string{"Jmp", "Jmp2"}))
	require.Equal(t, "", Hint("Zzz", []string{"Jmp"}))
}
