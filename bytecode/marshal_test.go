package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	fn := NewFunction(FunctionParams{
		Kind:                   ES6Method,
		StrictMode:             true,
		ParamCount:             2,
		EnvironmentSize:        1,
		NameID:                 1,
		FrameSize:              3,
		Opcodes:                []byte{7, 0, 41, 0},
		ExceptionHandlers:      []ExceptionHandler{{Start: 0, End: 2, Target: 2}},
		HighestReadCacheIndex:  2,
		HighestWriteCacheIndex: 1,
		LexicalParentID:        0,
		HasLexicalParent:       true,
		SourceLocation:         DebugLocation{Line: 2, Column: 1},
		Locations:              []DebugLocation{{Address: 2, Line: 3, Column: 5}},
		VariableNames:          []string{"a", "b"},
	})
	original := NewModule(ModuleParams{
		Functions:         []*Function{retFunction(0), fn},
		Strings:           NewStringStorage([]string{"global", "method", "日本"}, true),
		Identifiers:       []uint32{1},
		RegExps:           []RegExp{{Pattern: "x*", Flags: "i"}},
		Filenames:         NewStringStorage([]string{"a.js"}, false),
		CJSModules:        []CJSModule{{NameID: 2, FunctionID: 1}},
		CJSModulesStatic:  []uint32{1, 0},
		CJSModuleOffset:   3,
		ArrayBuffer:       []byte{1, 2},
		ObjectKeyBuffer:   []byte{3},
		ObjectValueBuffer: []byte{4, 5},
		Lazy:              true,
	})

	data, err := Marshal(original)
	require.NoError(t, err)
	restored, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, original.ID(), restored.ID())
	require.Equal(t, original.Strings().Strings(), restored.Strings().Strings())
	require.Equal(t, original.RegExpAt(0), restored.RegExpAt(0))
	require.Equal(t, original.CJSModuleOffset(), restored.CJSModuleOffset())
	require.Equal(t, original.StaticCJSModuleAt(1), restored.StaticCJSModuleAt(1))
	require.True(t, restored.Lazy())
	require.Equal(t, original.Stats(), restored.Stats())

	got := restored.FunctionAt(1)
	require.Equal(t, fn.Kind(), got.Kind())
	require.Equal(t, fn.Opcodes(), got.Opcodes())
	require.Equal(t, fn.ExceptionHandlerAt(0), got.ExceptionHandlerAt(0))
	require.Equal(t, fn.LocationAt(0), got.LocationAt(0))
	require.Equal(t, fn.SourceLocation(), got.SourceLocation())
	parent, ok := got.LexicalParentID()
	require.True(t, ok)
	require.Equal(t, uint32(0), parent)
	_, ok = restored.FunctionAt(0).LexicalParentID()
	require.False(t, ok)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte("{"))
	require.Error(t, err)

	_, err = Unmarshal([]byte(`{"functions":[{"kind":"generator"}]}`))
	require.EqualError(t, err, `function 0: unknown definition kind "generator"`)
}
