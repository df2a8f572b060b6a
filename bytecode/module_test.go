package bytecode

import (
	"testing"

	"github.com/risor-io/bcgen/op"
	"github.com/stretchr/testify/require"
)

// retFunction returns "LoadConstZero r0; Ret r0" named by nameID.
func retFunction(nameID uint32) *Function {
	return NewFunction(FunctionParams{
		NameID:    nameID,
		FrameSize: 1,
		Opcodes:   []byte{byte(op.LoadConstZero), 0, byte(op.Ret), 0},
	})
}

func testModule() *Module {
	return NewModule(ModuleParams{
		Functions:         []*Function{retFunction(0), retFunction(1)},
		EntryPoint:        0,
		Strings:           NewStringStorage([]string{"global", "foo", "bar"}, true),
		Identifiers:       []uint32{1, 2},
		RegExps:           []RegExp{{Pattern: "a+", Flags: "g"}},
		Filenames:         NewStringStorage([]string{"main.js"}, false),
		CJSModules:        []CJSModule{{NameID: 1, FunctionID: 1}},
		CJSModulesStatic:  []uint32{1},
		ArrayBuffer:       []byte{0x71, 1, 0, 0, 0},
		ObjectKeyBuffer:   []byte{0x61, 1},
		ObjectValueBuffer: []byte{0x10},
	})
}

func TestModuleAccessors(t *testing.T) {
	m := testModule()
	require.Equal(t, 2, m.FunctionCount())
	require.Equal(t, uint32(0), m.EntryPoint())
	require.Equal(t, 3, m.StringCount())
	require.Equal(t, "foo", m.StringAt(1))
	require.Equal(t, 2, m.IdentifierCount())
	require.True(t, m.IsIdentifier(2))
	require.False(t, m.IsIdentifier(0))
	require.Equal(t, "/a+/g", m.RegExpAt(0).String())
	require.Equal(t, "main.js", m.FilenameAt(0))
	require.Equal(t, CJSModule{NameID: 1, FunctionID: 1}, m.CJSModuleAt(0))
	require.Equal(t, uint32(1), m.StaticCJSModuleAt(0))
	require.Equal(t, []byte{0x71, 1, 0, 0, 0}, m.ArrayBuffer())

	stats := m.Stats()
	require.Equal(t, 2, stats.FunctionCount)
	require.Equal(t, 8, stats.BytecodeBytes)
	require.Equal(t, 8, stats.LiteralBufferBytes)
	require.Equal(t, 2, stats.CJSModuleCount)
}

func TestModuleBuffersAreCopied(t *testing.T) {
	buf := []byte{1, 2, 3}
	m := NewModule(ModuleParams{
		Functions:   []*Function{retFunction(0)},
		Strings:     NewStringStorage([]string{""}, false),
		ArrayBuffer: buf,
	})
	buf[0] = 9
	require.Equal(t, byte(1), m.ArrayBuffer()[0])
	out := m.ArrayBuffer()
	out[1] = 9
	require.Equal(t, byte(2), m.ArrayBuffer()[1])
}

func TestModuleIDIsContentDerived(t *testing.T) {
	a, b := testModule(), testModule()
	require.Equal(t, a.ID(), b.ID())
	require.Equal(t, byte(5), a.ID().Version())

	c := NewModule(ModuleParams{
		Functions: []*Function{retFunction(0)},
		Strings:   NewStringStorage([]string{"global"}, true),
	})
	require.NotEqual(t, a.ID(), c.ID())
}

func TestValidate(t *testing.T) {
	require.NoError(t, testModule().Validate())
}

func TestValidateReportsAllProblems(t *testing.T) {
	bad := NewFunction(FunctionParams{
		NameID: 9,
		// JmpLong +100 jumps past the end of the stream
		Opcodes: []byte{byte(op.JmpLong), 100, 0, 0, 0, byte(op.Ret), 0},
		ExceptionHandlers: []ExceptionHandler{
			{Start: 0, End: 50, Target: 1},
		},
		Locations: []DebugLocation{{Address: 3, Line: 1}},
	})
	m := NewModule(ModuleParams{
		Functions:        []*Function{bad},
		EntryPoint:       4,
		Strings:          NewStringStorage([]string{"x"}, false),
		Identifiers:      []uint32{3},
		CJSModulesStatic: []uint32{2},
	})
	err := m.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"entry point 4 out of range",
		"identifier 0: string id 3 out of range",
		"static cjs module 0: function id 2 out of range",
		"function 0: ",
		"name id 9 out of range",
		"jump at 0 targets 100",
		"handler 0: invalid range [0, 50)",
		"handler 0: target 1 is not an instruction",
		"debug location 0: address 3 is not an instruction",
	} {
		require.Contains(t, msg, want)
	}
}

func TestValidateTruncatedStream(t *testing.T) {
	m := NewModule(ModuleParams{
		Functions: []*Function{NewFunction(FunctionParams{
			Opcodes: []byte{byte(op.LoadConstInt), 0, 1},
		})},
		Strings: NewStringStorage([]string{""}, false),
	})
	err := m.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "truncated LoadConstInt at 0")
}

func TestValidateSwitchJumpTable(t *testing.T) {
	// SwitchImm r0, table at +20 (stream size 20), default +18, cases 0..1
	code := []byte{
		byte(op.SwitchImm), 0,
		20, 0, 0, 0,
		18, 0, 0, 0,
		0, 0, 0, 0,
		1, 0, 0, 0,
		byte(op.Ret), 0,
	}
	good := NewModule(ModuleParams{
		Functions: []*Function{NewFunction(FunctionParams{Opcodes: code, JumpTable: []uint32{18, 18}})},
		Strings:   NewStringStorage([]string{""}, false),
	})
	require.NoError(t, good.Validate())

	bad := NewModule(ModuleParams{
		Functions: []*Function{NewFunction(FunctionParams{Opcodes: code, JumpTable: []uint32{18}})},
		Strings:   NewStringStorage([]string{""}, false),
	})
	require.ErrorContains(t, bad.Validate(), "switch at 0: jump table")
}

func TestValidateHandlerAndLocationBounds(t *testing.T) {
	// Mov r0, r1 (3 bytes) then Ret r0 (2 bytes)
	code := []byte{byte(op.Mov), 0, 1, byte(op.Ret), 0}
	build := func(h ExceptionHandler, loc DebugLocation, filenames []string) *Module {
		return NewModule(ModuleParams{
			Functions: []*Function{NewFunction(FunctionParams{
				Opcodes:           code,
				ExceptionHandlers: []ExceptionHandler{h},
				Locations:         []DebugLocation{loc},
			})},
			Strings:   NewStringStorage([]string{""}, false),
			Filenames: NewStringStorage(filenames, false),
		})
	}
	loc := DebugLocation{Address: 3, Line: 1}
	require.NoError(t, build(ExceptionHandler{Start: 0, End: 3, Target: 3}, loc, []string{"a.js"}).Validate())

	err := build(ExceptionHandler{Start: 1, End: 3, Target: 3}, loc, []string{"a.js"}).Validate()
	require.ErrorContains(t, err, "handler 0: range [1, 3) splits an instruction")

	err = build(ExceptionHandler{Start: 0, End: 4, Target: 3}, loc, []string{"a.js"}).Validate()
	require.ErrorContains(t, err, "handler 0: range [0, 4) splits an instruction")

	err = build(ExceptionHandler{Start: 0, End: 3, Target: 3}, loc, nil).Validate()
	require.ErrorContains(t, err, "debug location 0: filename id 0 out of range")
}
