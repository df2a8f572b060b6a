package bcgen

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/literal"
	"github.com/risor-io/bcgen/op"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestArrayBufferDedup(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	elems := []literal.Literal{literal.Number(1), literal.String("x"), literal.Null()}
	first := m.AddArrayBuffer(elems)
	size := len(m.arrayBuffer)
	second := m.AddArrayBuffer(elems)
	require.Equal(t, first, second)
	require.Len(t, m.arrayBuffer, size)

	other := m.AddArrayBuffer([]literal.Literal{literal.Bool(false)})
	require.Equal(t, uint32(size), other)
}

func TestObjectBufferSharesKeys(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	k1, v1 := m.AddObjectBuffer(
		[]literal.Literal{literal.String("a")},
		[]literal.Literal{literal.Number(1)},
	)
	k2, v2 := m.AddObjectBuffer(
		[]literal.Literal{literal.String("a")},
		[]literal.Literal{literal.Number(2)},
	)
	require.Equal(t, k1, k2)
	require.NotEqual(t, v1, v2)

	// Object keys are identifiers.
	id, ok := m.strings.Lookup("a")
	require.True(t, ok)
	require.True(t, m.strings.IsIdentifier(id))
}

func TestSerializeBufferMatchesRawBytes(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	for i := 0; i < 0x11; i++ {
		m.AddString(fmt.Sprintf("s%d", i), false)
	}
	// The string gets id 0x11, which is also the encoding of a single true.
	require.Equal(t, uint32(0), m.AddArrayBuffer([]literal.Literal{literal.String("s")}))
	require.Equal(t, []byte{0x61, 0x11}, m.arrayBuffer)
	require.Equal(t, uint32(1), m.AddArrayBuffer([]literal.Literal{literal.Bool(true)}))
	require.Len(t, m.arrayBuffer, 2)
}

func TestIntegerLiteralsFollowOptimization(t *testing.T) {
	opts := DefaultOptions()
	m := NewModuleGenerator(opts)
	m.AddArrayBuffer([]literal.Literal{literal.Number(3)})
	require.Equal(t, []byte{0x71, 3, 0, 0, 0}, m.arrayBuffer)

	opts.OptimizationEnabled = false
	m = NewModuleGenerator(opts)
	m.AddArrayBuffer([]literal.Literal{literal.Number(3)})
	require.Equal(t, byte(0x31), m.arrayBuffer[0])
	require.Len(t, m.arrayBuffer, 9)
}

func TestStringsSharedAcrossFunctions(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	a := NewFunctionGenerator(m, 1)
	b := NewFunctionGenerator(m, 1)
	idA := a.AddConstantString("foo", false)
	idB := b.AddConstantString("foo", false)
	require.Equal(t, idA, idB)

	for _, g := range []*FunctionGenerator{a, b} {
		g.Emit(op.LoadConstString, 0, int64(idA))
		g.Emit(op.Ret, 0)
		g.BytecodeGenerationComplete()
	}
	fa, fb := newFunction("a"), newFunction("b")
	m.SetFunctionGenerator(fa, a)
	m.SetFunctionGenerator(fb, b)
	m.SetEntryPointIndex(0)
	module := m.Generate()

	count := 0
	for _, s := range module.Strings().Strings() {
		if s == "foo" {
			count++
		}
	}
	require.Equal(t, 1, count)
	require.NoError(t, module.Validate())
}

func TestStaticCJSModules(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	fnA := m.AddFunction(newFunction("a"))
	fnB := m.AddFunction(newFunction("b"))
	m.AddCJSModuleStatic(0, fnA)
	m.AddCJSModuleStatic(1, fnB)
	require.Equal(t, []uint32{fnA, fnB}, m.cjsModulesStatic)
	requirePanicsWith(t, ErrCJSModuleOutOfOrder, func() { m.AddCJSModuleStatic(5, fnA) })
}

func TestStaticCJSModulesWithOffset(t *testing.T) {
	opts := DefaultOptions()
	opts.CJSModuleOffset = 10
	m := NewModuleGenerator(opts)
	requirePanicsWith(t, ErrCJSModuleOutOfOrder, func() { m.AddCJSModuleStatic(0, 0) })
	m.AddCJSModuleStatic(10, 0)
	m.AddCJSModuleStatic(11, 0)
	require.Len(t, m.cjsModulesStatic, 2)
}

func TestGenerate(t *testing.T) {
	var logs bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = zerolog.New(&logs).Level(zerolog.DebugLevel)
	m := NewModuleGenerator(opts)

	main := &testFunction{name: "main", strict: true}
	helper := &testFunction{name: "helper", kind: bytecode.ES6Arrow, params: 2, env: 1}
	helperID := m.AddFunction(helper)
	mainID := m.AddFunction(main)

	g := NewFunctionGenerator(m, 2)
	g.Emit(op.CreateClosure, 0, 1, int64(helperID))
	g.Emit(op.GetById, 1, 0, 0, int64(g.AddConstantString("length", true)))
	g.Emit(op.Ret, 1)
	g.AddDebugSourceLocation(bytecode.DebugLocation{Address: 0, Line: 1, FilenameID: g.AddFilename("main.js")})
	g.SetHighestReadCacheIndex(0)
	g.BytecodeGenerationComplete()
	m.SetFunctionGenerator(main, g)

	h := retGenerator(m)
	h.SetLexicalParentID(mainID)
	h.SetLazy(true)
	m.SetFunctionGenerator(helper, h)

	nameID := m.AddString("mod", false)
	m.AddCJSModule(mainID, nameID)
	m.AddRegExp(bytecode.RegExp{Pattern: "a+", Flags: "g"})
	require.Equal(t, -1, m.EntryPointIndex())
	m.SetEntryPointIndex(int(mainID))

	module := m.Generate()
	require.NoError(t, module.Validate())
	require.Equal(t, 2, module.FunctionCount())
	require.Equal(t, mainID, module.EntryPoint())
	require.True(t, module.Lazy())

	mainFn := module.FunctionAt(int(mainID))
	require.Equal(t, "main", module.StringAt(int(mainFn.NameID())))
	require.True(t, mainFn.StrictMode())
	helperFn := module.FunctionAt(int(helperID))
	require.Equal(t, "helper", module.StringAt(int(helperFn.NameID())))
	require.Equal(t, bytecode.ES6Arrow, helperFn.Kind())
	require.Equal(t, uint32(2), helperFn.ParamCount())
	require.Equal(t, uint32(1), helperFn.EnvironmentSize())
	parent, ok := helperFn.LexicalParentID()
	require.True(t, ok)
	require.Equal(t, mainID, parent)

	lengthID, ok := m.strings.Lookup("length")
	require.True(t, ok)
	require.True(t, module.IsIdentifier(lengthID))
	require.False(t, module.IsIdentifier(nameID))
	require.Equal(t, "main.js", module.FilenameAt(0))
	require.Equal(t, bytecode.CJSModule{NameID: nameID, FunctionID: mainID}, module.CJSModuleAt(0))
	require.Equal(t, "/a+/g", module.RegExpAt(0).String())

	require.Contains(t, logs.String(), `"message":"generated module"`)
	require.Contains(t, logs.String(), `"functions":2`)
}

func TestGenerateStripsFunctionNames(t *testing.T) {
	opts := DefaultOptions()
	opts.StripFunctionNames = true
	m := NewModuleGenerator(opts)
	for _, name := range []string{"a", "b"} {
		m.SetFunctionGenerator(newFunction(name), retGenerator(m))
	}
	m.SetEntryPointIndex(1)
	module := m.Generate()
	require.Equal(t, []string{strippedFunctionName}, module.Strings().Strings())
	require.Equal(t, uint32(0), module.FunctionAt(0).NameID())
	require.Equal(t, uint32(0), module.FunctionAt(1).NameID())
}

func TestGenerateOnlyOnce(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	m.SetFunctionGenerator(newFunction("main"), retGenerator(m))
	m.SetEntryPointIndex(0)
	m.Generate()
	requirePanicsWith(t, ErrGeneratorConsumed, func() { m.Generate() })
	requirePanicsWith(t, ErrGeneratorConsumed, func() { m.AddString("x", false) })
}

func TestGenerateRequiresEntryPoint(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	m.SetFunctionGenerator(newFunction("main"), retGenerator(m))
	requirePanicsWith(t, ErrNoEntryPoint, func() { m.Generate() })
	m.SetEntryPointIndex(3)
	requirePanicsWith(t, ErrNoEntryPoint, func() { m.Generate() })
}

func TestGenerateRequiresAllGenerators(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	m.SetFunctionGenerator(newFunction("main"), retGenerator(m))
	m.AddFunction(newFunction("orphan"))
	m.SetEntryPointIndex(0)
	requirePanicsWith(t, ErrMissingGenerator, func() { m.Generate() })
}

func TestSetFunctionGeneratorPolicy(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	fn := newFunction("main")
	g := retGenerator(m)
	m.SetFunctionGenerator(fn, g)

	requirePanicsWith(t, ErrDuplicateGenerator, func() { m.SetFunctionGenerator(fn, retGenerator(m)) })
	requirePanicsWith(t, ErrGeneratorFrozen, func() { m.SetFunctionGenerator(newFunction("other"), g) })

	other := NewModuleGenerator(DefaultOptions())
	requirePanicsWith(t, ErrForeignGenerator, func() { m.SetFunctionGenerator(newFunction("x"), retGenerator(other)) })

	building := NewFunctionGenerator(m, 1)
	requirePanicsWith(t, ErrGeneratorIncomplete, func() { m.SetFunctionGenerator(newFunction("y"), building) })
}

func TestAddFunctionIsIdempotent(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	a, b := newFunction("a"), newFunction("a")
	require.Equal(t, uint32(0), m.AddFunction(a))
	require.Equal(t, uint32(1), m.AddFunction(b))
	require.Equal(t, uint32(0), m.AddFunction(a))
	require.Equal(t, 2, m.FunctionCount())
}

func TestInitializeStringsFromStorage(t *testing.T) {
	storage := bytecode.NewStringStorage([]string{"x", "y"}, true)
	m := NewModuleGenerator(DefaultOptions())
	m.InitializeStringsFromStorage(storage)
	require.Equal(t, uint32(1), m.AddString("y", false))
	require.Equal(t, uint32(2), m.AddString("z", false))
	requirePanicsWith(t, ErrStringTableNotEmpty, func() { m.InitializeStringsFromStorage(storage) })
}

func TestInitializeStringsRejectsRepeatedStrings(t *testing.T) {
	storage := bytecode.NewStringStorage([]string{"x", "y", "x"}, false)
	m := NewModuleGenerator(DefaultOptions())
	requirePanicsWith(t, ErrDuplicateString, func() { m.InitializeStringsFromStorage(storage) })
	// Nothing was seeded, so the table can still be initialized.
	m.InitializeStringsFromStorage(bytecode.NewStringStorage([]string{"x", "y"}, false))
	require.Equal(t, uint32(1), m.AddString("y", false))
}

func TestGenerateCompactsStrings(t *testing.T) {
	build := func(optimize bool) *bytecode.Module {
		opts := DefaultOptions()
		opts.OptimizationEnabled = optimize
		m := NewModuleGenerator(opts)
		m.AddString("prototype", false)
		m.AddString("type", false)
		m.SetFunctionGenerator(newFunction("proto"), retGenerator(m))
		m.SetEntryPointIndex(0)
		return m.Generate()
	}
	packed, plain := build(true), build(false)
	require.Equal(t, plain.Strings().Strings(), packed.Strings().Strings())
	require.Less(t, packed.Strings().Size(), plain.Strings().Size())
	require.Equal(t, plain.ID(), packed.ID())
}
