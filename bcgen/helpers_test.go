package bcgen

import (
	"testing"

	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/op"
	"github.com/stretchr/testify/require"
)

type testFunction struct {
	name   string
	kind   bytecode.DefinitionKind
	strict bool
	params uint32
	env    uint32
}

func (f *testFunction) Name() string                            { return f.name }
func (f *testFunction) DefinitionKind() bytecode.DefinitionKind { return f.kind }
func (f *testFunction) StrictMode() bool                        { return f.strict }
func (f *testFunction) ParamCount() uint32                      { return f.params }
func (f *testFunction) EnvironmentSize() uint32                 { return f.env }

func newFunction(name string) *testFunction {
	return &testFunction{name: name}
}

// retGenerator returns a completed generator for "return undefined".
func retGenerator(m *ModuleGenerator) *FunctionGenerator {
	g := NewFunctionGenerator(m, 1)
	g.Emit(op.LoadConstUndefined, 0)
	g.Emit(op.Ret, 0)
	g.BytecodeGenerationComplete()
	return g
}

func requirePanicsWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic wrapping %v", target)
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, target)
	}()
	fn()
}
