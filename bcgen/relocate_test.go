package bcgen

import (
	"bytes"
	"testing"

	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/op"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRelocatorShrinksForwardJump(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 2)
	r := NewRelocator(g)
	end := r.NewLabel()
	r.EmitJump(op.Jmp, end)
	g.Emit(op.Mov, 0, 1)
	r.Bind(end)
	g.Emit(op.Ret, 0)

	result, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, 2, result.Passes)
	require.Equal(t, 1, result.Shrunk)
	require.Equal(t, []int{7, 7}, result.PassSizes)
	require.Equal(t, []byte{
		byte(op.Jmp), 5,
		byte(op.Mov), 0, 1,
		byte(op.Ret), 0,
	}, g.Bytes())
}

func TestRelocatorShrinksBackwardJump(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 1)
	r := NewRelocator(g)
	top := r.NewLabel()
	r.Bind(top)
	g.Emit(op.Inc, 0, 0)
	r.EmitJump(op.JmpTrueLong, top, 0)

	_, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, []byte{
		byte(op.Inc), 0, 0,
		byte(op.JmpTrue), 0xfd, 0,
	}, g.Bytes())
}

func TestRelocatorKeepsFarJumpsLong(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 2)
	r := NewRelocator(g)
	end := r.NewLabel()
	r.EmitJump(op.JmpFalse, end, 1)
	for i := 0; i < 70; i++ {
		g.Emit(op.Mov, 0, 1)
	}
	r.Bind(end)
	g.Emit(op.Ret, 0)

	result, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, 0, result.Shrunk)
	code := g.Bytes()
	require.Equal(t, byte(op.JmpFalseLong), code[0])
	// 6 byte jump plus 70 three byte moves.
	require.Equal(t, []byte{216, 0, 0, 0, 1}, code[1:6])
}

func TestRelocatorReachesFixedPoint(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 2)
	r := NewRelocator(g)
	far, near := r.NewLabel(), r.NewLabel()
	r.EmitJump(op.Jmp, far)  // 0, initially 130 bytes from far
	r.EmitJump(op.Jmp, near) // 5
	r.Bind(near)
	for i := 0; i < 40; i++ {
		g.Emit(op.Mov, 0, 1)
	}
	r.Bind(far)
	g.Emit(op.Ret, 0)
	g.AddExceptionHandler(bytecode.ExceptionHandler{Start: 0, End: 130, Target: 130})

	result, err := r.Resolve()
	require.NoError(t, err)
	require.Equal(t, 3, result.Passes)
	require.Equal(t, 2, result.Shrunk)
	require.Equal(t, []int{129, 126, 126}, result.PassSizes)
	for i := 1; i < len(result.PassSizes); i++ {
		require.LessOrEqual(t, result.PassSizes[i], result.PassSizes[i-1])
	}

	code := g.Bytes()
	require.Equal(t, []byte{byte(op.Jmp), 124, byte(op.Jmp), 2}, code[:4])
	require.Equal(t, byte(op.Ret), code[124])
	require.Equal(t, []bytecode.ExceptionHandler{{Start: 0, End: 124, Target: 124}}, g.ExceptionHandlers())
	for pc := 0; pc < len(code); pc += op.GetInfo(op.Code(code[pc])).Size {
		require.False(t, op.IsLongJump(op.Code(code[pc])), "long jump left at %d", pc)
	}
}

func TestRelocatorSwitch(t *testing.T) {
	m := NewModuleGenerator(DefaultOptions())
	g := NewFunctionGenerator(m, 2)
	r := NewRelocator(g)
	def, c0, c1 := r.NewLabel(), r.NewLabel(), r.NewLabel()
	r.EmitSwitch(0, 5, def, []Label{c0, c1}) // 0
	r.Bind(c0)
	g.Emit(op.LoadConstZero, 1) // 18
	r.EmitJump(op.Jmp, def)     // 20
	r.Bind(c1)
	g.Emit(op.LoadConstTrue, 1) // 25, 22 after shrinking
	r.Bind(def)
	g.Emit(op.Ret, 1) // 27, 24 after shrinking

	_, err := r.Resolve()
	require.NoError(t, err)
	code := g.Bytes()
	require.Equal(t, 26, len(code))
	require.Equal(t, []byte{
		byte(op.SwitchImm), 0,
		26, 0, 0, 0, // jump table directly after the code
		24, 0, 0, 0, // default
		5, 0, 0, 0,
		6, 0, 0, 0,
	}, code[:18])
	require.Equal(t, []byte{byte(op.Jmp), 4}, code[20:22])

	g.BytecodeGenerationComplete()
	fn := newFunction("main")
	m.SetFunctionGenerator(fn, g)
	m.SetEntryPointIndex(int(m.AddFunction(fn)))
	module := m.Generate()
	f := module.FunctionAt(0)
	require.Equal(t, 2, f.JumpTableSize())
	require.Equal(t, uint32(18), f.JumpTableAt(0))
	require.Equal(t, uint32(22), f.JumpTableAt(1))
	require.NoError(t, module.Validate())
}

func TestRelocatorUnboundLabels(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 1)
	r := NewRelocator(g)
	a, b := r.NewLabel(), r.NewLabel()
	r.EmitJump(op.Jmp, a)
	r.EmitSwitch(0, 0, b, []Label{a})
	_, err := r.Resolve()
	require.Error(t, err)
	require.Contains(t, err.Error(), "jump at 0: label 0 is never bound")
	require.Contains(t, err.Error(), "jump at 5: label 1 is never bound")
}

func TestRelocatorResolveOnce(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 1)
	r := NewRelocator(g)
	l := r.NewLabel()
	r.Bind(l)
	requirePanicsWith(t, ErrLabelBound, func() { r.Bind(l) })
	require.True(t, r.IsBound(l))
	off, ok := r.Offset(l)
	require.True(t, ok)
	require.Equal(t, uint32(0), off)
	_, ok = r.Offset(r.NewLabel())
	require.False(t, ok)
	_, err := r.Resolve()
	require.NoError(t, err)
	_, err = r.Resolve()
	require.Error(t, err)
}

func TestRelocatorRejectsNonJumps(t *testing.T) {
	g := NewFunctionGenerator(NewModuleGenerator(DefaultOptions()), 1)
	r := NewRelocator(g)
	requirePanicsWith(t, ErrUnknownJumpOpcode, func() { r.EmitJump(op.Ret, r.NewLabel()) })
	requirePanicsWith(t, ErrOperandCount, func() { r.EmitSwitch(0, 0, r.NewLabel(), nil) })
}

func TestRelocatorLogsPasses(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	g := NewFunctionGenerator(NewModuleGenerator(opts), 1)
	r := NewRelocator(g)
	l := r.NewLabel()
	r.EmitJump(op.Jmp, l)
	r.Bind(l)

	_, err := r.Resolve()
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"message":"relocation pass"`)
	require.Contains(t, buf.String(), `"shrunk":1`)

	buf.Reset()
	quiet := NewRelocator(NewFunctionGenerator(NewModuleGenerator(opts), 1), WithLogger(zerolog.Nop()))
	_, err = quiet.Resolve()
	require.NoError(t, err)
	require.Empty(t, buf.String())
}
