package bcgen

import (
	"encoding/binary"

	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/op"
)

// Function is the identity of a function being compiled into a module.
// Implementations must be comparable since they key the function table.
type Function interface {
	Name() string
	DefinitionKind() bytecode.DefinitionKind
	StrictMode() bool
	ParamCount() uint32
	EnvironmentSize() uint32
}

// FunctionHeader is the structural information recorded for a function
// alongside its opcode stream. A zero NameID refers to string 0.
type FunctionHeader struct {
	Kind            bytecode.DefinitionKind
	StrictMode      bool
	ParamCount      uint32
	EnvironmentSize uint32
	NameID          uint32
}

type generatorState uint8

const (
	// Bytes are still being emitted and relocated.
	stateBuilding generatorState = iota
	// The stream is final; function metadata may still be set.
	stateComplete
	// Handed to the module generator.
	stateOwned
	// A function record has been produced by Generate.
	stateGenerated
)

// FunctionGenerator accumulates the opcode stream and auxiliary tables of a
// single function. It is created against the ModuleGenerator that will
// eventually own it and must not be used after it has been handed off.
type FunctionGenerator struct {
	owner *ModuleGenerator
	state generatorState

	opcodes      []byte
	frameSize    uint32
	bytecodeSize int

	exceptionHandlers []bytecode.ExceptionHandler

	sourceLocation bytecode.DebugLocation
	locations      []bytecode.DebugLocation
	variableNames  []string

	lexicalParentID  uint32
	hasLexicalParent bool
	lazy             bool

	jumpTable []uint32

	highestReadCacheIndex  uint8
	highestWriteCacheIndex uint8
}

// NewFunctionGenerator creates an empty generator for a function with the
// given number of registers.
func NewFunctionGenerator(owner *ModuleGenerator, frameSize uint32) *FunctionGenerator {
	if owner == nil {
		fail(ErrNoOwner, "a module generator is required")
	}
	return &FunctionGenerator{owner: owner, frameSize: frameSize}
}

// Len returns the current size of the opcode stream.
func (g *FunctionGenerator) Len() int {
	return len(g.opcodes)
}

// Bytes returns a copy of the opcode stream.
func (g *FunctionGenerator) Bytes() []byte {
	out := make([]byte, len(g.opcodes))
	copy(out, g.opcodes)
	return out
}

// FrameSize returns the number of registers of the function.
func (g *FunctionGenerator) FrameSize() uint32 {
	return g.frameSize
}

// BytecodeSize returns the stream size frozen by
// BytecodeGenerationComplete.
func (g *FunctionGenerator) BytecodeSize() int {
	return g.bytecodeSize
}

// IsComplete reports whether BytecodeGenerationComplete has been called.
func (g *FunctionGenerator) IsComplete() bool {
	return g.state >= stateComplete
}

// checkBuilding guards changes to the opcode stream.
func (g *FunctionGenerator) checkBuilding() {
	if g.state != stateBuilding {
		fail(ErrGeneratorFrozen, "opcode stream is complete")
	}
}

// checkUnowned guards changes to function metadata.
func (g *FunctionGenerator) checkUnowned() {
	if g.state >= stateOwned {
		fail(ErrGeneratorFrozen, "generator has been handed off")
	}
}

// Emit appends an instruction and returns its offset. Each operand is
// written little-endian at the width of its kind.
func (g *FunctionGenerator) Emit(code op.Code, operands ...int64) uint32 {
	g.checkBuilding()
	info := op.GetInfo(code)
	if !info.Valid() {
		fail(ErrUnknownOpcode, "%d", uint8(code))
	}
	if len(operands) != len(info.Operands) {
		fail(ErrOperandCount, "%s takes %d operands, got %d", info.Name, len(info.Operands), len(operands))
	}
	for i, kind := range info.Operands {
		if v := operands[i]; !kind.Fits(v) {
			fail(ErrOperandRange, "%s operand %d: %d does not fit %s", info.Name, i, v, kind)
		}
	}
	offset := uint32(len(g.opcodes))
	g.opcodes = append(g.opcodes, byte(code))
	for i, kind := range info.Operands {
		v := operands[i]
		switch kind.Width() {
		case 1:
			g.opcodes = append(g.opcodes, byte(v))
		case 2:
			g.opcodes = binary.LittleEndian.AppendUint16(g.opcodes, uint16(v))
		case 4:
			g.opcodes = binary.LittleEndian.AppendUint32(g.opcodes, uint32(v))
		}
	}
	return offset
}

// GetFunctionID returns the module-wide id of fn, allocating one if needed.
func (g *FunctionGenerator) GetFunctionID(fn Function) uint32 {
	return g.owner.AddFunction(fn)
}

// AddConstantString interns s in the module string table.
func (g *FunctionGenerator) AddConstantString(s string, isIdentifier bool) uint32 {
	return g.owner.AddString(s, isIdentifier)
}

// AddRegExp interns a regular expression in the module regexp table.
func (g *FunctionGenerator) AddRegExp(re bytecode.RegExp) uint32 {
	return g.owner.AddRegExp(re)
}

// AddFilename interns a source filename in the module filename table.
func (g *FunctionGenerator) AddFilename(filename string) uint32 {
	return g.owner.AddFilename(filename)
}

// AddExceptionHandler appends a handler. Handlers must be added innermost
// first; lookup returns the first handler covering an offset.
func (g *FunctionGenerator) AddExceptionHandler(h bytecode.ExceptionHandler) {
	g.checkBuilding()
	g.exceptionHandlers = append(g.exceptionHandlers, h)
}

// ExceptionHandlers returns a copy of the handlers in insertion order.
func (g *FunctionGenerator) ExceptionHandlers() []bytecode.ExceptionHandler {
	out := make([]bytecode.ExceptionHandler, len(g.exceptionHandlers))
	copy(out, g.exceptionHandlers)
	return out
}

// SetSourceLocation records where the function is defined.
func (g *FunctionGenerator) SetSourceLocation(loc bytecode.DebugLocation) {
	g.checkUnowned()
	g.sourceLocation = loc
}

// AddDebugSourceLocation maps an instruction address to a source position.
func (g *FunctionGenerator) AddDebugSourceLocation(loc bytecode.DebugLocation) {
	g.checkBuilding()
	g.locations = append(g.locations, loc)
}

// DebugLocations returns a copy of the recorded debug locations.
func (g *FunctionGenerator) DebugLocations() []bytecode.DebugLocation {
	out := make([]bytecode.DebugLocation, len(g.locations))
	copy(out, g.locations)
	return out
}

// SetDebugVariableNames records the names of the function's variables.
func (g *FunctionGenerator) SetDebugVariableNames(names []string) {
	g.checkUnowned()
	g.variableNames = append([]string(nil), names...)
}

// SetLexicalParentID records the id of the enclosing function.
func (g *FunctionGenerator) SetLexicalParentID(id uint32) {
	g.checkUnowned()
	g.lexicalParentID = id
	g.hasLexicalParent = true
}

// SetLazy marks the function for lazy compilation.
func (g *FunctionGenerator) SetLazy(lazy bool) {
	g.checkUnowned()
	g.lazy = lazy
}

// IsLazy reports whether the function is compiled lazily.
func (g *FunctionGenerator) IsLazy() bool {
	return g.lazy
}

// SetJumpTable installs the flattened switch jump table. Entries are
// offsets relative to the owning switch instruction.
func (g *FunctionGenerator) SetJumpTable(table []uint32) {
	g.checkBuilding()
	g.jumpTable = append([]uint32(nil), table...)
}

// SetHighestReadCacheIndex records the largest property read cache index
// used by the function.
func (g *FunctionGenerator) SetHighestReadCacheIndex(index uint8) {
	g.checkUnowned()
	g.highestReadCacheIndex = index
}

// SetHighestWriteCacheIndex records the largest property write cache index
// used by the function.
func (g *FunctionGenerator) SetHighestWriteCacheIndex(index uint8) {
	g.checkUnowned()
	g.highestWriteCacheIndex = index
}

// BytecodeGenerationComplete freezes the opcode stream. It must be called
// exactly once, before the generator is handed to its module.
func (g *FunctionGenerator) BytecodeGenerationComplete() {
	g.checkBuilding()
	g.bytecodeSize = len(g.opcodes)
	g.state = stateComplete
}

// GenerateBytecodeFunction snapshots the generator into an immutable
// function record. Debug information is omitted when the owning module
// strips it.
func (g *FunctionGenerator) GenerateBytecodeFunction(h FunctionHeader) *bytecode.Function {
	switch g.state {
	case stateBuilding:
		fail(ErrGeneratorIncomplete, "bytecode generation has not completed")
	case stateGenerated:
		fail(ErrGeneratorConsumed, "function record already generated")
	}
	params := bytecode.FunctionParams{
		Kind:                   h.Kind,
		StrictMode:             h.StrictMode,
		ParamCount:             h.ParamCount,
		EnvironmentSize:        h.EnvironmentSize,
		NameID:                 h.NameID,
		FrameSize:              g.frameSize,
		Opcodes:                g.opcodes[:g.bytecodeSize],
		ExceptionHandlers:      g.exceptionHandlers,
		JumpTable:              g.jumpTable,
		HighestReadCacheIndex:  g.highestReadCacheIndex,
		HighestWriteCacheIndex: g.highestWriteCacheIndex,
		Lazy:                   g.lazy,
		LexicalParentID:        g.lexicalParentID,
		HasLexicalParent:       g.hasLexicalParent,
	}
	if !g.owner.opts.StripDebugInfo {
		params.SourceLocation = g.sourceLocation
		params.Locations = g.locations
		params.VariableNames = g.variableNames
	}
	return bytecode.NewFunction(params)
}

// Relocation primitives. These patch the stream in place and are driven by
// a Relocator through the Relocatable interface.

// ShrinkJump removes the three surplus bytes of a long jump operand at loc
// and moves every handler and debug offset beyond loc back by three.
func (g *FunctionGenerator) ShrinkJump(loc uint32) {
	g.checkBuilding()
	const delta = 3
	g.opcodes = append(g.opcodes[:loc], g.opcodes[loc+delta:]...)
	for i := range g.exceptionHandlers {
		h := &g.exceptionHandlers[i]
		if h.Start > loc {
			h.Start -= delta
		}
		if h.End > loc {
			h.End -= delta
		}
		if h.Target > loc {
			h.Target -= delta
		}
	}
	for i := range g.locations {
		if g.locations[i].Address > loc {
			g.locations[i].Address -= delta
		}
	}
}

// UpdateJumpTarget overwrites width bytes at loc with value.
func (g *FunctionGenerator) UpdateJumpTarget(loc uint32, value int32, width int) {
	g.checkBuilding()
	switch width {
	case 1:
		g.opcodes[loc] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(g.opcodes[loc:], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(g.opcodes[loc:], uint32(value))
	default:
		fail(ErrOperandRange, "jump operand width %d", width)
	}
}

// UpdateJumpTableOffset points the jump table operand at loc of the switch
// instruction at cs to entry jumpTableOffset. The jump table is laid out
// directly after the opcode stream.
func (g *FunctionGenerator) UpdateJumpTableOffset(loc, jumpTableOffset, cs uint32) {
	value := uint32(len(g.opcodes)) + 4*jumpTableOffset - cs
	g.UpdateJumpTarget(loc, int32(value), 4)
}

// LongToShortJump rewrites the long jump opcode at loc into its short form.
func (g *FunctionGenerator) LongToShortJump(loc uint32) {
	g.checkBuilding()
	short, ok := op.ShortJump(op.Code(g.opcodes[loc]))
	if !ok {
		fail(ErrUnknownJumpOpcode, "%s at %d", op.Code(g.opcodes[loc]), loc)
	}
	g.opcodes[loc] = byte(short)
}
