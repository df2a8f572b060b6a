package bytecode

import "fmt"

// DefinitionKind describes how a function was defined in source, which
// decides how the VM may invoke it.
type DefinitionKind uint8

const (
	ES5Function DefinitionKind = iota
	ES6Constructor
	ES6Arrow
	ES6Method
)

// String returns the name used for the kind in listings and JSON.
func (k DefinitionKind) String() string {
	switch k {
	case ES5Function:
		return "function"
	case ES6Constructor:
		return "constructor"
	case ES6Arrow:
		return "arrow"
	case ES6Method:
		return "method"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseDefinitionKind returns the kind with the given name. An empty name
// is treated as "function".
func ParseDefinitionKind(name string) (DefinitionKind, error) {
	switch name {
	case "", "function":
		return ES5Function, nil
	case "constructor":
		return ES6Constructor, nil
	case "arrow":
		return ES6Arrow, nil
	case "method":
		return ES6Method, nil
	default:
		return 0, fmt.Errorf("unknown definition kind %q", name)
	}
}

// Function is the finalized, immutable record of one compiled function:
// its structural header, opcode stream and auxiliary tables.
type Function struct {
	kind            DefinitionKind
	strictMode      bool
	paramCount      uint32
	environmentSize uint32
	nameID          uint32
	frameSize       uint32

	opcodes           []byte
	exceptionHandlers []ExceptionHandler
	jumpTable         []uint32

	highestReadCacheIndex  uint8
	highestWriteCacheIndex uint8

	lazy             bool
	lexicalParentID  uint32
	hasLexicalParent bool

	// Debug information, empty when stripped
	sourceLocation DebugLocation
	locations      []DebugLocation
	variableNames  []string
}

// FunctionParams contains parameters for creating a new Function.
type FunctionParams struct {
	Kind            DefinitionKind
	StrictMode      bool
	ParamCount      uint32
	EnvironmentSize uint32
	NameID          uint32
	FrameSize       uint32

	Opcodes           []byte
	ExceptionHandlers []ExceptionHandler
	JumpTable         []uint32

	HighestReadCacheIndex  uint8
	HighestWriteCacheIndex uint8

	Lazy             bool
	LexicalParentID  uint32
	HasLexicalParent bool

	SourceLocation DebugLocation
	Locations      []DebugLocation
	VariableNames  []string
}

// NewFunction creates a new immutable Function from the given parameters.
// Input slices are copied to ensure immutability.
func NewFunction(params FunctionParams) *Function {
	return &Function{
		kind:                   params.Kind,
		strictMode:             params.StrictMode,
		paramCount:             params.ParamCount,
		environmentSize:        params.EnvironmentSize,
		nameID:                 params.NameID,
		frameSize:              params.FrameSize,
		opcodes:                clone(params.Opcodes),
		exceptionHandlers:      clone(params.ExceptionHandlers),
		jumpTable:              clone(params.JumpTable),
		highestReadCacheIndex:  params.HighestReadCacheIndex,
		highestWriteCacheIndex: params.HighestWriteCacheIndex,
		lazy:                   params.Lazy,
		lexicalParentID:        params.LexicalParentID,
		hasLexicalParent:       params.HasLexicalParent,
		sourceLocation:         params.SourceLocation,
		locations:              clone(params.Locations),
		variableNames:          clone(params.VariableNames),
	}
}

// Kind returns how the function was defined.
func (f *Function) Kind() DefinitionKind {
	return f.kind
}

// StrictMode returns true if the function body is strict mode code.
func (f *Function) StrictMode() bool {
	return f.strictMode
}

// ParamCount returns the number of parameters, including "this".
func (f *Function) ParamCount() uint32 {
	return f.paramCount
}

// EnvironmentSize returns the number of slots in the function's environment.
func (f *Function) EnvironmentSize() uint32 {
	return f.environmentSize
}

// NameID returns the string table index of the function name.
func (f *Function) NameID() uint32 {
	return f.nameID
}

// FrameSize returns the number of registers in the function frame.
func (f *Function) FrameSize() uint32 {
	return f.frameSize
}

// BytecodeSize returns the size of the opcode stream in bytes.
func (f *Function) BytecodeSize() int {
	return len(f.opcodes)
}

// ByteAt returns the opcode stream byte at the given offset.
func (f *Function) ByteAt(offset int) byte {
	return f.opcodes[offset]
}

// Opcodes returns a copy of the opcode stream.
func (f *Function) Opcodes() []byte {
	return clone(f.opcodes)
}

// ExceptionHandlerCount returns the number of exception handlers.
func (f *Function) ExceptionHandlerCount() int {
	return len(f.exceptionHandlers)
}

// ExceptionHandlerAt returns the exception handler at the given index.
func (f *Function) ExceptionHandlerAt(index int) ExceptionHandler {
	return f.exceptionHandlers[index]
}

// FindHandler returns the first handler covering the given offset. Handlers
// are consulted in the order they were added, so inner regions must be
// added before the regions enclosing them.
func (f *Function) FindHandler(offset uint32) (ExceptionHandler, bool) {
	for _, h := range f.exceptionHandlers {
		if h.Covers(offset) {
			return h, true
		}
	}
	return ExceptionHandler{}, false
}

// JumpTableSize returns the number of jump table entries.
func (f *Function) JumpTableSize() int {
	return len(f.jumpTable)
}

// JumpTableAt returns the jump table entry at the given index.
func (f *Function) JumpTableAt(index int) uint32 {
	return f.jumpTable[index]
}

// HighestReadCacheIndex returns the largest read property cache slot used.
func (f *Function) HighestReadCacheIndex() uint8 {
	return f.highestReadCacheIndex
}

// HighestWriteCacheIndex returns the largest write property cache slot used.
func (f *Function) HighestWriteCacheIndex() uint8 {
	return f.highestWriteCacheIndex
}

// Lazy returns true if the function body is compiled lazily.
func (f *Function) Lazy() bool {
	return f.lazy
}

// LexicalParentID returns the id of the lexically enclosing function. The
// second result is false for functions with no lexical parent.
func (f *Function) LexicalParentID() (uint32, bool) {
	return f.lexicalParentID, f.hasLexicalParent
}

// HasDebugInfo returns true if any debug locations or variable names are
// recorded.
func (f *Function) HasDebugInfo() bool {
	return len(f.locations) > 0 || len(f.variableNames) > 0
}

// SourceLocation returns the location of the function definition.
func (f *Function) SourceLocation() DebugLocation {
	return f.sourceLocation
}

// LocationCount returns the number of recorded debug locations.
func (f *Function) LocationCount() int {
	return len(f.locations)
}

// LocationAt returns the debug location at the given index.
func (f *Function) LocationAt(index int) DebugLocation {
	return f.locations[index]
}

// LocationFor returns the debug location of the instruction at the given
// address. If none is recorded, an empty DebugLocation is returned.
func (f *Function) LocationFor(address uint32) DebugLocation {
	for _, loc := range f.locations {
		if loc.Address == address {
			return loc
		}
	}
	return DebugLocation{}
}

// VariableNameCount returns the number of debug variable names.
func (f *Function) VariableNameCount() int {
	return len(f.variableNames)
}

// VariableNameAt returns the debug variable name at the given index.
// Returns an empty string if the index is out of range.
func (f *Function) VariableNameAt(index int) string {
	if index < 0 || index >= len(f.variableNames) {
		return ""
	}
	return f.variableNames[index]
}
