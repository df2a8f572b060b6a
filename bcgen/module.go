package bcgen

import (
	"bytes"

	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/internal/alloc"
	"github.com/risor-io/bcgen/internal/strtab"
	"github.com/risor-io/bcgen/literal"
)

// ModuleGenerator collects the functions and shared tables of a module and
// produces the final bytecode.Module. Generate may be called only once.
type ModuleGenerator struct {
	opts Options

	functionIDs alloc.Table[Function]
	generators  map[uint32]*FunctionGenerator

	strings   strtab.Strings
	regexps   strtab.RegExps
	filenames strtab.Strings

	cjsModules       []bytecode.CJSModule
	cjsModulesStatic []uint32

	literals     *literal.Serializer
	arrayBuffer  []byte
	objKeyBuffer []byte
	objValBuffer []byte

	entryPoint int
	valid      bool
}

// NewModuleGenerator creates an empty module generator.
func NewModuleGenerator(opts Options) *ModuleGenerator {
	m := &ModuleGenerator{
		opts:       opts,
		generators: map[uint32]*FunctionGenerator{},
		entryPoint: -1,
		valid:      true,
	}
	m.literals = literal.NewSerializer(m, opts.OptimizationEnabled)
	return m
}

// Options returns the options the generator was created with.
func (m *ModuleGenerator) Options() Options {
	return m.opts
}

func (m *ModuleGenerator) checkValid() {
	if !m.valid {
		fail(ErrGeneratorConsumed, "module has already been generated")
	}
}

// AddFunction returns the id of fn, allocating the next id the first time
// fn is seen.
func (m *ModuleGenerator) AddFunction(fn Function) uint32 {
	m.checkValid()
	return m.functionIDs.Allocate(fn)
}

// FunctionCount returns the number of functions allocated so far.
func (m *ModuleGenerator) FunctionCount() int {
	return m.functionIDs.Len()
}

// SetFunctionGenerator hands a completed generator to the module as the
// body of fn. A function accepts exactly one generator.
func (m *ModuleGenerator) SetFunctionGenerator(fn Function, g *FunctionGenerator) {
	m.checkValid()
	if g.owner != m {
		fail(ErrForeignGenerator, "function %q", fn.Name())
	}
	switch g.state {
	case stateBuilding:
		fail(ErrGeneratorIncomplete, "function %q", fn.Name())
	case stateOwned, stateGenerated:
		fail(ErrGeneratorFrozen, "generator for %q was already handed off", fn.Name())
	}
	id := m.AddFunction(fn)
	if _, ok := m.generators[id]; ok {
		fail(ErrDuplicateGenerator, "function %q (id %d)", fn.Name(), id)
	}
	g.state = stateOwned
	m.generators[id] = g
}

// AddString interns s in the string table. Strings used as identifiers
// are also recorded in the identifier set.
func (m *ModuleGenerator) AddString(s string, isIdentifier bool) uint32 {
	m.checkValid()
	return m.strings.Add(s, isIdentifier)
}

// AddRegExp interns a regular expression.
func (m *ModuleGenerator) AddRegExp(re bytecode.RegExp) uint32 {
	m.checkValid()
	return m.regexps.Add(re)
}

// AddFilename interns a source filename.
func (m *ModuleGenerator) AddFilename(filename string) uint32 {
	m.checkValid()
	return m.filenames.Add(filename, false)
}

// InitializeStringsFromStorage seeds the string table from an existing
// storage so that previously assigned string ids stay valid. The table
// must still be empty and the storage must not repeat a string.
func (m *ModuleGenerator) InitializeStringsFromStorage(storage bytecode.StringStorage) {
	m.checkValid()
	if m.strings.Len() != 0 {
		fail(ErrStringTableNotEmpty, "%d strings already added", m.strings.Len())
	}
	if err := m.strings.Seed(storage); err != nil {
		fail(ErrDuplicateString, "%v", err)
	}
}

// AddCJSModule links the CommonJS module named by the string nameID to the
// function implementing it.
func (m *ModuleGenerator) AddCJSModule(functionID, nameID uint32) {
	m.checkValid()
	m.cjsModules = append(m.cjsModules, bytecode.CJSModule{NameID: nameID, FunctionID: functionID})
}

// AddCJSModuleStatic registers a statically resolved CommonJS module.
// Module ids must be registered in order starting at the CJSModuleOffset
// option.
func (m *ModuleGenerator) AddCJSModuleStatic(moduleID, functionID uint32) {
	m.checkValid()
	want := m.opts.CJSModuleOffset + uint32(len(m.cjsModulesStatic))
	if moduleID != want {
		fail(ErrCJSModuleOutOfOrder, "got module %d, want %d", moduleID, want)
	}
	m.cjsModulesStatic = append(m.cjsModulesStatic, functionID)
}

// AddArrayBuffer serializes array elements into the array buffer and
// returns their offset.
func (m *ModuleGenerator) AddArrayBuffer(elements []literal.Literal) uint32 {
	m.checkValid()
	return m.serializeBuffer(elements, &m.arrayBuffer, false)
}

// AddObjectBuffer serializes object keys and values into their buffers and
// returns the key and value offsets.
func (m *ModuleGenerator) AddObjectBuffer(keys, values []literal.Literal) (uint32, uint32) {
	m.checkValid()
	keyOffset := m.serializeBuffer(keys, &m.objKeyBuffer, true)
	valOffset := m.serializeBuffer(values, &m.objValBuffer, false)
	return keyOffset, valOffset
}

// serializeBuffer encodes literals and returns the offset of their bytes
// in buffer, reusing any existing occurrence. The search is over raw bytes,
// so a match may begin inside an earlier literal's encoding.
func (m *ModuleGenerator) serializeBuffer(literals []literal.Literal, buffer *[]byte, isKeyBuffer bool) uint32 {
	encoded := m.literals.Serialize(literals, isKeyBuffer)
	if idx := bytes.Index(*buffer, encoded); idx >= 0 {
		return uint32(idx)
	}
	offset := uint32(len(*buffer))
	*buffer = append(*buffer, encoded...)
	return offset
}

// EntryPointIndex returns the entry function id, or -1 if unset.
func (m *ModuleGenerator) EntryPointIndex() int {
	return m.entryPoint
}

// SetEntryPointIndex sets the id of the function run when the module loads.
func (m *ModuleGenerator) SetEntryPointIndex(index int) {
	m.checkValid()
	m.entryPoint = index
}

// Generate builds the module. Every allocated function must have a
// generator and the entry point must name one of them. The generator is
// consumed and cannot be used afterwards.
func (m *ModuleGenerator) Generate() *bytecode.Module {
	m.checkValid()
	count := m.functionIDs.Len()
	if m.entryPoint < 0 || m.entryPoint >= count {
		fail(ErrNoEntryPoint, "entry point %d with %d functions", m.entryPoint, count)
	}
	for id := 0; id < count; id++ {
		if _, ok := m.generators[uint32(id)]; !ok {
			fail(ErrMissingGenerator, "function %q (id %d)", m.functionIDs.At(uint32(id)).Name(), id)
		}
	}

	// Function names are interned here, which also guarantees a non-empty
	// string table.
	functions := make([]*bytecode.Function, count)
	lazy := false
	for id := 0; id < count; id++ {
		fn := m.functionIDs.At(uint32(id))
		g := m.generators[uint32(id)]
		name := fn.Name()
		if m.opts.StripFunctionNames {
			name = strippedFunctionName
		}
		functions[id] = g.GenerateBytecodeFunction(FunctionHeader{
			Kind:            fn.DefinitionKind(),
			StrictMode:      fn.StrictMode(),
			ParamCount:      fn.ParamCount(),
			EnvironmentSize: fn.EnvironmentSize(),
			NameID:          m.strings.Add(name, false),
		})
		g.state = stateGenerated
		lazy = lazy || g.lazy
	}
	m.valid = false

	module := bytecode.NewModule(bytecode.ModuleParams{
		Functions:         functions,
		EntryPoint:        uint32(m.entryPoint),
		Strings:           m.strings.Storage(m.opts.OptimizationEnabled),
		Identifiers:       m.strings.Identifiers(),
		RegExps:           m.regexps.RegExps(),
		Filenames:         m.filenames.Storage(false),
		CJSModules:        m.cjsModules,
		CJSModulesStatic:  m.cjsModulesStatic,
		CJSModuleOffset:   m.opts.CJSModuleOffset,
		ArrayBuffer:       m.arrayBuffer,
		ObjectKeyBuffer:   m.objKeyBuffer,
		ObjectValueBuffer: m.objValBuffer,
		Lazy:              lazy,
	})
	stats := module.Stats()
	m.opts.Logger.Debug().
		Str("id", module.ID().String()).
		Int("functions", stats.FunctionCount).
		Int("bytecode_bytes", stats.BytecodeBytes).
		Int("strings", stats.StringCount).
		Int("string_bytes", stats.StringStorageBytes).
		Int("literal_bytes", stats.LiteralBufferBytes).
		Msg("generated module")
	return module
}
