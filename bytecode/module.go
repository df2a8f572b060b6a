package bytecode

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/gofrs/uuid"
)

// CJSModule links a CommonJS module, resolved by name at load time, to the
// function that implements it.
type CJSModule struct {
	NameID     uint32 // string table index of the module filename
	FunctionID uint32
}

// Module is an immutable, fully linked bytecode module. It is the output of
// module generation and is safe for concurrent use.
type Module struct {
	id uuid.UUID

	functions  []*Function
	entryPoint uint32

	strings     StringStorage
	identifiers []uint32
	regexps     []RegExp
	filenames   StringStorage

	cjsModules       []CJSModule
	cjsModulesStatic []uint32
	cjsModuleOffset  uint32

	arrayBuffer  []byte
	objKeyBuffer []byte
	objValBuffer []byte

	lazy bool
}

// ModuleParams contains parameters for creating a new Module.
type ModuleParams struct {
	Functions  []*Function
	EntryPoint uint32

	Strings     StringStorage
	Identifiers []uint32
	RegExps     []RegExp
	Filenames   StringStorage

	CJSModules       []CJSModule
	CJSModulesStatic []uint32
	CJSModuleOffset  uint32

	ArrayBuffer       []byte
	ObjectKeyBuffer   []byte
	ObjectValueBuffer []byte

	Lazy bool
}

// NewModule creates a new immutable Module from the given parameters.
// Input slices are copied. The module id is derived from its contents, so
// identical inputs always produce the same id.
func NewModule(params ModuleParams) *Module {
	var functions []*Function
	if len(params.Functions) > 0 {
		functions = make([]*Function, len(params.Functions))
		copy(functions, params.Functions)
	}
	var regexps []RegExp
	if len(params.RegExps) > 0 {
		regexps = make([]RegExp, len(params.RegExps))
		copy(regexps, params.RegExps)
	}
	var cjs []CJSModule
	if len(params.CJSModules) > 0 {
		cjs = make([]CJSModule, len(params.CJSModules))
		copy(cjs, params.CJSModules)
	}
	m := &Module{
		functions:        functions,
		entryPoint:       params.EntryPoint,
		strings:          params.Strings,
		identifiers:      clone(params.Identifiers),
		regexps:          regexps,
		filenames:        params.Filenames,
		cjsModules:       cjs,
		cjsModulesStatic: clone(params.CJSModulesStatic),
		cjsModuleOffset:  params.CJSModuleOffset,
		arrayBuffer:      clone(params.ArrayBuffer),
		objKeyBuffer:     clone(params.ObjectKeyBuffer),
		objValBuffer:     clone(params.ObjectValueBuffer),
		lazy:             params.Lazy,
	}
	m.id = m.contentID()
	return m
}

// contentID hashes everything the VM observes into a version 5 UUID.
func (m *Module) contentID() uuid.UUID {
	h := sha256.New()
	var word [4]byte
	writeU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(word[:], v)
		h.Write(word[:])
	}
	writeU32(m.entryPoint)
	for _, fn := range m.functions {
		writeU32(fn.nameID)
		writeU32(fn.paramCount)
		writeU32(fn.frameSize)
		writeU32(uint32(len(fn.opcodes)))
		h.Write(fn.opcodes)
	}
	for i := 0; i < m.strings.Count(); i++ {
		h.Write([]byte(m.strings.StringAt(i)))
		h.Write([]byte{0})
	}
	for _, re := range m.regexps {
		h.Write([]byte(re.String()))
		h.Write([]byte{0})
	}
	for _, c := range m.cjsModules {
		writeU32(c.NameID)
		writeU32(c.FunctionID)
	}
	for _, fn := range m.cjsModulesStatic {
		writeU32(fn)
	}
	h.Write(m.arrayBuffer)
	h.Write(m.objKeyBuffer)
	h.Write(m.objValBuffer)
	return uuid.NewV5(uuid.NamespaceOID, hex.EncodeToString(h.Sum(nil)))
}

// ID returns the content-derived identifier of the module.
func (m *Module) ID() uuid.UUID {
	return m.id
}

// FunctionCount returns the number of functions.
func (m *Module) FunctionCount() int {
	return len(m.functions)
}

// FunctionAt returns the function with the given id.
func (m *Module) FunctionAt(id int) *Function {
	return m.functions[id]
}

// EntryPoint returns the id of the function executed first, usually the
// global function.
func (m *Module) EntryPoint() uint32 {
	return m.entryPoint
}

// Strings returns the compacted string table.
func (m *Module) Strings() StringStorage {
	return m.strings
}

// StringCount returns the number of entries in the string table.
func (m *Module) StringCount() int {
	return m.strings.Count()
}

// StringAt returns the string with the given id.
func (m *Module) StringAt(id int) string {
	return m.strings.StringAt(id)
}

// IdentifierCount returns the number of strings flagged as identifiers.
func (m *Module) IdentifierCount() int {
	return len(m.identifiers)
}

// IdentifierAt returns the string id of the identifier at the given index.
// Identifier ids are sorted in ascending order.
func (m *Module) IdentifierAt(index int) uint32 {
	return m.identifiers[index]
}

// IsIdentifier returns true if the string with the given id is used as an
// identifier.
func (m *Module) IsIdentifier(id uint32) bool {
	lo, hi := 0, len(m.identifiers)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case m.identifiers[mid] == id:
			return true
		case m.identifiers[mid] < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}

// RegExpCount returns the number of regular expressions.
func (m *Module) RegExpCount() int {
	return len(m.regexps)
}

// RegExpAt returns the regular expression with the given id.
func (m *Module) RegExpAt(id int) RegExp {
	return m.regexps[id]
}

// Filenames returns the compacted filename table.
func (m *Module) Filenames() StringStorage {
	return m.filenames
}

// FilenameCount returns the number of entries in the filename table.
func (m *Module) FilenameCount() int {
	return m.filenames.Count()
}

// FilenameAt returns the filename with the given id.
func (m *Module) FilenameAt(id int) string {
	return m.filenames.StringAt(id)
}

// CJSModuleCount returns the number of dynamically resolved CJS modules.
func (m *Module) CJSModuleCount() int {
	return len(m.cjsModules)
}

// CJSModuleAt returns the dynamically resolved CJS module at the given index.
func (m *Module) CJSModuleAt(index int) CJSModule {
	return m.cjsModules[index]
}

// StaticCJSModuleCount returns the number of statically resolved CJS modules.
func (m *Module) StaticCJSModuleCount() int {
	return len(m.cjsModulesStatic)
}

// StaticCJSModuleAt returns the function id of the statically resolved CJS
// module with the given ordinal, counted from CJSModuleOffset.
func (m *Module) StaticCJSModuleAt(index int) uint32 {
	return m.cjsModulesStatic[index]
}

// CJSModuleOffset returns the ordinal of the first static CJS module.
func (m *Module) CJSModuleOffset() uint32 {
	return m.cjsModuleOffset
}

// ArrayBuffer returns a copy of the array literal buffer.
func (m *Module) ArrayBuffer() []byte {
	return clone(m.arrayBuffer)
}

// ObjectKeyBuffer returns a copy of the object literal key buffer.
func (m *Module) ObjectKeyBuffer() []byte {
	return clone(m.objKeyBuffer)
}

// ObjectValueBuffer returns a copy of the object literal value buffer.
func (m *Module) ObjectValueBuffer() []byte {
	return clone(m.objValBuffer)
}

// Lazy returns true if any function in the module is compiled lazily.
func (m *Module) Lazy() bool {
	return m.lazy
}

// Stats returns statistics about this module.
func (m *Module) Stats() Stats {
	bytecodeBytes := 0
	for _, fn := range m.functions {
		bytecodeBytes += len(fn.opcodes)
	}
	return Stats{
		FunctionCount:      len(m.functions),
		BytecodeBytes:      bytecodeBytes,
		StringCount:        m.strings.Count(),
		StringStorageBytes: m.strings.Size(),
		IdentifierCount:    len(m.identifiers),
		RegExpCount:        len(m.regexps),
		LiteralBufferBytes: len(m.arrayBuffer) + len(m.objKeyBuffer) + len(m.objValBuffer),
		CJSModuleCount:     len(m.cjsModules) + len(m.cjsModulesStatic),
	}
}
