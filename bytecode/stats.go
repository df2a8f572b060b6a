package bytecode

// Stats contains statistics about a generated module.
// This is useful for auditing output size.
type Stats struct {
	// FunctionCount is the number of functions in the module.
	FunctionCount int

	// BytecodeBytes is the total size of all opcode streams.
	BytecodeBytes int

	// StringCount is the number of entries in the string table.
	StringCount int

	// StringStorageBytes is the size of the compacted string storage.
	StringStorageBytes int

	// IdentifierCount is the number of strings flagged as identifiers.
	IdentifierCount int

	// RegExpCount is the number of regular expressions.
	RegExpCount int

	// LiteralBufferBytes is the combined size of the array, object key and
	// object value buffers.
	LiteralBufferBytes int

	// CJSModuleCount counts both dynamic and static CommonJS modules.
	CJSModuleCount int
}
