package bytecode

import "fmt"

// DebugLocation maps one instruction to a position in source code.
type DebugLocation struct {
	Address    uint32 // byte offset of the instruction in the opcode stream
	Line       uint32 // 1-based line number
	Column     uint32 // 1-based column number
	FilenameID uint32 // index into the module filename table
	Statement  uint32 // statement index within the function, 0 if unknown
}

// String returns a formatted string representation of the location.
func (l DebugLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// IsZero returns true if the location has not been set.
func (l DebugLocation) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}
