package bcgen

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOpcode       = errors.New("unknown opcode")
	ErrUnknownJumpOpcode   = errors.New("unknown jump opcode")
	ErrOperandCount        = errors.New("wrong operand count")
	ErrOperandRange        = errors.New("operand out of range")
	ErrGeneratorConsumed   = errors.New("module generator already consumed")
	ErrStringTableNotEmpty = errors.New("string table is not empty")
	ErrDuplicateString     = errors.New("string storage repeats a string")
	ErrNoOwner             = errors.New("function generator has no module")
	ErrNoEntryPoint        = errors.New("no valid entry point")
	ErrDuplicateGenerator  = errors.New("function already has a generator")
	ErrGeneratorIncomplete = errors.New("function generator is incomplete")
	ErrGeneratorFrozen     = errors.New("function generator is frozen")
	ErrForeignGenerator    = errors.New("function generator belongs to another module")
	ErrMissingGenerator    = errors.New("function has no generator")
	ErrCJSModuleOutOfOrder = errors.New("static CommonJS module registered out of order")
	ErrLabelBound          = errors.New("label already bound")
)

// fail panics with an error wrapping the sentinel err.
func fail(err error, format string, args ...any) {
	panic(fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...)))
}
