// Package op defines the opcodes of the register bytecode produced by the
// bcgen generators, along with the operand layout of every instruction.
package op

import (
	"fmt"
	"sort"
)

// Code is a one byte opcode that indicates an operation to execute.
type Code uint8

const (
	Unreachable Code = 0

	// Registers and constants
	Mov                      Code = 1
	LoadParam                Code = 2
	LoadConstUndefined       Code = 3
	LoadConstNull            Code = 4
	LoadConstTrue            Code = 5
	LoadConstFalse           Code = 6
	LoadConstZero            Code = 7
	LoadConstInt             Code = 8
	LoadConstString          Code = 9
	LoadConstStringLongIndex Code = 10
	GetGlobalObject          Code = 11

	// Property access (inline cache operand)
	GetById    Code = 20
	TryGetById Code = 21
	PutById    Code = 22

	// Construction
	NewObject           Code = 30
	NewArray            Code = 31
	NewArrayWithBuffer  Code = 32
	NewObjectWithBuffer Code = 33
	CreateRegExp        Code = 34
	CreateClosure       Code = 35
	CreateEnvironment   Code = 36

	// Calls and control
	Call          Code = 40
	Ret           Code = 41
	Throw         Code = 42
	Catch         Code = 43
	Debugger      Code = 44
	RequireStatic Code = 45

	// Arithmetic and comparison
	Add      Code = 50
	Sub      Code = 51
	Less     Code = 52
	StrictEq Code = 53
	Not      Code = 54
	Inc      Code = 55

	// Multi-way branch
	SwitchImm Code = 60

	// Jumps. Every jump has a short form with an 8-bit displacement and a
	// long form with a 32-bit displacement. The displacement is always the
	// first operand.
	Jmp                 Code = 70
	JmpLong             Code = 71
	JmpTrue             Code = 72
	JmpTrueLong         Code = 73
	JmpFalse            Code = 74
	JmpFalseLong        Code = 75
	JmpUndefined        Code = 76
	JmpUndefinedLong    Code = 77
	JLess               Code = 78
	JLessLong           Code = 79
	JStrictEqual        Code = 80
	JStrictEqualLong    Code = 81
	JStrictNotEqual     Code = 82
	JStrictNotEqualLong Code = 83
)

// OperandKind describes the meaning and encoded width of an operand.
type OperandKind uint8

const (
	Reg8 OperandKind = iota + 1
	UInt8
	UInt16
	UInt32
	Imm32
	Addr8
	Addr32
	String16
	String32
	Ident16
	Function16
	RegExp32
	Cache8
	Buffer32
)

// Width returns the number of bytes the operand occupies in the stream.
func (k OperandKind) Width() int {
	switch k {
	case Reg8, UInt8, Addr8, Cache8:
		return 1
	case UInt16, String16, Ident16, Function16:
		return 2
	case UInt32, Imm32, Addr32, String32, RegExp32, Buffer32:
		return 4
	default:
		return 0
	}
}

// Signed reports whether the operand is decoded as a signed integer.
func (k OperandKind) Signed() bool {
	return k == Imm32 || k == Addr8 || k == Addr32
}

// Fits reports whether v can be encoded as an operand of this kind.
func (k OperandKind) Fits(v int64) bool {
	bits := uint(k.Width()) * 8
	if bits == 0 {
		return false
	}
	if k.Signed() {
		return v >= -(1<<(bits-1)) && v < 1<<(bits-1)
	}
	return v >= 0 && v < 1<<bits
}

// String returns the short name of the operand kind.
func (k OperandKind) String() string {
	switch k {
	case Reg8:
		return "reg8"
	case UInt8:
		return "u8"
	case UInt16:
		return "u16"
	case UInt32:
		return "u32"
	case Imm32:
		return "i32"
	case Addr8:
		return "addr8"
	case Addr32:
		return "addr32"
	case String16:
		return "str16"
	case String32:
		return "str32"
	case Ident16:
		return "ident16"
	case Function16:
		return "func16"
	case RegExp32:
		return "regexp32"
	case Cache8:
		return "cache8"
	case Buffer32:
		return "buf32"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Info contains information about an opcode.
type Info struct {
	Code     Code
	Name     string
	Operands []OperandKind
	// Size is the total encoded size of the instruction in bytes.
	Size int
}

// Valid reports whether the info describes a defined opcode.
func (i Info) Valid() bool {
	return i.Name != ""
}

// OperandOffset returns the byte offset of operand n relative to the start
// of the instruction.
func (i Info) OperandOffset(n int) int {
	off := 1
	for _, k := range i.Operands[:n] {
		off += k.Width()
	}
	return off
}

var (
	infos  = make([]Info, 256)
	byName = map[string]Code{}
)

// Jump pairs in (short, long) order. The long to short correspondence used
// by relocation is derived from this list.
var jumpPairs = [][2]Code{
	{Jmp, JmpLong},
	{JmpTrue, JmpTrueLong},
	{JmpFalse, JmpFalseLong},
	{JmpUndefined, JmpUndefinedLong},
	{JLess, JLessLong},
	{JStrictEqual, JStrictEqualLong},
	{JStrictNotEqual, JStrictNotEqualLong},
}

var (
	longToShort = map[Code]Code{}
	shortToLong = map[Code]Code{}
)

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []OperandKind
	}
	r := Reg8
	ops := []opInfo{
		{Unreachable, "Unreachable", nil},
		{Mov, "Mov", []OperandKind{r, r}},
		{LoadParam, "LoadParam", []OperandKind{r, UInt8}},
		{LoadConstUndefined, "LoadConstUndefined", []OperandKind{r}},
		{LoadConstNull, "LoadConstNull", []OperandKind{r}},
		{LoadConstTrue, "LoadConstTrue", []OperandKind{r}},
		{LoadConstFalse, "LoadConstFalse", []OperandKind{r}},
		{LoadConstZero, "LoadConstZero", []OperandKind{r}},
		{LoadConstInt, "LoadConstInt", []OperandKind{r, Imm32}},
		{LoadConstString, "LoadConstString", []OperandKind{r, String16}},
		{LoadConstStringLongIndex, "LoadConstStringLongIndex", []OperandKind{r, String32}},
		{GetGlobalObject, "GetGlobalObject", []OperandKind{r}},
		{GetById, "GetById", []OperandKind{r, r, Cache8, Ident16}},
		{TryGetById, "TryGetById", []OperandKind{r, r, Cache8, Ident16}},
		{PutById, "PutById", []OperandKind{r, r, Cache8, Ident16}},
		{NewObject, "NewObject", []OperandKind{r}},
		{NewArray, "NewArray", []OperandKind{r, UInt16}},
		{NewArrayWithBuffer, "NewArrayWithBuffer", []OperandKind{r, UInt16, UInt16, Buffer32}},
		{NewObjectWithBuffer, "NewObjectWithBuffer", []OperandKind{r, UInt16, UInt16, Buffer32, Buffer32}},
		{CreateRegExp, "CreateRegExp", []OperandKind{r, String32, String32, RegExp32}},
		{CreateClosure, "CreateClosure", []OperandKind{r, r, Function16}},
		{CreateEnvironment, "CreateEnvironment", []OperandKind{r}},
		{Call, "Call", []OperandKind{r, r, UInt8}},
		{Ret, "Ret", []OperandKind{r}},
		{Throw, "Throw", []OperandKind{r}},
		{Catch, "Catch", []OperandKind{r}},
		{Debugger, "Debugger", nil},
		{RequireStatic, "RequireStatic", []OperandKind{r, UInt32}},
		{Add, "Add", []OperandKind{r, r, r}},
		{Sub, "Sub", []OperandKind{r, r, r}},
		{Less, "Less", []OperandKind{r, r, r}},
		{StrictEq, "StrictEq", []OperandKind{r, r, r}},
		{Not, "Not", []OperandKind{r, r}},
		{Inc, "Inc", []OperandKind{r, r}},
		{SwitchImm, "SwitchImm", []OperandKind{r, Addr32, Addr32, UInt32, UInt32}},
		{Jmp, "Jmp", []OperandKind{Addr8}},
		{JmpLong, "JmpLong", []OperandKind{Addr32}},
		{JmpTrue, "JmpTrue", []OperandKind{Addr8, r}},
		{JmpTrueLong, "JmpTrueLong", []OperandKind{Addr32, r}},
		{JmpFalse, "JmpFalse", []OperandKind{Addr8, r}},
		{JmpFalseLong, "JmpFalseLong", []OperandKind{Addr32, r}},
		{JmpUndefined, "JmpUndefined", []OperandKind{Addr8, r}},
		{JmpUndefinedLong, "JmpUndefinedLong", []OperandKind{Addr32, r}},
		{JLess, "JLess", []OperandKind{Addr8, r, r}},
		{JLessLong, "JLessLong", []OperandKind{Addr32, r, r}},
		{JStrictEqual, "JStrictEqual", []OperandKind{Addr8, r, r}},
		{JStrictEqualLong, "JStrictEqualLong", []OperandKind{Addr32, r, r}},
		{JStrictNotEqual, "JStrictNotEqual", []OperandKind{Addr8, r, r}},
		{JStrictNotEqualLong, "JStrictNotEqualLong", []OperandKind{Addr32, r, r}},
	}
	for _, o := range ops {
		size := 1
		for _, k := range o.operands {
			size += k.Width()
		}
		infos[o.op] = Info{
			Code:     o.op,
			Name:     o.name,
			Operands: o.operands,
			Size:     size,
		}
		byName[o.name] = o.op
	}
	for _, pair := range jumpPairs {
		shortToLong[pair[0]] = pair[1]
		longToShort[pair[1]] = pair[0]
	}
}

// GetInfo returns information about the given opcode. The returned Info is
// not Valid for undefined opcodes.
func GetInfo(op Code) Info {
	return infos[op]
}

// Lookup finds an opcode by its name.
func Lookup(name string) (Code, bool) {
	code, ok := byName[name]
	return code, ok
}

// Names returns the names of all defined opcodes in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the opcode name.
func (c Code) String() string {
	if name := infos[c].Name; name != "" {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(c))
}

// ShortJump returns the short form of a long jump opcode.
func ShortJump(long Code) (Code, bool) {
	short, ok := longToShort[long]
	return short, ok
}

// LongJump returns the long form of a short jump opcode.
func LongJump(short Code) (Code, bool) {
	long, ok := shortToLong[short]
	return long, ok
}

// IsLongJump reports whether the opcode is the long form of a jump.
func IsLongJump(c Code) bool {
	_, ok := longToShort[c]
	return ok
}

// IsJump reports whether the opcode is a jump in either form.
func IsJump(c Code) bool {
	_, short := shortToLong[c]
	return short || IsLongJump(c)
}
