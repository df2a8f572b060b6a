// Package literal encodes sequences of constant values into the tagged,
// self-describing form stored in a module's literal buffers, and decodes
// them again for inspection.
package literal

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the type of a Literal.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
)

// Literal is a constant value that can be placed in a literal buffer.
type Literal struct {
	kind Kind
	b    bool
	num  float64
	str  string
}

// Null returns the null literal.
func Null() Literal {
	return Literal{kind: NullKind}
}

// Bool returns a boolean literal.
func Bool(b bool) Literal {
	return Literal{kind: BoolKind, b: b}
}

// Number returns a numeric literal.
func Number(f float64) Literal {
	return Literal{kind: NumberKind, num: f}
}

// String returns a string literal.
func String(s string) Literal {
	return Literal{kind: StringKind, str: s}
}

// Kind returns the type of the literal.
func (l Literal) Kind() Kind {
	return l.kind
}

// AsBool returns the value of a boolean literal.
func (l Literal) AsBool() bool {
	return l.b
}

// AsNumber returns the value of a numeric literal.
func (l Literal) AsNumber() float64 {
	return l.num
}

// AsString returns the value of a string literal.
func (l Literal) AsString() string {
	return l.str
}

// String returns the source form of the literal.
func (l Literal) String() string {
	switch l.kind {
	case NullKind:
		return "null"
	case BoolKind:
		return strconv.FormatBool(l.b)
	case NumberKind:
		return strconv.FormatFloat(l.num, 'g', -1, 64)
	case StringKind:
		return strconv.Quote(l.str)
	default:
		return fmt.Sprintf("literal(%d)", l.kind)
	}
}

// int32Value reports whether the literal is a number with an exact int32
// representation. Negative zero is excluded.
func (l Literal) int32Value() (int32, bool) {
	if l.kind != NumberKind {
		return 0, false
	}
	f := l.num
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	if f == 0 && math.Signbit(f) {
		return 0, false
	}
	return int32(f), true
}
