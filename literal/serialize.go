package literal

import (
	"encoding/binary"
	"math"
)

// Tag is the high nibble of a sequence header and identifies the type of
// every value in the sequence.
type Tag uint8

const (
	TagNull        Tag = 0x00
	TagTrue        Tag = 0x10
	TagFalse       Tag = 0x20
	TagNumber      Tag = 0x30
	TagLongString  Tag = 0x40
	TagShortString Tag = 0x50
	TagByteString  Tag = 0x60
	TagInteger     Tag = 0x70
)

const (
	tagMask      = 0x70
	extendedFlag = 0x80

	// MaxSequence is the largest number of values a single header can
	// describe. Longer runs are split.
	MaxSequence = 4095
)

// String returns the name of the tag.
func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagTrue:
		return "true"
	case TagFalse:
		return "false"
	case TagNumber:
		return "number"
	case TagLongString:
		return "long-string"
	case TagShortString:
		return "short-string"
	case TagByteString:
		return "byte-string"
	case TagInteger:
		return "integer"
	default:
		return "unknown"
	}
}

// payloadSize returns the number of bytes following the header for every
// value carrying the tag.
func (t Tag) payloadSize() int {
	switch t {
	case TagNumber:
		return 8
	case TagLongString, TagInteger:
		return 4
	case TagShortString:
		return 2
	case TagByteString:
		return 1
	default:
		return 0
	}
}

// StringAdder interns strings referenced by literal buffers.
type StringAdder interface {
	AddString(s string, isIdentifier bool) uint32
}

// Serializer encodes literal sequences. Consecutive values with the same
// tag share one header.
type Serializer struct {
	strings  StringAdder
	optimize bool
}

// NewSerializer returns a Serializer interning strings into the given
// table. When optimize is set, numbers with an exact int32 value use the
// compact integer encoding.
func NewSerializer(strings StringAdder, optimize bool) *Serializer {
	return &Serializer{strings: strings, optimize: optimize}
}

// Serialize encodes the literals. Strings in a key buffer are interned as
// identifiers.
func (s *Serializer) Serialize(literals []Literal, isKeyBuffer bool) []byte {
	var (
		out     []byte
		payload []byte
		lastTag Tag
		count   int
	)
	flush := func() {
		if count == 0 {
			return
		}
		out = appendHeader(out, lastTag, count)
		out = append(out, payload...)
		payload = payload[:0]
		count = 0
	}
	for _, lit := range literals {
		tag, value := s.encode(lit, isKeyBuffer)
		if tag != lastTag || count == MaxSequence {
			flush()
			lastTag = tag
		}
		payload = append(payload, value...)
		count++
	}
	flush()
	return out
}

// encode returns the tag and payload bytes of a single literal.
func (s *Serializer) encode(lit Literal, isKeyBuffer bool) (Tag, []byte) {
	switch lit.kind {
	case NullKind:
		return TagNull, nil
	case BoolKind:
		if lit.b {
			return TagTrue, nil
		}
		return TagFalse, nil
	case NumberKind:
		if i, ok := lit.int32Value(); ok && s.optimize {
			return TagInteger, binary.LittleEndian.AppendUint32(nil, uint32(i))
		}
		return TagNumber, binary.LittleEndian.AppendUint64(nil, math.Float64bits(lit.num))
	default:
		id := s.strings.AddString(lit.str, isKeyBuffer)
		switch {
		case id <= math.MaxUint8:
			return TagByteString, []byte{byte(id)}
		case id <= math.MaxUint16:
			return TagShortString, binary.LittleEndian.AppendUint16(nil, uint16(id))
		default:
			return TagLongString, binary.LittleEndian.AppendUint32(nil, id)
		}
	}
}

func appendHeader(out []byte, tag Tag, count int) []byte {
	if count < 16 {
		return append(out, byte(tag)|byte(count))
	}
	return append(out, extendedFlag|byte(tag)|byte(count>>8), byte(count))
}
