package literal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when a buffer ends inside a value.
var ErrTruncated = errors.New("truncated literal buffer")

// Value is one decoded literal. Strings are reported by their string
// table id.
type Value struct {
	Tag      Tag
	Number   float64
	StringID uint32
}

// Literal converts a decoded value back into a Literal, resolving string
// ids through the given function.
func (v Value) Literal(resolve func(id uint32) string) Literal {
	switch v.Tag {
	case TagNull:
		return Null()
	case TagTrue:
		return Bool(true)
	case TagFalse:
		return Bool(false)
	case TagNumber, TagInteger:
		return Number(v.Number)
	default:
		return String(resolve(v.StringID))
	}
}

// Decode reads count values from buf starting at offset.
func Decode(buf []byte, offset uint32, count int) ([]Value, error) {
	pos := int(offset)
	if pos > len(buf) {
		return nil, fmt.Errorf("offset %d beyond buffer of %d bytes", offset, len(buf))
	}
	values := make([]Value, 0, count)
	for len(values) < count {
		if pos >= len(buf) {
			return nil, fmt.Errorf("%w at %d", ErrTruncated, pos)
		}
		header := buf[pos]
		tag := Tag(header & tagMask)
		n := int(header & 0x0f)
		pos++
		if header&extendedFlag != 0 {
			if pos >= len(buf) {
				return nil, fmt.Errorf("%w at %d", ErrTruncated, pos)
			}
			n = n<<8 | int(buf[pos])
			pos++
		}
		size := tag.payloadSize()
		for i := 0; i < n && len(values) < count; i++ {
			if pos+size > len(buf) {
				return nil, fmt.Errorf("%w at %d", ErrTruncated, pos)
			}
			v := Value{Tag: tag}
			raw := buf[pos : pos+size]
			switch tag {
			case TagNumber:
				v.Number = math.Float64frombits(binary.LittleEndian.Uint64(raw))
			case TagInteger:
				v.Number = float64(int32(binary.LittleEndian.Uint32(raw)))
			case TagLongString:
				v.StringID = binary.LittleEndian.Uint32(raw)
			case TagShortString:
				v.StringID = uint32(binary.LittleEndian.Uint16(raw))
			case TagByteString:
				v.StringID = uint32(raw[0])
			}
			values = append(values, v)
			pos += size
		}
	}
	return values, nil
}
