package field

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Persisted value layout:
//
//	type tag   1 byte (Type)
//	payload    Bool varint, Card fixed32, Int zigzag varint, Float fixed64,
//	           String length-prefixed, StringList varint count + strings,
//	           Time fixed64
//	error flag 1 byte (0 or 1)
//
// Ids and the serial number are runtime state and are never persisted.

// AppendBinary appends the persisted form of v to b.
func (v *Value) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, byte(v.typ))
	switch v.typ {
	case TypeBool:
		b = protowire.AppendVarint(b, protowire.EncodeBool(v.b))
	case TypeCard:
		b = protowire.AppendFixed32(b, v.c)
	case TypeInt:
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v.i)))
	case TypeFloat:
		b = protowire.AppendFixed64(b, math.Float64bits(v.f))
	case TypeString:
		b = protowire.AppendString(b, v.s)
	case TypeStringList:
		b = protowire.AppendVarint(b, uint64(len(v.list)))
		for _, s := range v.list {
			b = protowire.AppendString(b, s)
		}
	case TypeTime:
		b = protowire.AppendFixed64(b, v.t)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(v.typ))
	}
	if v.inError {
		return append(b, 1), nil
	}
	return append(b, 0), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v *Value) MarshalBinary() ([]byte, error) {
	return v.AppendBinary(nil)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It replaces the
// type, payload and error flag; ids and serial number are left alone.
func (v *Value) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeValue(data)
	if err != nil {
		return err
	}
	v.typ = decoded.typ
	v.b, v.c, v.i, v.f = decoded.b, decoded.c, decoded.i, decoded.f
	v.s, v.list, v.t = decoded.s, decoded.list, decoded.t
	v.inError = decoded.inError
	return nil
}

// DecodeValue parses the persisted form into a new unbound value.
func DecodeValue(data []byte) (*Value, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrDecodingFailed, len(data))
	}
	t := Type(data[0])
	if !t.Valid() {
		return nil, fmt.Errorf("%w: type tag %d", ErrDecodingFailed, data[0])
	}
	v := NewValue(0, 0, t)
	rest := data[1:]

	fail := func(n int) error {
		return fmt.Errorf("%w: %s payload: %v", ErrDecodingFailed, t, protowire.ParseError(n))
	}

	switch t {
	case TypeBool:
		u, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return nil, fail(n)
		}
		v.b, rest = protowire.DecodeBool(u), rest[n:]
	case TypeCard:
		u, n := protowire.ConsumeFixed32(rest)
		if n < 0 {
			return nil, fail(n)
		}
		v.c, rest = u, rest[n:]
	case TypeInt:
		u, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return nil, fail(n)
		}
		i := protowire.DecodeZigZag(u)
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("%w: Int payload %d out of range", ErrDecodingFailed, i)
		}
		v.i, rest = int32(i), rest[n:]
	case TypeFloat:
		u, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			return nil, fail(n)
		}
		v.f, rest = math.Float64frombits(u), rest[n:]
	case TypeString:
		s, n := protowire.ConsumeString(rest)
		if n < 0 {
			return nil, fail(n)
		}
		v.s, rest = s, rest[n:]
	case TypeStringList:
		count, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return nil, fail(n)
		}
		rest = rest[n:]
		// Every element takes at least one byte.
		if count > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: StringList count %d exceeds payload", ErrDecodingFailed, count)
		}
		v.list = make([]string, 0, count)
		for range count {
			s, n := protowire.ConsumeString(rest)
			if n < 0 {
				return nil, fail(n)
			}
			v.list, rest = append(v.list, s), rest[n:]
		}
	case TypeTime:
		u, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			return nil, fail(n)
		}
		v.t, rest = u, rest[n:]
	}

	if len(rest) != 1 {
		return nil, fmt.Errorf("%w: expected error flag, %d bytes left", ErrDecodingFailed, len(rest))
	}
	switch rest[0] {
	case 0:
	case 1:
		v.inError = true
	default:
		return nil, fmt.Errorf("%w: error flag %d", ErrDecodingFailed, rest[0])
	}
	return v, nil
}
