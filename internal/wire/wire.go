// Package wire provides the tag-length-value primitives shared by the plan
// and expression codecs.
//
// The format is the protobuf binary wire format, produced and consumed with
// google.golang.org/protobuf/encoding/protowire. Messages are hand-mapped to
// field numbers (see the Field* constants in ir and expr) rather than
// generated, so the schema lives next to the Go types it describes.
//
// Encoding rules:
//   - Scalars follow proto3 implicit presence: zero values are not emitted.
//   - Fields that must be observable even at their zero value (presence
//     carries meaning) use the Always* variants.
//   - Repeated strings are emitted element by element, including empty ones.
//   - Unknown fields are captured verbatim by the decoder and re-emitted by
//     Encoder.Raw, so data from newer schema versions survives a round trip.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Number is a field number. Field numbers are append-only: once assigned
// they are never renumbered or reused.
type Number = protowire.Number

// ErrMalformed is returned for input that is not valid wire data.
var ErrMalformed = errors.New("malformed wire data")

// Encoder accumulates an encoded message.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded message.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// String emits a string field unless it is empty.
func (e *Encoder) String(num Number, s string) {
	if s == "" {
		return
	}
	e.AlwaysString(num, s)
}

// AlwaysString emits a string field even when it is empty.
func (e *Encoder) AlwaysString(num Number, s string) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

// Strings emits one field per element, empty elements included.
func (e *Encoder) Strings(num Number, ss []string) {
	for _, s := range ss {
		e.AlwaysString(num, s)
	}
}

// Int64 emits a varint field unless it is zero.
func (e *Encoder) Int64(num Number, v int64) {
	if v == 0 {
		return
	}
	e.AlwaysInt64(num, v)
}

// AlwaysInt64 emits a varint field even when it is zero.
func (e *Encoder) AlwaysInt64(num Number, v int64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(v))
}

// Int32 emits a varint field unless it is zero.
func (e *Encoder) Int32(num Number, v int32) {
	e.Int64(num, int64(v))
}

// Enum emits an enum field unless it is the UNSPECIFIED sentinel.
func (e *Encoder) Enum(num Number, v int32) {
	e.Int64(num, int64(v))
}

// Bool emits a bool field unless it is false.
func (e *Encoder) Bool(num Number, v bool) {
	if !v {
		return
	}
	e.AlwaysBool(num, v)
}

// AlwaysBool emits a bool field even when it is false.
func (e *Encoder) AlwaysBool(num Number, v bool) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeBool(v))
}

// Double emits a double field unless it is zero.
func (e *Encoder) Double(num Number, v float64) {
	if v == 0 && !math.Signbit(v) {
		return
	}
	e.AlwaysDouble(num, v)
}

// AlwaysDouble emits a double field even when it is zero.
func (e *Encoder) AlwaysDouble(num Number, v float64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

// Message emits a length-delimited sub-message built by fn. The field is
// always emitted, so an empty sub-message still marks presence.
func (e *Encoder) Message(num Number, fn func(*Encoder) error) error {
	var sub Encoder
	if err := fn(&sub); err != nil {
		return err
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, sub.buf)
	return nil
}

// Raw appends pre-encoded fields, typically preserved unknown fields.
func (e *Encoder) Raw(b []byte) {
	e.buf = append(e.buf, b...)
}

// Field is one decoded field of a message.
type Field struct {
	Num  Number
	Type protowire.Type

	raw []byte // tag and value
	val []byte // value only
}

// Raw returns the complete encoding of the field, tag included.
func (f Field) Raw() []byte {
	return f.raw
}

// Varint returns the value of a varint field.
func (f Field) Varint() (uint64, error) {
	if f.Type != protowire.VarintType {
		return 0, f.typeError("varint")
	}
	v, n := protowire.ConsumeVarint(f.val)
	if n < 0 {
		return 0, f.parseError(n)
	}
	return v, nil
}

// Int64 returns the value of an int64 field.
func (f Field) Int64() (int64, error) {
	v, err := f.Varint()
	return int64(v), err
}

// Int32 returns the value of an int32 or enum field.
func (f Field) Int32() (int32, error) {
	v, err := f.Varint()
	return int32(v), err
}

// Bool returns the value of a bool field.
func (f Field) Bool() (bool, error) {
	v, err := f.Varint()
	return protowire.DecodeBool(v), err
}

// Double returns the value of a double field.
func (f Field) Double() (float64, error) {
	if f.Type != protowire.Fixed64Type {
		return 0, f.typeError("fixed64")
	}
	v, n := protowire.ConsumeFixed64(f.val)
	if n < 0 {
		return 0, f.parseError(n)
	}
	return math.Float64frombits(v), nil
}

// Bytes returns the payload of a length-delimited field.
func (f Field) Bytes() ([]byte, error) {
	if f.Type != protowire.BytesType {
		return nil, f.typeError("bytes")
	}
	v, n := protowire.ConsumeBytes(f.val)
	if n < 0 {
		return nil, f.parseError(n)
	}
	return v, nil
}

// String returns the value of a string field.
func (f Field) String() (string, error) {
	b, err := f.Bytes()
	return string(b), err
}

func (f Field) typeError(want string) error {
	return fmt.Errorf("%w: field %d has wire type %d, want %s", ErrMalformed, f.Num, f.Type, want)
}

func (f Field) parseError(n int) error {
	return fmt.Errorf("%w: field %d: %v", ErrMalformed, f.Num, protowire.ParseError(n))
}

// Fields calls fn for every field of the message in b, in wire order.
// Iteration stops at the first error returned by fn.
func Fields(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		f := Field{
			Num:  num,
			Type: typ,
			raw:  b[:n+m],
			val:  b[n : n+m],
		}
		if err := fn(f); err != nil {
			return err
		}
		b = b[n+m:]
	}
	return nil
}

// Unknown collects fields a decoder did not recognize.
type Unknown []byte

// Add records f as unknown.
func (u *Unknown) Add(f Field) {
	*u = append(*u, f.raw...)
}
