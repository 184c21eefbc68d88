// Package wire holds the protobuf wire format helpers shared by the graph
// and artifact codecs.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Skip tells Walk to skip a field the callback does not handle. protowire
// reports parse errors as small negative lengths, so it cannot collide with them.
const Skip = -1 << 30

// FieldFunc handles one field and returns the number of bytes it consumed, or Skip
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// Decoder reports every parse failure wrapped in Err
type Decoder struct {
	Err error
}

// Walk calls fn for every field of a message
func (d Decoder) Walk(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", d.Err, protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == Skip {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", d.Err, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// String consumes a length-delimited string into dst
func (d Decoder) String(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", d.Err, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

// Message consumes an embedded message and hands its bytes to fn
func (d Decoder) Message(b []byte, fn func([]byte) error) (int, error) {
	m, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", d.Err, protowire.ParseError(n))
	}
	return n, fn(m)
}

// ConsumeFloat64 reads a fixed64 double. On truncated input it returns a
// negative length, which Walk reports.
func ConsumeFloat64(b []byte, dst *float64) int {
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

// AppendString appends a string field, omitting it when empty
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	return AppendRepeatedString(b, num, s)
}

// AppendRepeatedString appends one element of a repeated string field, even when empty
func AppendRepeatedString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendMessage appends an embedded message
func AppendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// AppendFloat64 appends a double as fixed64 bits so it round-trips exactly
func AppendFloat64(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// AppendVarint appends an unsigned varint field
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
