// Package bitfield packs named sub-byte integers into a byte-aligned integer.
//
// A layout is an ordered list of fields. A positive width declares an unsigned
// field, a negative width a signed (two's complement) field of the same
// magnitude. The last declared field occupies the least significant bits, so a
// layout reads in the same order as the bits are drawn in protocol diagrams:
//
//	layout, _ := bitfield.NewLayout(
//	    bitfield.Field{Name: "type", Width: 8},
//	    bitfield.Field{Name: "id", Width: 24}, // least significant bits
//	)
//
// The encoded form is always big-endian and exactly Size() bytes long.
package bitfield

import (
	"fmt"
	"math/big"

	"github.com/arloliu/sbs/bigint"
	"github.com/arloliu/sbs/errs"
)

// MaxWidth is the largest field magnitude. Unsigned fields are limited to
// MaxWidth-1 bits so every value fits an int64.
const MaxWidth = 64

// Field declares one member of a bit-field.
type Field struct {
	Name string
	// Width is the number of bits; negative for a signed field.
	Width int
}

// Signed reports whether the field holds a two's complement value.
func (f Field) Signed() bool {
	return f.Width < 0
}

// Bits returns the magnitude of Width.
func (f Field) Bits() int {
	if f.Width < 0 {
		return -f.Width
	}

	return f.Width
}

// Layout is a validated, immutable bit-field declaration.
type Layout struct {
	fields []Field
	bits   int
}

// NewLayout validates fields and returns their layout.
//
// Returns:
//   - *Layout: the layout
//   - error: ErrInvalidTemplate for empty, duplicate or out-of-range fields;
//     ErrMisalignedBitField when the total width is not a multiple of 8
func NewLayout(fields ...Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: a bit-field needs at least one field", errs.ErrInvalidTemplate)
	}

	seen := make(map[string]struct{}, len(fields))
	total := 0
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: bit-field field without a name", errs.ErrInvalidTemplate)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bit-field field %q", errs.ErrInvalidTemplate, f.Name)
		}
		seen[f.Name] = struct{}{}

		limit := MaxWidth - 1
		if f.Signed() {
			limit = MaxWidth
		}
		if f.Width == 0 || f.Bits() > limit {
			return nil, fmt.Errorf("%w: bit-field field %q has invalid width %d", errs.ErrInvalidTemplate, f.Name, f.Width)
		}
		total += f.Bits()
	}

	if missing := (8 - total%8) % 8; missing != 0 {
		return nil, fmt.Errorf("%w: missing %d of the most significant bits, add a padding field such as {reserved %d} first",
			errs.ErrMisalignedBitField, missing, missing)
	}

	return &Layout{fields: append([]Field(nil), fields...), bits: total}, nil
}

// Fields returns a copy of the declared fields.
func (l *Layout) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// Bits returns the total width in bits.
func (l *Layout) Bits() int {
	return l.bits
}

// Size returns the encoded size in bytes.
func (l *Layout) Size() int {
	return l.bits / 8
}

// Pack combines values into a single non-negative integer. Missing fields are zero.
//
// Returns:
//   - *big.Int: the packed integer
//   - error: ErrOverflow when a value does not fit its field, or an unsigned field is negative
func (l *Layout) Pack(values map[string]int64) (*big.Int, error) {
	packed := new(big.Int)
	shift := uint(0)
	for i := len(l.fields) - 1; i >= 0; i-- {
		f := l.fields[i]
		v := values[f.Name]
		bits := uint(f.Bits())

		if f.Signed() {
			lo := -(int64(1) << (bits - 1))
			hi := int64(1)<<(bits-1) - 1
			if bits == 64 {
				lo, hi = -1<<63, 1<<63-1
			}
			if v < lo || v > hi {
				return nil, fmt.Errorf("%w: %d does not fit signed %d-bit field %q", errs.ErrOverflow, v, bits, f.Name)
			}
		} else {
			if v < 0 {
				return nil, fmt.Errorf("%w: field %q is unsigned, got %d", errs.ErrOverflow, f.Name, v)
			}
			if uint64(v) > (uint64(1)<<bits)-1 {
				return nil, fmt.Errorf("%w: %d does not fit unsigned %d-bit field %q", errs.ErrOverflow, v, bits, f.Name)
			}
		}

		// Masking to the field width turns a negative value into its two's complement bits.
		part := new(big.Int).SetUint64(uint64(v))
		if bits < 64 {
			part.And(part, new(big.Int).SetUint64((uint64(1)<<bits)-1))
		}
		packed.Or(packed, part.Lsh(part, shift))
		shift += bits
	}

	return packed, nil
}

// Unpack splits a packed integer back into field values.
func (l *Layout) Unpack(packed *big.Int) map[string]int64 {
	values := make(map[string]int64, len(l.fields))
	rest := new(big.Int).Set(packed)
	for i := len(l.fields) - 1; i >= 0; i-- {
		f := l.fields[i]
		bits := uint(f.Bits())

		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
		raw := new(big.Int).And(rest, mask).Uint64()
		rest.Rsh(rest, bits)

		if f.Signed() && bits < 64 && raw&(uint64(1)<<(bits-1)) != 0 {
			raw |= ^uint64(0) << bits
		}
		values[f.Name] = int64(raw) //nolint:gosec
	}

	return values
}

// Encode packs values into Size() big-endian bytes.
func (l *Layout) Encode(values map[string]int64) ([]byte, error) {
	packed, err := l.Pack(values)
	if err != nil {
		return nil, err
	}

	return bigint.UintToBytes(packed, false, l.Size(), true)
}

// Decode unpacks Size() big-endian bytes.
func (l *Layout) Decode(data []byte) (map[string]int64, error) {
	if len(data) != l.Size() {
		return nil, fmt.Errorf("%w: bit-field needs %d bytes, got %d", errs.ErrFormatInvalid, l.Size(), len(data))
	}

	return l.Unpack(bigint.UintFromBytes(data, false)), nil
}

// Write validates fields and packs values in one step.
func Write(fields []Field, values map[string]int64) (*big.Int, error) {
	l, err := NewLayout(fields...)
	if err != nil {
		return nil, err
	}

	return l.Pack(values)
}

// Read validates fields and unpacks packed in one step.
func Read(fields []Field, packed *big.Int) (map[string]int64, error) {
	l, err := NewLayout(fields...)
	if err != nil {
		return nil, err
	}

	return l.Unpack(packed), nil
}
