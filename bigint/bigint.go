// Package bigint converts arbitrary-precision integers to and from byte sequences.
//
// Signed values use two's complement. Without a fixed size the encoding uses
// the minimal number of bytes able to hold the value (including the sign bit
// for signed values); with a fixed size the value is range checked against
// that size first.
//
// Round trip:
//
//	b, _ := bigint.IntToBytes(v, true, 4, true)
//	bigint.IntFromBytes(b, true).Cmp(v) == 0 // for every v in [-2^31, 2^31-1]
package bigint

import (
	"fmt"
	"math/big"

	"github.com/arloliu/sbs/errs"
)

// MinimalSize returns the number of bytes the minimal encoding of v needs.
//
// Unsigned zero needs no bytes at all; every signed value needs at least one.
func MinimalSize(v *big.Int, signed bool) int {
	return (bitCount(v, signed) + 7) / 8
}

// UintToBytes encodes a non-negative v.
//
// Parameters:
//   - v: value to encode, must not be negative
//   - littleEndian: byte order of the result
//   - fixedSize: exact result length in bytes, 0 for the minimal length
//   - rejectOverflow: when false, a value too large for fixedSize is truncated
//
// Returns:
//   - []byte: the encoded value
//   - error: ErrTypeMismatch for a nil or negative value, ErrOverflow if v does not fit fixedSize
func UintToBytes(v *big.Int, littleEndian bool, fixedSize int, rejectOverflow bool) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil big integer", errs.ErrTypeMismatch)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: expected an unsigned integer, got %s", errs.ErrTypeMismatch, v)
	}

	size := fixedSize
	if size <= 0 {
		size = MinimalSize(v, false)
	} else if rejectOverflow && v.BitLen() > size*8 {
		return nil, fmt.Errorf("%w: %s does not fit in %d unsigned bytes", errs.ErrOverflow, v, size)
	}

	return fill(v, size, littleEndian), nil
}

// IntToBytes encodes v in two's complement.
//
// Parameters:
//   - v: value to encode
//   - littleEndian: byte order of the result
//   - fixedSize: exact result length in bytes, 0 for the minimal length
//   - rejectOverflow: when false, a value outside the fixedSize range is truncated
//
// Returns:
//   - []byte: the encoded value
//   - error: ErrTypeMismatch for a nil value, ErrOverflow if v does not fit fixedSize
func IntToBytes(v *big.Int, littleEndian bool, fixedSize int, rejectOverflow bool) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil big integer", errs.ErrTypeMismatch)
	}

	size := fixedSize
	if size <= 0 {
		size = MinimalSize(v, true)
	} else if rejectOverflow && bitCount(v, true) > size*8 {
		return nil, fmt.Errorf("%w: %s does not fit in %d signed bytes", errs.ErrOverflow, v, size)
	}

	if v.Sign() >= 0 {
		return fill(v, size, littleEndian), nil
	}

	// Adding 2^(8*size) to a negative value yields its two's complement bit pattern.
	tc := new(big.Int).Lsh(big.NewInt(1), uint(size*8))
	tc.Add(tc, v)
	if tc.Sign() < 0 {
		// Only reachable with rejectOverflow disabled; keep the low bytes.
		tc.Mod(tc, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}

	return fill(tc, size, littleEndian), nil
}

// UintFromBytes decodes an unsigned integer. An empty slice decodes to zero.
func UintFromBytes(b []byte, littleEndian bool) *big.Int {
	if !littleEndian {
		return new(big.Int).SetBytes(b)
	}

	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}

	return new(big.Int).SetBytes(be)
}

// IntFromBytes decodes a two's complement integer.
func IntFromBytes(b []byte, littleEndian bool) *big.Int {
	v := UintFromBytes(b, littleEndian)
	if len(b) == 0 {
		return v
	}

	bits := uint(len(b) * 8)
	if v.Bit(int(bits-1)) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}

	return v
}

// bitCount counts the bits needed for v, including the sign bit when signed.
func bitCount(v *big.Int, signed bool) int {
	if !signed {
		return v.BitLen()
	}
	if v.Sign() >= 0 {
		return v.BitLen() + 1
	}

	// -v-1 has the same magnitude bits as v's two's complement without the sign.
	m := new(big.Int).Neg(v)
	m.Sub(m, big.NewInt(1))

	return m.BitLen() + 1
}

// fill writes the low size bytes of the non-negative v.
func fill(v *big.Int, size int, littleEndian bool) []byte {
	out := make([]byte, size)
	raw := v.Bytes()
	if len(raw) > size {
		raw = raw[len(raw)-size:]
	}
	copy(out[size-len(raw):], raw)

	if littleEndian {
		for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	return out
}
