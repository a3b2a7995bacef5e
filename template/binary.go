package template

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/arloliu/sbs/anycodec"
	"github.com/arloliu/sbs/bigint"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
)

type bytesNode struct {
	length LengthPolicy
}

// Bytes stores a raw byte slice. It accepts []byte and the anycodec buffer
// types and decodes to []byte. A nil length stores a U32 byte count.
func Bytes(length LengthPolicy) Node {
	return &bytesNode{length: orDefaultLength(length)}
}

func (b *bytesNode) String() string {
	return "bytes(" + describeLength(b.length) + ")"
}

func (b *bytesNode) check() error {
	return checkLength(b.length, false)
}

func (b *bytesNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		n, err := ev.readLength(b.length)
		if err != nil {
			return nil, err
		}
		data, err := ev.r.GetBytes(n)
		if err != nil {
			return nil, err
		}

		return bytes.Clone(data), nil
	}

	var data []byte
	switch val := v.(type) {
	case nil:
	case []byte:
		data = val
	case anycodec.RawBuffer:
		data = val
	case anycodec.DataView:
		data = val
	case anycodec.ClampedBytes:
		data = val
	default:
		return nil, fmt.Errorf("%w: expected []byte, got %T", errs.ErrTypeMismatch, v)
	}

	if err := ev.writeLength(b.length, len(data)); err != nil {
		return nil, err
	}
	ev.w.PushBytes(data)

	return nil, nil
}

type typedArrayNode struct {
	elem   Kind
	length LengthPolicy
}

// TypedArray stores a Go slice of fixed-width numbers ([]uint8 through
// []float64) element by element in the template's byte order. The length is
// the element count; a nil length stores it as U32.
func TypedArray(elem Kind, length LengthPolicy) Node {
	return &typedArrayNode{elem: elem, length: orDefaultLength(length)}
}

func (t *typedArrayNode) String() string {
	return "typedArray(" + t.elem.String() + ")"
}

func (t *typedArrayNode) check() error {
	if !t.elem.IsNumeric() {
		return fmt.Errorf("%w: %s cannot be a typed array element", errs.ErrInvalidTemplate, t.elem)
	}

	return checkLength(t.length, false)
}

func (t *typedArrayNode) eval(ev *Evaluator, v any) (any, error) {
	engine := ev.engine()
	if !ev.Writing() {
		n, err := ev.readLength(t.length)
		if err != nil {
			return nil, err
		}
		if n > ev.r.Remaining()/t.elem.Size() {
			return nil, fmt.Errorf("%w: %d elements of %s exceed the remaining input", errs.ErrFormatInvalid, n, t.elem)
		}
		data, err := ev.r.GetBytes(n * t.elem.Size())
		if err != nil {
			return nil, err
		}

		return decodeTyped(t.elem, engine, data, n), nil
	}

	if v == nil {
		v = emptyTyped(t.elem)
	}
	n, data, err := encodeTyped(t.elem, engine, v)
	if err != nil {
		return nil, err
	}
	if err := ev.writeLength(t.length, n); err != nil {
		return nil, err
	}
	ev.w.PushBytes(data)

	return nil, nil
}

func emptyTyped(k Kind) any {
	switch k {
	case U8:
		return []uint8{}
	case U16:
		return []uint16{}
	case U32:
		return []uint32{}
	case U64:
		return []uint64{}
	case I8:
		return []int8{}
	case I16:
		return []int16{}
	case I32:
		return []int32{}
	case I64:
		return []int64{}
	case F32:
		return []float32{}
	default:
		return []float64{}
	}
}

func encodeTyped(k Kind, engine endian.EndianEngine, v any) (int, []byte, error) {
	switch s := v.(type) {
	case []uint8:
		if k == U8 {
			return len(s), s, nil
		}
	case anycodec.ClampedBytes:
		if k == U8 {
			return len(s), s, nil
		}
	case []uint16:
		if k == U16 {
			return len(s), appendAll(s, 2, engine.AppendUint16), nil
		}
	case []uint32:
		if k == U32 {
			return len(s), appendAll(s, 4, engine.AppendUint32), nil
		}
	case []uint64:
		if k == U64 {
			return len(s), appendAll(s, 8, engine.AppendUint64), nil
		}
	case []int8:
		if k == I8 {
			return len(s), appendAll(s, 1, func(b []byte, x int8) []byte { return append(b, byte(x)) }), nil
		}
	case []int16:
		if k == I16 {
			return len(s), appendAll(s, 2, func(b []byte, x int16) []byte { return engine.AppendUint16(b, uint16(x)) }), nil //nolint:gosec
		}
	case []int32:
		if k == I32 {
			return len(s), appendAll(s, 4, func(b []byte, x int32) []byte { return engine.AppendUint32(b, uint32(x)) }), nil //nolint:gosec
		}
	case []int64:
		if k == I64 {
			return len(s), appendAll(s, 8, func(b []byte, x int64) []byte { return engine.AppendUint64(b, uint64(x)) }), nil //nolint:gosec
		}
	case []float32:
		if k == F32 {
			return len(s), appendAll(s, 4, func(b []byte, x float32) []byte { return engine.AppendUint32(b, math.Float32bits(x)) }), nil
		}
	case []float64:
		if k == F64 {
			return len(s), appendAll(s, 8, func(b []byte, x float64) []byte { return engine.AppendUint64(b, math.Float64bits(x)) }), nil
		}
	}

	return 0, nil, fmt.Errorf("%w: typed array of %s cannot store %T", errs.ErrTypeMismatch, k, v)
}

func appendAll[T any](vals []T, width int, appendOne func([]byte, T) []byte) []byte {
	out := make([]byte, 0, len(vals)*width)
	for _, x := range vals {
		out = appendOne(out, x)
	}

	return out
}

func decodeTyped(k Kind, engine binary.ByteOrder, b []byte, n int) any {
	switch k {
	case U8:
		return bytes.Clone(b)
	case U16:
		return decodeAll(b, n, 2, engine.Uint16)
	case U32:
		return decodeAll(b, n, 4, engine.Uint32)
	case U64:
		return decodeAll(b, n, 8, engine.Uint64)
	case I8:
		return decodeAll(b, n, 1, func(p []byte) int8 { return int8(p[0]) }) //nolint:gosec
	case I16:
		return decodeAll(b, n, 2, func(p []byte) int16 { return int16(engine.Uint16(p)) }) //nolint:gosec
	case I32:
		return decodeAll(b, n, 4, func(p []byte) int32 { return int32(engine.Uint32(p)) }) //nolint:gosec
	case I64:
		return decodeAll(b, n, 8, func(p []byte) int64 { return int64(engine.Uint64(p)) }) //nolint:gosec
	case F32:
		return decodeAll(b, n, 4, func(p []byte) float32 { return math.Float32frombits(engine.Uint32(p)) })
	default:
		return decodeAll(b, n, 8, func(p []byte) float64 { return math.Float64frombits(engine.Uint64(p)) })
	}
}

func decodeAll[T any](b []byte, n, width int, decodeOne func([]byte) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = decodeOne(b[i*width:])
	}

	return out
}

type bigIntNode struct {
	signed bool
	length LengthPolicy
}

// BigInt stores a signed two's complement integer of any size.
//
// With a Fixed length the value occupies exactly that many bytes and must fit;
// otherwise the minimal encoding is stored behind the length policy (U32 when
// nil). Decodes to *big.Int.
func BigInt(length LengthPolicy) Node {
	return &bigIntNode{signed: true, length: orDefaultLength(length)}
}

// BigUint is BigInt for non-negative integers.
func BigUint(length LengthPolicy) Node {
	return &bigIntNode{length: orDefaultLength(length)}
}

func (b *bigIntNode) String() string {
	if b.signed {
		return "bigInt(" + describeLength(b.length) + ")"
	}

	return "bigUint(" + describeLength(b.length) + ")"
}

func (b *bigIntNode) check() error {
	return checkLength(b.length, false)
}

func (b *bigIntNode) eval(ev *Evaluator, v any) (any, error) {
	little := endian.IsLittle(ev.engine())
	if !ev.Writing() {
		n, err := ev.readLength(b.length)
		if err != nil {
			return nil, err
		}
		data, err := ev.r.GetBytes(n)
		if err != nil {
			return nil, err
		}
		if b.signed {
			return bigint.IntFromBytes(data, little), nil
		}

		return bigint.UintFromBytes(data, little), nil
	}

	x, err := toBigInt(v)
	if err != nil {
		return nil, err
	}

	fixed := 0
	if f, ok := b.length.(Fixed); ok {
		fixed = int(f)
	}
	var data []byte
	if b.signed {
		data, err = bigint.IntToBytes(x, little, fixed, true)
	} else {
		data, err = bigint.UintToBytes(x, little, fixed, true)
	}
	if err != nil {
		return nil, err
	}
	if err := ev.writeLength(b.length, len(data)); err != nil {
		return nil, err
	}
	ev.w.PushBytes(data)

	return nil, nil
}

// IntegerSpec describes an integer of arbitrary byte width.
type IntegerSpec struct {
	// ByteLength is the encoded width, at least 1.
	ByteLength int
	Signed     bool
	// ByteOrder overrides the template's byte order for this field when set.
	ByteOrder endian.EndianEngine
}

type integerNode struct {
	spec IntegerSpec
}

// Integer stores an integer of any byte width, for wire formats using widths
// such as 3 or 5 bytes.
//
// Widths up to 8 bytes decode to int64 or uint64, wider ones to *big.Int.
func Integer(spec IntegerSpec) Node {
	return &integerNode{spec: spec}
}

func (n *integerNode) String() string {
	if n.spec.Signed {
		return fmt.Sprintf("integer(i%d)", n.spec.ByteLength*8)
	}

	return fmt.Sprintf("integer(u%d)", n.spec.ByteLength*8)
}

func (n *integerNode) check() error {
	if n.spec.ByteLength < 1 {
		return fmt.Errorf("%w: integer byte length must be positive, got %d", errs.ErrInvalidTemplate, n.spec.ByteLength)
	}

	return nil
}

func (n *integerNode) engine(ev *Evaluator) endian.EndianEngine {
	if n.spec.ByteOrder != nil {
		return n.spec.ByteOrder
	}

	return ev.engine()
}

func (n *integerNode) kind() (Kind, bool) {
	kinds := map[int]Kind{1: U8, 2: U16, 4: U32, 8: U64}
	if n.spec.Signed {
		kinds = map[int]Kind{1: I8, 2: I16, 4: I32, 8: I64}
	}
	k, ok := kinds[n.spec.ByteLength]

	return k, ok
}

func (n *integerNode) eval(ev *Evaluator, v any) (any, error) {
	engine := n.engine(ev)
	if k, ok := n.kind(); ok {
		if ev.Writing() {
			return nil, ev.writeKind(k, engine, v)
		}
		out, err := ev.readKind(k, engine)
		if err != nil {
			return nil, err
		}
		if n.spec.Signed {
			return toInt64(out)
		}

		return toUint64(out)
	}

	little := endian.IsLittle(engine)
	if !ev.Writing() {
		data, err := ev.r.GetBytes(n.spec.ByteLength)
		if err != nil {
			return nil, err
		}
		var x *big.Int
		if n.spec.Signed {
			x = bigint.IntFromBytes(data, little)
		} else {
			x = bigint.UintFromBytes(data, little)
		}
		if n.spec.ByteLength > 8 {
			return x, nil
		}
		if n.spec.Signed {
			return x.Int64(), nil
		}

		return x.Uint64(), nil
	}

	x, err := toBigInt(v)
	if err != nil {
		return nil, err
	}
	var data []byte
	if n.spec.Signed {
		data, err = bigint.IntToBytes(x, little, n.spec.ByteLength, true)
	} else {
		data, err = bigint.UintToBytes(x, little, n.spec.ByteLength, true)
	}
	if err != nil {
		return nil, err
	}
	copy(ev.w.Scratch(len(data)), data)

	return nil, nil
}
