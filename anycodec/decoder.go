package anycodec

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"time"

	"github.com/arloliu/sbs/bigint"
	"github.com/arloliu/sbs/buffer"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/internal/options"
)

// FunctionEvaluator turns serialized function source back into a value.
//
// WARNING: evaluating source taken from untrusted input is equivalent to
// running attacker supplied code. Only install an evaluator for data whose
// producer you trust.
type FunctionEvaluator func(source string) (any, error)

// DecoderOption configures a Decoder.
type DecoderOption = options.Option[*Decoder]

// WithFunctionEvaluator installs fn for tag 22 values. Without it functions
// decode to an inert Function holding the source.
func WithFunctionEvaluator(fn FunctionEvaluator) DecoderOption {
	return options.NoError(func(d *Decoder) {
		d.evaluate = fn
	})
}

// WithMaxSize rejects any length, element count or offset above n.
func WithMaxSize(n uint64) DecoderOption {
	return options.New(func(d *Decoder) error {
		if n == 0 || n > MaxSize {
			return fmt.Errorf("%w: max size must be in [1, %d], got %d", errs.ErrInvalidTemplate, uint64(MaxSize), n)
		}
		d.maxSize = n

		return nil
	})
}

// Decoder reads self-describing values from a buffer.Reader.
//
// Composite values are recorded at their start offset before their members
// are read, so back-references inside a value may point at the value itself.
type Decoder struct {
	r        *buffer.Reader
	little   bool
	seen     map[int]any
	evaluate FunctionEvaluator
	maxSize  uint64
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r *buffer.Reader, opts ...DecoderOption) (*Decoder, error) {
	d := &Decoder{seen: make(map[int]any), maxSize: MaxSize}
	if err := options.Apply(d, opts...); err != nil {
		return nil, err
	}
	d.Reset(r)

	return d, nil
}

// Reset binds the Decoder to r and forgets every recorded value.
func (d *Decoder) Reset(r *buffer.Reader) {
	d.r = r
	if r != nil {
		d.little = endian.IsLittle(r.Engine())
	}
	clear(d.seen)
}

// Decode reads one value.
//
// Integers decode as int64 (uint64 above math.MaxInt64), objects as *Object,
// sequences as []any and typed buffers as Go slices of their element type.
//
// Returns:
//   - any: the decoded value
//   - error: ErrFormatInvalid for unknown tags, dangling references, oversized
//     lengths and truncated input
func (d *Decoder) Decode() (any, error) {
	return d.decode(-1)
}

func (d *Decoder) decode(mustBe int) (any, error) {
	start := d.r.Offset()

	header, err := d.r.ReadUint8()
	if err != nil {
		return nil, err
	}
	tag, sub := header&tagMask, header>>sizeClassShift

	// padding precedes the value it aligns; the value keeps the padding's offset
	for tag == TagPadding {
		if sub != 0 {
			n, err := d.r.ReadUint8()
			if err != nil {
				return nil, err
			}
			if _, err := d.r.GetBytes(int(n)); err != nil {
				return nil, err
			}
		}
		if header, err = d.r.ReadUint8(); err != nil {
			return nil, err
		}
		tag, sub = header&tagMask, header>>sizeClassShift
	}

	if mustBe >= 0 && int(tag) != mustBe {
		return nil, fmt.Errorf("%w: expected tag %d at offset %d, got %d", errs.ErrFormatInvalid, mustBe, start, tag)
	}

	switch tag {
	case TagReference:
		off, err := d.readSize(sub)
		if err != nil {
			return nil, err
		}
		v, ok := d.seen[off]
		if !ok {
			return nil, fmt.Errorf("%w: reference to unrecorded offset %d", errs.ErrFormatInvalid, off)
		}

		return v, nil
	case TagRawBuffer:
		return recordAfter(d, start, sub, func(b []byte) any { return RawBuffer(b) })
	case TagDataView:
		return recordAfter(d, start, sub, func(b []byte) any { return DataView(b) })
	case TagClampedBytes:
		return recordAfter(d, start, sub, func(b []byte) any { return ClampedBytes(b) })
	case TagUint8Array:
		return recordAfter(d, start, sub, func(b []byte) any { return b })
	case TagInt8Array, TagUint16Array, TagInt16Array, TagUint32Array, TagInt32Array,
		TagFloat32Array, TagUint64Array, TagInt64Array, TagFloat64Array:
		return d.readTypedArray(start, tag, sub)
	case TagSequence:
		return d.readSequence(start, sub)
	case TagMap:
		return d.readMap(start, sub)
	case TagSet:
		return d.readSet(start, sub)
	case TagRegexp:
		src, err := d.readString(sub)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", errs.ErrFormatInvalid, src, err)
		}
		d.seen[start] = re

		return re, nil
	case TagError:
		return d.readError(start, sub)
	case TagTime:
		ms, err := d.r.ReadUint64()
		if err != nil {
			return nil, err
		}

		t := time.UnixMilli(int64(ms)).UTC() //nolint:gosec
		d.seen[start] = t

		return t, nil
	case TagObject:
		return d.readObject(start, sub)
	case TagBigInt:
		b, err := d.readSized(sub)
		if err != nil {
			return nil, err
		}
		v := bigint.IntFromBytes(b, d.little)
		d.seen[start] = v

		return v, nil
	case TagBool:
		return sub != 0, nil
	case TagFunction:
		src, err := d.readString(sub)
		if err != nil {
			return nil, err
		}
		if d.evaluate == nil {
			return Function{Source: src}, nil
		}

		return d.evaluate(src)
	case TagInteger:
		b, err := d.readSized(sub)
		if err != nil {
			return nil, err
		}

		return integerValue(bigint.IntFromBytes(b, d.little)), nil
	case TagFloat:
		if sub != 0 {
			return d.r.ReadFloat32()
		}

		return d.r.ReadFloat64()
	case TagNonFinite:
		switch sub {
		case subNaN:
			return math.NaN(), nil
		case subPosInf:
			return math.Inf(1), nil
		case subNegInf:
			return math.Inf(-1), nil
		}

		return nil, fmt.Errorf("%w: non-finite subtype %d", errs.ErrFormatInvalid, sub)
	case TagString:
		return d.readString(sub)
	case TagSymbol:
		desc, err := d.readString(sub)
		if err != nil {
			return nil, err
		}

		return Symbol{Description: desc}, nil
	case TagNull:
		if sub != 0 {
			return nil, nil
		}

		return Undefined{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d at offset %d", errs.ErrFormatInvalid, tag, start)
	}
}

func (d *Decoder) readSize(sub byte) (int, error) {
	var size uint64
	switch sub {
	case 0:
		v, err := d.r.ReadUint8()
		size = uint64(v)
		if err != nil {
			return 0, err
		}
	case 1:
		v, err := d.r.ReadUint16()
		size = uint64(v)
		if err != nil {
			return 0, err
		}
	case 2:
		v, err := d.r.ReadUint32()
		size = uint64(v)
		if err != nil {
			return 0, err
		}
	default:
		v, err := d.r.ReadUint64()
		size = v
		if err != nil {
			return 0, err
		}
	}

	if size > d.maxSize {
		return 0, fmt.Errorf("%w: size %d exceeds %d", errs.ErrFormatInvalid, size, d.maxSize)
	}

	return int(size), nil //nolint:gosec
}

// readCount reads an element count. Every element takes at least one byte,
// which bounds allocations by the input size.
func (d *Decoder) readCount(sub byte, bytesPerItem int) (int, error) {
	n, err := d.readSize(sub)
	if err != nil {
		return 0, err
	}
	if n > d.r.Remaining()/bytesPerItem {
		return 0, fmt.Errorf("%w: %d items cannot fit the remaining %d bytes", errs.ErrFormatInvalid, n, d.r.Remaining())
	}

	return n, nil
}

// readSized reads a length followed by that many bytes, copied out of the stream.
func (d *Decoder) readSized(sub byte) ([]byte, error) {
	n, err := d.readSize(sub)
	if err != nil {
		return nil, err
	}
	b, err := d.r.GetBytes(n)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(b), nil
}

func (d *Decoder) readString(sub byte) (string, error) {
	n, err := d.readSize(sub)
	if err != nil {
		return "", err
	}
	b, err := d.r.GetBytes(n)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// recordAfter reads a byte buffer and records it once it is complete.
func recordAfter(d *Decoder, start int, sub byte, wrap func([]byte) any) (any, error) {
	b, err := d.readSized(sub)
	if err != nil {
		return nil, err
	}
	v := wrap(b)
	d.seen[start] = v

	return v, nil
}

func (d *Decoder) readTypedArray(start int, tag byte, sub byte) (any, error) {
	b, err := d.readSized(sub)
	if err != nil {
		return nil, err
	}

	width := elementSize(tag)
	if len(b)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of the element width %d", errs.ErrFormatInvalid, len(b), width)
	}

	engine := d.r.Engine()
	n := len(b) / width
	var v any
	switch tag {
	case TagInt8Array:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(b[i])
		}
		v = out
	case TagUint16Array:
		v = decodeEach(b, n, 2, engine.Uint16)
	case TagInt16Array:
		v = decodeEach(b, n, 2, func(p []byte) int16 { return int16(engine.Uint16(p)) })
	case TagUint32Array:
		v = decodeEach(b, n, 4, engine.Uint32)
	case TagInt32Array:
		v = decodeEach(b, n, 4, func(p []byte) int32 { return int32(engine.Uint32(p)) })
	case TagFloat32Array:
		v = decodeEach(b, n, 4, func(p []byte) float32 { return math.Float32frombits(engine.Uint32(p)) })
	case TagUint64Array:
		v = decodeEach(b, n, 8, engine.Uint64)
	case TagInt64Array:
		v = decodeEach(b, n, 8, func(p []byte) int64 { return int64(engine.Uint64(p)) })
	default:
		v = decodeEach(b, n, 8, func(p []byte) float64 { return math.Float64frombits(engine.Uint64(p)) })
	}
	d.seen[start] = v

	return v, nil
}

func (d *Decoder) readSequence(start int, sub byte) (any, error) {
	n, err := d.readCount(sub, 1)
	if err != nil {
		return nil, err
	}

	seq := make([]any, n)
	d.seen[start] = seq
	for i := range seq {
		if seq[i], err = d.decode(-1); err != nil {
			return nil, err
		}
	}

	return seq, nil
}

func (d *Decoder) readMap(start int, sub byte) (any, error) {
	n, err := d.readCount(sub, 2)
	if err != nil {
		return nil, err
	}

	m := NewMap()
	d.seen[start] = m
	for range n {
		k, err := d.decode(-1)
		if err != nil {
			return nil, err
		}
		v, err := d.decode(-1)
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}

	return m, nil
}

func (d *Decoder) readSet(start int, sub byte) (any, error) {
	n, err := d.readCount(sub, 1)
	if err != nil {
		return nil, err
	}

	s := NewSet()
	d.seen[start] = s
	for range n {
		v, err := d.decode(-1)
		if err != nil {
			return nil, err
		}
		s.Add(v)
	}

	return s, nil
}

func (d *Decoder) readObject(start int, sub byte) (*Object, error) {
	n, err := d.readCount(sub, 2)
	if err != nil {
		return nil, err
	}

	o := NewObject()
	d.seen[start] = o
	for range n {
		k, err := d.decode(int(TagString))
		if err != nil {
			return nil, err
		}
		v, err := d.decode(-1)
		if err != nil {
			return nil, err
		}
		o.Set(k.(string), v) //nolint:forcetypeassert
	}

	return o, nil
}

func (d *Decoder) readError(start int, sub byte) (any, error) {
	ev := &ErrorValue{DOMException: sub != 0}
	d.seen[start] = ev

	props, err := d.decode(int(TagObject))
	if err != nil {
		return nil, err
	}
	obj, _ := props.(*Object)

	obj.Range(func(k string, v any) bool {
		switch k {
		case "name":
			ev.Name = asString(v)
		case "message":
			ev.Message = asString(v)
		case "stack":
			ev.Stack = asString(v)
		case "cause":
			ev.Cause = v
		default:
			if ev.Extra == nil {
				ev.Extra = NewObject()
			}
			ev.Extra.Set(k, v)
		}

		return true
	})

	return ev, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil, Undefined:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// integerValue narrows a decoded integer to int64, then uint64, then float64.
func integerValue(v *big.Int) any {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.IsUint64() {
		return v.Uint64()
	}
	f, _ := new(big.Float).SetInt(v).Float64()

	return f
}

func decodeEach[T any](b []byte, n, width int, decodeOne func([]byte) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = decodeOne(b[i*width : (i+1)*width])
	}

	return out
}
