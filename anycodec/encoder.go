package anycodec

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/arloliu/sbs/bigint"
	"github.com/arloliu/sbs/buffer"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/internal/options"
)

// EncoderOption configures an Encoder.
type EncoderOption = options.Option[*Encoder]

// WithLowPrecisionFloats stores float64 values as 32-bit floats.
func WithLowPrecisionFloats() EncoderOption {
	return options.NoError(func(e *Encoder) {
		e.lowPrecisionFloats = true
	})
}

// WithTypedArrayAlignment inserts padding so that typed buffer elements start
// at a stream offset that is a multiple of their width.
func WithTypedArrayAlignment() EncoderOption {
	return options.NoError(func(e *Encoder) {
		e.typedArrayAlignment = true
	})
}

// Encoder writes self-describing values into a buffer.Writer.
//
// The identity table lives as long as the Encoder, so values shared between
// several Encode calls on one stream are written once. An Encoder is not safe
// for concurrent use.
type Encoder struct {
	w      *buffer.Writer
	little bool
	seen   map[identity]int

	lowPrecisionFloats  bool
	typedArrayAlignment bool
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w *buffer.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{seen: make(map[identity]int)}
	_ = options.Apply(e, opts...)
	e.Reset(w)

	return e
}

// Reset binds the Encoder to w and forgets every recorded identity.
func (e *Encoder) Reset(w *buffer.Writer) {
	e.w = w
	if w != nil {
		e.little = endian.IsLittle(w.Engine())
	}
	clear(e.seen)
}

// Encode writes v.
//
// Returns:
//   - error: ErrTypeMismatch for values outside the supported universe,
//     ErrFormatInvalid for lengths above MaxSize
func (e *Encoder) Encode(v any) error {
	if v == nil || isNilPointer(v) {
		e.writeType(TagNull, 1)
		return nil
	}

	if id, ok := trackedIdentity(v); ok {
		if off, seen := e.seen[id]; seen {
			return e.writeTypeAndSize(TagReference, uint64(off)) //nolint:gosec
		}
		e.seen[id] = e.w.Offset()
	}

	switch val := v.(type) {
	case Undefined:
		e.writeType(TagNull, 0)
	case bool:
		e.writeType(TagBool, boolByte(val))
	case string:
		return e.writeString(TagString, val)
	case Symbol:
		return e.writeString(TagSymbol, val.Description)
	case Function:
		return e.writeString(TagFunction, val.Source)
	case *regexp.Regexp:
		return e.writeString(TagRegexp, val.String())
	case int:
		return e.writeInteger(big.NewInt(int64(val)))
	case int8:
		return e.writeInteger(big.NewInt(int64(val)))
	case uint8:
		return e.writeInteger(big.NewInt(int64(val)))
	case int16:
		return e.writeInteger(big.NewInt(int64(val)))
	case int32:
		return e.writeInteger(big.NewInt(int64(val)))
	case int64:
		return e.writeInteger(big.NewInt(val))
	case uint:
		return e.writeInteger(new(big.Int).SetUint64(uint64(val)))
	case uint16:
		return e.writeInteger(new(big.Int).SetUint64(uint64(val)))
	case uint32:
		return e.writeInteger(new(big.Int).SetUint64(uint64(val)))
	case uint64:
		return e.writeInteger(new(big.Int).SetUint64(val))
	case float32:
		e.writeFloat(float64(val), true)
	case float64:
		e.writeFloat(val, e.lowPrecisionFloats)
	case *big.Int:
		return e.writeBytes(TagBigInt, mustIntBytes(val, e.little))
	case time.Time:
		e.writeType(TagTime, 0)
		e.w.WriteUint64(uint64(val.UnixMilli())) //nolint:gosec
	case RawBuffer:
		return e.writeBytes(TagRawBuffer, val)
	case DataView:
		return e.writeBytes(TagDataView, val)
	case ClampedBytes:
		return e.writeTypedBuffer(TagClampedBytes, len(val), func() []byte { return val })
	case []byte:
		return e.writeTypedBuffer(TagUint8Array, len(val), func() []byte { return val })
	case []int8:
		return e.writeTypedBuffer(TagInt8Array, len(val), func() []byte {
			out := make([]byte, len(val))
			for i, x := range val {
				out[i] = byte(x)
			}

			return out
		})
	case []uint16:
		return e.writeTypedBuffer(TagUint16Array, 2*len(val), func() []byte {
			return appendEach(val, 2, func(b []byte, x uint16) []byte { return e.w.Engine().AppendUint16(b, x) })
		})
	case []int16:
		return e.writeTypedBuffer(TagInt16Array, 2*len(val), func() []byte {
			return appendEach(val, 2, func(b []byte, x int16) []byte { return e.w.Engine().AppendUint16(b, uint16(x)) })
		})
	case []uint32:
		return e.writeTypedBuffer(TagUint32Array, 4*len(val), func() []byte {
			return appendEach(val, 4, func(b []byte, x uint32) []byte { return e.w.Engine().AppendUint32(b, x) })
		})
	case []int32:
		return e.writeTypedBuffer(TagInt32Array, 4*len(val), func() []byte {
			return appendEach(val, 4, func(b []byte, x int32) []byte { return e.w.Engine().AppendUint32(b, uint32(x)) })
		})
	case []float32:
		return e.writeTypedBuffer(TagFloat32Array, 4*len(val), func() []byte {
			return appendEach(val, 4, func(b []byte, x float32) []byte {
				return e.w.Engine().AppendUint32(b, math.Float32bits(x))
			})
		})
	case []uint64:
		return e.writeTypedBuffer(TagUint64Array, 8*len(val), func() []byte {
			return appendEach(val, 8, func(b []byte, x uint64) []byte { return e.w.Engine().AppendUint64(b, x) })
		})
	case []int64:
		return e.writeTypedBuffer(TagInt64Array, 8*len(val), func() []byte {
			return appendEach(val, 8, func(b []byte, x int64) []byte { return e.w.Engine().AppendUint64(b, uint64(x)) })
		})
	case []float64:
		return e.writeTypedBuffer(TagFloat64Array, 8*len(val), func() []byte {
			return appendEach(val, 8, func(b []byte, x float64) []byte {
				return e.w.Engine().AppendUint64(b, math.Float64bits(x))
			})
		})
	case []any:
		if err := e.writeTypeAndSize(TagSequence, uint64(len(val))); err != nil {
			return err
		}
		for _, item := range val {
			if err := e.Encode(item); err != nil {
				return err
			}
		}
	case *Object:
		return e.writeObject(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		if err := e.writeTypeAndSize(TagObject, uint64(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := e.writeEntry(k, val[k]); err != nil {
				return err
			}
		}
	case *Map:
		if err := e.writeTypeAndSize(TagMap, uint64(val.Len())); err != nil {
			return err
		}
		for i, k := range val.keys {
			if err := e.Encode(k); err != nil {
				return err
			}
			if err := e.Encode(val.values[i]); err != nil {
				return err
			}
		}
	case *Set:
		if err := e.writeTypeAndSize(TagSet, uint64(val.Len())); err != nil {
			return err
		}
		for _, item := range val.values {
			if err := e.Encode(item); err != nil {
				return err
			}
		}
	case *ErrorValue:
		e.writeType(TagError, boolByte(val.DOMException))
		return e.Encode(val.properties())
	case error:
		e.writeType(TagError, 0)
		return e.Encode(FromError(val).properties())
	default:
		return e.encodeReflect(reflect.ValueOf(v))
	}

	return nil
}

// encodeReflect handles named and composite types outside the fixed universe.
func (e *Encoder) encodeReflect(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Bool:
		return e.Encode(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.writeInteger(big.NewInt(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return e.writeInteger(new(big.Int).SetUint64(rv.Uint()))
	case reflect.Float32:
		e.writeFloat(rv.Float(), true)
		return nil
	case reflect.Float64:
		e.writeFloat(rv.Float(), e.lowPrecisionFloats)
		return nil
	case reflect.String:
		return e.writeString(TagString, rv.String())
	case reflect.Slice, reflect.Array:
		if err := e.writeTypeAndSize(TagSequence, uint64(rv.Len())); err != nil { //nolint:gosec
			return err
		}
		for i := range rv.Len() {
			if err := e.Encode(rv.Index(i).Interface()); err != nil {
				return err
			}
		}

		return nil
	case reflect.Map:
		return e.encodeReflectMap(rv)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return e.Encode(nil)
		}

		return e.Encode(rv.Elem().Interface())
	default:
		return fmt.Errorf("%w: any codec cannot encode %s", errs.ErrTypeMismatch, rv.Type())
	}
}

func (e *Encoder) encodeReflectMap(rv reflect.Value) error {
	keys := rv.MapKeys()
	if rv.Type().Key().Kind() == reflect.String {
		slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })
		if err := e.writeTypeAndSize(TagObject, uint64(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := e.writeEntry(k.String(), rv.MapIndex(k).Interface()); err != nil {
				return err
			}
		}

		return nil
	}

	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})
	if err := e.writeTypeAndSize(TagMap, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.Encode(k.Interface()); err != nil {
			return err
		}
		if err := e.Encode(rv.MapIndex(k).Interface()); err != nil {
			return err
		}
	}

	return nil
}

func (e *Encoder) writeObject(o *Object) error {
	if err := e.writeTypeAndSize(TagObject, uint64(o.Len())); err != nil {
		return err
	}
	for _, k := range o.keys {
		if err := e.writeEntry(k, o.values[k]); err != nil {
			return err
		}
	}

	return nil
}

func (e *Encoder) writeEntry(k string, v any) error {
	if err := e.writeString(TagString, k); err != nil {
		return err
	}

	return e.Encode(v)
}

func (e *Encoder) writeType(tag byte, sub byte) {
	e.w.WriteUint8(tag | sub<<sizeClassShift)
}

func (e *Encoder) writeTypeAndSize(tag byte, size uint64) error {
	if size > MaxSize {
		return fmt.Errorf("%w: size %d exceeds %d", errs.ErrFormatInvalid, size, uint64(MaxSize))
	}

	class := sizeClass(size)
	e.writeType(tag, class)
	switch class {
	case 0:
		e.w.WriteUint8(uint8(size))
	case 1:
		e.w.WriteUint16(uint16(size))
	case 2:
		e.w.WriteUint32(uint32(size))
	default:
		e.w.WriteUint64(size)
	}

	return nil
}

func (e *Encoder) writeString(tag byte, s string) error {
	return e.writeBytes(tag, []byte(s))
}

func (e *Encoder) writeBytes(tag byte, b []byte) error {
	if err := e.writeTypeAndSize(tag, uint64(len(b))); err != nil {
		return err
	}
	e.w.PushBytes(b)

	return nil
}

// writeTypedBuffer writes a typed buffer of byteLen bytes, padding first when
// alignment is enabled. data is only called once the header is settled.
func (e *Encoder) writeTypedBuffer(tag byte, byteLen int, data func() []byte) error {
	if e.typedArrayAlignment {
		e.writePadding(elementSize(tag), uint64(byteLen)) //nolint:gosec
	}

	return e.writeBytes(tag, data())
}

// writePadding aligns the payload that follows a header carrying size to elemSize.
func (e *Encoder) writePadding(elemSize int, size uint64) {
	if elemSize <= 1 {
		return
	}

	misalignment := (e.w.Offset() + headerSize(size)) % elemSize
	if misalignment == 0 {
		return
	}

	padding := elemSize - misalignment
	if padding == 1 {
		e.writeType(TagPadding, 0)
		return
	}
	e.writeType(TagPadding, 1)
	e.w.WriteUint8(uint8(padding - 2)) //nolint:gosec
	e.w.Scratch(padding - 2)
}

func (e *Encoder) writeInteger(v *big.Int) error {
	return e.writeBytes(TagInteger, mustIntBytes(v, e.little))
}

func (e *Encoder) writeFloat(f float64, single bool) {
	switch {
	case math.IsNaN(f):
		e.writeType(TagNonFinite, subNaN)
	case math.IsInf(f, 1):
		e.writeType(TagNonFinite, subPosInf)
	case math.IsInf(f, -1):
		e.writeType(TagNonFinite, subNegInf)
	case single:
		e.writeType(TagFloat, 1)
		e.w.WriteFloat32(float32(f))
	default:
		e.writeType(TagFloat, 0)
		e.w.WriteFloat64(f)
	}
}

// trackedIdentity returns the identity of values that take part in
// back-referencing. Only values the Decoder records are tracked.
func trackedIdentity(v any) (identity, bool) {
	switch v.(type) {
	case *Object, *Map, *Set, *ErrorValue, *regexp.Regexp, *big.Int:
		return identityOf(v)
	case time.Time, string, Symbol, Function, Undefined, bool:
		return identity{}, false
	}

	if k := reflect.ValueOf(v).Kind(); k == reflect.Slice || k == reflect.Map {
		return identityOf(v)
	}

	return identity{}, false
}

// mustIntBytes returns the minimal two's complement encoding of v. A minimal
// signed encoding cannot overflow, so the error is unreachable.
func mustIntBytes(v *big.Int, little bool) []byte {
	b, err := bigint.IntToBytes(v, little, 0, true)
	if err != nil {
		panic(err)
	}

	return b
}

func appendEach[T any](vals []T, width int, appendOne func([]byte, T) []byte) []byte {
	out := make([]byte, 0, width*len(vals))
	for _, v := range vals {
		out = appendOne(out, v)
	}

	return out
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}
