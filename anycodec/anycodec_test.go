package anycodec

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/sbs/buffer"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
)

func encode(t *testing.T, engine endian.EndianEngine, v any, opts ...EncoderOption) []byte {
	t.Helper()

	w := buffer.NewWriter(engine, 0)
	defer w.Release()
	require.NoError(t, NewEncoder(w, opts...).Encode(v))

	return w.Bytes()
}

func decode(t *testing.T, engine endian.EndianEngine, data []byte, opts ...DecoderOption) (any, error) {
	t.Helper()

	d, err := NewDecoder(buffer.NewReader(engine, data), opts...)
	require.NoError(t, err)

	return d.Decode()
}

func roundTrip(t *testing.T, v any, opts ...EncoderOption) any {
	t.Helper()

	out, err := decode(t, endian.Big(), encode(t, endian.Big(), v, opts...))
	require.NoError(t, err)

	return out
}

func TestEncode_WireFormat(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []byte
	}{
		{"null", nil, []byte{0x5C}},
		{"undefined", Undefined{}, []byte{0x1C}},
		{"true", true, []byte{0x55}},
		{"false", false, []byte{0x15}},
		{"zero", 0, []byte{0x17, 0x01, 0x00}},
		{"minus one", int64(-1), []byte{0x17, 0x01, 0xFF}},
		{"128 needs a sign byte", 128, []byte{0x17, 0x02, 0x00, 0x80}},
		{"string", "hi", []byte{0x1A, 0x02, 'h', 'i'}},
		{"symbol", Symbol{Description: "s"}, []byte{0x1B, 0x01, 's'}},
		{"NaN", math.NaN(), []byte{0x19}},
		{"+Inf", math.Inf(1), []byte{0x59}},
		{"-Inf", math.Inf(-1), []byte{0x99}},
		{"float64", 1.5, []byte{0x18, 0x3F, 0xF8, 0, 0, 0, 0, 0, 0}},
		{"float32", float32(1.5), []byte{0x58, 0x3F, 0xC0, 0, 0}},
		{"bytes", []byte{9}, []byte{0x03, 0x01, 0x09}},
		{"uint16s", []uint16{0x0102}, []byte{0x04, 0x02, 0x01, 0x02}},
		{"empty sequence", []any{}, []byte{0x0D, 0x00}},
		{"empty object", NewObject(), []byte{0x13, 0x00}},
		{"object", ObjectOf("a", true), []byte{0x13, 0x01, 0x1A, 0x01, 'a', 0x55}},
		{"time", time.UnixMilli(1), []byte{0x12, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"bigint", big.NewInt(-2), []byte{0x14, 0x01, 0xFE}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, encode(t, endian.Big(), tt.value))
		})
	}
}

func TestEncode_SizeClasses(t *testing.T) {
	long := strings.Repeat("x", 300)
	data := encode(t, endian.Big(), long)
	require.Equal(t, []byte{0x5A, 0x01, 0x2C}, data[:3])
	require.Len(t, data, 303)

	huge := make([]byte, 70000)
	data = encode(t, endian.Little(), huge)
	require.Equal(t, []byte{0x83, 0x70, 0x11, 0x01, 0x00}, data[:5])
}

func TestEncode_LittleEndian(t *testing.T) {
	require.Equal(t, []byte{0x17, 0x02, 0x02, 0x01}, encode(t, endian.Little(), 0x0102))
	require.Equal(t, []byte{0x04, 0x02, 0x02, 0x01}, encode(t, endian.Little(), []uint16{0x0102}))

	out, err := decode(t, endian.Little(), []byte{0x17, 0x02, 0x02, 0x01})
	require.NoError(t, err)
	require.Equal(t, int64(0x0102), out)
}

func TestRoundTrip_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"undefined", Undefined{}, Undefined{}},
		{"bool", true, true},
		{"string", "héllo wörld", "héllo wörld"},
		{"empty string", "", ""},
		{"symbol", Symbol{Description: "tok"}, Symbol{Description: "tok"}},
		{"function", Function{Source: "(a) => a + 1"}, Function{Source: "(a) => a + 1"}},
		{"int", 42, int64(42)},
		{"int8", int8(-5), int64(-5)},
		{"uint8", uint8(200), int64(200)},
		{"max int64", int64(math.MaxInt64), int64(math.MaxInt64)},
		{"min int64", int64(math.MinInt64), int64(math.MinInt64)},
		{"max uint64", uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"float64", 0.1, 0.1},
		{"integral float64 stays float", 3.0, 3.0},
		{"float32", float32(2.25), float32(2.25)},
		{"+Inf", math.Inf(1), math.Inf(1)},
		{"-Inf", math.Inf(-1), math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, roundTrip(t, tt.in))
		})
	}

	nan, ok := roundTrip(t, math.NaN()).(float64)
	require.True(t, ok)
	require.True(t, math.IsNaN(nan))
}

func TestRoundTrip_BigInt(t *testing.T) {
	v, ok := new(big.Int).SetString("-123456789012345678901234567890", 10)
	require.True(t, ok)

	out, ok := roundTrip(t, v).(*big.Int)
	require.True(t, ok)
	require.Zero(t, v.Cmp(out))
}

func TestRoundTrip_Time(t *testing.T) {
	for _, ms := range []int64{0, 1_700_000_000_123, -86_400_000} {
		in := time.UnixMilli(ms)
		out, ok := roundTrip(t, in).(time.Time)
		require.True(t, ok)
		require.True(t, in.Equal(out), "%v != %v", in, out)
	}
}

func TestDecode_SharedTime(t *testing.T) {
	// [date, reference to the date at offset 2]
	data := []byte{0x0D, 0x02, 0x12, 0, 0, 0x01, 0x8B, 0xCF, 0xE5, 0x68, 0x00, 0x3F, 0x02}
	out, err := decode(t, endian.Big(), data)
	require.NoError(t, err)

	seq, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, seq, 2)
	require.Equal(t, time.UnixMilli(0x018BCFE56800).UTC(), seq[0])
	require.Equal(t, seq[0], seq[1])
}

func TestRoundTrip_Regexp(t *testing.T) {
	out, ok := roundTrip(t, regexp.MustCompile(`^a+b?$`)).(*regexp.Regexp)
	require.True(t, ok)
	require.Equal(t, `^a+b?$`, out.String())
	require.True(t, out.MatchString("aab"))
}

func TestRoundTrip_Buffers(t *testing.T) {
	tests := []any{
		RawBuffer{1, 2, 3},
		DataView{4, 5},
		ClampedBytes{255, 0},
		[]byte{},
		[]byte{0xDE, 0xAD},
		[]int8{-128, 127},
		[]uint16{0, 0xFFFF},
		[]int16{-1, 300},
		[]uint32{0xDEADBEEF},
		[]int32{math.MinInt32},
		[]uint64{math.MaxUint64},
		[]int64{math.MinInt64, 7},
		[]float32{1.5, -0.25},
		[]float64{math.Pi, -math.MaxFloat64},
	}

	for _, in := range tests {
		for _, engine := range []endian.EndianEngine{endian.Little(), endian.Big()} {
			out, err := decode(t, engine, encode(t, engine, in))
			require.NoError(t, err)
			require.Equal(t, in, out)
		}
	}
}

func TestRoundTrip_Collections(t *testing.T) {
	obj := ObjectOf("name", "box", "size", int64(3), "tags", []any{"a", "b"})
	out, ok := roundTrip(t, obj).(*Object)
	require.True(t, ok)
	require.Empty(t, cmp.Diff(obj, out))
	require.Equal(t, []string{"name", "size", "tags"}, out.Keys())

	m := NewMap()
	m.Set(int64(1), "one")
	m.Set("two", []any{true, nil})
	m.Set(nil, Undefined{})
	outMap, ok := roundTrip(t, m).(*Map)
	require.True(t, ok)
	require.Empty(t, cmp.Diff(m, outMap))

	s := NewSet("x", int64(1), "x", false)
	require.Equal(t, 3, s.Len())
	outSet, ok := roundTrip(t, s).(*Set)
	require.True(t, ok)
	require.Empty(t, cmp.Diff(s, outSet))
}

func TestCollections_EmptySlicesStayDistinct(t *testing.T) {
	s := NewSet([]any{}, []any{}, []byte{}, []byte{})
	require.Equal(t, 4, s.Len())
	require.False(t, s.Has([]any{}))

	m := NewMap()
	m.Set([]any{}, "a")
	m.Set([]any{}, "b")
	require.Equal(t, 2, m.Len())
	_, found := m.Get([]any{})
	require.False(t, found)

	// a set holding two empty sequences
	out, err := decode(t, endian.Big(), []byte{0x0F, 0x02, 0x0D, 0x00, 0x0D, 0x00})
	require.NoError(t, err)
	decoded, ok := out.(*Set)
	require.True(t, ok)
	require.Equal(t, 2, decoded.Len())

	outMap, ok := roundTrip(t, m).(*Map)
	require.True(t, ok)
	require.Equal(t, 2, outMap.Len())
	require.Equal(t, []any{"a", "b"}, []any{mapValue(outMap, 0), mapValue(outMap, 1)})
}

func mapValue(m *Map, i int) any {
	var out any
	n := 0
	m.Range(func(_, v any) bool {
		if n == i {
			out = v
			return false
		}
		n++

		return true
	})

	return out
}

func TestRoundTrip_GoMapsAndSlices(t *testing.T) {
	type color string

	out, ok := roundTrip(t, map[string]any{"b": 1, "a": color("red")}).(*Object)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, out.Keys())
	v, _ := out.Get("a")
	require.Equal(t, "red", v)

	require.Equal(t, []any{"x", "y"}, roundTrip(t, []string{"x", "y"}))
	require.Equal(t, []any{int64(1), int64(2)}, roundTrip(t, [2]int{1, 2}))

	m, ok := roundTrip(t, map[int]string{2: "b", 1: "a"}).(*Map)
	require.True(t, ok)
	require.Equal(t, []any{int64(1), int64(2)}, m.Keys())

	x := 5
	require.Equal(t, int64(5), roundTrip(t, &x))

	var nilObj *Object
	require.Nil(t, roundTrip(t, nilObj))
}

func TestRoundTrip_Errors(t *testing.T) {
	in := &ErrorValue{
		Name:    "TypeError",
		Message: "bad input",
		Stack:   "at parse (x.js:1:1)",
		Cause:   &ErrorValue{Name: "Error", Message: "root"},
		Extra:   ObjectOf("code", int64(42)),
	}
	out, ok := roundTrip(t, in).(*ErrorValue)
	require.True(t, ok)
	require.Equal(t, in, out)
	require.Equal(t, "TypeError: bad input", out.Error())

	var cause *ErrorValue
	require.ErrorAs(t, out, &cause)

	dom := &ErrorValue{Name: "AbortError", Message: "aborted", DOMException: true}
	data := encode(t, endian.Big(), dom)
	require.Equal(t, byte(0x51), data[0])
	require.Equal(t, dom, roundTripBytes(t, data))
}

func roundTripBytes(t *testing.T, data []byte) any {
	t.Helper()

	out, err := decode(t, endian.Big(), data)
	require.NoError(t, err)

	return out
}

func TestRoundTrip_GoError(t *testing.T) {
	base := errors.New("disk full")

	out, ok := roundTrip(t, base).(*ErrorValue)
	require.True(t, ok)
	require.Equal(t, "Error", out.Name)
	require.Equal(t, "disk full", out.Message)
	require.Nil(t, out.Cause)

	out, ok = roundTrip(t, &wrapErr{base}).(*ErrorValue)
	require.True(t, ok)
	require.Equal(t, "write: disk full", out.Message)
	cause, ok := out.Cause.(*ErrorValue)
	require.True(t, ok)
	require.Equal(t, "disk full", cause.Message)
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "write: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }

func TestCycles_Object(t *testing.T) {
	root := NewObject()
	child := NewObject()
	child.Set("a", root)
	root.Set("b", child)
	root.Set("self", root)

	out, ok := roundTrip(t, root).(*Object)
	require.True(t, ok)

	self, _ := out.Get("self")
	require.Same(t, out, self)

	b, _ := out.Get("b")
	bObj, ok := b.(*Object)
	require.True(t, ok)
	a, _ := bObj.Get("a")
	require.Same(t, out, a)
}

func TestCycles_Sequence(t *testing.T) {
	seq := make([]any, 2)
	seq[0] = "x"
	seq[1] = seq

	out, ok := roundTrip(t, seq).([]any)
	require.True(t, ok)
	require.Len(t, out, 2)

	inner, ok := out[1].([]any)
	require.True(t, ok)
	require.Same(t, &out[0], &inner[0])
}

func TestCycles_MapAndError(t *testing.T) {
	m := NewMap()
	m.Set("me", m)
	outMap, ok := roundTrip(t, m).(*Map)
	require.True(t, ok)
	me, _ := outMap.Get("me")
	require.Same(t, outMap, me)

	ev := &ErrorValue{Name: "Error", Message: "loop"}
	ev.Cause = ev
	outErr, ok := roundTrip(t, ev).(*ErrorValue)
	require.True(t, ok)
	require.Same(t, outErr, outErr.Cause)
}

func TestSharedReferences(t *testing.T) {
	obj := NewObject()
	data := encode(t, endian.Big(), []any{obj, obj})
	require.Equal(t, []byte{0x0D, 0x02, 0x13, 0x00, 0x3F, 0x02}, data)

	shared := []byte{1, 2, 3}
	out, ok := roundTrip(t, []any{shared, shared}).([]any)
	require.True(t, ok)
	first, _ := out[0].([]byte)
	second, _ := out[1].([]byte)
	require.Same(t, &first[0], &second[0])

	// empty slices have no identity and are written twice
	data = encode(t, endian.Big(), []any{[]any{}, []any{}})
	require.Equal(t, []byte{0x0D, 0x02, 0x0D, 0x00, 0x0D, 0x00}, data)
}

func TestEncoder_IdentitySpansCalls(t *testing.T) {
	w := buffer.NewWriter(endian.Big(), 0)
	defer w.Release()

	obj := ObjectOf("k", "v")
	enc := NewEncoder(w)
	require.NoError(t, enc.Encode(obj))
	require.NoError(t, enc.Encode(obj))

	d, err := NewDecoder(buffer.NewReader(endian.Big(), w.Bytes()))
	require.NoError(t, err)
	first, err := d.Decode()
	require.NoError(t, err)
	second, err := d.Decode()
	require.NoError(t, err)
	require.Same(t, first, second)

	enc.Reset(w)
	require.Empty(t, enc.seen)
}

func TestTypedArrayAlignment(t *testing.T) {
	w := buffer.NewWriter(endian.Big(), 0)
	defer w.Release()
	w.WriteUint8(0xAA)
	require.NoError(t, NewEncoder(w, WithTypedArrayAlignment()).Encode([]uint32{7}))
	data := w.Bytes()
	require.Equal(t, []byte{0xAA, 0x1D, 0x05, 0x04, 0, 0, 0, 7}, data)

	r := buffer.NewReader(endian.Big(), data)
	_, err := r.ReadUint8()
	require.NoError(t, err)
	d, err := NewDecoder(r)
	require.NoError(t, err)
	out, err := d.Decode()
	require.NoError(t, err)
	require.Equal(t, []uint32{7}, out)

	data = encode(t, endian.Big(), []uint64{1}, WithTypedArrayAlignment())
	require.Equal(t, []byte{0x5D, 0x04, 0, 0, 0, 0, 0x06, 0x08}, data[:8])
	require.Equal(t, []uint64{1}, roundTripBytes(t, data))

	// single byte elements are never padded
	require.Equal(t, []byte{0x07, 0x01, 0xFF}, encode(t, endian.Big(), []int8{-1}, WithTypedArrayAlignment()))
}

func TestTypedArrayAlignment_SharedReference(t *testing.T) {
	shared := []uint64{1, 2}
	out, ok := roundTrip(t, []any{"x", shared, shared}, WithTypedArrayAlignment()).([]any)
	require.True(t, ok)
	require.Equal(t, shared, out[1])
	first, _ := out[1].([]uint64)
	second, _ := out[2].([]uint64)
	require.Same(t, &first[0], &second[0])
}

func TestLowPrecisionFloats(t *testing.T) {
	require.Equal(t, float32(1.1), roundTrip(t, 1.1, WithLowPrecisionFloats()))
	require.Equal(t, float32(2), roundTrip(t, float32(2), WithLowPrecisionFloats()))
}

func TestDecoder_Functions(t *testing.T) {
	data := encode(t, endian.Big(), Function{Source: "() => 1"})
	require.Equal(t, Function{Source: "() => 1"}, roundTripBytes(t, data))

	var got string
	out, err := decode(t, endian.Big(), data, WithFunctionEvaluator(func(src string) (any, error) {
		got = src
		return func() int { return 1 }, nil
	}))
	require.NoError(t, err)
	require.Equal(t, "() => 1", got)
	fn, ok := out.(func() int)
	require.True(t, ok)
	require.Equal(t, 1, fn())
}

func TestDecoder_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{0x1E}},
		{"dangling reference", []byte{0x3F, 0x05}},
		{"truncated string", []byte{0x1A, 0x05, 'a'}},
		{"truncated size", []byte{0x5A, 0x01}},
		{"count beyond input", []byte{0x0D, 0xFF}},
		{"size above 2^53", []byte{0xDA, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"object key not a string", []byte{0x13, 0x01, 0x17, 0x01, 0x00, 0x55}},
		{"bad non-finite", []byte{0xD9}},
		{"bad regexp", []byte{0x10, 0x01, '('}},
		{"typed array width", []byte{0x04, 0x03, 1, 2, 3}},
		{"padding only", []byte{0x1D}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(t, endian.Big(), tt.data)
			require.ErrorIs(t, err, errs.ErrFormatInvalid)
		})
	}
}

func TestDecoder_MaxSize(t *testing.T) {
	data := encode(t, endian.Big(), "hello")

	_, err := decode(t, endian.Big(), data, WithMaxSize(4))
	require.ErrorIs(t, err, errs.ErrFormatInvalid)

	out, err := decode(t, endian.Big(), data, WithMaxSize(5))
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	_, err = NewDecoder(buffer.NewReader(endian.Big()), WithMaxSize(0))
	require.ErrorIs(t, err, errs.ErrInvalidTemplate)
}

func TestEncoder_Unsupported(t *testing.T) {
	w := buffer.NewWriter(endian.Big(), 0)
	defer w.Release()
	enc := NewEncoder(w)

	require.ErrorIs(t, enc.Encode(struct{ A int }{1}), errs.ErrTypeMismatch)
	require.ErrorIs(t, enc.Encode(make(chan int)), errs.ErrTypeMismatch)
	require.ErrorIs(t, enc.Encode([]any{func() {}}), errs.ErrTypeMismatch)
}
