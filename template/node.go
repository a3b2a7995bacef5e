package template

import (
	"fmt"
	"math"
	"net/netip"

	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
)

// Node is one element of a schema.
//
// The set of nodes is closed: build them with the constructors of this
// package and extend behaviour through Custom and Select. Nodes are immutable
// and may be shared between templates and goroutines.
type Node interface {
	// String describes the node in error messages.
	String() string

	// check validates the node tree once, when a Template is created.
	check() error
	// eval writes v (Write direction) or returns the decoded value (Read direction).
	eval(ev *Evaluator, v any) (any, error)
}

// Kind is a fixed-width primitive, the self-describing Any codec or an IPv4 address.
//
// Integer kinds also serve as length prefixes.
type Kind uint8

const (
	U8 Kind = iota + 1
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
	// Any stores a value with the self-describing codec.
	Any
	// IPv4 stores a dotted-quad address in 4 bytes.
	IPv4
)

var kindNames = [...]string{
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	I8: "i8", I16: "i16", I32: "i32", I64: "i64",
	F32: "f32", F64: "f64", Any: "any", IPv4: "ipv4",
}

func (k Kind) String() string {
	if k == 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}

	return kindNames[k]
}

// Size returns the encoded width in bytes, or 0 for Any.
func (k Kind) Size() int {
	switch k {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32, IPv4:
		return 4
	case U64, I64, F64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether k is one of the integer kinds.
func (k Kind) IsInteger() bool {
	return k >= U8 && k <= I64
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	return k >= I8 && k <= I64
}

// IsNumeric reports whether k is an integer or float kind.
func (k Kind) IsNumeric() bool {
	return k >= U8 && k <= F64
}

func (k Kind) check() error {
	if k < U8 || k > IPv4 {
		return fmt.Errorf("%w: unknown kind %d", errs.ErrInvalidTemplate, uint8(k))
	}

	return nil
}

func (k Kind) isLengthPolicy() {}

func (k Kind) eval(ev *Evaluator, v any) (any, error) {
	switch k {
	case Any:
		if ev.Writing() {
			enc := ev.anyEncoder()
			return nil, enc.Encode(v)
		}
		dec, err := ev.anyDecoder()
		if err != nil {
			return nil, err
		}

		return dec.Decode()
	case IPv4:
		if ev.Writing() {
			return nil, ev.writeIPv4(v)
		}

		return ev.readIPv4()
	}

	if ev.Writing() {
		return nil, ev.writeKind(k, ev.engine(), v)
	}

	return ev.readKind(k, ev.engine())
}

// writeKind stores v as the numeric kind k using engine for byte order.
func (ev *Evaluator) writeKind(k Kind, engine endian.EndianEngine, v any) error {
	switch k {
	case F32:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		f32 := float32(f)
		if math.IsInf(float64(f32), 0) && !math.IsInf(f, 0) {
			return fmt.Errorf("%w: %g does not fit %s", errs.ErrOverflow, f, k)
		}
		engine.PutUint32(ev.w.Scratch(4), math.Float32bits(f32))

		return nil
	case F64:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		engine.PutUint64(ev.w.Scratch(8), math.Float64bits(f))

		return nil
	}

	var bits uint64
	if k.IsSigned() {
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		shift := 64 - 8*k.Size()
		if n<<shift>>shift != n {
			return fmt.Errorf("%w: %d does not fit %s", errs.ErrOverflow, n, k)
		}
		bits = uint64(n) //nolint:gosec
	} else {
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		if k.Size() < 8 && n>>(8*k.Size()) != 0 {
			return fmt.Errorf("%w: %d does not fit %s", errs.ErrOverflow, n, k)
		}
		bits = n
	}

	slot := ev.w.Scratch(k.Size())
	putUint(engine, slot, bits)

	return nil
}

// readKind decodes the numeric kind k into its exact Go type.
func (ev *Evaluator) readKind(k Kind, engine endian.EndianEngine) (any, error) {
	b, err := ev.r.GetBytes(k.Size())
	if err != nil {
		return nil, err
	}

	switch k {
	case U8:
		return b[0], nil
	case U16:
		return engine.Uint16(b), nil
	case U32:
		return engine.Uint32(b), nil
	case U64:
		return engine.Uint64(b), nil
	case I8:
		return int8(b[0]), nil //nolint:gosec
	case I16:
		return int16(engine.Uint16(b)), nil //nolint:gosec
	case I32:
		return int32(engine.Uint32(b)), nil //nolint:gosec
	case I64:
		return int64(engine.Uint64(b)), nil //nolint:gosec
	case F32:
		return math.Float32frombits(engine.Uint32(b)), nil
	case F64:
		return math.Float64frombits(engine.Uint64(b)), nil
	default:
		return nil, fmt.Errorf("%w: %s is not a numeric kind", errs.ErrInvalidTemplate, k)
	}
}

func putUint(engine endian.EndianEngine, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		engine.PutUint16(b, uint16(v)) //nolint:gosec
	case 4:
		engine.PutUint32(b, uint32(v)) //nolint:gosec
	case 8:
		engine.PutUint64(b, v)
	}
}

// writeIPv4 accepts a dotted-quad string or a uint32. Strings are stored in
// reverse octet order on little-endian templates so that both forms agree.
func (ev *Evaluator) writeIPv4(v any) error {
	s, ok := v.(string)
	if !ok {
		return ev.writeKind(U32, ev.engine(), v)
	}

	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("%w: %q is not an IPv4 address", errs.ErrTypeMismatch, s)
	}
	octets := addr.As4()
	if endian.IsLittle(ev.engine()) {
		octets[0], octets[1], octets[2], octets[3] = octets[3], octets[2], octets[1], octets[0]
	}
	copy(ev.w.Scratch(4), octets[:])

	return nil
}

func (ev *Evaluator) readIPv4() (any, error) {
	b, err := ev.r.GetBytes(4)
	if err != nil {
		return nil, err
	}

	octets := [4]byte(b)
	if endian.IsLittle(ev.engine()) {
		octets[0], octets[1], octets[2], octets[3] = octets[3], octets[2], octets[1], octets[0]
	}

	return netip.AddrFrom4(octets).String(), nil
}
