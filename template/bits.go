package template

import (
	"fmt"
	"math/big"
	"math/bits"
	"reflect"
	"strings"

	"github.com/arloliu/sbs/bigint"
	"github.com/arloliu/sbs/bitfield"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
)

type bitFieldNode struct {
	layout *bitfield.Layout
	err    error
}

// BitField packs named integers of arbitrary bit widths, first field in the
// most significant bits, big-endian regardless of the template byte order.
//
// Values are map[string]int64 (other integer maps are accepted for writing);
// a negative Width marks a signed field.
func BitField(fields ...bitfield.Field) Node {
	layout, err := bitfield.NewLayout(fields...)

	return &bitFieldNode{layout: layout, err: err}
}

func (b *bitFieldNode) String() string {
	if b.layout == nil {
		return "bitField"
	}

	return fmt.Sprintf("bitField(%d bits)", b.layout.Bits())
}

func (b *bitFieldNode) check() error {
	return b.err
}

func (b *bitFieldNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		data, err := ev.r.GetBytes(b.layout.Size())
		if err != nil {
			return nil, err
		}

		return b.layout.Decode(data)
	}

	values, err := intValues(v)
	if err != nil {
		return nil, err
	}
	data, err := b.layout.Encode(values)
	if err != nil {
		return nil, err
	}
	copy(ev.w.Scratch(len(data)), data)

	return nil, nil
}

func intValues(v any) (map[string]int64, error) {
	switch m := v.(type) {
	case nil:
		return map[string]int64{}, nil
	case map[string]int64:
		return m, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: expected a map of integers, got %T", errs.ErrTypeMismatch, v)
	}

	out := make(map[string]int64, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		n, err := toInt64(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", iter.Key().String(), err)
		}
		out[iter.Key().String()] = n
	}

	return out, nil
}

// Flag names a bit mask inside a Flags node.
type Flag struct {
	Name string
	Mask uint64
}

type flagsNode struct {
	byteLength int
	flags      []Flag
}

// Flags stores named booleans as bit masks OR-ed into an unsigned integer of
// byteLength bytes in the template byte order.
//
// Values are map[string]bool. A flag reads as true when every bit of its
// mask is set. Setting an unknown flag is a type mismatch.
func Flags(byteLength int, flags ...Flag) Node {
	return &flagsNode{byteLength: byteLength, flags: flags}
}

func (f *flagsNode) String() string {
	names := make([]string, len(f.flags))
	for i, fl := range f.flags {
		names[i] = fl.Name
	}

	return "flags(" + strings.Join(names, "|") + ")"
}

func (f *flagsNode) check() error {
	if f.byteLength < 1 || f.byteLength > 8 {
		return fmt.Errorf("%w: flags byte length must be in [1, 8], got %d", errs.ErrInvalidTemplate, f.byteLength)
	}

	seen := make(map[string]struct{}, len(f.flags))
	for _, fl := range f.flags {
		if fl.Name == "" {
			return fmt.Errorf("%w: unnamed flag", errs.ErrInvalidTemplate)
		}
		if _, dup := seen[fl.Name]; dup {
			return fmt.Errorf("%w: duplicate flag %q", errs.ErrInvalidTemplate, fl.Name)
		}
		seen[fl.Name] = struct{}{}
		if fl.Mask == 0 || bits.Len64(fl.Mask) > 8*f.byteLength {
			return fmt.Errorf("%w: mask %#x of flag %q does not fit %d bytes", errs.ErrInvalidTemplate, fl.Mask, fl.Name, f.byteLength)
		}
	}

	return nil
}

func (f *flagsNode) eval(ev *Evaluator, v any) (any, error) {
	little := endian.IsLittle(ev.engine())
	if !ev.Writing() {
		data, err := ev.r.GetBytes(f.byteLength)
		if err != nil {
			return nil, err
		}
		word := bigint.UintFromBytes(data, little).Uint64()
		out := make(map[string]bool, len(f.flags))
		for _, fl := range f.flags {
			out[fl.Name] = word&fl.Mask == fl.Mask
		}

		return out, nil
	}

	set, err := boolValues(v)
	if err != nil {
		return nil, err
	}

	var word uint64
	for name, on := range set {
		fl, ok := f.lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown flag %q", errs.ErrTypeMismatch, name)
		}
		if on {
			word |= fl.Mask
		}
	}

	data, err := bigint.UintToBytes(new(big.Int).SetUint64(word), little, f.byteLength, true)
	if err != nil {
		return nil, err
	}
	copy(ev.w.Scratch(len(data)), data)

	return nil, nil
}

func (f *flagsNode) lookup(name string) (Flag, bool) {
	for _, fl := range f.flags {
		if fl.Name == name {
			return fl, true
		}
	}

	return Flag{}, false
}

func boolValues(v any) (map[string]bool, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]bool:
		return m, nil
	case map[string]any:
		out := make(map[string]bool, len(m))
		for k, x := range m {
			b, ok := x.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: flag %q must be a bool, got %T", errs.ErrTypeMismatch, k, x)
			}
			out[k] = b
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected map[string]bool, got %T", errs.ErrTypeMismatch, v)
	}
}
