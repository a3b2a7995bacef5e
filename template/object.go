package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/arloliu/sbs/anycodec"
	"github.com/arloliu/sbs/errs"
)

// FieldDef is one named member of an Object.
type FieldDef struct {
	Name string
	Node Node
}

// Field pairs a key with its schema.
func Field(name string, node Node) FieldDef {
	return FieldDef{Name: name, Node: node}
}

type objectNode struct {
	fields []FieldDef
}

// Object stores its fields in declaration order with no framing of its own.
//
// Values are written from map[string]any or *anycodec.Object; a missing key
// writes the zero value of its field. Objects decode to map[string]any.
func Object(fields ...FieldDef) Node {
	return &objectNode{fields: fields}
}

func (o *objectNode) String() string {
	return "object"
}

func (o *objectNode) check() error {
	seen := make(map[string]struct{}, len(o.fields))
	for _, f := range o.fields {
		if f.Name == "" || strings.Contains(f.Name, "/") || f.Name == ".." {
			return fmt.Errorf("%w: invalid field name %q", errs.ErrInvalidTemplate, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field %q", errs.ErrInvalidTemplate, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Node == nil {
			return fmt.Errorf("%w: field %q has no schema", errs.ErrInvalidTemplate, f.Name)
		}
		if err := f.Node.check(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	return nil
}

func (o *objectNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		out := make(map[string]any, len(o.fields))
		defer ev.enterFrame(out)()
		for _, f := range o.fields {
			fv, err := ev.field(f.Name, f.Node, nil)
			if err != nil {
				return nil, err
			}
			out[f.Name] = fv
		}

		return out, nil
	}

	get, err := fieldGetter(v)
	if err != nil {
		return nil, err
	}
	defer ev.enterFrame(v)()
	for _, f := range o.fields {
		if _, err := ev.field(f.Name, f.Node, get(f.Name)); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func fieldGetter(v any) (func(string) any, error) {
	switch m := v.(type) {
	case nil:
		return func(string) any { return nil }, nil
	case map[string]any:
		return func(k string) any { return m[k] }, nil
	case *anycodec.Object:
		if m == nil {
			return func(string) any { return nil }, nil
		}

		return func(k string) any {
			fv, _ := m.Get(k)
			return fv
		}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		return func(k string) any {
			fv, _ := child(v, k)
			return fv
		}, nil
	}

	return nil, fmt.Errorf("%w: an object needs map[string]any, got %T", errs.ErrTypeMismatch, v)
}

type arrayNode struct {
	elem   Node
	length LengthPolicy
}

// Array stores a sequence of elem values.
//
// Each element is evaluated under its index, so paths inside an element look
// like "records/0/type". Arrays accept []any or any Go slice or array and
// decode to []any. A nil length stores a U32 element count.
func Array(elem Node, length LengthPolicy) Node {
	return &arrayNode{elem: elem, length: orDefaultLength(length)}
}

func (a *arrayNode) String() string {
	if a.elem == nil {
		return "array"
	}

	return "array(" + a.elem.String() + ")"
}

func (a *arrayNode) check() error {
	if a.elem == nil {
		return fmt.Errorf("%w: array without element schema", errs.ErrInvalidTemplate)
	}
	if err := checkLength(a.length, false); err != nil {
		return err
	}

	return a.elem.check()
}

func (a *arrayNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		n, err := ev.readLength(a.length)
		if err != nil {
			return nil, err
		}

		if n > ev.cfg.maxArrayLength {
			return nil, fmt.Errorf("%w: %d elements exceed the limit of %d", errs.ErrFormatInvalid, n, ev.cfg.maxArrayLength)
		}
		if w := minWidth(a.elem); w > 0 && n > ev.r.Remaining()/w {
			return nil, fmt.Errorf("%w: %d elements need at least %d bytes each, %d remaining",
				errs.ErrFormatInvalid, n, w, ev.r.Remaining())
		}

		out := make([]any, 0, min(n, ev.r.Remaining()))
		defer ev.enterFrame(out)()
		for i := range n {
			ev.updateFrame(out)
			elem, err := ev.field(strconv.Itoa(i), a.elem, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}

		return out, nil
	}

	items, err := sequence(v)
	if err != nil {
		return nil, err
	}
	if err := ev.writeLength(a.length, items.Len()); err != nil {
		return nil, err
	}

	defer ev.enterFrame(v)()
	for i := range items.Len() {
		if _, err := ev.field(strconv.Itoa(i), a.elem, items.Index(i)); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

// seq gives indexed access to []any and reflected slices alike.
type seq struct {
	direct []any
	rv     reflect.Value
}

func (s seq) Len() int {
	if s.direct != nil || !s.rv.IsValid() {
		return len(s.direct)
	}

	return s.rv.Len()
}

func (s seq) Index(i int) any {
	if s.direct != nil {
		return s.direct[i]
	}

	return s.rv.Index(i).Interface()
}

func sequence(v any) (seq, error) {
	switch s := v.(type) {
	case nil:
		return seq{}, nil
	case []any:
		return seq{direct: s}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return seq{rv: rv}, nil
	}

	return seq{}, fmt.Errorf("%w: an array needs a slice, got %T", errs.ErrTypeMismatch, v)
}

// minWidth is the fewest bytes node consumes when read, 0 when unknown.
func minWidth(node Node) int {
	switch n := node.(type) {
	case Kind:
		if n == Any {
			return 1
		}

		return n.Size()
	case *objectNode:
		total := 0
		for _, f := range n.fields {
			total += minWidth(f.Node)
		}

		return total
	case *arrayNode:
		return prefixWidth(n.length)
	case *stringNode:
		if n.length == ZeroTerminated {
			return 1
		}

		return prefixWidth(n.length)
	case *bytesNode:
		return prefixWidth(n.length)
	case *typedArrayNode:
		return prefixWidth(n.length)
	case *bigIntNode:
		return prefixWidth(n.length)
	case *compressedNode:
		return prefixWidth(n.length)
	case *numberNode:
		return n.kind.Size()
	case *integerNode:
		return n.spec.ByteLength
	case *bitFieldNode:
		if n.layout == nil {
			return 0
		}

		return n.layout.Size()
	case *flagsNode:
		return n.byteLength
	case *lengthOfNode:
		return n.kind.Size()
	case *sizeOfNode:
		return n.kind.Size()
	default:
		return 0
	}
}

// prefixWidth is the size of a stored length; other policies store nothing.
func prefixWidth(policy LengthPolicy) int {
	if k, ok := policy.(Kind); ok {
		return k.Size()
	}

	return 0
}
