package template

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/arloliu/sbs/anycodec"
	"github.com/arloliu/sbs/errs"
)

type lengthOfNode struct {
	path string
	kind Kind
}

// LengthOf stores the length of the string, slice or buffer found at path:
// bytes for strings and buffers, elements for slices, 0 when nothing is there.
//
// Pair it with a Path length policy on the target node. When writing, a value
// supplied for the LengthOf field itself must agree with the computed length.
// Reading returns the stored integer.
func LengthOf(path string, kind Kind) Node {
	return &lengthOfNode{path: path, kind: kind}
}

func (l *lengthOfNode) String() string {
	return fmt.Sprintf("lengthOf(%q, %s)", l.path, l.kind)
}

func (l *lengthOfNode) check() error {
	if !l.kind.IsInteger() {
		return fmt.Errorf("%w: %s cannot store a length", errs.ErrInvalidTemplate, l.kind)
	}

	return checkPath(l.path)
}

func (l *lengthOfNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		return ev.readKind(l.kind, ev.engine())
	}

	target, _, err := ev.lookup(l.path)
	if err != nil {
		return nil, err
	}
	n, err := lengthOf(target)
	if err != nil {
		return nil, err
	}

	if v != nil {
		given, err := toLength(v)
		if err != nil {
			return nil, err
		}
		if given != n {
			return nil, fmt.Errorf("%w: length %d given but %q has length %d", errs.ErrConstraintViolation, given, l.path, n)
		}
	}

	if err := ev.writeKind(l.kind, ev.engine(), n); err != nil {
		if errors.Is(err, errs.ErrOverflow) {
			return nil, fmt.Errorf("%w: %s is too small to store a length of %d", errs.ErrOverflow, l.kind, n)
		}

		return nil, err
	}

	return nil, nil
}

func lengthOf(v any) (int, error) {
	switch x := v.(type) {
	case nil, anycodec.Undefined:
		return 0, nil
	case string:
		return len(x), nil
	case []byte:
		return len(x), nil
	case []any:
		return len(x), nil
	case *anycodec.Object:
		return 0, fmt.Errorf("%w: an object has no length", errs.ErrTypeMismatch)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		return rv.Len(), nil
	default:
		return 0, fmt.Errorf("%w: cannot take the length of %T", errs.ErrTypeMismatch, v)
	}
}

type sizeOfNode struct {
	path string
	kind Kind
}

// SizeOf reserves an integer slot that receives the encoded byte size of the
// field at path once that field has been written.
//
// The target has to come after the SizeOf field and must be written before
// the call completes, otherwise encoding fails with ErrUnresolvedWriteBack.
// A value supplied for the SizeOf field itself is ignored. Reading returns the
// stored integer.
func SizeOf(path string, kind Kind) Node {
	return &sizeOfNode{path: path, kind: kind}
}

func (s *sizeOfNode) String() string {
	return fmt.Sprintf("sizeOf(%q, %s)", s.path, s.kind)
}

func (s *sizeOfNode) check() error {
	if !s.kind.IsInteger() {
		return fmt.Errorf("%w: %s cannot store a size", errs.ErrInvalidTemplate, s.kind)
	}

	return checkPath(s.path)
}

func (s *sizeOfNode) eval(ev *Evaluator, _ any) (any, error) {
	if !ev.Writing() {
		return ev.readKind(s.kind, ev.engine())
	}

	return nil, ev.reserveSize(s.path, s.kind)
}
