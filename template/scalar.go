package template

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/internal/options"
)

// EmailPattern matches common e-mail addresses, for use with Matches.
var EmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type stringRules struct {
	minLength int
	maxLength int
	patterns  []*regexp.Regexp
}

// StringConstraint restricts the strings a String node accepts for writing.
type StringConstraint = options.Option[*stringRules]

// MinLength requires at least n characters.
func MinLength(n int) StringConstraint {
	return options.New(func(r *stringRules) error {
		if n < 0 {
			return fmt.Errorf("%w: negative minimum length %d", errs.ErrInvalidTemplate, n)
		}
		r.minLength = n

		return nil
	})
}

// MaxLength allows at most n characters.
func MaxLength(n int) StringConstraint {
	return options.New(func(r *stringRules) error {
		if n < 0 {
			return fmt.Errorf("%w: negative maximum length %d", errs.ErrInvalidTemplate, n)
		}
		r.maxLength = n

		return nil
	})
}

// Matches requires the string to match every pattern.
func Matches(patterns ...*regexp.Regexp) StringConstraint {
	return options.New(func(r *stringRules) error {
		for _, p := range patterns {
			if p == nil {
				return fmt.Errorf("%w: nil pattern", errs.ErrInvalidTemplate)
			}
		}
		r.patterns = append(r.patterns, patterns...)

		return nil
	})
}

type stringNode struct {
	length LengthPolicy
	rules  stringRules
	err    error
}

// String stores UTF-8 text.
//
// Lengths count bytes, constraints count characters. Writing accepts string,
// []byte and fmt.Stringer values; strings decode to string. A nil length
// stores a U32 byte count.
func String(length LengthPolicy, constraints ...StringConstraint) Node {
	n := &stringNode{length: orDefaultLength(length), rules: stringRules{maxLength: -1}}
	n.err = options.Apply(&n.rules, constraints...)

	return n
}

func (s *stringNode) String() string {
	return "string(" + describeLength(s.length) + ")"
}

func (s *stringNode) check() error {
	if s.err != nil {
		return s.err
	}
	if s.rules.maxLength >= 0 && s.rules.minLength > s.rules.maxLength {
		return fmt.Errorf("%w: minimum length %d exceeds maximum %d", errs.ErrInvalidTemplate, s.rules.minLength, s.rules.maxLength)
	}

	return checkLength(s.length, true)
}

func (s *stringNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		var (
			b   []byte
			err error
		)
		if s.length == ZeroTerminated {
			b, err = ev.r.GetBytesUntilZero(true)
		} else {
			var n int
			if n, err = ev.readLength(s.length); err == nil {
				b, err = ev.r.GetBytes(n)
			}
		}
		if err != nil {
			return nil, err
		}

		return string(b), nil
	}

	str, err := textOf(v)
	if err != nil {
		return nil, err
	}
	if err := s.validate(str); err != nil {
		return nil, err
	}

	if s.length == ZeroTerminated {
		if idx := bytes.IndexByte([]byte(str), 0); idx >= 0 {
			return nil, fmt.Errorf("%w: zero-terminated string contains a zero byte at %d", errs.ErrConstraintViolation, idx)
		}
		ev.w.PushBytes([]byte(str))
		ev.w.WriteUint8(0)

		return nil, nil
	}

	if err := ev.writeLength(s.length, len(str)); err != nil {
		return nil, err
	}
	ev.w.PushBytes([]byte(str))

	return nil, nil
}

func (s *stringNode) validate(str string) error {
	count := utf8.RuneCountInString(str)
	if count < s.rules.minLength {
		return fmt.Errorf("%w: %d characters, at least %d required", errs.ErrConstraintViolation, count, s.rules.minLength)
	}
	if s.rules.maxLength >= 0 && count > s.rules.maxLength {
		return fmt.Errorf("%w: %d characters, at most %d allowed", errs.ErrConstraintViolation, count, s.rules.maxLength)
	}
	for _, p := range s.rules.patterns {
		if !p.MatchString(str) {
			return fmt.Errorf("%w: %q does not match %s", errs.ErrConstraintViolation, str, p)
		}
	}

	return nil
}

func textOf(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%w: expected a string, got %T", errs.ErrTypeMismatch, v)
	}
}

type numberRules struct {
	min, max *float64
	oneOf    []float64
}

// NumberConstraint restricts the values a Number node accepts for writing.
type NumberConstraint = options.Option[*numberRules]

// Min rejects values below x.
func Min(x float64) NumberConstraint {
	return options.NoError(func(r *numberRules) {
		r.min = &x
	})
}

// Max rejects values above x.
func Max(x float64) NumberConstraint {
	return options.NoError(func(r *numberRules) {
		r.max = &x
	})
}

// OneOf only accepts the listed values.
func OneOf(values ...float64) NumberConstraint {
	return options.New(func(r *numberRules) error {
		if len(values) == 0 {
			return fmt.Errorf("%w: OneOf needs at least one value", errs.ErrInvalidTemplate)
		}
		r.oneOf = append(r.oneOf, values...)

		return nil
	})
}

type numberNode struct {
	kind  Kind
	rules numberRules
	err   error
}

// Number is a numeric kind with range or membership constraints checked
// before writing. Comparisons happen in float64.
func Number(kind Kind, constraints ...NumberConstraint) Node {
	n := &numberNode{kind: kind}
	n.err = options.Apply(&n.rules, constraints...)

	return n
}

func (n *numberNode) String() string {
	return "number(" + n.kind.String() + ")"
}

func (n *numberNode) check() error {
	if n.err != nil {
		return n.err
	}
	if !n.kind.IsNumeric() {
		return fmt.Errorf("%w: %s is not a numeric kind", errs.ErrInvalidTemplate, n.kind)
	}
	if n.rules.min != nil && n.rules.max != nil && *n.rules.min > *n.rules.max {
		return fmt.Errorf("%w: minimum %v exceeds maximum %v", errs.ErrInvalidTemplate, *n.rules.min, *n.rules.max)
	}

	return nil
}

func (n *numberNode) eval(ev *Evaluator, v any) (any, error) {
	if !ev.Writing() {
		return n.kind.eval(ev, nil)
	}

	x, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	if n.rules.min != nil && x < *n.rules.min {
		return nil, fmt.Errorf("%w: %v is below the minimum %v", errs.ErrConstraintViolation, x, *n.rules.min)
	}
	if n.rules.max != nil && x > *n.rules.max {
		return nil, fmt.Errorf("%w: %v is above the maximum %v", errs.ErrConstraintViolation, x, *n.rules.max)
	}
	if len(n.rules.oneOf) > 0 && !slices.Contains(n.rules.oneOf, x) {
		return nil, fmt.Errorf("%w: %v is not one of %s", errs.ErrConstraintViolation, x, formatFloats(n.rules.oneOf))
	}

	return n.kind.eval(ev, v)
}

func formatFloats(values []float64) string {
	b := []byte{'['}
	for i, f := range values {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendFloat(b, f, 'g', -1, 64)
	}

	return string(append(b, ']'))
}
