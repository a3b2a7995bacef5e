package template

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/arloliu/sbs/errs"
)

// LengthPolicy tells a variable-length node how its length is stored.
//
// Implementations: Fixed, an integer Kind (length prefix), Path and
// ZeroTerminated.
type LengthPolicy interface {
	isLengthPolicy()
}

// Fixed is a hardcoded length. Nothing is stored; writing a value of any other
// length fails with ErrConstraintViolation.
type Fixed int

func (Fixed) isLengthPolicy() {}

// Path takes the length from a value written or read earlier, usually a
// LengthOf field. Nothing is stored by the node itself.
type Path string

func (Path) isLengthPolicy() {}

type zeroTerminated struct{}

func (zeroTerminated) isLengthPolicy() {}

// ZeroTerminated marks a string that ends with a zero byte. The string itself
// must not contain one.
var ZeroTerminated LengthPolicy = zeroTerminated{}

func orDefaultLength(policy LengthPolicy) LengthPolicy {
	if policy == nil {
		return U32
	}

	return policy
}

func describeLength(policy LengthPolicy) string {
	switch p := policy.(type) {
	case Fixed:
		return strconv.Itoa(int(p))
	case Kind:
		return p.String()
	case Path:
		return strconv.Quote(string(p))
	case zeroTerminated:
		return "zero-terminated"
	default:
		return fmt.Sprintf("%T", policy)
	}
}

func checkLength(policy LengthPolicy, allowZeroTerminated bool) error {
	switch p := policy.(type) {
	case Fixed:
		if p < 0 {
			return fmt.Errorf("%w: negative fixed length %d", errs.ErrInvalidTemplate, int(p))
		}
	case Kind:
		if !p.IsInteger() {
			return fmt.Errorf("%w: %s cannot store a length", errs.ErrInvalidTemplate, p)
		}
	case Path:
		return checkPath(string(p))
	case zeroTerminated:
		if !allowZeroTerminated {
			return fmt.Errorf("%w: only strings can be zero-terminated", errs.ErrInvalidTemplate)
		}
	case nil:
		return fmt.Errorf("%w: missing length policy", errs.ErrInvalidTemplate)
	default:
		return fmt.Errorf("%w: unknown length policy %T", errs.ErrInvalidTemplate, policy)
	}

	return nil
}

// writeLength stores n according to policy.
func (ev *Evaluator) writeLength(policy LengthPolicy, n int) error {
	switch p := policy.(type) {
	case Fixed:
		if int(p) != n {
			return fmt.Errorf("%w: length %d differs from the fixed length %d", errs.ErrConstraintViolation, n, int(p))
		}

		return nil
	case Kind:
		if err := ev.writeKind(p, ev.engine(), n); err != nil {
			if errors.Is(err, errs.ErrOverflow) {
				return fmt.Errorf("%w: %s is too small to store a length of %d", errs.ErrOverflow, p, n)
			}

			return err
		}

		return nil
	case Path:
		// The referenced field already stored the length. When the caller
		// supplied it explicitly it has to agree with the data.
		stored, found, err := ev.lookup(string(p))
		if err != nil {
			return err
		}
		if !found || stored == nil {
			return nil
		}
		want, err := toLength(stored)
		if err != nil {
			return nil //nolint:nilerr
		}
		if want != n {
			return fmt.Errorf("%w: %q says %d but the value has length %d", errs.ErrConstraintViolation, string(p), want, n)
		}

		return nil
	default:
		return fmt.Errorf("%w: length policy %s cannot be written here", errs.ErrInvalidTemplate, describeLength(policy))
	}
}

// readLength returns the length stored or referenced by policy.
func (ev *Evaluator) readLength(policy LengthPolicy) (int, error) {
	switch p := policy.(type) {
	case Fixed:
		return int(p), nil
	case Kind:
		v, err := ev.readKind(p, ev.engine())
		if err != nil {
			return 0, err
		}
		n, err := toLength(v)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid stored length: %w", errs.ErrFormatInvalid, err)
		}

		return n, nil
	case Path:
		v, err := ev.Lookup(string(p))
		if err != nil {
			return 0, err
		}

		return toLength(v)
	default:
		return 0, fmt.Errorf("%w: length policy %s cannot be read here", errs.ErrInvalidTemplate, describeLength(policy))
	}
}
