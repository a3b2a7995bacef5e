package template

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/arloliu/sbs/errs"
)

// toInt64 converts any Go integer, integral float or *big.Int. nil is zero.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint, uint64:
		u, _ := toUint64(n)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d exceeds int64", errs.ErrOverflow, u)
		}

		return int64(u), nil
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case *big.Int:
		if n == nil {
			return 0, nil
		}
		if !n.IsInt64() {
			return 0, fmt.Errorf("%w: %s exceeds int64", errs.ErrOverflow, n)
		}

		return n.Int64(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return toInt64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	default:
		return 0, fmt.Errorf("%w: expected an integer, got %T", errs.ErrTypeMismatch, v)
	}
}

// toUint64 is toInt64 for unsigned targets; negative values overflow.
func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint64:
		return n, nil
	case *big.Int:
		if n == nil {
			return 0, nil
		}
		if !n.IsUint64() {
			return 0, fmt.Errorf("%w: %s does not fit an unsigned 64-bit integer", errs.ErrOverflow, n)
		}

		return n.Uint64(), nil
	case float32:
		return floatToUint64(float64(n))
	case float64:
		return floatToUint64(n)
	}

	if rv := reflect.ValueOf(v); v != nil {
		switch rv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return rv.Uint(), nil
		case reflect.Float32, reflect.Float64:
			return floatToUint64(rv.Float())
		}
	}

	i, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("%w: %d is negative", errs.ErrOverflow, i)
	}

	return uint64(i), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case *big.Int:
		if n == nil {
			return 0, nil
		}
		f, _ := new(big.Float).SetInt(n).Float64()

		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	default:
		return 0, fmt.Errorf("%w: expected a number, got %T", errs.ErrTypeMismatch, v)
	}
}

// toBigInt converts any integer value into a *big.Int. A *big.Int is returned as is.
func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case nil:
		return new(big.Int), nil
	case *big.Int:
		if n == nil {
			return new(big.Int), nil
		}

		return n, nil
	}

	if rv := reflect.ValueOf(v); rv.Kind() >= reflect.Uint && rv.Kind() <= reflect.Uint64 {
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	i, err := toInt64(v)
	if err != nil {
		return nil, err
	}

	return big.NewInt(i), nil
}

// toLength converts a decoded or looked up value into a non-negative length.
func toLength(v any) (int, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d", errs.ErrFormatInvalid, n)
	}
	if uint64(n) > math.MaxInt {
		return 0, fmt.Errorf("%w: length %d exceeds the platform int", errs.ErrOverflow, n)
	}

	return int(n), nil
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not an integer", errs.ErrTypeMismatch, f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v exceeds int64", errs.ErrOverflow, f)
	}

	return int64(f), nil
}

func floatToUint64(f float64) (uint64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not an integer", errs.ErrTypeMismatch, f)
	}
	if f < 0 || f >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %v does not fit an unsigned 64-bit integer", errs.ErrOverflow, f)
	}

	return uint64(f), nil
}
