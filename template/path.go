package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/arloliu/sbs/anycodec"
	"github.com/arloliu/sbs/errs"
)

// checkPath rejects paths that can never resolve.
func checkPath(path string) error {
	switch {
	case path == "" || path == "/":
		return fmt.Errorf("%w: empty path", errs.ErrInvalidTemplate)
	case strings.HasSuffix(path, "/"):
		return fmt.Errorf("%w: path %q must not end with a slash", errs.ErrInvalidTemplate, path)
	case strings.HasPrefix(path, "./"):
		return fmt.Errorf("%w: path %q must not start with ./", errs.ErrInvalidTemplate, path)
	case strings.Contains(path, "//"):
		return fmt.Errorf("%w: path %q has an empty segment", errs.ErrInvalidTemplate, path)
	}

	return nil
}

// resolvePath turns path into absolute segments.
//
// dir holds the segments of the object containing the current key: a plain
// name is a sibling of the current key, every leading "../" moves one object
// up and a leading "/" starts at the document root.
func resolvePath(path string, dir []string) ([]string, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	if rest, ok := strings.CutPrefix(path, "/"); ok {
		return strings.Split(rest, "/"), nil
	}

	orig, up := path, 0
	for {
		rest, ok := strings.CutPrefix(path, "../")
		if !ok {
			break
		}
		up++
		path = rest
	}
	if up > len(dir) {
		return nil, fmt.Errorf("%w: %q walks above the document root", errs.ErrPathResolution, orig)
	}

	resolved := make([]string, 0, len(dir)-up+strings.Count(path, "/")+1)
	resolved = append(resolved, dir[:len(dir)-up]...)

	return append(resolved, strings.Split(path, "/")...), nil
}

// lookup resolves path against the current key path and fetches its value.
//
// found is false when the path is well formed but nothing is stored there yet.
func (ev *Evaluator) lookup(path string) (v any, found bool, err error) {
	abs, err := resolvePath(path, ev.dir())
	if err != nil {
		return nil, false, err
	}

	for i := len(abs); i >= 0; i-- {
		frame, ok := ev.frames[strings.Join(abs[:i], "/")]
		if !ok {
			continue
		}
		v, found = descend(frame, abs[i:])

		return v, found, nil
	}

	return nil, false, fmt.Errorf("%w: nothing registered on the way to %q", errs.ErrPathResolution, path)
}

// Lookup returns the value stored at path.
//
// While writing this is the caller's input, while reading it is the part of
// the result decoded so far.
//
// Returns:
//   - any: the referenced value
//   - error: ErrPathResolution if the path escapes the root or the key does not exist
func (ev *Evaluator) Lookup(path string) (any, error) {
	v, found, err := ev.lookup(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q does not exist", errs.ErrPathResolution, path)
	}

	return v, nil
}

func descend(v any, segments []string) (any, bool) {
	for _, seg := range segments {
		next, ok := child(v, seg)
		if !ok {
			return nil, false
		}
		v = next
	}

	return v, true
}

func child(container any, key string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[key]
		return v, ok
	case map[string]int64:
		v, ok := c[key]
		return v, ok
	case map[string]bool:
		v, ok := c[key]
		return v, ok
	case *anycodec.Object:
		if c == nil {
			return nil, false
		}

		return c.Get(key)
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}

		return c[i], true
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}

		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}

		return rv.Index(i).Interface(), true
	default:
		return nil, false
	}
}
