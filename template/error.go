package template

import (
	"fmt"

	"github.com/arloliu/sbs/format"
)

// Error reports where in a document an encode or decode call failed.
//
// Err wraps one of the errs sentinels, so errors.Is(err, errs.ErrOverflow)
// and friends work on the returned error directly.
type Error struct {
	// Op is the direction the evaluator was running in.
	Op format.Direction
	// Path is the key path of the failing field, empty at the document root.
	Path string
	// Schema describes the failing node.
	Schema string
	Err    error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("sbs: error %s %q: %v", e.Op, e.Schema, e.Err)
	}

	return fmt.Sprintf("sbs: error %s %q at %q: %v", e.Op, e.Schema, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
