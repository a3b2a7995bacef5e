package template

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/sbs/anycodec"
	"github.com/arloliu/sbs/buffer"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/format"
)

// Evaluator walks a schema tree for one Encode or Decode call.
//
// It owns the cursor, the current key path, the index of containers reachable
// by path and the pending size write-backs. Custom nodes receive it to read or
// write raw bytes and to evaluate nested schemas. An Evaluator must not be
// retained after the call that handed it out returns.
type Evaluator struct {
	cfg       *config
	direction format.Direction

	w *buffer.Writer
	r *buffer.Reader

	enc *anycodec.Encoder
	dec *anycodec.Decoder

	path    []string
	frames  map[string]any
	pending map[string]*writeBack
	section int
}

// writeBack is a reserved SizeOf slot waiting for its target to be written.
type writeBack struct {
	slot    []byte
	kind    Kind
	section int
}

var evaluatorPool = sync.Pool{
	New: func() any {
		return &Evaluator{
			frames:  make(map[string]any),
			pending: make(map[string]*writeBack),
		}
	},
}

func acquireEvaluator(cfg *config, direction format.Direction) *Evaluator {
	ev, _ := evaluatorPool.Get().(*Evaluator)
	ev.cfg = cfg
	ev.direction = direction

	if cfg.contextParent != nil {
		ev.frames[""] = cfg.contextParent
		ev.path = append(ev.path, cfg.contextLocation...)
	}

	return ev
}

func releaseEvaluator(ev *Evaluator) {
	ev.reset()
	evaluatorPool.Put(ev)
}

// reset clears every call-scoped structure so that a failed call cannot leak
// state into the next one.
func (ev *Evaluator) reset() {
	ev.cfg = nil
	ev.direction = 0
	ev.w = nil
	ev.r = nil
	ev.enc = nil
	ev.dec = nil
	ev.path = ev.path[:0]
	ev.section = 0
	clear(ev.frames)
	clear(ev.pending)
}

// Direction reports whether the evaluator is writing or reading.
func (ev *Evaluator) Direction() format.Direction {
	return ev.direction
}

// Writing reports whether the evaluator is encoding.
func (ev *Evaluator) Writing() bool {
	return ev.direction == format.Write
}

// Path returns the current key path, segments joined with "/".
func (ev *Evaluator) Path() string {
	return strings.Join(ev.path, "/")
}

// Offset returns the number of bytes written or consumed so far.
func (ev *Evaluator) Offset() int {
	if ev.Writing() {
		return ev.w.Offset()
	}

	return ev.r.Offset()
}

// Engine returns the byte order of the template.
func (ev *Evaluator) Engine() endian.EndianEngine {
	return ev.engine()
}

func (ev *Evaluator) engine() endian.EndianEngine {
	return ev.cfg.engine
}

// Value evaluates node at the current key path. While writing v is encoded and
// the result is nil; while reading v is ignored and the decoded value is returned.
func (ev *Evaluator) Value(node Node, v any) (any, error) {
	if node == nil {
		return nil, &Error{Op: ev.direction, Path: ev.Path(), Schema: "<nil>",
			Err: fmt.Errorf("%w: nil schema node", errs.ErrInvalidTemplate)}
	}

	return ev.eval(node, v)
}

// PushBytes writes b as is. b must not be modified until the call completes.
func (ev *Evaluator) PushBytes(b []byte) error {
	if !ev.Writing() {
		return fmt.Errorf("%w: PushBytes called while reading", errs.ErrInvalidTemplate)
	}
	ev.w.PushBytes(b)

	return nil
}

// GetBytes consumes n bytes and returns a copy of them.
func (ev *Evaluator) GetBytes(n int) ([]byte, error) {
	if ev.Writing() {
		return nil, fmt.Errorf("%w: GetBytes called while writing", errs.ErrInvalidTemplate)
	}
	b, err := ev.r.GetBytes(n)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(b), nil
}

// GetBytesUntilZero consumes bytes up to and including the next zero byte and
// returns a copy without the terminator.
func (ev *Evaluator) GetBytesUntilZero() ([]byte, error) {
	if ev.Writing() {
		return nil, fmt.Errorf("%w: GetBytesUntilZero called while writing", errs.ErrInvalidTemplate)
	}
	b, err := ev.r.GetBytesUntilZero(true)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(b), nil
}

// eval runs node and wraps the first error with the key path it happened at.
func (ev *Evaluator) eval(node Node, v any) (any, error) {
	out, err := node.eval(ev, v)
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			return nil, err
		}

		return nil, &Error{Op: ev.direction, Path: ev.Path(), Schema: node.String(), Err: err}
	}

	return out, nil
}

// field evaluates node under key and resolves a size write-back aimed at it.
func (ev *Evaluator) field(key string, node Node, v any) (any, error) {
	ev.path = append(ev.path, key)
	defer func() { ev.path = ev.path[:len(ev.path)-1] }()

	if !ev.Writing() {
		return ev.eval(node, nil)
	}

	start := ev.w.Offset()
	if _, err := ev.eval(node, v); err != nil {
		return nil, err
	}

	if len(ev.pending) == 0 {
		return nil, nil
	}
	target := ev.Path()
	wb, ok := ev.pending[target]
	if !ok {
		return nil, nil
	}
	delete(ev.pending, target)

	size := ev.w.Offset() - start
	if err := patchSize(ev.engine(), wb, size); err != nil {
		return nil, &Error{Op: ev.direction, Path: target, Schema: node.String(), Err: err}
	}

	return nil, nil
}

// dir returns the key path of the object containing the current key.
func (ev *Evaluator) dir() []string {
	if len(ev.path) == 0 {
		return nil
	}

	return ev.path[:len(ev.path)-1]
}

// enterFrame makes container reachable by path at the current key path and
// returns a function restoring the previous registration.
func (ev *Evaluator) enterFrame(container any) func() {
	key := ev.Path()
	prev, had := ev.frames[key]
	ev.frames[key] = container

	return func() {
		if had {
			ev.frames[key] = prev
		} else {
			delete(ev.frames, key)
		}
	}
}

func (ev *Evaluator) updateFrame(container any) {
	ev.frames[ev.Path()] = container
}

// reserveSize registers a write-back slot for the field at path.
func (ev *Evaluator) reserveSize(path string, kind Kind) error {
	abs, err := resolvePath(path, ev.dir())
	if err != nil {
		return err
	}
	target := strings.Join(abs, "/")
	if _, dup := ev.pending[target]; dup {
		return fmt.Errorf("%w: %q already has a pending size", errs.ErrInvalidTemplate, target)
	}

	ev.pending[target] = &writeBack{slot: ev.w.Scratch(kind.Size()), kind: kind, section: ev.section}

	return nil
}

func patchSize(engine endian.EndianEngine, wb *writeBack, size int) error {
	if wb.kind.IsSigned() {
		limit := 1<<(8*wb.kind.Size()-1) - 1
		if wb.kind.Size() < 8 && size > limit {
			return fmt.Errorf("%w: %s is too small to store a size of %d", errs.ErrOverflow, wb.kind, size)
		}
	} else if wb.kind.Size() < 8 && uint64(size)>>(8*wb.kind.Size()) != 0 { //nolint:gosec
		return fmt.Errorf("%w: %s is too small to store a size of %d", errs.ErrOverflow, wb.kind, size)
	}
	putUint(engine, wb.slot, uint64(size)) //nolint:gosec

	return nil
}

// finish fails when a reserved size was never resolved.
func (ev *Evaluator) finish() error {
	if len(ev.pending) == 0 {
		return nil
	}

	targets := make([]string, 0, len(ev.pending))
	for target := range ev.pending {
		targets = append(targets, target)
	}
	slices.Sort(targets)

	return fmt.Errorf("%w: sizeOf targets never written: %s", errs.ErrUnresolvedWriteBack, strings.Join(targets, ", "))
}

func (ev *Evaluator) anyEncoder() *anycodec.Encoder {
	if ev.enc == nil {
		var opts []anycodec.EncoderOption
		if ev.cfg.lowPrecisionFloats {
			opts = append(opts, anycodec.WithLowPrecisionFloats())
		}
		if ev.cfg.typedArrayAlignment {
			opts = append(opts, anycodec.WithTypedArrayAlignment())
		}
		ev.enc = anycodec.NewEncoder(ev.w, opts...)
	}

	return ev.enc
}

func (ev *Evaluator) anyDecoder() (*anycodec.Decoder, error) {
	if ev.dec == nil {
		opts := []anycodec.DecoderOption{anycodec.WithMaxSize(ev.cfg.maxAnySize)}
		if ev.cfg.functionEvaluator != nil {
			opts = append(opts, anycodec.WithFunctionEvaluator(ev.cfg.functionEvaluator))
		}
		dec, err := anycodec.NewDecoder(ev.r, opts...)
		if err != nil {
			return nil, err
		}
		ev.dec = dec
	}

	return ev.dec, nil
}

// Scope is the read-only view of an Evaluator handed to Select choosers.
type Scope struct {
	ev *Evaluator
}

// Direction reports whether the template is being written or read.
func (s *Scope) Direction() format.Direction {
	return s.ev.direction
}

// Writing reports whether the template is being written.
func (s *Scope) Writing() bool {
	return s.ev.Writing()
}

// Path returns the current key path.
func (s *Scope) Path() string {
	return s.ev.Path()
}

// Lookup returns the value stored at path, see Evaluator.Lookup.
func (s *Scope) Lookup(path string) (any, error) {
	return s.ev.Lookup(path)
}
