// Package template encodes and decodes Go values according to a declarative
// binary schema.
//
// A schema is a tree of Nodes: fixed-width kinds, objects, arrays, strings,
// buffers, big and odd-width integers, bit fields, flags, length and size
// references, the self-describing Any codec and user extensions. The same tree
// drives both directions, so a value written with a Template reads back with
// it unchanged.
//
// Example:
//
//	rec, _ := template.New(template.Object(
//	    template.Field("id", template.U32),
//	    template.Field("name", template.String(template.U8)),
//	), template.WithBigEndian())
//	data, _ := rec.Encode(map[string]any{"id": 7, "name": "gopher"})
//	v, _ := rec.Decode(data) // map[string]any{"id": uint32(7), "name": "gopher"}
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arloliu/sbs/buffer"
	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/format"
	"github.com/arloliu/sbs/internal/hash"
	"github.com/arloliu/sbs/internal/options"
)

// Template is a validated schema together with its encoding options.
//
// A Template is immutable and safe for concurrent use.
type Template struct {
	root Node
	cfg  *config
}

// New validates root and applies opts.
//
// Parameters:
//   - root: schema of the whole document
//   - opts: byte order, checksum, any codec and context options
//
// Returns:
//   - *Template: ready to use template
//   - error: ErrInvalidTemplate when the schema or an option is malformed
func New(root Node, opts ...Option) (*Template, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root schema", errs.ErrInvalidTemplate)
	}

	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if err := root.check(); err != nil {
		if !errors.Is(err, errs.ErrInvalidTemplate) && !errors.Is(err, errs.ErrMisalignedBitField) {
			err = fmt.Errorf("%w: %w", errs.ErrInvalidTemplate, err)
		}

		return nil, err
	}

	return &Template{root: root, cfg: cfg}, nil
}

// Root returns the schema the template was built from.
func (t *Template) Root() Node {
	return t.root
}

// Encode writes v and returns the encoded bytes.
//
// Returns:
//   - []byte: freshly allocated output, followed by an 8-byte checksum when
//     WithChecksum is set
//   - error: *Error wrapping an errs sentinel
func (t *Template) Encode(v any) ([]byte, error) {
	ev, err := t.encode(v)
	if err != nil {
		return nil, err
	}
	defer t.releaseWriter(ev)

	out := ev.w.Bytes()
	if t.cfg.checksum {
		out = t.cfg.engine.AppendUint64(out, hash.Sum64(out))
	}

	return out, nil
}

// encode runs the root node into a fresh writer. On success the caller owns
// the evaluator and must hand it to releaseWriter.
func (t *Template) encode(v any) (*Evaluator, error) {
	ev := acquireEvaluator(t.cfg, format.Write)
	ev.w = buffer.NewWriter(t.cfg.engine, t.cfg.scratchSize)

	_, err := ev.eval(t.root, v)
	if err == nil {
		err = ev.finish()
	}
	if err != nil {
		t.releaseWriter(ev)
		return nil, t.fail(format.Write, err)
	}
	ev.w.Flush()

	return ev, nil
}

func (t *Template) releaseWriter(ev *Evaluator) {
	ev.w.Release()
	releaseEvaluator(ev)
}

// Decode reads one document from data.
//
// Decoded values never alias data. Bytes following the document are ignored.
//
// Returns:
//   - any: the decoded document
//   - error: *Error wrapping an errs sentinel, ErrChecksumMismatch for a
//     corrupted checksummed payload
func (t *Template) Decode(data []byte) (any, error) {
	return t.DecodeChunks([][]byte{data})
}

// DecodeChunks reads one document spread over several chunks, as collected
// from a network stream. The chunks are read in order and never copied as a
// whole.
func (t *Template) DecodeChunks(chunks [][]byte) (any, error) {
	if t.cfg.checksum {
		payload, err := verifyChecksum(t.cfg, chunks)
		if err != nil {
			return nil, t.fail(format.Read, err)
		}
		chunks = payload
	}

	ev := acquireEvaluator(t.cfg, format.Read)
	defer releaseEvaluator(ev)
	ev.r = buffer.NewReader(t.cfg.engine, chunks...)

	out, err := ev.eval(t.root, nil)
	if err != nil {
		return nil, t.fail(format.Read, err)
	}
	if left := ev.r.Remaining(); left > 0 {
		t.cfg.logger.Debug("sbs: trailing bytes after document", "bytes", left)
	}

	return out, nil
}

// fail makes sure every returned error is an *Error and logs it.
func (t *Template) fail(op format.Direction, err error) error {
	var te *Error
	if !errors.As(err, &te) {
		te = &Error{Op: op, Schema: t.root.String(), Err: err}
		err = te
	}
	if t.cfg.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.cfg.logger.Debug("sbs: "+op.String()+" failed", "path", te.Path, "schema", te.Schema, "error", te.Err)
	}

	return err
}

// verifyChecksum splits the trailer off chunks and checks it.
func verifyChecksum(cfg *config, chunks [][]byte) ([][]byte, error) {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < hash.Size {
		return nil, fmt.Errorf("%w: %d bytes cannot hold a checksum", errs.ErrFormatInvalid, total)
	}

	payload := make([][]byte, 0, len(chunks))
	trailer := make([]byte, 0, hash.Size)
	keep := total - hash.Size
	for _, c := range chunks {
		take := min(keep, len(c))
		if take > 0 {
			payload = append(payload, c[:take])
			keep -= take
		}
		trailer = append(trailer, c[take:]...)
	}

	want := cfg.engine.Uint64(trailer)
	if got := hash.SumChunks(payload); got != want {
		return nil, fmt.Errorf("%w: computed %#016x, trailer says %#016x", errs.ErrChecksumMismatch, got, want)
	}

	return payload, nil
}
