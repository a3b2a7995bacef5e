package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arloliu/sbs/buffer"
	"github.com/arloliu/sbs/compress"
	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/format"
)

type compressedNode struct {
	compression format.CompressionType
	inner       Node
	length      LengthPolicy
}

// Compressed encodes inner into a section of its own, compresses it and stores
// the compressed bytes behind length (U32 when nil).
//
// The section has its own offsets: Any back-references and SizeOf targets do
// not cross its boundary.
func Compressed(compression format.CompressionType, inner Node, length LengthPolicy) Node {
	return &compressedNode{compression: compression, inner: inner, length: orDefaultLength(length)}
}

func (c *compressedNode) String() string {
	return "compressed(" + c.compression.String() + ")"
}

func (c *compressedNode) check() error {
	if _, err := compress.ForType(c.compression); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidTemplate, err)
	}
	if c.inner == nil {
		return fmt.Errorf("%w: compressed node without inner schema", errs.ErrInvalidTemplate)
	}
	if err := checkLength(c.length, false); err != nil {
		return err
	}

	return c.inner.check()
}

func (c *compressedNode) eval(ev *Evaluator, v any) (any, error) {
	codec, err := compress.ForType(c.compression)
	if err != nil {
		return nil, err
	}

	if !ev.Writing() {
		return c.read(ev, codec)
	}

	outer, outerEnc := ev.w, ev.enc
	section := buffer.NewWriter(ev.engine(), ev.cfg.scratchSize)
	ev.w, ev.enc = section, nil
	ev.section++
	id := ev.section
	defer func() {
		ev.w, ev.enc = outer, outerEnc
		section.Release()
	}()

	if _, err := ev.eval(c.inner, v); err != nil {
		return nil, err
	}
	for target, wb := range ev.pending {
		if wb.section == id {
			return nil, fmt.Errorf("%w: %q is not written inside the compressed section", errs.ErrUnresolvedWriteBack, target)
		}
	}

	raw := section.Bytes()
	packed, err := codec.Compress(raw)
	if err != nil {
		return nil, err
	}
	if ev.cfg.logger.Enabled(context.Background(), slog.LevelDebug) {
		ev.cfg.logger.Debug("sbs: compressed section", "path", ev.Path(), "codec", c.compression,
			"raw", len(raw), "packed", len(packed), "ratio", compress.Ratio(len(raw), len(packed)))
	}
	ev.w = outer
	if err := ev.writeLength(c.length, len(packed)); err != nil {
		return nil, err
	}
	ev.w.PushBytes(packed)

	return nil, nil
}

func (c *compressedNode) read(ev *Evaluator, codec compress.Codec) (any, error) {
	n, err := ev.readLength(c.length)
	if err != nil {
		return nil, err
	}
	packed, err := ev.r.GetBytes(n)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decompress(packed)
	if err != nil {
		if errors.Is(err, errs.ErrFormatInvalid) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", errs.ErrFormatInvalid, err)
	}

	outer, outerDec := ev.r, ev.dec
	ev.r, ev.dec = buffer.NewReader(ev.engine(), raw), nil
	defer func() { ev.r, ev.dec = outer, outerDec }()

	out, err := ev.eval(c.inner, nil)
	if err != nil {
		return nil, err
	}
	if left := ev.r.Remaining(); left != 0 {
		return nil, fmt.Errorf("%w: %d bytes left in compressed section", errs.ErrFormatInvalid, left)
	}

	return out, nil
}
