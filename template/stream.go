package template

import (
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/internal/hash"
	"github.com/arloliu/sbs/internal/pool"
)

// EncodeTo encodes v and writes the chunks to w without joining them first.
//
// Returns:
//   - int64: bytes written to w
//   - error: encoding errors, or the first error returned by w
func (t *Template) EncodeTo(w io.Writer, v any) (int64, error) {
	ev, err := t.encode(v)
	if err != nil {
		return 0, err
	}
	defer t.releaseWriter(ev)

	n, err := ev.w.WriteTo(w)
	if err != nil {
		return n, err
	}
	if t.cfg.checksum {
		trailer := t.cfg.engine.AppendUint64(nil, hash.SumChunks(ev.w.Chunks()))
		m, err := w.Write(trailer)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}

	return n, nil
}

// DecodeFrom reads r to EOF and decodes the collected bytes.
func (t *Template) DecodeFrom(r io.Reader) (any, error) {
	bb := pool.GetSinkBuffer()
	defer pool.PutSinkBuffer(bb)

	if _, err := bb.ReadFrom(r); err != nil {
		return nil, err
	}

	return t.Decode(bb.Bytes())
}

// ChunkSource hands out an encoded document chunk by chunk.
//
// Chunks alias pooled memory and stay valid until Close. It also implements
// io.Reader for consumers that want a plain byte stream. A ChunkSource is not
// safe for concurrent use.
type ChunkSource struct {
	t       *Template
	ev      *Evaluator
	chunks  [][]byte
	next    int
	pending []byte
}

// Chunks encodes v and returns a pull-driven source of the output.
func (t *Template) Chunks(v any) (*ChunkSource, error) {
	ev, err := t.encode(v)
	if err != nil {
		return nil, err
	}

	chunks := ev.w.Chunks()
	if t.cfg.checksum {
		trailer := t.cfg.engine.AppendUint64(nil, hash.SumChunks(chunks))
		chunks = append(chunks[:len(chunks):len(chunks)], trailer)
	}

	return &ChunkSource{t: t, ev: ev, chunks: chunks}, nil
}

// Next returns the next chunk, or io.EOF once every chunk has been returned.
func (s *ChunkSource) Next() ([]byte, error) {
	if s.ev == nil || s.next >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++

	return chunk, nil
}

// Read copies the remaining output into p.
func (s *ChunkSource) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) == 0 {
			chunk, err := s.Next()
			if err != nil {
				if n > 0 {
					return n, nil
				}

				return 0, err
			}
			s.pending = chunk
		}
		copied := copy(p[n:], s.pending)
		s.pending = s.pending[copied:]
		n += copied
	}

	return n, nil
}

// Close releases the pooled memory behind the chunks. It is safe to call twice.
func (s *ChunkSource) Close() error {
	if s.ev != nil {
		s.t.releaseWriter(s.ev)
		s.ev = nil
		s.chunks = nil
		s.pending = nil
	}

	return nil
}

// Sink is a push-driven decoder: write chunks as they arrive, then Close to
// decode them or Abort to give up.
//
// Write, Close and Abort may be called from different goroutines than Result.
type Sink struct {
	t *Template

	mu     sync.Mutex
	buf    *pool.ByteBuffer
	done   chan struct{}
	result any
	err    error
}

// NewSink returns a Sink decoding with t.
func (t *Template) NewSink() *Sink {
	return &Sink{t: t, buf: pool.GetSinkBuffer(), done: make(chan struct{})}
}

// Write copies p into the sink.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		return 0, fmt.Errorf("%w: write after the sink finished", errs.ErrAborted)
	}

	return s.buf.Write(p)
}

// Close decodes everything written so far and settles Result.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		return s.err
	}
	s.result, s.err = s.t.Decode(s.buf.Bytes())
	s.finish()

	return s.err
}

// Abort discards the written data and settles Result with ErrAborted wrapping reason.
func (s *Sink) Abort(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		return
	}
	if reason == nil {
		s.err = errs.ErrAborted
	} else {
		s.err = fmt.Errorf("%w: %w", errs.ErrAborted, reason)
	}
	s.t.cfg.logger.Debug("sbs: sink aborted", "bytes", s.buf.Len(), "reason", reason)
	s.finish()
}

func (s *Sink) finish() {
	pool.PutSinkBuffer(s.buf)
	s.buf = nil
	close(s.done)
}

// Done is closed once the sink has been closed or aborted.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Result blocks until Close or Abort and returns the decoded document.
func (s *Sink) Result() (any, error) {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result, s.err
}

var (
	_ io.Reader = (*ChunkSource)(nil)
	_ io.Writer = (*Sink)(nil)
)
