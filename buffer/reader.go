package buffer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
)

// Reader consumes a list of chunks as one byte stream.
//
// Slices returned by GetBytes alias the input chunks when a read falls inside
// one chunk, and are freshly allocated when it spans several.
type Reader struct {
	engine    endian.EndianEngine
	chunks    [][]byte
	remaining int
	offset    int
}

// NewReader creates a Reader over chunks. Empty chunks are dropped.
func NewReader(engine endian.EndianEngine, chunks ...[]byte) *Reader {
	r := &Reader{engine: engine, chunks: make([][]byte, 0, len(chunks))}
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		r.chunks = append(r.chunks, c)
		r.remaining += len(c)
	}

	return r
}

// Engine returns the byte order used for primitives.
func (r *Reader) Engine() endian.EndianEngine {
	return r.engine
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.remaining
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.offset
}

// GetBytes consumes exactly n bytes.
//
// Returns:
//   - []byte: the bytes read
//   - error: ErrFormatInvalid if fewer than n bytes remain
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if n < 0 || n > r.remaining {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d remaining", errs.ErrFormatInvalid, n, r.offset, r.remaining)
	}
	if n == 0 {
		return []byte{}, nil
	}

	r.remaining -= n
	r.offset += n

	head := r.chunks[0]
	if len(head) >= n {
		if len(head) == n {
			r.chunks = r.chunks[1:]
		} else {
			r.chunks[0] = head[n:]
		}

		return head[:n:n], nil
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		head = r.chunks[0]
		take := min(n-len(out), len(head))
		out = append(out, head[:take]...)
		if take == len(head) {
			r.chunks = r.chunks[1:]
		} else {
			r.chunks[0] = head[take:]
		}
	}

	return out, nil
}

// GetBytesUntilZero consumes bytes up to the next zero byte.
//
// The zero itself is always consumed; it is included in the result unless
// discardZero is set. When no zero byte remains nothing is consumed.
//
// Returns:
//   - []byte: the bytes read
//   - error: ErrFormatInvalid if the stream holds no zero byte
func (r *Reader) GetBytesUntilZero(discardZero bool) ([]byte, error) {
	n := 0
	found := false
	for _, c := range r.chunks {
		if i := bytes.IndexByte(c, 0); i >= 0 {
			n += i
			found = true

			break
		}
		n += len(c)
	}
	if !found {
		return nil, fmt.Errorf("%w: missing zero terminator after offset %d", errs.ErrFormatInvalid, r.offset)
	}

	data, err := r.GetBytes(n + 1)
	if err != nil {
		return nil, err
	}
	if discardZero {
		return data[:n], nil
	}

	return data, nil
}

// ReadUint8 consumes one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.GetBytes(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadUint16 consumes two bytes in the reader's byte order.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.GetBytes(2)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint16(b), nil
}

// ReadUint32 consumes four bytes in the reader's byte order.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.GetBytes(4)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint32(b), nil
}

// ReadUint64 consumes eight bytes in the reader's byte order.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.GetBytes(8)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint64(b), nil
}

// ReadFloat32 consumes an IEEE 754 single.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 consumes an IEEE 754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}
