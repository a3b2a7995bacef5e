// Package buffer implements the chunked byte sinks and sources that template
// evaluation reads from and writes into.
//
// A Writer coalesces small primitive writes into pooled scratch buffers and
// appends large byte slices as chunks of their own, so encoding never copies a
// payload the caller already owns. A Reader consumes a list of chunks as one
// contiguous stream and splices reads that cross chunk boundaries.
package buffer

import (
	"bytes"
	"io"
	"math"

	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/internal/pool"
)

// Writer accumulates encoded output as a list of chunks.
//
// Chunks returned by Chunks alias pooled scratch memory and stay valid until
// Release is called. A Writer is not safe for concurrent use.
type Writer struct {
	engine      endian.EndianEngine
	scratchSize int

	chunks [][]byte
	// scratch is the buffer currently receiving primitive writes; bytes before
	// flushed have already been emitted as a chunk.
	scratch *pool.ByteBuffer
	flushed int
	used    []*pool.ByteBuffer
	offset  int
}

// NewWriter creates a Writer using engine for multi-byte primitives.
//
// scratchSize <= 0 selects pool.ScratchBufferSize.
func NewWriter(engine endian.EndianEngine, scratchSize int) *Writer {
	if scratchSize <= 0 {
		scratchSize = pool.ScratchBufferSize
	}

	return &Writer{engine: engine, scratchSize: scratchSize}
}

// Engine returns the byte order used for primitives.
func (w *Writer) Engine() endian.EndianEngine {
	return w.engine
}

// Offset returns the total number of bytes written so far.
func (w *Writer) Offset() int {
	return w.offset
}

// PushBytes appends data as its own chunk without copying it.
//
// Pending scratch bytes are flushed first so ordering is preserved. The caller
// must not modify data until the output has been consumed.
func (w *Writer) PushBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	w.Flush()
	w.chunks = append(w.chunks, data)
	w.offset += len(data)
}

// Scratch reserves n zeroed bytes and returns them for in-place writing.
//
// The returned window stays addressable until Release, which is what lets
// size write-backs patch a slot after later data has been written.
func (w *Writer) Scratch(n int) []byte {
	if n <= 0 {
		return nil
	}

	if n > w.scratchSize {
		w.Flush()
		chunk := make([]byte, n)
		w.chunks = append(w.chunks, chunk)
		w.offset += n

		return chunk
	}

	if w.scratch == nil || w.scratch.Len()+n > w.scratchSize || w.scratch.Available() < n {
		w.rotate()
	}

	start := w.scratch.Len()
	w.scratch.Extend(n)
	w.offset += n

	return w.scratch.B[start : start+n : start+n]
}

// Flush emits pending scratch bytes as a chunk.
func (w *Writer) Flush() {
	if w.scratch == nil || w.flushed == w.scratch.Len() {
		return
	}
	w.chunks = append(w.chunks, w.scratch.B[w.flushed:w.scratch.Len():w.scratch.Len()])
	w.flushed = w.scratch.Len()
}

func (w *Writer) rotate() {
	w.Flush()
	if w.scratch != nil {
		w.used = append(w.used, w.scratch)
	}

	w.scratch = pool.GetScratchBuffer()
	if w.scratch.Cap() < w.scratchSize {
		w.scratch.Grow(w.scratchSize)
	}
	w.flushed = 0
}

// Chunks flushes and returns the output chunks.
func (w *Writer) Chunks() [][]byte {
	w.Flush()
	return w.chunks
}

// Bytes flushes and returns the output as one freshly allocated slice.
func (w *Writer) Bytes() []byte {
	w.Flush()
	if len(w.chunks) == 1 {
		return bytes.Clone(w.chunks[0])
	}

	return bytes.Join(w.chunks, nil)
}

// WriteTo writes every chunk to dst in order.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	var total int64
	for _, chunk := range w.Chunks() {
		n, err := dst.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// Release returns scratch buffers to the pool. Chunks previously returned by
// the Writer must not be used afterwards.
func (w *Writer) Release() {
	for _, bb := range w.used {
		pool.PutScratchBuffer(bb)
	}
	if w.scratch != nil {
		pool.PutScratchBuffer(w.scratch)
	}

	w.chunks = nil
	w.scratch = nil
	w.used = nil
	w.flushed = 0
	w.offset = 0
}

// WriteUint8 appends one byte.
func (w *Writer) WriteUint8(v uint8) {
	w.Scratch(1)[0] = v
}

// WriteUint16 appends v in the writer's byte order.
func (w *Writer) WriteUint16(v uint16) {
	w.engine.PutUint16(w.Scratch(2), v)
}

// WriteUint32 appends v in the writer's byte order.
func (w *Writer) WriteUint32(v uint32) {
	w.engine.PutUint32(w.Scratch(4), v)
}

// WriteUint64 appends v in the writer's byte order.
func (w *Writer) WriteUint64(v uint64) {
	w.engine.PutUint64(w.Scratch(8), v)
}

// WriteFloat32 appends the IEEE 754 bits of v.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends the IEEE 754 bits of v.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}
