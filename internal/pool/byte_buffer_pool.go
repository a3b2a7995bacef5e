package pool

import (
	"errors"
	"io"
	"sync"
)

const (
	// ScratchBufferSize is the capacity of the scratch buffers that coalesce
	// small primitive writes into chunks.
	ScratchBufferSize = 1024
	// ScratchBufferMaxThreshold discards scratch buffers that were grown past their size.
	ScratchBufferMaxThreshold = 1024 * 4
	// SinkBufferDefaultSize is the initial capacity of stream accumulation buffers.
	SinkBufferDefaultSize = 1024 * 16 // 16KiB
	// SinkBufferMaxThreshold keeps oversized accumulation buffers out of the pool.
	SinkBufferMaxThreshold = 1024 * 1024 * 4 // 4MiB
)

// readChunkSize is the minimum free space ReadFrom keeps available before each read.
const readChunkSize = 4096

// ByteBuffer is a growable byte slice that can be recycled through a ByteBufferPool.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer but keeps the allocated memory.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Available returns the number of bytes that can be appended without reallocating.
func (bb *ByteBuffer) Available() int {
	return cap(bb.B) - len(bb.B)
}

// Extend extends the buffer by n bytes if there is sufficient capacity.
// The new bytes are zeroed.
func (bb *ByteBuffer) Extend(n int) bool {
	curLen := len(bb.B)
	if cap(bb.B)-curLen < n {
		return false
	}

	bb.B = bb.B[:curLen+n]
	clear(bb.B[curLen:])

	return true
}

// Grow ensures the buffer can hold requiredBytes more bytes without reallocating.
//
// Small buffers grow by SinkBufferDefaultSize; buffers above four times that
// grow by 25% of their capacity, whichever is larger than requiredBytes.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	if bb.Available() >= requiredBytes {
		return
	}

	growBy := SinkBufferDefaultSize
	if cap(bb.B) > 4*SinkBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// MustWrite appends data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Write appends data to the buffer. It never fails.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.MustWrite(data)
	return len(data), nil
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ReadFrom appends everything read from r until io.EOF.
func (bb *ByteBuffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		bb.Grow(readChunkSize)
		start := len(bb.B)
		n, err := r.Read(bb.B[start:cap(bb.B)])
		bb.B = bb.B[:start+n]
		total += int64(n)
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// ByteBufferPool is a sync.Pool of ByteBuffers.
//
// Buffers whose capacity grew past maxThreshold are dropped on Put instead of
// being retained.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a ByteBufferPool handing out buffers of defaultSize capacity.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves an empty ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	scratchPool = NewByteBufferPool(ScratchBufferSize, ScratchBufferMaxThreshold)
	sinkPool    = NewByteBufferPool(SinkBufferDefaultSize, SinkBufferMaxThreshold)
)

// GetScratchBuffer retrieves a buffer from the default scratch pool.
func GetScratchBuffer() *ByteBuffer {
	return scratchPool.Get()
}

// PutScratchBuffer returns a buffer to the default scratch pool.
func PutScratchBuffer(bb *ByteBuffer) {
	scratchPool.Put(bb)
}

// GetSinkBuffer retrieves a buffer from the default stream accumulation pool.
func GetSinkBuffer() *ByteBuffer {
	return sinkPool.Get()
}

// PutSinkBuffer returns a buffer to the default stream accumulation pool.
func PutSinkBuffer(bb *ByteBuffer) {
	sinkPool.Put(bb)
}
