package pool

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestNewByteBuffer(t *testing.T) {
	bb := NewByteBuffer(ScratchBufferSize)

	require.NotNil(t, bb.B)
	require.Equal(t, 0, bb.Len())
	require.Equal(t, ScratchBufferSize, bb.Cap())
	require.Equal(t, ScratchBufferSize, bb.Available())
}

func TestByteBuffer_Extend(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte{1, 2, 3, 4, 5, 6})
	bb.Reset()
	bb.MustWrite([]byte{9})

	require.True(t, bb.Extend(4))
	require.Equal(t, []byte{9, 0, 0, 0, 0}, bb.Bytes(), "extended bytes must be zeroed")

	require.False(t, bb.Extend(4))
	require.Equal(t, 5, bb.Len())
}

func TestByteBuffer_Grow(t *testing.T) {
	t.Run("sufficient capacity", func(t *testing.T) {
		bb := NewByteBuffer(64)
		bb.Grow(10)
		require.Equal(t, 64, bb.Cap())
	})

	t.Run("small buffer grows by default size", func(t *testing.T) {
		bb := NewByteBuffer(16)
		bb.MustWrite([]byte("0123456789abcdef"))
		bb.Grow(1)
		require.GreaterOrEqual(t, bb.Available(), SinkBufferDefaultSize)
		require.Equal(t, []byte("0123456789abcdef"), bb.Bytes())
	})

	t.Run("request larger than growth step", func(t *testing.T) {
		bb := NewByteBuffer(0)
		bb.Grow(SinkBufferDefaultSize * 3)
		require.GreaterOrEqual(t, bb.Available(), SinkBufferDefaultSize*3)
	})
}

func TestByteBuffer_WriteAndWriteTo(t *testing.T) {
	bb := NewByteBuffer(4)
	n, err := bb.Write([]byte("hello "))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	bb.MustWrite([]byte("world"))

	var out bytes.Buffer
	written, err := bb.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(11), written)
	require.Equal(t, "hello world", out.String())
}

func TestByteBuffer_ReadFrom(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 10000)

	bb := NewByteBuffer(0)
	n, err := bb.ReadFrom(iotest.OneByteReader(bytes.NewReader(payload)))
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), n)
	require.Equal(t, payload, bb.Bytes())
}

func TestByteBuffer_ReadFrom_Error(t *testing.T) {
	boom := errors.New("boom")
	bb := NewByteBuffer(0)
	r := io.MultiReader(bytes.NewReader([]byte("abc")), iotest.ErrReader(boom))

	n, err := bb.ReadFrom(r)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(3), n)
	require.Equal(t, []byte("abc"), bb.Bytes())
}

func TestByteBufferPool_MaxThreshold(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)

	bb := p.Get()
	bb.Grow(10000)
	require.Greater(t, bb.Cap(), 4096)
	p.Put(bb)

	bb2 := p.Get()
	require.LessOrEqual(t, bb2.Cap(), 4096, "oversized buffers must not be reused")
	require.Equal(t, 0, bb2.Len())
}

func TestByteBufferPool_PutNil(t *testing.T) {
	require.NotPanics(t, func() {
		PutScratchBuffer(nil)
		PutSinkBuffer(nil)
	})
}

func TestDefaultPools(t *testing.T) {
	scratch := GetScratchBuffer()
	require.Equal(t, 0, scratch.Len())
	require.GreaterOrEqual(t, scratch.Cap(), ScratchBufferSize)
	scratch.MustWrite([]byte("dirty"))
	PutScratchBuffer(scratch)

	again := GetScratchBuffer()
	require.Equal(t, 0, again.Len(), "pooled buffers come back reset")
	PutScratchBuffer(again)

	sink := GetSinkBuffer()
	require.GreaterOrEqual(t, sink.Cap(), SinkBufferDefaultSize)
	PutSinkBuffer(sink)
}

func TestPool_ConcurrentAccess(t *testing.T) {
	const goroutines = 32
	const iterations = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				bb := GetScratchBuffer()
				bb.MustWrite([]byte("data"))
				if bb.Len() != 4 {
					t.Errorf("unexpected length %d", bb.Len())
				}
				PutScratchBuffer(bb)
			}
		}()
	}
	wg.Wait()
}
