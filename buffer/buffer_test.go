package buffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
)

func TestWriter_Primitives(t *testing.T) {
	w := NewWriter(endian.Big(), 0)
	defer w.Release()

	w.WriteUint8(0x01)
	w.WriteUint16(0x0203)
	w.WriteUint32(0x04050607)
	w.WriteUint64(0x08090A0B0C0D0E0F)
	w.WriteFloat32(1)
	w.WriteFloat64(-2)

	require.Equal(t, 1+2+4+8+4+8, w.Offset())
	require.Equal(t, []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		0x3F, 0x80, 0x00, 0x00,
		0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}, w.Bytes())
}

func TestWriter_LittleEndian(t *testing.T) {
	w := NewWriter(endian.Little(), 0)
	defer w.Release()

	w.WriteUint32(0x01020304)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, w.Bytes())
}

func TestWriter_PushBytesKeepsOrder(t *testing.T) {
	payload := []byte("payload")
	w := NewWriter(endian.Big(), 0)
	defer w.Release()

	w.WriteUint8(7)
	w.PushBytes(payload)
	w.WriteUint8(0)
	w.PushBytes(nil)

	chunks := w.Chunks()
	require.Len(t, chunks, 3)
	require.Same(t, &payload[0], &chunks[1][0])
	require.Equal(t, append(append([]byte{7}, payload...), 0), w.Bytes())
}

func TestWriter_ScratchPatchAfterFlush(t *testing.T) {
	w := NewWriter(endian.Big(), 0)
	defer w.Release()

	slot := w.Scratch(4)
	require.Equal(t, []byte{0, 0, 0, 0}, slot)
	w.PushBytes([]byte{0xAA, 0xBB})
	w.engine.PutUint32(slot, 2)

	require.Equal(t, []byte{0, 0, 0, 2, 0xAA, 0xBB}, w.Bytes())
}

func TestWriter_ScratchRotation(t *testing.T) {
	w := NewWriter(endian.Big(), 16)
	defer w.Release()

	var want []byte
	for i := range 100 {
		w.WriteUint32(uint32(i))
		want = append(want, 0, 0, 0, byte(i))
	}
	require.Equal(t, want, w.Bytes())
	require.Greater(t, len(w.Chunks()), 1)
}

func TestWriter_OversizedScratch(t *testing.T) {
	w := NewWriter(endian.Big(), 8)
	defer w.Release()

	w.WriteUint8(1)
	big := w.Scratch(32)
	require.Len(t, big, 32)
	big[31] = 0xFF
	w.WriteUint8(2)

	out := w.Bytes()
	require.Len(t, out, 34)
	require.Equal(t, byte(1), out[0])
	require.Equal(t, byte(0xFF), out[32])
	require.Equal(t, byte(2), out[33])
}

func TestWriter_WriteTo(t *testing.T) {
	w := NewWriter(endian.Big(), 0)
	defer w.Release()

	w.WriteUint16(0xBEEF)
	w.PushBytes([]byte{1, 2})

	var dst bytes.Buffer
	n, err := w.WriteTo(&dst)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, []byte{0xBE, 0xEF, 1, 2}, dst.Bytes())
}

func TestWriter_ReleaseResets(t *testing.T) {
	w := NewWriter(endian.Big(), 0)
	w.WriteUint8(1)
	w.Release()

	require.Zero(t, w.Offset())
	require.Empty(t, w.Chunks())

	w.WriteUint8(9)
	require.Equal(t, []byte{9}, w.Bytes())
	w.Release()
}

func TestReader_CrossChunk(t *testing.T) {
	r := NewReader(endian.Big(), []byte{0xDE, 0xAD}, nil, []byte{0xBE, 0xEF})
	require.Equal(t, 4, r.Remaining())

	v, err := r.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)
	require.Zero(t, r.Remaining())
	require.Equal(t, 4, r.Offset())
}

func TestReader_PartialChunkLeftover(t *testing.T) {
	r := NewReader(endian.Little(), []byte{1, 2, 3}, []byte{4, 5})

	b, err := r.GetBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, b)

	b, err = r.GetBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, b)

	v, err := r.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(5), v)

	_, err = r.ReadUint8()
	require.ErrorIs(t, err, errs.ErrFormatInvalid)
}

func TestReader_Short(t *testing.T) {
	r := NewReader(endian.Big(), []byte{1, 2, 3})

	_, err := r.ReadUint64()
	require.ErrorIs(t, err, errs.ErrFormatInvalid)
	// nothing consumed on failure
	require.Equal(t, 3, r.Remaining())

	b, err := r.GetBytes(0)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestReader_GetBytesUntilZero(t *testing.T) {
	r := NewReader(endian.Big(), []byte("he"), []byte("llo\x00wor"), []byte("ld\x00"))

	s, err := r.GetBytesUntilZero(true)
	require.NoError(t, err)
	require.Equal(t, "hello", string(s))

	s, err = r.GetBytesUntilZero(false)
	require.NoError(t, err)
	require.Equal(t, "world\x00", string(s))
	require.Zero(t, r.Remaining())
}

func TestReader_GetBytesUntilZeroMissing(t *testing.T) {
	r := NewReader(endian.Big(), []byte("abc"))

	_, err := r.GetBytesUntilZero(true)
	require.ErrorIs(t, err, errs.ErrFormatInvalid)
	require.Equal(t, 3, r.Remaining())
}

func TestReader_Floats(t *testing.T) {
	w := NewWriter(endian.Little(), 0)
	defer w.Release()
	w.WriteFloat32(123456.5)
	w.WriteFloat64(0.01234567890123456789)

	r := NewReader(endian.Little(), w.Chunks()...)
	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	require.Equal(t, float32(123456.5), f32)

	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	require.Equal(t, 0.01234567890123456789, f64)
}
