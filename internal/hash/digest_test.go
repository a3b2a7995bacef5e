package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum64(t *testing.T) {
	tests := []struct {
		name string
		data string
		sum  uint64
	}{
		{"empty", "", 0xef46db3751d8e999},
		{"short", "test", 0x4fdcca5ddb678139},
		{"long", "this is a longer test string to hash", 0x69275f7f7ee59dbd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.sum, Sum64([]byte(tt.data)))
		})
	}
}

func TestSumChunks(t *testing.T) {
	data := bytes.Repeat([]byte("chunked payload "), 100)

	for _, size := range []int{1, 3, 7, 64, len(data)} {
		var chunks [][]byte
		for off := 0; off < len(data); off += size {
			end := min(off+size, len(data))
			chunks = append(chunks, data[off:end])
		}
		require.Equal(t, Sum64(data), SumChunks(chunks), "chunk size %d", size)
	}

	require.Equal(t, Sum64(nil), SumChunks(nil))
}
