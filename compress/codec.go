package compress

import (
	"fmt"

	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/format"
)

// MaxDecodedSize bounds the output of every Decompress call, so a short
// hostile section cannot expand into an arbitrary allocation.
const MaxDecodedSize = 128 << 20

// Compressor compresses a complete encoded section.
type Compressor interface {
	// Compress returns the compressed form of data.
	//
	// The returned slice is owned by the caller unless the codec documents
	// otherwise. data is never modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same algorithm.
type Decompressor interface {
	// Decompress returns the original bytes of data.
	//
	// Corrupted input or input produced by another algorithm yields an error.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions and reports which algorithm it implements.
type Codec interface {
	Compressor
	Decompressor
	Type() format.CompressionType
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// ForType returns the built-in Codec for compressionType.
//
// Parameters:
//   - compressionType: one of the format.Compression* constants
//
// Returns:
//   - Codec: shared codec instance, safe for concurrent use
//   - error: unsupported compression type
func ForType(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

func errTooLarge(codec string) error {
	return fmt.Errorf("%w: %s section decodes to more than %d bytes", errs.ErrFormatInvalid, codec, MaxDecodedSize)
}

// Ratio returns compressed/original, or 0 when original is empty.
func Ratio(original, compressed int) float64 {
	if original == 0 {
		return 0
	}

	return float64(compressed) / float64(original)
}
