package compress

import "github.com/arloliu/sbs/format"

// ZstdCompressor compresses sections with Zstandard.
//
// The pure Go implementation is used unless the module is built with both
// cgo and the gozstd build tag.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a Zstandard codec.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

// Type returns format.CompressionZstd.
func (c ZstdCompressor) Type() format.CompressionType {
	return format.CompressionZstd
}
