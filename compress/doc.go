// Package compress provides the codecs behind compressed template sections.
//
// A compressed section encodes its inner schema into a private buffer, runs the
// result through a Codec and stores the compressed bytes behind a length
// prefix. On decode the prefix is read, the bytes are decompressed and the
// inner schema is evaluated against them.
//
// Supported algorithms:
//   - None: bytes are stored as is
//   - Zstd: best ratio, pure Go (klauspost/compress) by default, cgo
//     (valyala/gozstd) when built with the gozstd tag
//   - S2: balanced speed and ratio
//   - LZ4: raw LZ4 blocks, fastest decompression
//
// Every codec is stateless from the caller's point of view and safe for
// concurrent use; encoders and decoders that benefit from reuse are pooled.
//
//	codec, _ := compress.ForType(format.CompressionS2)
//	packed, _ := codec.Compress(data)
//	data, _ = codec.Decompress(packed)
package compress
