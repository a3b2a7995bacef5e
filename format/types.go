// Package format holds the small enumerations shared between sbs packages.
package format

type (
	// CompressionType identifies the codec used by a compressed template node.
	CompressionType uint8
	// Direction tells schema nodes whether the evaluator is encoding or decoding.
	Direction uint8
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone stores the payload as is.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 block compression.
)

const (
	Write Direction = iota + 1 // Write encodes a value into bytes.
	Read                       // Read decodes bytes into a value.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the declared compression types.
func (c CompressionType) Valid() bool {
	return c >= CompressionNone && c <= CompressionLZ4
}

func (d Direction) String() string {
	switch d {
	case Write:
		return "writing"
	case Read:
		return "reading"
	default:
		return "unknown"
	}
}
