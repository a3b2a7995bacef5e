package anycodec

const (
	TagRawBuffer    byte = 0
	TagDataView     byte = 1
	TagClampedBytes byte = 2
	TagUint8Array   byte = 3
	TagUint16Array  byte = 4
	TagUint32Array  byte = 5
	TagUint64Array  byte = 6
	TagInt8Array    byte = 7
	TagInt16Array   byte = 8
	TagInt32Array   byte = 9
	TagInt64Array   byte = 10
	TagFloat32Array byte = 11
	TagFloat64Array byte = 12
	TagSequence     byte = 13
	TagMap          byte = 14
	TagSet          byte = 15
	TagRegexp       byte = 16
	TagError        byte = 17
	TagTime         byte = 18
	TagObject       byte = 19
	TagBigInt       byte = 20
	TagBool         byte = 21
	TagFunction     byte = 22
	TagInteger      byte = 23
	TagFloat        byte = 24
	TagNonFinite    byte = 25
	TagString       byte = 26
	TagSymbol       byte = 27
	TagNull         byte = 28
	TagPadding      byte = 29
	TagReference    byte = 63
)

const (
	tagMask        = 0b0011_1111
	sizeClassShift = 6

	// MaxSize is the largest length or offset a header may carry (2^53-1).
	MaxSize = 1<<53 - 1
)

// nonFinite subtypes
const (
	subNaN byte = iota
	subPosInf
	subNegInf
)

// sizeClass returns the size class able to hold size.
func sizeClass(size uint64) byte {
	switch {
	case size <= 0xFF:
		return 0
	case size <= 0xFFFF:
		return 1
	case size <= 0xFFFF_FFFF:
		return 2
	default:
		return 3
	}
}

// headerSize returns the bytes taken by a header carrying size.
func headerSize(size uint64) int {
	return 1 + 1<<sizeClass(size)
}

// elementSize returns the element width of typed buffer tags, 0 otherwise.
func elementSize(tag byte) int {
	switch tag {
	case TagClampedBytes, TagUint8Array, TagInt8Array:
		return 1
	case TagUint16Array, TagInt16Array:
		return 2
	case TagUint32Array, TagInt32Array, TagFloat32Array:
		return 4
	case TagUint64Array, TagInt64Array, TagFloat64Array:
		return 8
	default:
		return 0
	}
}
