// Package anycodec implements the self-describing "any" encoding: every value
// is prefixed by a one byte header that carries a 6-bit type tag in the low
// bits and a 2-bit size class in the high bits.
//
// The size class selects how the length (or subtype) following the header is
// stored:
//
//	class 0: 1 byte    class 1: 2 bytes    class 2: 4 bytes    class 3: 8 bytes
//
// Supported Go values and their tags:
//
//	RawBuffer, DataView, ClampedBytes   0, 1, 2
//	[]byte []uint16 []uint32 []uint64   3, 4, 5, 6
//	[]int8 []int16 []int32 []int64      7, 8, 9, 10
//	[]float32 []float64                 11, 12
//	[]any (and other slices)            13
//	*Map, *Set                          14, 15
//	*regexp.Regexp                      16 (source text)
//	*ErrorValue, error                  17
//	time.Time                           18 (signed milliseconds)
//	*Object, map[string]any             19
//	*big.Int                            20
//	bool                                21
//	Function                            22
//	integers                            23 (minimal two's complement bytes)
//	float32, float64                    24, 25 for NaN and infinities
//	string, Symbol                      26, 27
//	nil, Undefined                      28
//
// Tag 29 is alignment padding placed before typed buffers when alignment is
// enabled, and tag 63 is a back-reference carrying the stream offset of a value
// written earlier. Back-references preserve shared structure and cycles.
//
// Multi-byte numbers, typed buffer elements and big integers follow the byte
// order of the underlying buffer.Writer or buffer.Reader.
package anycodec
