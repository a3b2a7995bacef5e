// Package hash computes the xxHash64 checksums carried by checksummed payloads.
package hash

import "github.com/cespare/xxhash/v2"

// Size is the byte length of a checksum trailer.
const Size = 8

// Sum64 returns the xxHash64 of data.
func Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// SumChunks returns the xxHash64 of the concatenation of chunks without
// materializing it.
func SumChunks(chunks [][]byte) uint64 {
	d := xxhash.New()
	for _, c := range chunks {
		_, _ = d.Write(c)
	}

	return d.Sum64()
}
