package compress

import (
	"testing"
)

func BenchmarkAllCodecs_RoundTrip(b *testing.B) {
	payload := sectionPayload(16 * 1024)
	for name, codec := range allCodecs() {
		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(payload)))
			b.ReportAllocs()
			for b.Loop() {
				compressed, err := codec.Compress(payload)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := codec.Decompress(compressed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
