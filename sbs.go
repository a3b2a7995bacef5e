// Package sbs encodes structured Go values into a compact binary form described
// by a declarative schema, and decodes them back.
//
// A schema is a tree of template.Node values. Fields reference each other by
// path, so lengths and sizes are computed while writing and used while reading
// without any manual offset bookkeeping.
//
// # Core Features
//
//   - Fixed-width integers and floats in either byte order
//   - Length-prefixed, fixed and zero-terminated strings and buffers
//   - Arbitrary width integers, bit fields and named flags
//   - Cross-field references with relative and absolute paths
//   - Deferred size write-back for size headers written before their payload
//   - A self-describing codec for dynamic values, including shared references and cycles
//   - Compressed sub-documents (Zstd, S2, LZ4) and an optional xxHash64 checksum
//   - Chunked output and input for streaming transports
//
// # Basic Usage
//
//	import (
//	    "github.com/arloliu/sbs"
//	    "github.com/arloliu/sbs/template"
//	)
//
//	record := template.Object(
//	    template.Field("size", template.SizeOf("payload", template.U16)),
//	    template.Field("name", template.String(template.U8)),
//	    template.Field("payload", template.Array(template.U32, template.U8)),
//	)
//
//	data, _ := sbs.Encode(record, map[string]any{
//	    "name":    "gopher",
//	    "payload": []any{1, 2, 3},
//	}, sbs.WithBigEndian())
//
//	v, _ := sbs.Decode(record, data, sbs.WithBigEndian())
//
// # Package Structure
//
// This package provides one-shot wrappers around the template package. Build a
// template.Template once with New when the same schema is used repeatedly, and
// use its streaming methods (EncodeTo, DecodeFrom, Chunks, NewSink) for
// io.Writer and io.Reader based transports.
package sbs

import (
	"github.com/arloliu/sbs/template"
)

// Option configures a template. See the template package for the full list.
type Option = template.Option

// Options re-exported from the template package.
var (
	WithLittleEndian        = template.WithLittleEndian
	WithBigEndian           = template.WithBigEndian
	WithNativeEndian        = template.WithNativeEndian
	WithLowPrecisionFloats  = template.WithLowPrecisionFloats
	WithTypedArrayAlignment = template.WithTypedArrayAlignment
	WithFunctionEvaluator   = template.WithFunctionEvaluator
	WithMaxAnySize          = template.WithMaxAnySize
	WithContext             = template.WithContext
	WithChecksum            = template.WithChecksum
	WithScratchSize         = template.WithScratchSize
	WithMaxArrayLength      = template.WithMaxArrayLength
	WithLogger              = template.WithLogger
)

// New builds a reusable template from root.
//
// Parameters:
//   - root: schema of the whole document
//   - opts: template options
//
// Returns:
//   - *template.Template: validated template, safe for concurrent use
//   - error: ErrInvalidTemplate if the schema or an option is malformed
func New(root template.Node, opts ...Option) (*template.Template, error) {
	return template.New(root, opts...)
}

// Encode writes v with the schema root.
//
// Parameters:
//   - root: schema of the whole document
//   - v: value to encode, usually a map[string]any
//   - opts: template options
//
// Returns:
//   - []byte: encoded document
//   - error: ErrInvalidTemplate for a malformed schema, otherwise a *template.Error
func Encode(root template.Node, v any, opts ...Option) ([]byte, error) {
	t, err := template.New(root, opts...)
	if err != nil {
		return nil, err
	}

	return t.Encode(v)
}

// Decode reads one document from data with the schema root.
//
// The options must match the ones used to encode the document.
func Decode(root template.Node, data []byte, opts ...Option) (any, error) {
	t, err := template.New(root, opts...)
	if err != nil {
		return nil, err
	}

	return t.Decode(data)
}
