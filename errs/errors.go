// Package errs defines the sentinel errors shared by every sbs package.
//
// Call sites wrap these with fmt.Errorf("%w: ...") so that callers can
// classify a failure with errors.Is regardless of how much context was added
// on the way up.
package errs

import "errors"

var (
	// ErrFormatInvalid reports malformed or truncated input: an unknown tag,
	// a dangling back-reference, a length past the end of the data.
	ErrFormatInvalid = errors.New("invalid binary format")

	// ErrOverflow reports a value that does not fit its declared width or range.
	ErrOverflow = errors.New("value overflow")

	// ErrTypeMismatch reports a value whose Go type cannot be written by the schema node.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrPathResolution reports a path that escapes the document root or
	// points at a key that does not exist.
	ErrPathResolution = errors.New("path resolution failed")

	// ErrConstraintViolation reports a string or number outside its declared
	// limits, or a length that differs from a hardcoded one.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrUnresolvedWriteBack reports SizeOf reservations whose target was never written.
	ErrUnresolvedWriteBack = errors.New("unresolved size write-back")

	// ErrMisalignedBitField reports a bit-field layout whose total width is not a multiple of 8.
	ErrMisalignedBitField = errors.New("bit-field is not byte aligned")

	// ErrInvalidTemplate reports a schema that was assembled incorrectly.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrChecksumMismatch reports a payload whose checksum trailer does not match.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAborted reports a stream that was aborted before it completed.
	ErrAborted = errors.New("stream aborted")
)
