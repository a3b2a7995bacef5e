package template

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/arloliu/sbs/anycodec"
	"github.com/arloliu/sbs/endian"
	"github.com/arloliu/sbs/errs"
	"github.com/arloliu/sbs/internal/options"
)

const (
	minScratchSize = 16
	maxScratchSize = 1 << 20

	// DefaultMaxArrayLength is the largest element count an Array decodes
	// unless WithMaxArrayLength says otherwise.
	DefaultMaxArrayLength = 1 << 24
)

type config struct {
	engine endian.EndianEngine

	lowPrecisionFloats  bool
	typedArrayAlignment bool
	functionEvaluator   anycodec.FunctionEvaluator
	maxAnySize          uint64

	contextParent   map[string]any
	contextLocation []string

	checksum       bool
	scratchSize    int
	maxArrayLength int
	logger         *slog.Logger
}

func defaultConfig() *config {
	return &config{
		engine:         endian.Native(),
		maxAnySize:     anycodec.MaxSize,
		maxArrayLength: DefaultMaxArrayLength,
		logger:         slog.New(slog.DiscardHandler),
	}
}

// Option configures a Template.
type Option = options.Option[*config]

// WithLittleEndian stores multi-byte values least significant byte first.
func WithLittleEndian() Option {
	return options.NoError(func(c *config) {
		c.engine = endian.Little()
	})
}

// WithBigEndian stores multi-byte values most significant byte first.
func WithBigEndian() Option {
	return options.NoError(func(c *config) {
		c.engine = endian.Big()
	})
}

// WithNativeEndian uses the byte order of the host. This is the default.
func WithNativeEndian() Option {
	return options.NoError(func(c *config) {
		c.engine = endian.Native()
	})
}

// WithLowPrecisionFloats makes Any nodes store float64 values as 32-bit floats.
func WithLowPrecisionFloats() Option {
	return options.NoError(func(c *config) {
		c.lowPrecisionFloats = true
	})
}

// WithTypedArrayAlignment makes Any nodes pad typed slices so their elements
// are aligned to their width within the output.
func WithTypedArrayAlignment() Option {
	return options.NoError(func(c *config) {
		c.typedArrayAlignment = true
	})
}

// WithFunctionEvaluator lets Any nodes turn decoded function source into a value.
//
// WARNING: only use this for input from a trusted producer, see
// anycodec.FunctionEvaluator.
func WithFunctionEvaluator(fn anycodec.FunctionEvaluator) Option {
	return options.NoError(func(c *config) {
		c.functionEvaluator = fn
	})
}

// WithMaxAnySize limits lengths, counts and offsets read by Any nodes.
func WithMaxAnySize(n uint64) Option {
	return options.New(func(c *config) error {
		if n == 0 || n > anycodec.MaxSize {
			return fmt.Errorf("%w: max any size must be in [1, %d], got %d", errs.ErrInvalidTemplate, uint64(anycodec.MaxSize), n)
		}
		c.maxAnySize = n

		return nil
	})
}

// WithContext evaluates the template as the value found at location inside
// parent, so that paths such as "../type" can reach fields of the enclosing
// document.
//
// Parameters:
//   - parent: the enclosing document, already decoded or about to be encoded
//   - location: slash separated key path of this template's root inside parent
func WithContext(parent map[string]any, location string) Option {
	return options.New(func(c *config) error {
		if parent == nil {
			return fmt.Errorf("%w: context parent must not be nil", errs.ErrInvalidTemplate)
		}
		location = strings.TrimPrefix(location, "/")
		if location == "" {
			return fmt.Errorf("%w: context location must not be empty", errs.ErrInvalidTemplate)
		}
		if err := checkPath(location); err != nil {
			return err
		}
		c.contextParent = parent
		c.contextLocation = strings.Split(location, "/")

		return nil
	})
}

// WithChecksum appends an xxHash64 trailer on encode and verifies it on decode.
func WithChecksum() Option {
	return options.NoError(func(c *config) {
		c.checksum = true
	})
}

// WithScratchSize sets the size of the pooled buffers that collect primitive writes.
func WithScratchSize(n int) Option {
	return options.New(func(c *config) error {
		if n < minScratchSize || n > maxScratchSize {
			return fmt.Errorf("%w: scratch size must be in [%d, %d], got %d", errs.ErrInvalidTemplate, minScratchSize, maxScratchSize, n)
		}
		c.scratchSize = n

		return nil
	})
}

// WithMaxArrayLength bounds the element count an Array accepts when decoding.
// Counts above the limit fail with ErrFormatInvalid before any element is read.
func WithMaxArrayLength(n int) Option {
	return options.New(func(c *config) error {
		if n < 1 {
			return fmt.Errorf("%w: max array length must be positive, got %d", errs.ErrInvalidTemplate, n)
		}
		c.maxArrayLength = n

		return nil
	})
}

// WithLogger reports failed calls and aborted streams at debug level.
func WithLogger(logger *slog.Logger) Option {
	return options.New(func(c *config) error {
		if logger == nil {
			return fmt.Errorf("%w: logger must not be nil", errs.ErrInvalidTemplate)
		}
		c.logger = logger

		return nil
	})
}
