package streadmulti

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows per batch when no size is configured
const DefaultBatchSize = 2048

// Options configure a query. Options is a value type; every With method
// returns a modified copy.
//
// Example:
//
//	opts := streadmulti.NewOptions().
//		WithLayer("roads").
//		WithEncoding("CP932")
//	r, err := streadmulti.Open(ctx, "data/**/*.gpkg", opts)
type Options struct {
	// Layer restricts GeoPackage sources to one layer name. Ignored for other formats.
	Layer string
	// Encoding is the attribute encoding for Shapefile sources, overriding the
	// DBF header and the .cpg sidecar. Uses the .cpg vocabulary ("CP932", "UTF-8", ...).
	Encoding string
	// BatchSize is the maximum number of rows per batch
	BatchSize int
	// EagerValidation checks every source schema before the first batch
	EagerValidation bool
	// Logger receives warnings and debug output
	Logger *zap.Logger
}

// NewOptions creates default options
func NewOptions() Options {
	return Options{
		BatchSize: DefaultBatchSize,
	}
}

// WithLayer restricts GeoPackage sources to the named layer
func (o Options) WithLayer(layer string) Options {
	o.Layer = layer
	return o
}

// WithEncoding sets the explicit Shapefile attribute encoding
func (o Options) WithEncoding(encoding string) Options {
	o.Encoding = encoding
	return o
}

// WithBatchSize sets the maximum number of rows per batch
func (o Options) WithBatchSize(size int) Options {
	o.BatchSize = size
	return o
}

// WithEagerValidation makes Open check every source schema up front, so a
// mismatch fails before any row is produced
func (o Options) WithEagerValidation(eager bool) Options {
	o.EagerValidation = eager
	return o
}

// WithLogger sets the logger
func (o Options) WithLogger(logger *zap.Logger) Options {
	o.Logger = logger
	return o
}

func (o Options) validate() error {
	if o.BatchSize < 0 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidOption, o.BatchSize)
	}
	return nil
}

func (o Options) batchSize() int {
	if o.BatchSize == 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
