package streadmulti

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/streadmulti/codec"
	"github.com/nao1215/streadmulti/domain/model"
)

// Standard errors. Codec errors are re-exported so callers only need this package.
var (
	// ErrUnsupportedFormat indicates a matched file whose extension has no codec
	ErrUnsupportedFormat = errors.New("streadmulti: unsupported file format")

	// ErrInvalidPattern indicates a glob pattern that cannot be parsed
	ErrInvalidPattern = errors.New("streadmulti: invalid glob pattern")

	// ErrNoSources indicates that the pattern produced no readable source
	ErrNoSources = errors.New("streadmulti: no sources found")

	// ErrNoLayersFound indicates that the requested layer exists in no matched GeoPackage
	ErrNoLayersFound = errors.New("streadmulti: no layers found")

	// ErrFileNotFound indicates a matched file that disappeared or cannot be read
	ErrFileNotFound = errors.New("streadmulti: file not found")

	// ErrReaderClosed indicates use of a Reader after Close
	ErrReaderClosed = errors.New("streadmulti: reader is closed")

	// ErrInvalidOption indicates an option value that cannot be used
	ErrInvalidOption = errors.New("streadmulti: invalid option")

	// ErrSchemaMismatch indicates a source whose schema diverges from the canonical one
	ErrSchemaMismatch = model.ErrSchemaMismatch

	// ErrInvalidData indicates malformed file content
	ErrInvalidData = codec.ErrInvalidData

	// ErrCompanionFile indicates a missing or inconsistent Shapefile companion file
	ErrCompanionFile = codec.ErrCompanionFile

	// ErrUnknownEncoding indicates an encoding label that cannot be resolved
	ErrUnknownEncoding = codec.ErrUnknownEncoding
)

// SchemaMismatchError reports the offending file, column index, expected name and actual name
type SchemaMismatchError = model.SchemaMismatchError

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	Layer     string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithLayer adds layer context to the error
func (ec *ErrorContext) WithLayer(layer string) *ErrorContext {
	ec.Layer = layer
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	parts := []string{fmt.Sprintf("streadmulti: %s failed", ec.Operation)}

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}
	if ec.Layer != "" {
		parts = append(parts, "layer: "+ec.Layer)
	}
	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	msg := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", msg, baseErr)
	}
	return errors.New(msg)
}
