// Package model provides domain model for streadmulti
package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateColumnName is returned when a source declares the same column twice
var ErrDuplicateColumnName = errors.New("duplicate column name")

// ErrSchemaMismatch is the sentinel wrapped by every SchemaMismatchError
var ErrSchemaMismatch = errors.New("schema mismatch")

// MismatchReason classifies a schema divergence
type MismatchReason int

const (
	// MismatchName means a column name differs at the same position
	MismatchName MismatchReason = iota
	// MismatchType means the names agree but the types cannot be coerced
	MismatchType
	// MismatchMissingColumn means the source has fewer columns than expected
	MismatchMissingColumn
	// MismatchExtraColumn means the source has a column the canonical schema lacks
	MismatchExtraColumn
)

// SchemaMismatchError reports the first divergence of a source schema from the
// canonical one: the offending file (and layer), the column index, and the
// expected and actual column names.
type SchemaMismatchError struct {
	Path         string
	Layer        string
	Index        int
	Expected     string
	Actual       string
	ExpectedType ColumnType
	ActualType   ColumnType
	Reason       MismatchReason
}

// Error implements error
func (e *SchemaMismatchError) Error() string {
	source := e.Path
	if e.Layer != "" {
		source += " (layer " + e.Layer + ")"
	}

	switch e.Reason {
	case MismatchType:
		return fmt.Sprintf("schema mismatch in %s: column %d %q expected type %s, found %s",
			source, e.Index, e.Expected, e.ExpectedType, e.ActualType)
	case MismatchMissingColumn:
		return fmt.Sprintf("schema mismatch in %s: column %d expected %q, found no column",
			source, e.Index, e.Expected)
	case MismatchExtraColumn:
		return fmt.Sprintf("schema mismatch in %s: column %d expected no column, found %q",
			source, e.Index, e.Actual)
	default:
		return fmt.Sprintf("schema mismatch in %s: column %d expected %q, found %q",
			source, e.Index, e.Expected, e.Actual)
	}
}

// Unwrap returns ErrSchemaMismatch so callers can use errors.Is
func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}
