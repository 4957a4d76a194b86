// Package model provides domain model for streadmulti
package model

import (
	"slices"
	"strings"
)

// ColumnType represents the semantic type of a column in the unified stream
type ColumnType int

const (
	// ColumnTypeVarchar represents text values (Go string)
	ColumnTypeVarchar ColumnType = iota
	// ColumnTypeBoolean represents boolean values (Go bool)
	ColumnTypeBoolean
	// ColumnTypeInteger represents 64-bit integers (Go int64)
	ColumnTypeInteger
	// ColumnTypeDouble represents 64-bit floats (Go float64)
	ColumnTypeDouble
	// ColumnTypeBlob represents opaque binary values (Go []byte)
	ColumnTypeBlob
	// ColumnTypeGeometry represents WKB geometry, physically raw binary (Go []byte)
	ColumnTypeGeometry
)

const (
	// sqlTypeText is the SQL TEXT type string
	sqlTypeText = "TEXT"
	// sqlTypeInteger is the SQL INTEGER type string
	sqlTypeInteger = "INTEGER"
	// sqlTypeReal is the SQL REAL type string
	sqlTypeReal = "REAL"
	// sqlTypeBlob is the SQL BLOB type string
	sqlTypeBlob = "BLOB"
)

// String returns the name of the column type
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeVarchar:
		return "VARCHAR"
	case ColumnTypeBoolean:
		return "BOOLEAN"
	case ColumnTypeInteger:
		return "INTEGER"
	case ColumnTypeDouble:
		return "DOUBLE"
	case ColumnTypeBlob:
		return "BLOB"
	case ColumnTypeGeometry:
		return "GEOMETRY"
	default:
		return "UNKNOWN"
	}
}

// SQLType returns the SQLite storage type used when the column is materialized
func (ct ColumnType) SQLType() string {
	switch ct {
	case ColumnTypeBoolean, ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeDouble:
		return sqlTypeReal
	case ColumnTypeBlob, ColumnTypeGeometry:
		return sqlTypeBlob
	default:
		return sqlTypeText
	}
}

// IsBinary reports whether values of this type are carried as []byte
func (ct ColumnType) IsBinary() bool {
	return ct == ColumnTypeBlob || ct == ColumnTypeGeometry
}

// CanWidenTo reports whether a value of type ct can be safely coerced into target.
// Equal types always qualify; the only widening is Integer to Double.
func (ct ColumnType) CanWidenTo(target ColumnType) bool {
	if ct == target {
		return true
	}
	return ct == ColumnTypeInteger && target == ColumnTypeDouble
}

// Column is one named, typed column
type Column struct {
	Name string
	Type ColumnType
	// Untyped marks a column whose source held no non-null value, so Type is
	// only a placeholder. Such a column reconciles with any type of the same name.
	Untyped bool
}

// Schema is an ordered sequence of columns
type Schema []Column

// NewSchema creates a new Schema from columns. The schema owns a copy of columns.
func NewSchema(columns ...Column) Schema {
	return slices.Clone(Schema(columns))
}

// Names returns the column names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the schema contains a column with the given name
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Equal compare Schema.
func (s Schema) Equal(s2 Schema) bool {
	if len(s) != len(s2) {
		return false
	}
	for i, c := range s {
		if c != s2[i] {
			return false
		}
	}
	return true
}

// String renders the schema as "name TYPE, ..." for diagnostics
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + " " + c.Type.String()
	}
	return strings.Join(parts, ", ")
}

// Row is one row of the unified stream. Each value is nil, bool, int64,
// float64, string or []byte depending on the column type.
type Row []any

// RowBatch is an ordered, fully assembled group of rows conforming to Schema.
type RowBatch struct {
	// Schema is the output schema: canonical columns followed by provenance columns
	Schema Schema
	// Rows holds the batch rows
	Rows []Row
}

// Len returns the number of rows in the batch
func (b *RowBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Column returns the values of the i-th column across the batch
func (b *RowBatch) Column(i int) []any {
	values := make([]any, len(b.Rows))
	for r, row := range b.Rows {
		values[r] = row[i]
	}
	return values
}
