// Package codec translates on-disk geospatial formats into logical sources
// that report a schema and produce rows in bounded batches.
//
// Every codec follows the same contract:
//   - Sources enumerates the logical sources of one file (one for GeoJSON and
//     Shapefile, one per feature layer for GeoPackage).
//   - Open opens one source; the returned Source reports its schema and
//     produces rows from a position that only moves forward.
//   - Geometry values are already WKB when they leave the codec.
package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/streadmulti/domain/model"
	"go.uber.org/zap"
)

// DefaultGeometryColumn is the geometry column name used by single-layer formats
const DefaultGeometryColumn = "geometry"

var (
	// ErrInvalidData indicates malformed file content
	ErrInvalidData = errors.New("codec: invalid data format")

	// ErrUnsupportedColumnType indicates a declared column type with no mapping
	ErrUnsupportedColumnType = errors.New("codec: unsupported column type")

	// ErrCompanionFile indicates a missing or inconsistent Shapefile companion file
	ErrCompanionFile = errors.New("codec: companion file error")

	// ErrCatalog indicates an unreadable GeoPackage catalog
	ErrCatalog = errors.New("codec: unreadable container catalog")

	// ErrUnknownEncoding indicates an encoding label that cannot be resolved
	ErrUnknownEncoding = errors.New("codec: unknown encoding label")
)

// Config carries per-query settings every codec may consult
type Config struct {
	// Encoding is the explicit attribute encoding label for Shapefile sources; empty means unset
	Encoding string
	// Logger receives debug output; nil means no logging
	Logger *zap.Logger
}

// logger returns a usable logger
func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Codec enumerates and opens the logical sources of one file format
type Codec interface {
	// Format returns the format handled by the codec
	Format() model.FormatKind
	// Sources lists the logical sources stored in path
	Sources(ctx context.Context, path string) ([]model.SourceDescriptor, error)
	// Open opens one logical source for reading
	Open(ctx context.Context, desc model.SourceDescriptor, cfg Config) (Source, error)
}

// Source is one open logical source
type Source interface {
	// Descriptor returns the descriptor the source was opened from
	Descriptor() model.SourceDescriptor
	// Schema returns the source schema in column order
	Schema() model.Schema
	// ReadBatch returns up to max rows. When the source is exhausted it
	// returns zero rows and io.EOF.
	ReadBatch(ctx context.Context, max int) ([]model.Row, error)
	// Position returns the number of rows produced so far
	Position() int64
	// Close releases the file handles held by the source
	Close() error
}

// ForFormat returns the codec for a detected format
func ForFormat(format model.FormatKind) (Codec, error) {
	switch format {
	case model.FormatGeoJSON:
		return &GeoJSONCodec{}, nil
	case model.FormatGeoPackage:
		return &GeoPackageCodec{}, nil
	case model.FormatShapefile:
		return &ShapefileCodec{}, nil
	default:
		return nil, fmt.Errorf("no codec for format %s", format)
	}
}

// singleSource returns the descriptor list of a single-layer file
func singleSource(path string, format model.FormatKind) []model.SourceDescriptor {
	return []model.SourceDescriptor{model.NewSourceDescriptor(path, "", format)}
}
