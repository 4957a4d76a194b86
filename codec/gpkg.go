package codec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/streadmulti/domain/model"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // GeoPackage files are SQLite databases
)

// GeoPackageCodec reads feature layers from GeoPackage containers. Each layer
// registered in gpkg_contents is one source.
type GeoPackageCodec struct{}

// Format implements Codec
func (c *GeoPackageCodec) Format() model.FormatKind {
	return model.FormatGeoPackage
}

// Sources implements Codec. Layers are returned sorted by name.
func (c *GeoPackageCodec) Sources(ctx context.Context, path string) ([]model.SourceDescriptor, error) {
	layers, err := ListLayers(ctx, path)
	if err != nil {
		return nil, err
	}
	descs := make([]model.SourceDescriptor, 0, len(layers))
	for _, layer := range layers {
		descs = append(descs, model.NewSourceDescriptor(path, layer, model.FormatGeoPackage))
	}
	return descs, nil
}

// ListLayers returns the feature layer names of a GeoPackage in name order
func ListLayers(ctx context.Context, path string) ([]string, error) {
	db, err := openGeoPackage(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close() // Ignore close error on read-only database
	}()
	return listLayers(ctx, db, path)
}

func listLayers(ctx context.Context, db *sql.DB, path string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, path, err)
	}
	defer rows.Close()

	var layers []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, path, err)
		}
		layers = append(layers, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, path, err)
	}
	return layers, nil
}

// openGeoPackage opens an existing GeoPackage read-only on a single connection
func openGeoPackage(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close() // Ignore close error during error handling
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, path, err)
	}
	return db, nil
}

// Open implements Codec
func (c *GeoPackageCodec) Open(ctx context.Context, desc model.SourceDescriptor, cfg Config) (Source, error) {
	db, err := openGeoPackage(ctx, desc.Path)
	if err != nil {
		return nil, err
	}

	src, err := openLayer(ctx, db, desc)
	if err != nil {
		_ = db.Close() // Ignore close error during error handling
		return nil, err
	}

	cfg.logger().Debug("opened GeoPackage layer",
		zap.String("path", desc.Path),
		zap.String("layer", desc.Layer),
		zap.Stringer("schema", src.schema))
	return src, nil
}

func openLayer(ctx context.Context, db *sql.DB, desc model.SourceDescriptor) (*gpkgSource, error) {
	var geomColumn string
	err := db.QueryRowContext(ctx,
		"SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?", desc.Layer).Scan(&geomColumn)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalog, desc, err)
	}

	schema, declared, err := layerSchema(ctx, db, desc, geomColumn)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(schema))
	for i, col := range schema {
		names[i] = quoteIdent(col.Name)
	}
	query := "SELECT " + strings.Join(names, ", ") + " FROM " + quoteIdent(desc.Layer)

	// The result set outlives the call that opened it.
	rows, err := db.QueryContext(context.WithoutCancel(ctx), query) //nolint:gosec // identifiers are quoted
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, desc, err)
	}

	return &gpkgSource{
		desc:     desc,
		db:       db,
		rows:     rows,
		schema:   schema,
		declared: declared,
		scan:     make([]any, len(schema)),
	}, nil
}

// layerSchema reads the declared columns of a layer table in declaration order
func layerSchema(ctx context.Context, db *sql.DB, desc model.SourceDescriptor, geomColumn string) (model.Schema, []string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", desc.Layer)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCatalog, desc, err)
	}
	defer rows.Close()

	var (
		schema   model.Schema
		declared []string
	)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrCatalog, desc, err)
		}

		colType, err := mapDeclaredType(typ)
		if strings.EqualFold(name, geomColumn) {
			colType, err = model.ColumnTypeGeometry, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s column %q: %w", desc, name, err)
		}
		schema = append(schema, model.Column{Name: name, Type: colType})
		declared = append(declared, declaredBase(typ))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCatalog, desc, err)
	}
	if len(schema) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: layer table has no columns", ErrCatalog, desc)
	}
	return schema, declared, nil
}

// declaredBase upper-cases a declared type and drops any length suffix
func declaredBase(declared string) string {
	base := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	return base
}

// mapDeclaredType maps a GeoPackage column type to a column type
func mapDeclaredType(declared string) (model.ColumnType, error) {
	switch declaredBase(declared) {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT":
		return model.ColumnTypeInteger, nil
	case "BOOLEAN":
		return model.ColumnTypeBoolean, nil
	case "REAL", "DOUBLE", "FLOAT":
		return model.ColumnTypeDouble, nil
	case "TEXT", "DATE", "DATETIME":
		return model.ColumnTypeVarchar, nil
	case "BLOB":
		return model.ColumnTypeBlob, nil
	case "GEOMETRY", "POINT", "LINESTRING", "POLYGON", "MULTIPOINT", "MULTILINESTRING",
		"MULTIPOLYGON", "GEOMETRYCOLLECTION", "CIRCULARSTRING", "COMPOUNDCURVE",
		"CURVEPOLYGON", "MULTICURVE", "MULTISURFACE", "CURVE", "SURFACE":
		return model.ColumnTypeGeometry, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedColumnType, declared)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type gpkgSource struct {
	desc     model.SourceDescriptor
	db       *sql.DB
	rows     *sql.Rows
	schema   model.Schema
	declared []string
	scan     []any
	position int64
}

func (s *gpkgSource) Descriptor() model.SourceDescriptor { return s.desc }

func (s *gpkgSource) Schema() model.Schema { return s.schema }

func (s *gpkgSource) Position() int64 { return s.position }

// ReadBatch implements Source
func (s *gpkgSource) ReadBatch(ctx context.Context, max int) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.rows == nil {
		return nil, io.EOF
	}

	ptrs := make([]any, len(s.scan))
	for i := range s.scan {
		ptrs[i] = &s.scan[i]
	}

	rows := make([]model.Row, 0, max)
	for len(rows) < max && s.rows.Next() {
		if err := s.rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %s: row %d: %v", ErrInvalidData, s.desc, s.position, err)
		}
		row := make(model.Row, len(s.schema))
		for i, col := range s.schema {
			v, err := convertGPKGValue(s.scan[i], col.Type, s.declared[i])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: row %d column %q: %v", ErrInvalidData, s.desc, s.position, col.Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
		s.position++
	}
	if err := s.rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidData, s.desc, err)
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

// convertGPKGValue converts a scanned SQLite value to the column's Go type
func convertGPKGValue(v any, t model.ColumnType, declared string) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case model.ColumnTypeGeometry:
		switch val := v.(type) {
		case []byte:
			return StripEnvelope(val)
		case string:
			return StripEnvelope([]byte(val))
		}
	case model.ColumnTypeBlob:
		switch val := v.(type) {
		case []byte:
			out := make([]byte, len(val))
			copy(out, val)
			return out, nil
		case string:
			return []byte(val), nil
		}
	case model.ColumnTypeInteger:
		switch val := v.(type) {
		case int64:
			return val, nil
		case float64:
			if val == math.Trunc(val) {
				return int64(val), nil
			}
		case bool:
			if val {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case model.ColumnTypeDouble:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int64:
			return float64(val), nil
		}
	case model.ColumnTypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case int64:
			return val != 0, nil
		}
	case model.ColumnTypeVarchar:
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		case time.Time:
			if declared == "DATE" {
				return val.Format(time.DateOnly), nil
			}
			return val.Format(time.RFC3339Nano), nil
		case int64:
			return strconv.FormatInt(val, 10), nil
		case float64:
			return strconv.FormatFloat(val, 'g', -1, 64), nil
		}
	}
	return nil, fmt.Errorf("value of type %T does not fit column type %s", v, t)
}

// Close implements Source
func (s *gpkgSource) Close() error {
	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
		s.rows = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
