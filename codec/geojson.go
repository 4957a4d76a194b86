package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nao1215/streadmulti/domain/model"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// GeoJSONCodec reads GeoJSON FeatureCollection files, optionally compressed.
// The schema is the geometry column followed by the union of feature property
// keys in first-seen order.
type GeoJSONCodec struct{}

// Format implements Codec
func (c *GeoJSONCodec) Format() model.FormatKind {
	return model.FormatGeoJSON
}

// Sources implements Codec. A GeoJSON file is always one source.
func (c *GeoJSONCodec) Sources(_ context.Context, path string) ([]model.SourceDescriptor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return singleSource(path, model.FormatGeoJSON), nil
}

// Open implements Codec. It scans the whole file once to infer the schema and
// then reopens it for row streaming.
func (c *GeoJSONCodec) Open(ctx context.Context, desc model.SourceDescriptor, cfg Config) (Source, error) {
	file := model.NewFile(desc.Path)

	schema, features, err := scanGeoJSONSchema(ctx, file)
	if err != nil {
		return nil, err
	}

	stream, err := openFeatureStream(file)
	if err != nil {
		return nil, err
	}

	cfg.logger().Debug("opened GeoJSON source",
		zap.String("path", desc.Path),
		zap.Int("features", features),
		zap.Stringer("schema", schema))

	index := make(map[string]int, len(schema))
	for i, col := range schema {
		index[col.Name] = i
	}

	return &geoJSONSource{
		desc:   desc,
		schema: schema,
		index:  index,
		stream: stream,
	}, nil
}

// rawFeature is one element of the "features" array
type rawFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// property is one key/value pair of a feature, in document order
type property struct {
	key   string
	value any
}

// featureStream walks a FeatureCollection one feature at a time
type featureStream struct {
	path     string
	dec      *json.Decoder
	closer   func() error
	typeSeen bool
	inArray  bool
	done     bool
}

// openFeatureStream opens file and positions the decoder at the first feature
func openFeatureStream(file *model.File) (*featureStream, error) {
	reader, closer, err := file.OpenReader()
	if err != nil {
		return nil, err
	}

	s := &featureStream{
		path:   file.Path(),
		dec:    json.NewDecoder(reader),
		closer: closer,
	}
	if err := s.seekFeatures(); err != nil {
		_ = closer() // Ignore close error during error handling
		return nil, err
	}
	return s, nil
}

func (s *featureStream) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidData, s.path, fmt.Sprintf(format, args...))
}

// seekFeatures consumes top-level members until the "features" array opens
func (s *featureStream) seekFeatures() error {
	tok, err := s.dec.Token()
	if err != nil {
		return s.invalid("%v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return s.invalid("top-level value is not an object")
	}

	for s.dec.More() {
		key, err := s.memberKey()
		if err != nil {
			return err
		}
		if key == "features" {
			tok, err := s.dec.Token()
			if err != nil {
				return s.invalid("%v", err)
			}
			if delim, ok := tok.(json.Delim); ok && delim == '[' {
				s.inArray = true
				return nil
			}
			if tok == nil {
				continue
			}
			return s.invalid("\"features\" is not an array")
		}
		if err := s.member(key); err != nil {
			return err
		}
	}
	return s.finish()
}

func (s *featureStream) memberKey() (string, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return "", s.invalid("%v", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", s.invalid("unexpected token %v", tok)
	}
	return key, nil
}

// member consumes the value of a top-level member other than "features"
func (s *featureStream) member(key string) error {
	if key == "type" {
		var typ string
		if err := s.dec.Decode(&typ); err != nil {
			return s.invalid("%v", err)
		}
		if typ != "FeatureCollection" {
			return s.invalid("expected a FeatureCollection, found %q", typ)
		}
		s.typeSeen = true
		return nil
	}
	var skip json.RawMessage
	if err := s.dec.Decode(&skip); err != nil {
		return s.invalid("%v", err)
	}
	return nil
}

// finish consumes the members after the features array and the closing brace
func (s *featureStream) finish() error {
	for s.dec.More() {
		key, err := s.memberKey()
		if err != nil {
			return err
		}
		if err := s.member(key); err != nil {
			return err
		}
	}
	if _, err := s.dec.Token(); err != nil {
		return s.invalid("%v", err)
	}
	if !s.typeSeen {
		return s.invalid("missing \"type\" member")
	}
	s.done = true
	return nil
}

// next returns the next feature, or io.EOF once the collection is exhausted
func (s *featureStream) next() (*rawFeature, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.inArray && !s.dec.More() {
		if _, err := s.dec.Token(); err != nil {
			return nil, s.invalid("%v", err)
		}
		s.inArray = false
		if err := s.finish(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	if !s.inArray {
		s.done = true
		return nil, io.EOF
	}

	var f rawFeature
	if err := s.dec.Decode(&f); err != nil {
		return nil, s.invalid("%v", err)
	}
	if f.Type != "Feature" {
		return nil, s.invalid("expected a Feature, found %q", f.Type)
	}
	return &f, nil
}

func (s *featureStream) close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer()
	s.closer = nil
	return err
}

// scanGeoJSONSchema reads every feature once and returns the inferred schema
// and the feature count
func scanGeoJSONSchema(ctx context.Context, file *model.File) (model.Schema, int, error) {
	stream, err := openFeatureStream(file)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = stream.close() // Ignore close error on read-only stream
	}()

	var (
		keys  []string
		types = make(map[string]model.ColumnType)
		typed = make(map[string]bool)
		count int
	)

	for {
		if count%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		f, err := stream.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		count++

		props, err := decodeProperties(f.Properties)
		if err != nil {
			return nil, 0, stream.invalid("feature %d: %v", count-1, err)
		}
		for _, p := range props {
			if _, ok := types[p.key]; !ok {
				if p.key == DefaultGeometryColumn {
					return nil, 0, stream.invalid("property %q collides with the geometry column", p.key)
				}
				keys = append(keys, p.key)
				types[p.key] = model.ColumnTypeVarchar
			}
			vt, ok := propertyType(p.value)
			if !ok {
				continue
			}
			if !typed[p.key] {
				types[p.key] = vt
				typed[p.key] = true
				continue
			}
			types[p.key] = widenPropertyType(types[p.key], vt)
		}
	}

	schema := make(model.Schema, 0, len(keys)+1)
	schema = append(schema, model.Column{Name: DefaultGeometryColumn, Type: model.ColumnTypeGeometry})
	for _, k := range keys {
		schema = append(schema, model.Column{Name: k, Type: types[k], Untyped: !typed[k]})
	}
	return schema, count, nil
}

// decodeProperties parses a properties object keeping key order
func decodeProperties(raw json.RawMessage) ([]property, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("properties is not an object")
	}

	var props []property
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		props = append(props, property{key: key, value: value})
	}
	return props, nil
}

// propertyType returns the column type a single JSON value implies; false for null
func propertyType(v any) (model.ColumnType, bool) {
	switch v.(type) {
	case nil:
		return 0, false
	case bool:
		return model.ColumnTypeBoolean, true
	case json.Number:
		return model.ColumnTypeDouble, true
	default:
		return model.ColumnTypeVarchar, true
	}
}

// widenPropertyType merges two observed types of the same property
func widenPropertyType(a, b model.ColumnType) model.ColumnType {
	switch {
	case a == b:
		return a
	case a.CanWidenTo(b):
		return b
	case b.CanWidenTo(a):
		return a
	default:
		return model.ColumnTypeVarchar
	}
}

// convertProperty converts a decoded JSON value to the column's Go type
func convertProperty(v any, t model.ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case model.ColumnTypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case model.ColumnTypeDouble:
		if n, ok := v.(json.Number); ok {
			return n.Float64()
		}
	case model.ColumnTypeVarchar:
		switch val := v.(type) {
		case string:
			return val, nil
		case bool:
			return strconv.FormatBool(val), nil
		case json.Number:
			return val.String(), nil
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}
	}
	return nil, fmt.Errorf("value %v does not fit column type %s", v, t)
}

// geometryToWKB converts a raw GeoJSON geometry to WKB; null geometries yield nil
func geometryToWKB(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	g, err := geojson.UnmarshalGeometry(trimmed)
	if err != nil {
		return nil, err
	}
	geom := g.Geometry()
	if geom == nil {
		return nil, nil
	}
	return wkb.Marshal(geom)
}

type geoJSONSource struct {
	desc     model.SourceDescriptor
	schema   model.Schema
	index    map[string]int
	stream   *featureStream
	position int64
}

func (s *geoJSONSource) Descriptor() model.SourceDescriptor { return s.desc }

func (s *geoJSONSource) Schema() model.Schema { return s.schema }

func (s *geoJSONSource) Position() int64 { return s.position }

// ReadBatch implements Source
func (s *geoJSONSource) ReadBatch(ctx context.Context, max int) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]model.Row, 0, max)
	for len(rows) < max {
		f, err := s.stream.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row, err := s.convert(f)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		s.position++
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

func (s *geoJSONSource) convert(f *rawFeature) (model.Row, error) {
	row := make(model.Row, len(s.schema))

	geom, err := geometryToWKB(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: feature %d geometry: %v", ErrInvalidData, s.desc.Path, s.position, err)
	}
	if geom != nil {
		row[0] = geom
	}

	props, err := decodeProperties(f.Properties)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: feature %d: %v", ErrInvalidData, s.desc.Path, s.position, err)
	}
	for _, p := range props {
		idx, ok := s.index[p.key]
		if !ok {
			return nil, &model.SchemaMismatchError{
				Path:   s.desc.Path,
				Layer:  s.desc.Layer,
				Index:  len(s.schema),
				Actual: p.key,
				Reason: model.MismatchExtraColumn,
			}
		}
		v, err := convertProperty(p.value, s.schema[idx].Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: feature %d property %q: %v", ErrInvalidData, s.desc.Path, s.position, p.key, err)
		}
		row[idx] = v
	}
	return row, nil
}

// Close implements Source
func (s *geoJSONSource) Close() error {
	return s.stream.close()
}
