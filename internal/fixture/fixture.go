// Package fixture writes small GeoJSON, GeoPackage and Shapefile inputs for tests.
package fixture

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // GeoPackage fixtures
)

// WriteFile writes content to dir/name and returns the path
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// PointsGeoJSON returns a FeatureCollection of n point features with properties
// val1 (integer, starting at start) and val2 (string)
func PointsGeoJSON(n, start int) string {
	var b strings.Builder
	b.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := range n {
		if i > 0 {
			b.WriteByte(',')
		}
		v := start + i
		fmt.Fprintf(&b,
			`{"type":"Feature","geometry":{"type":"Point","coordinates":[%d,%d]},"properties":{"val1":%d,"val2":"v%d"}}`,
			v, v+1, v, v)
	}
	b.WriteString(`]}`)
	return b.String()
}

// GPKGColumn is one attribute column of a GeoPackage layer
type GPKGColumn struct {
	Name string
	Decl string
}

// GPKGRow is one feature row: geometry plus attribute values in column order
type GPKGRow struct {
	Geometry orb.Geometry
	Values   []any
}

// Layer describes a GeoPackage feature table. The table is created as
// (fid INTEGER PRIMARY KEY, <geometry column>, <columns...>).
type Layer struct {
	Name           string
	GeometryColumn string
	GeometryType   string
	Columns        []GPKGColumn
	Rows           []GPKGRow
}

// GeoPackage creates a minimal GeoPackage at path holding the given layers
func GeoPackage(tb testing.TB, path string, layers ...Layer) string {
	tb.Helper()

	db, err := sql.Open("sqlite", path)
	require.NoError(tb, err)
	defer func() {
		require.NoError(tb, db.Close())
	}()

	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (srs_name TEXT NOT NULL, srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL, organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL, description TEXT)`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES ('WGS 84', 4326, 'EPSG', 4326, 'undefined', NULL)`,
		`CREATE TABLE gpkg_contents (table_name TEXT NOT NULL PRIMARY KEY, data_type TEXT NOT NULL,
			identifier TEXT UNIQUE, description TEXT DEFAULT '', last_change DATETIME,
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(tb, err)
	}

	for _, layer := range layers {
		geomCol := layer.GeometryColumn
		if geomCol == "" {
			geomCol = "geom"
		}
		geomType := layer.GeometryType
		if geomType == "" {
			geomType = "POINT"
		}

		defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", quote(geomCol) + " " + geomType}
		names := []string{quote(geomCol)}
		for _, c := range layer.Columns {
			defs = append(defs, quote(c.Name)+" "+c.Decl)
			names = append(names, quote(c.Name))
		}

		_, err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quote(layer.Name), strings.Join(defs, ", ")))
		require.NoError(tb, err)
		_, err = db.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, 4326)`,
			layer.Name, layer.Name)
		require.NoError(tb, err)
		_, err = db.Exec(`INSERT INTO gpkg_geometry_columns VALUES (?, ?, ?, 4326, 0, 0)`,
			layer.Name, geomCol, geomType)
		require.NoError(tb, err)

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(layer.Name), strings.Join(names, ", "), placeholders)
		for _, row := range layer.Rows {
			args := make([]any, 0, len(row.Values)+1)
			if row.Geometry == nil {
				args = append(args, nil)
			} else {
				args = append(args, GPKGBlob(tb, row.Geometry))
			}
			args = append(args, row.Values...)
			_, err := db.Exec(insert, args...)
			require.NoError(tb, err)
		}
	}
	return path
}

// GPKGBlob encodes g as a little-endian GeoPackage geometry blob without envelope
func GPKGBlob(tb testing.TB, g orb.Geometry) []byte {
	tb.Helper()

	payload, err := wkb.Marshal(g)
	require.NoError(tb, err)

	header := []byte{'G', 'P', 0, 0x01, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(header[4:], 4326)
	return append(header, payload...)
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DBFField is one DBF field descriptor
type DBFField struct {
	Name     string
	Type     byte
	Size     int
	Decimals int
}

// Shapefile describes a .shp/.dbf pair. Records hold raw cell bytes; character
// cells are padded right and numeric cells left. Shapes may be orb.Point,
// orb.LineString, orb.Polygon or nil (null shape).
type Shapefile struct {
	Fields  []DBFField
	Records [][]string
	Shapes  []orb.Geometry
	LDID    byte
	CPG     string
	NoDBF   bool
}

// WriteShapefile writes path (.shp), its .shx and, unless NoDBF, its .dbf and optional .cpg
func WriteShapefile(tb testing.TB, path string, s Shapefile) string {
	tb.Helper()

	base := strings.TrimSuffix(path, filepath.Ext(path))
	shpData, shxData := encodeShapes(s.Shapes)
	require.NoError(tb, os.WriteFile(path, shpData, 0o600))
	require.NoError(tb, os.WriteFile(base+".shx", shxData, 0o600))

	if !s.NoDBF {
		require.NoError(tb, os.WriteFile(base+".dbf", encodeDBF(s), 0o600))
	}
	if s.CPG != "" {
		require.NoError(tb, os.WriteFile(base+".cpg", []byte(s.CPG), 0o600))
	}
	return path
}

func shapeType(shapes []orb.Geometry) int32 {
	for _, g := range shapes {
		switch g.(type) {
		case orb.Point:
			return 1
		case orb.LineString:
			return 3
		case orb.Polygon:
			return 5
		}
	}
	return 1
}

func encodeShapeContent(g orb.Geometry) []byte {
	var buf bytes.Buffer
	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	writeParts := func(typ int32, parts [][]orb.Point) {
		var all []orb.Point
		offsets := make([]int32, len(parts))
		for i, p := range parts {
			offsets[i] = int32(len(all)) //nolint:gosec // fixture sizes are small
			all = append(all, p...)
		}
		bound := orb.MultiPoint(all).Bound()
		le(typ)
		le([]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]})
		le(int32(len(parts))) //nolint:gosec // fixture sizes are small
		le(int32(len(all)))   //nolint:gosec // fixture sizes are small
		le(offsets)
		for _, p := range all {
			le([]float64{p[0], p[1]})
		}
	}

	switch v := g.(type) {
	case nil:
		le(int32(0))
	case orb.Point:
		le(int32(1))
		le([]float64{v[0], v[1]})
	case orb.LineString:
		writeParts(3, [][]orb.Point{v})
	case orb.Polygon:
		parts := make([][]orb.Point, len(v))
		for i, r := range v {
			parts[i] = r
		}
		writeParts(5, parts)
	}
	return buf.Bytes()
}

func shpHeader(typ int32, lengthBytes int, bound orb.Bound) []byte {
	h := make([]byte, 100)
	binary.BigEndian.PutUint32(h[0:], 9994)
	binary.BigEndian.PutUint32(h[24:], uint32(lengthBytes/2)) //nolint:gosec // fixture sizes are small
	binary.LittleEndian.PutUint32(h[28:], 1000)
	binary.LittleEndian.PutUint32(h[32:], uint32(typ)) //nolint:gosec // shape type codes are positive
	for i, v := range []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]} {
		binary.LittleEndian.PutUint64(h[36+8*i:], math.Float64bits(v))
	}
	return h
}

func encodeShapes(shapes []orb.Geometry) ([]byte, []byte) {
	typ := shapeType(shapes)

	var records, index bytes.Buffer
	offset := 100
	var bound orb.Bound
	for i, g := range shapes {
		content := encodeShapeContent(g)

		var rh [8]byte
		binary.BigEndian.PutUint32(rh[0:], uint32(i+1))           //nolint:gosec // fixture sizes are small
		binary.BigEndian.PutUint32(rh[4:], uint32(len(content)/2)) //nolint:gosec // fixture sizes are small
		records.Write(rh[:])
		records.Write(content)

		var ih [8]byte
		binary.BigEndian.PutUint32(ih[0:], uint32(offset/2))       //nolint:gosec // fixture sizes are small
		binary.BigEndian.PutUint32(ih[4:], uint32(len(content)/2)) //nolint:gosec // fixture sizes are small
		index.Write(ih[:])
		offset += 8 + len(content)

		if g != nil {
			if bound.IsZero() {
				bound = g.Bound()
			} else {
				bound = bound.Union(g.Bound())
			}
		}
	}

	shpData := append(shpHeader(typ, 100+records.Len(), bound), records.Bytes()...)
	shxData := append(shpHeader(typ, 100+index.Len(), bound), index.Bytes()...)
	return shpData, shxData
}

func encodeDBF(s Shapefile) []byte {
	recordLen := 1
	for _, f := range s.Fields {
		recordLen += f.Size
	}
	headerLen := 32 + 32*len(s.Fields) + 1

	var buf bytes.Buffer
	h := make([]byte, 32)
	h[0] = 0x03
	h[1], h[2], h[3] = 124, 1, 1
	binary.LittleEndian.PutUint32(h[4:], uint32(len(s.Records))) //nolint:gosec // fixture sizes are small
	binary.LittleEndian.PutUint16(h[8:], uint16(headerLen))       //nolint:gosec // fixture sizes are small
	binary.LittleEndian.PutUint16(h[10:], uint16(recordLen))      //nolint:gosec // fixture sizes are small
	h[29] = s.LDID
	buf.Write(h)

	for _, f := range s.Fields {
		d := make([]byte, 32)
		copy(d[:11], f.Name)
		d[11] = f.Type
		d[16] = byte(f.Size)
		d[17] = byte(f.Decimals)
		buf.Write(d)
	}
	buf.WriteByte(0x0D)

	for _, rec := range s.Records {
		buf.WriteByte(' ')
		for i, f := range s.Fields {
			cell := []byte(rec[i])
			if len(cell) > f.Size {
				cell = cell[:f.Size]
			}
			pad := bytes.Repeat([]byte{' '}, f.Size-len(cell))
			switch f.Type {
			case 'N', 'F':
				buf.Write(pad)
				buf.Write(cell)
			default:
				buf.Write(cell)
				buf.Write(pad)
			}
		}
	}
	buf.WriteByte(0x1A)
	return buf.Bytes()
}
