package codec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nao1215/streadmulti/domain/model"
	"github.com/nao1215/streadmulti/internal/fixture"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointsLayer(name string, start int, n int) fixture.Layer {
	layer := fixture.Layer{
		Name: name,
		Columns: []fixture.GPKGColumn{
			{Name: "name", Decl: "TEXT"},
			{Name: "score", Decl: "REAL"},
		},
	}
	for i := range n {
		v := start + i
		layer.Rows = append(layer.Rows, fixture.GPKGRow{
			Geometry: orb.Point{float64(v), float64(-v)},
			Values:   []any{"p" + string(rune('a'+i)), float64(v) / 2},
		})
	}
	return layer
}

func TestGeoPackageCodec_Sources(t *testing.T) {
	t.Parallel()

	path := fixture.GeoPackage(t, filepath.Join(t.TempDir(), "points.gpkg"),
		pointsLayer("points_point", 0, 2),
		pointsLayer("points2_point", 10, 1),
	)

	descs, err := (&GeoPackageCodec{}).Sources(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []model.SourceDescriptor{
		{Path: path, Layer: "points2_point", Format: model.FormatGeoPackage},
		{Path: path, Layer: "points_point", Format: model.FormatGeoPackage},
	}, descs)
}

func TestGeoPackageCodec_ReadLayer(t *testing.T) {
	t.Parallel()

	path := fixture.GeoPackage(t, filepath.Join(t.TempDir(), "points.gpkg"), pointsLayer("points_point", 1, 5))
	desc := model.NewSourceDescriptor(path, "points_point", model.FormatGeoPackage)

	src, err := (&GeoPackageCodec{}).Open(context.Background(), desc, Config{})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, src.Close())
	}()

	assert.Equal(t, model.NewSchema(
		model.Column{Name: "fid", Type: model.ColumnTypeInteger},
		model.Column{Name: "geom", Type: model.ColumnTypeGeometry},
		model.Column{Name: "name", Type: model.ColumnTypeVarchar},
		model.Column{Name: "score", Type: model.ColumnTypeDouble},
	), src.Schema())
	assert.Equal(t, desc, src.Descriptor())

	rows := readAllRows(t, src, 2)
	require.Len(t, rows, 5)
	assert.Equal(t, int64(5), src.Position())

	for i, row := range rows {
		assert.Equal(t, int64(i+1), row[0])
		geom, err := wkb.Unmarshal(row[1].([]byte))
		require.NoError(t, err)
		assert.Equal(t, orb.Point{float64(i + 1), float64(-(i + 1))}, geom)
		assert.Equal(t, float64(i+1)/2, row[3])
	}
}

func TestGeoPackageCodec_ColumnTypes(t *testing.T) {
	t.Parallel()

	layer := fixture.Layer{
		Name: "typed",
		Columns: []fixture.GPKGColumn{
			{Name: "flag", Decl: "BOOLEAN"},
			{Name: "small", Decl: "SMALLINT"},
			{Name: "label", Decl: "TEXT(20)"},
			{Name: "day", Decl: "DATE"},
			{Name: "raw", Decl: "BLOB"},
		},
		Rows: []fixture.GPKGRow{
			{Geometry: orb.Point{1, 2}, Values: []any{1, 7, "x", "2024-03-01", []byte{1, 2}}},
			{Geometry: nil, Values: []any{0, nil, nil, nil, nil}},
		},
	}
	path := fixture.GeoPackage(t, filepath.Join(t.TempDir(), "typed.gpkg"), layer)
	desc := model.NewSourceDescriptor(path, "typed", model.FormatGeoPackage)

	src, err := (&GeoPackageCodec{}).Open(context.Background(), desc, Config{})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, src.Close())
	}()

	assert.Equal(t, []model.ColumnType{
		model.ColumnTypeInteger, model.ColumnTypeGeometry, model.ColumnTypeBoolean, model.ColumnTypeInteger,
		model.ColumnTypeVarchar, model.ColumnTypeVarchar, model.ColumnTypeBlob,
	}, columnTypes(src.Schema()))

	rows := readAllRows(t, src, 10)
	require.Len(t, rows, 2)
	assert.Equal(t, true, rows[0][2])
	assert.Equal(t, int64(7), rows[0][3])
	assert.Equal(t, "x", rows[0][4])
	assert.Equal(t, "2024-03-01", rows[0][5])
	assert.Equal(t, []byte{1, 2}, rows[0][6])
	assert.Equal(t, model.Row{int64(2), nil, false, nil, nil, nil, nil}, rows[1])
}

func columnTypes(s model.Schema) []model.ColumnType {
	out := make([]model.ColumnType, len(s))
	for i, c := range s {
		out[i] = c.Type
	}
	return out
}

func TestGeoPackageCodec_UnsupportedColumnType(t *testing.T) {
	t.Parallel()

	layer := fixture.Layer{
		Name:    "odd",
		Columns: []fixture.GPKGColumn{{Name: "amount", Decl: "NUMERIC"}},
	}
	path := fixture.GeoPackage(t, filepath.Join(t.TempDir(), "odd.gpkg"), layer)
	desc := model.NewSourceDescriptor(path, "odd", model.FormatGeoPackage)

	_, err := (&GeoPackageCodec{}).Open(context.Background(), desc, Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedColumnType)
	assert.Contains(t, err.Error(), "amount")
}

func TestGeoPackageCodec_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := ListLayers(context.Background(), filepath.Join(t.TempDir(), "missing.gpkg"))
		require.Error(t, err)
	})

	t.Run("not a geopackage", func(t *testing.T) {
		t.Parallel()

		path := fixture.WriteFile(t, t.TempDir(), "plain.gpkg", "this is not sqlite")
		_, err := ListLayers(context.Background(), path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCatalog)
		assert.Contains(t, err.Error(), path)
	})
}

func TestMapDeclaredType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		decl    string
		want    model.ColumnType
		wantErr bool
	}{
		{decl: "INTEGER", want: model.ColumnTypeInteger},
		{decl: "mediumint", want: model.ColumnTypeInteger},
		{decl: "Boolean", want: model.ColumnTypeBoolean},
		{decl: "DOUBLE", want: model.ColumnTypeDouble},
		{decl: "FLOAT", want: model.ColumnTypeDouble},
		{decl: "TEXT(255)", want: model.ColumnTypeVarchar},
		{decl: "DATETIME", want: model.ColumnTypeVarchar},
		{decl: "BLOB", want: model.ColumnTypeBlob},
		{decl: "MULTIPOLYGON", want: model.ColumnTypeGeometry},
		{decl: "NUMERIC", wantErr: true},
		{decl: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			t.Parallel()

			got, err := mapDeclaredType(tt.decl)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedColumnType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
