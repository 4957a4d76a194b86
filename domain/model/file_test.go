package model

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		expected FormatKind
	}{
		{name: "GeoJSON file", path: "points.geojson", expected: FormatGeoJSON},
		{name: "Upper case GeoJSON file", path: "POINTS.GEOJSON", expected: FormatGeoJSON},
		{name: "Gzip compressed GeoJSON", path: "points.geojson.gz", expected: FormatGeoJSON},
		{name: "Zstd compressed GeoJSON", path: "points.geojson.zst", expected: FormatGeoJSON},
		{name: "GeoPackage file", path: "/data/roads.gpkg", expected: FormatGeoPackage},
		{name: "Compressed GeoPackage", path: "roads.gpkg.gz", expected: FormatUnsupported},
		{name: "Shapefile", path: "dir/points.shp", expected: FormatShapefile},
		{name: "Compressed Shapefile", path: "points.shp.xz", expected: FormatUnsupported},
		{name: "DBF alone", path: "points.dbf", expected: FormatUnsupported},
		{name: "Plain JSON", path: "points.json", expected: FormatUnsupported},
		{name: "No extension", path: "points", expected: FormatUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, DetectFormat(tt.path))
			assert.Equal(t, tt.expected != FormatUnsupported, IsSupportedFile(tt.path))
		})
	}
}

func TestFile_Extension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		expected string
	}{
		{path: "a/points.geojson", expected: ".geojson"},
		{path: "a/points.geojson.gz", expected: ".geojson.gz"},
		{path: "a/points.csv", expected: ".csv"},
		{path: "a/roads.GPKG", expected: ".gpkg"},
		{path: "a/noext", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NewFile(tt.path).Extension())
		})
	}
}

func TestFile_CompressionTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		isGZ   bool
		isBZ2  bool
		isXZ   bool
		isZSTD bool
	}{
		{name: "Normal file", path: "test.geojson"},
		{name: "Gzip file", path: "test.geojson.gz", isGZ: true},
		{name: "Bzip2 file", path: "test.geojson.bz2", isBZ2: true},
		{name: "XZ file", path: "test.geojson.xz", isXZ: true},
		{name: "Zstd file", path: "test.geojson.zst", isZSTD: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file := NewFile(tt.path)
			assert.Equal(t, tt.isGZ, file.IsGZ())
			assert.Equal(t, tt.isBZ2, file.IsBZ2())
			assert.Equal(t, tt.isXZ, file.IsXZ())
			assert.Equal(t, tt.isZSTD, file.IsZSTD())
			assert.Equal(t, tt.isGZ || tt.isBZ2 || tt.isXZ || tt.isZSTD, file.IsCompressed())
		})
	}
}

func TestFile_OpenReader(t *testing.T) {
	t.Parallel()

	const content = `{"type":"FeatureCollection","features":[]}`

	t.Run("plain file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.geojson")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		reader, closer, err := NewFile(path).OpenReader()
		require.NoError(t, err)
		defer closer()

		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, content, string(got))
	})

	t.Run("gzip file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.geojson.gz")
		f, err := os.Create(path)
		require.NoError(t, err)
		gw := gzip.NewWriter(f)
		_, err = gw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, gw.Close())
		require.NoError(t, f.Close())

		reader, closer, err := NewFile(path).OpenReader()
		require.NoError(t, err)
		defer closer()

		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, content, string(got))
	})

	t.Run("zstd file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.geojson.zst")
		f, err := os.Create(path)
		require.NoError(t, err)
		zw, err := zstd.NewWriter(f)
		require.NoError(t, err)
		_, err = zw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, f.Close())

		reader, closer, err := NewFile(path).OpenReader()
		require.NoError(t, err)
		defer closer()

		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, content, string(got))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, _, err := NewFile(filepath.Join(t.TempDir(), "missing.geojson")).OpenReader()
		require.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestCompanionPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	shp := filepath.Join(dir, "points.shp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "points.DBF"), []byte{}, 0o600))

	assert.Equal(t, filepath.Join(dir, "points.DBF"), CompanionPath(shp, ExtDBF))
	assert.Equal(t, filepath.Join(dir, "points.cpg"), CompanionPath(shp, ExtCPG))
}
