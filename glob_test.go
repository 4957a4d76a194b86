package streadmulti

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/streadmulti/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveGlob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := fixture.WriteFile(t, dir, "b.geojson", "{}")
	a := fixture.WriteFile(t, dir, "a.geojson", "{}")
	nested := fixture.WriteFile(t, dir, "x/y/c.geojson", "{}")
	fixture.WriteFile(t, dir, "notes.txt", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dir.geojson"), 0o750))

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{name: "sorted", pattern: filepath.Join(dir, "*.geojson"), want: []string{a, b}},
		{name: "recursive", pattern: filepath.Join(dir, "**", "*.geojson"), want: []string{a, b, nested}},
		{name: "literal path", pattern: a, want: []string{a}},
		{name: "unclean path", pattern: dir + "/./x/../*.geojson", want: []string{a, b}},
		{name: "alternatives", pattern: filepath.Join(dir, "{a,b}.geojson"), want: []string{a, b}},
		{name: "no match", pattern: filepath.Join(dir, "*.gpkg"), want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveGlob(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveGlob_Invalid(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"", "   ", "data/[a-.geojson", "data/{a,b.geojson"} {
		_, err := ResolveGlob(pattern)
		assert.ErrorIs(t, err, ErrInvalidPattern, pattern)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "~", want: home},
		{pattern: "~/gis/*.gpkg", want: filepath.Join(home, "gis", "*.gpkg")},
		{pattern: "~user/gis", want: "~user/gis"},
		{pattern: "data/~/x", want: "data/~/x"},
	}
	for _, tt := range tests {
		got, err := expandHome(tt.pattern)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
