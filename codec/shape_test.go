package codec

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeToGeometry(t *testing.T) {
	t.Parallel()

	pts := []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}, {X: 5, Y: 5}, {X: 6, Y: 6}}

	tests := []struct {
		name  string
		shape shp.Shape
		want  orb.Geometry
	}{
		{name: "null", shape: &shp.Null{}, want: nil},
		{name: "point z drops z", shape: &shp.PointZ{X: 1, Y: 2, Z: 3, M: 4}, want: orb.Point{1, 2}},
		{name: "multipoint", shape: &shp.MultiPoint{NumPoints: 2, Points: pts[:2]}, want: orb.MultiPoint{{0, 0}, {1, 1}}},
		{
			name:  "single part polyline",
			shape: &shp.PolyLine{NumParts: 1, NumPoints: 3, Parts: []int32{0}, Points: pts[:3]},
			want:  orb.LineString{{0, 0}, {1, 1}, {2, 0}},
		},
		{
			name:  "multi part polyline m",
			shape: &shp.PolyLineM{NumParts: 2, NumPoints: 5, Parts: []int32{0, 3}, Points: pts},
			want:  orb.MultiLineString{{{0, 0}, {1, 1}, {2, 0}}, {{5, 5}, {6, 6}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := shapeToGeometry(tt.shape)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShapeToGeometry_OpenRingIsClosed(t *testing.T) {
	t.Parallel()

	ring := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}
	got, err := shapeToGeometry(&shp.Polygon{NumParts: 1, NumPoints: 4, Parts: []int32{0}, Points: ring})
	require.NoError(t, err)
	assert.Equal(t, orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}, got)
}

func TestShapeToGeometry_BadParts(t *testing.T) {
	t.Parallel()

	pts := []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	_, err := shapeToGeometry(&shp.PolyLine{NumParts: 2, NumPoints: 2, Parts: []int32{0, 5}, Points: pts})
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = shapeToGeometry(&shp.MultiPatch{})
	assert.ErrorIs(t, err, ErrInvalidData)
}
