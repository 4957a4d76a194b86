package codec

import (
	"fmt"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// shapeToWKB converts a Shapefile record to 2D WKB. Null shapes yield nil.
func shapeToWKB(s shp.Shape) ([]byte, error) {
	geom, err := shapeToGeometry(s)
	if err != nil || geom == nil {
		return nil, err
	}
	return wkb.Marshal(geom)
}

// shapeToGeometry converts a Shapefile record to an orb geometry. Z and M
// ordinates are dropped.
func shapeToGeometry(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(v.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(v.Points), nil
	case *shp.MultiPointM:
		return multiPoint(v.Points), nil
	case *shp.PolyLine:
		return lineal(v.Parts, v.Points)
	case *shp.PolyLineZ:
		return lineal(v.Parts, v.Points)
	case *shp.PolyLineM:
		return lineal(v.Parts, v.Points)
	case *shp.Polygon:
		return polygonal(v.Parts, v.Points)
	case *shp.PolygonZ:
		return polygonal(v.Parts, v.Points)
	case *shp.PolygonM:
		return polygonal(v.Parts, v.Points)
	default:
		return nil, fmt.Errorf("%w: unsupported shape type %T", ErrInvalidData, s)
	}
}

func toOrbPoints(points []shp.Point) []orb.Point {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

func multiPoint(points []shp.Point) orb.MultiPoint {
	return orb.MultiPoint(toOrbPoints(points))
}

// splitParts cuts the point list at the part start offsets
func splitParts(parts []int32, points []shp.Point) ([][]orb.Point, error) {
	all := toOrbPoints(points)
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(all)) //nolint:gosec // point counts come from a 32-bit field
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(all) {
			return nil, fmt.Errorf("%w: part %d spans points [%d, %d) of %d", ErrInvalidData, i, start, end, len(all))
		}
		out = append(out, all[start:end])
	}
	return out, nil
}

// lineal builds a LineString for one part and a MultiLineString otherwise
func lineal(parts []int32, points []shp.Point) (orb.Geometry, error) {
	split, err := splitParts(parts, points)
	if err != nil {
		return nil, err
	}
	switch len(split) {
	case 0:
		return nil, nil
	case 1:
		return orb.LineString(split[0]), nil
	}
	mls := make(orb.MultiLineString, len(split))
	for i, part := range split {
		mls[i] = orb.LineString(part)
	}
	return mls, nil
}

// polygonal groups rings into polygons. Clockwise rings start a new polygon;
// counter-clockwise rings are holes of the polygon before them.
func polygonal(parts []int32, points []shp.Point) (orb.Geometry, error) {
	split, err := splitParts(parts, points)
	if err != nil {
		return nil, err
	}

	var polygons []orb.Polygon
	for _, part := range split {
		ring := orb.Ring(part)
		if !ring.Closed() && len(ring) > 0 {
			ring = append(ring[:len(ring):len(ring)], ring[0])
		}
		if ring.Orientation() == orb.CCW && len(polygons) > 0 {
			last := len(polygons) - 1
			polygons[last] = append(polygons[last], ring)
			continue
		}
		polygons = append(polygons, orb.Polygon{ring})
	}

	switch len(polygons) {
	case 0:
		return nil, nil
	case 1:
		return polygons[0], nil
	}
	return orb.MultiPolygon(polygons), nil
}
