package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ErrEmptyGeometry is returned when a shape has no usable rings.
var ErrEmptyGeometry = errors.New("empty geometry")

// PolygonFromRings assembles closed rings into a polygon or multipolygon.
//
// Shapefile rings carry no explicit nesting: outer rings wind clockwise and
// holes counter-clockwise. Each hole is attached to the first outer ring that
// contains its first vertex; holes with no container are promoted to outer
// rings.
func PolygonFromRings(rings [][]geom.Coord) (geom.T, error) {
	var outers, holes [][]geom.Coord
	for _, r := range rings {
		r = closeRing(r)
		if len(r) < 4 {
			continue
		}
		if signedArea(r) <= 0 {
			outers = append(outers, r)
		} else {
			holes = append(holes, r)
		}
	}
	if len(outers) == 0 {
		// Some producers ignore the winding convention entirely.
		outers, holes = holes, nil
	}
	if len(outers) == 0 {
		return nil, ErrEmptyGeometry
	}

	polys := make([][][]geom.Coord, len(outers))
	for i, o := range outers {
		polys[i] = [][]geom.Coord{o}
	}
	for _, h := range holes {
		placed := false
		for i, o := range outers {
			if xy.IsPointInRing(geom.XY, h[0], flatten(o)) {
				polys[i] = append(polys[i], h)
				placed = true
				break
			}
		}
		if !placed {
			polys = append(polys, [][]geom.Coord{h})
		}
	}

	if len(polys) == 1 {
		p, err := geom.NewPolygon(geom.XY).SetCoords(polys[0])
		if err != nil {
			return nil, fmt.Errorf("build polygon: %w", err)
		}
		return p, nil
	}
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
	if err != nil {
		return nil, fmt.Errorf("build multipolygon: %w", err)
	}
	return mp, nil
}

// Centroid returns the area-weighted centroid of g as (lng, lat).
func Centroid(g geom.T) (geom.Coord, bool) {
	if g == nil || len(g.FlatCoords()) == 0 {
		return nil, false
	}
	c, err := xy.Centroid(g)
	if err != nil || len(c) < 2 {
		return nil, false
	}
	return c, true
}

// Intersects reports whether two polygonal geometries share any point.
// Non-polygonal inputs never intersect.
func Intersects(a, b geom.T) bool {
	if a == nil || b == nil || len(a.FlatCoords()) == 0 || len(b.FlatCoords()) == 0 {
		return false
	}
	if !a.Bounds().Overlaps(geom.XY, b.Bounds()) {
		return false
	}
	for _, pa := range polygons(a) {
		for _, pb := range polygons(b) {
			if polygonsIntersect(pa, pb) {
				return true
			}
		}
	}
	return false
}

func polygons(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := range t.NumPolygons() {
			out = append(out, t.Polygon(i))
		}
		return out
	}
	return nil
}

func polygonsIntersect(a, b *geom.Polygon) bool {
	if a.NumLinearRings() == 0 || b.NumLinearRings() == 0 {
		return false
	}
	if !a.Bounds().Overlaps(geom.XY, b.Bounds()) {
		return false
	}
	// Any crossing boundary means overlap.
	for i := range a.NumLinearRings() {
		for j := range b.NumLinearRings() {
			if ringsCross(a.LinearRing(i).Coords(), b.LinearRing(j).Coords()) {
				return true
			}
		}
	}
	// Otherwise one may lie wholly inside the other.
	return containsPoint(a, b.LinearRing(0).Coord(0)) || containsPoint(b, a.LinearRing(0).Coord(0))
}

// containsPoint reports whether c lies inside p's shell and outside its holes.
func containsPoint(p *geom.Polygon, c geom.Coord) bool {
	if !xy.IsPointInRing(geom.XY, c, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(geom.XY, c, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

func ringsCross(r1, r2 []geom.Coord) bool {
	for i := 0; i+1 < len(r1); i++ {
		for j := 0; j+1 < len(r2); j++ {
			if segmentsIntersect(r1[i], r1[i+1], r2[j], r2[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 geom.Coord) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func orient(a, b, c geom.Coord) float64 {
	return (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
}

func onSegment(a, b, c geom.Coord) bool {
	return min(a.X(), b.X()) <= c.X() && c.X() <= max(a.X(), b.X()) &&
		min(a.Y(), b.Y()) <= c.Y() && c.Y() <= max(a.Y(), b.Y())
}

// signedArea is positive for counter-clockwise rings.
func signedArea(r []geom.Coord) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i].X()*r[i+1].Y() - r[i+1].X()*r[i].Y()
	}
	return sum / 2
}

func closeRing(r []geom.Coord) []geom.Coord {
	if len(r) == 0 {
		return r
	}
	first, last := r[0], r[len(r)-1]
	if first.X() != last.X() || first.Y() != last.Y() {
		r = append(r[:len(r):len(r)], geom.Coord{first.X(), first.Y()})
	}
	return r
}

func flatten(r []geom.Coord) []float64 {
	flat := make([]float64, 0, 2*len(r))
	for _, c := range r {
		flat = append(flat, c.X(), c.Y())
	}
	return flat
}
