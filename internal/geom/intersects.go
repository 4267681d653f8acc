// Provides exact planar intersection between arbitrary geometries.

package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// segment is one edge of a line string or ring.
type segment struct {
	a, b orb.Point
}

func (s segment) bound() ([2]float64, [2]float64) {
	return [2]float64{math.Min(s.a[0], s.b[0]), math.Min(s.a[1], s.b[1])},
		[2]float64{math.Max(s.a[0], s.b[0]), math.Max(s.a[1], s.b[1])}
}

// shape is a geometry flattened into its primitive parts.
type shape struct {
	points   []orb.Point
	lines    []orb.LineString
	polygons []orb.Polygon
}

func decompose(g orb.Geometry) shape {
	var s shape
	s.add(g)
	return s
}

func (s *shape) add(g orb.Geometry) {
	switch g := g.(type) {
	case nil:
	case orb.Point:
		s.points = append(s.points, g)
	case orb.MultiPoint:
		s.points = append(s.points, g...)
	case orb.LineString:
		if len(g) != 0 {
			s.lines = append(s.lines, g)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			s.add(ls)
		}
	case orb.Ring:
		if len(g) != 0 {
			s.polygons = append(s.polygons, orb.Polygon{g})
		}
	case orb.Polygon:
		if !IsEmpty(g) {
			s.polygons = append(s.polygons, g)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			s.add(p)
		}
	case orb.Bound:
		if !g.IsEmpty() {
			s.polygons = append(s.polygons, g.ToPolygon())
		}
	case orb.Collection:
		for _, c := range g {
			s.add(c)
		}
	}
}

// segments returns every edge of the lines and polygon rings.
func (s *shape) segments() []segment {
	var out []segment
	for _, ls := range s.lines {
		out = appendSegments(out, ls)
	}
	for _, p := range s.polygons {
		for _, r := range p {
			out = appendSegments(out, orb.LineString(r))
		}
	}
	return out
}

func appendSegments(out []segment, ls orb.LineString) []segment {
	for i := 1; i < len(ls); i++ {
		out = append(out, segment{ls[i-1], ls[i]})
	}
	return out
}

// anchors returns one vertex per line and per polygon exterior. If a part does
// not cross the other shape's boundary, it is inside iff its anchor is.
func (s *shape) anchors() []orb.Point {
	out := make([]orb.Point, 0, len(s.lines)+len(s.polygons))
	for _, ls := range s.lines {
		out = append(out, ls[0])
	}
	for _, p := range s.polygons {
		out = append(out, p[0][0])
	}
	return out
}

func (s *shape) insidePolygons(p orb.Point) bool {
	for _, poly := range s.polygons {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	return false
}

// coversPoint is the unindexed version of Prepared.coversPoint.
func (s *shape) coversPoint(p orb.Point, segs []segment) bool {
	for _, q := range s.points {
		if q == p {
			return true
		}
	}
	for _, sg := range segs {
		if onSegment(sg.a, sg.b, p) {
			return true
		}
	}
	return s.insidePolygons(p)
}

// orient returns the sign of the cross product (b-a)x(c-a).
func orient(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// within returns true if p lies in the bounding box of segment a-b.
func within(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func onSegment(a, b, p orb.Point) bool {
	return orient(a, b, p) == 0 && within(a, b, p)
}

// segmentsIntersect returns true if the closed segments p1-p2 and q1-q2 share
// at least one point.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	o1 := orient(p1, p2, q1)
	o2 := orient(p1, p2, q2)
	o3 := orient(q1, q2, p1)
	o4 := orient(q1, q2, p2)
	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	return (o1 == 0 && within(p1, p2, q1)) ||
		(o2 == 0 && within(p1, p2, q2)) ||
		(o3 == 0 && within(q1, q2, p1)) ||
		(o4 == 0 && within(q1, q2, p2))
}

// Intersects returns true if a and b share at least one point.
//
// It is a convenience wrapper around [Prepare] for one-off tests.
func Intersects(a, b orb.Geometry) (bool, error) {
	p, err := Prepare(a)
	if err != nil {
		return false, err
	}
	return p.Intersects(b)
}
