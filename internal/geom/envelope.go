// Provides envelope arithmetic that tolerates empty geometries.

package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// EmptyBound is the envelope of nothing. Its IsEmpty method returns true.
var EmptyBound = orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{-1, -1}}

// IsEmpty returns true if g is nil or has no coordinates.
func IsEmpty(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return true
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) != 0 {
				return false
			}
		}
		return true
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		for _, p := range g {
			if !IsEmpty(p) {
				return false
			}
		}
		return true
	case orb.Bound:
		return g.IsEmpty()
	case orb.Collection:
		for _, c := range g {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	default:
		return g.Bound().IsEmpty()
	}
}

// Envelope returns the bounding rectangle of g. It returns false when g is
// empty.
//
// Empty members of multi geometries and collections are ignored.
func Envelope(g orb.Geometry) (orb.Bound, bool) {
	if IsEmpty(g) {
		return EmptyBound, false
	}
	switch g := g.(type) {
	case orb.MultiLineString:
		b := EmptyBound
		for _, ls := range g {
			if len(ls) != 0 {
				b = Union(b, ls.Bound())
			}
		}
		return b, true
	case orb.MultiPolygon:
		b := EmptyBound
		for _, p := range g {
			if !IsEmpty(p) {
				b = Union(b, p.Bound())
			}
		}
		return b, true
	case orb.Collection:
		b := EmptyBound
		for _, c := range g {
			if e, ok := Envelope(c); ok {
				b = Union(b, e)
			}
		}
		return b, true
	default:
		return g.Bound(), true
	}
}

// Union returns the smallest bound containing both a and b. Empty inputs are
// ignored, unlike orb.Bound.Union.
func Union(a, b orb.Bound) orb.Bound {
	if a.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return a
	}
	return orb.Bound{
		Min: orb.Point{math.Min(a.Min[0], b.Min[0]), math.Min(a.Min[1], b.Min[1])},
		Max: orb.Point{math.Max(a.Max[0], b.Max[0]), math.Max(a.Max[1], b.Max[1])},
	}
}

// ApproxEqual reports whether a and b are the same bound within eps on every
// coordinate. Two empty bounds are equal.
func ApproxEqual(a, b orb.Bound, eps float64) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() == b.IsEmpty()
	}
	for i := range 2 {
		if math.Abs(a.Min[i]-b.Min[i]) > eps || math.Abs(a.Max[i]-b.Max[i]) > eps {
			return false
		}
	}
	return true
}

// Width returns the horizontal size of b, 0 when empty.
func Width(b orb.Bound) float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Max[0] - b.Min[0]
}

// Height returns the vertical size of b, 0 when empty.
func Height(b orb.Bound) float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Max[1] - b.Min[1]
}

var errBoundFormat = errors.New("bound must be minx,miny,maxx,maxy")

// ParseBound parses "minx,miny,maxx,maxy".
func ParseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errBoundFormat
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bound coordinate %q: %w", p, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("invalid bound %q: min is greater than max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
