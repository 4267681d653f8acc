// Provides structural validation of geometries.

package geom

import (
	"fmt"
	"math"

	"github.com/maruel/georepo/internal/errs"
	"github.com/paulmach/orb"
)

// Validate checks that g is structurally sound: finite coordinates, line
// strings with at least two points, closed rings with at least four points.
//
// nil and empty geometries are valid. The returned error matches
// errs.ErrMalformedGeometry.
func Validate(g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return nil
	case orb.Point:
		return checkPoint(g)
	case orb.MultiPoint:
		for _, p := range g {
			if err := checkPoint(p); err != nil {
				return err
			}
		}
	case orb.LineString:
		return checkLineString(g)
	case orb.MultiLineString:
		for _, ls := range g {
			if err := checkLineString(ls); err != nil {
				return err
			}
		}
	case orb.Ring:
		return checkRing(g)
	case orb.Polygon:
		return checkPolygon(g)
	case orb.MultiPolygon:
		for _, p := range g {
			if err := checkPolygon(p); err != nil {
				return err
			}
		}
	case orb.Bound:
		if g.IsEmpty() {
			return nil
		}
		if err := checkPoint(g.Min); err != nil {
			return err
		}
		return checkPoint(g.Max)
	case orb.Collection:
		for _, c := range g {
			if err := Validate(c); err != nil {
				return err
			}
		}
	default:
		return errs.MalformedGeometry(fmt.Sprintf("unsupported geometry type %T", g))
	}
	return nil
}

func checkPoint(p orb.Point) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errs.MalformedGeometry(fmt.Sprintf("non-finite coordinate %v", p))
		}
	}
	return nil
}

func checkLineString(ls orb.LineString) error {
	if len(ls) == 1 {
		return errs.MalformedGeometry("line string has a single point")
	}
	for _, p := range ls {
		if err := checkPoint(p); err != nil {
			return err
		}
	}
	return nil
}

func checkRing(r orb.Ring) error {
	if len(r) == 0 {
		return nil
	}
	if len(r) < 4 {
		return errs.MalformedGeometry(fmt.Sprintf("ring has %d points, need at least 4", len(r)))
	}
	for _, p := range r {
		if err := checkPoint(p); err != nil {
			return err
		}
	}
	if !r.Closed() {
		return errs.MalformedGeometry("ring is not closed")
	}
	return nil
}

func checkPolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return nil
	}
	if len(p[0]) == 0 && len(p) > 1 {
		return errs.MalformedGeometry("polygon has holes but no exterior ring")
	}
	for _, r := range p {
		if err := checkRing(r); err != nil {
			return err
		}
	}
	return nil
}
