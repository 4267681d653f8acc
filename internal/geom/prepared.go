// Provides a query geometry indexed for repeated intersection tests.

package geom

import (
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// Prepared is a validated query geometry with its edges indexed in an R-tree.
//
// Build it once with [Prepare] and call [Prepared.Intersects] for every
// candidate. It is immutable and safe for concurrent use.
type Prepared struct {
	geom  orb.Geometry
	bound orb.Bound
	empty bool
	shape shape
	segs  rtree.RTreeG[segment]
}

// Prepare validates g and indexes it. The error matches
// errs.ErrMalformedGeometry.
func Prepare(g orb.Geometry) (*Prepared, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	b, ok := Envelope(g)
	p := &Prepared{geom: g, bound: b, empty: !ok}
	if p.empty {
		return p, nil
	}
	p.shape = decompose(g)
	for _, s := range p.shape.segments() {
		min, max := s.bound()
		p.segs.Insert(min, max, s)
	}
	return p, nil
}

// Geometry returns the prepared geometry.
func (p *Prepared) Geometry() orb.Geometry {
	return p.geom
}

// Bound returns the envelope of the prepared geometry and false if it is
// empty.
func (p *Prepared) Bound() (orb.Bound, bool) {
	return p.bound, !p.empty
}

// Intersects returns true if g shares at least one point with the prepared
// geometry. An empty geometry intersects nothing.
func (p *Prepared) Intersects(g orb.Geometry) (bool, error) {
	if err := Validate(g); err != nil {
		return false, err
	}
	if p.empty {
		return false, nil
	}
	b, ok := Envelope(g)
	if !ok || !p.bound.Intersects(b) {
		return false, nil
	}
	o := decompose(g)
	osegs := o.segments()

	for _, q := range o.points {
		if p.coversPoint(q) {
			return true, nil
		}
	}
	for _, q := range p.shape.points {
		if o.coversPoint(q, osegs) {
			return true, nil
		}
	}
	for _, s := range osegs {
		if p.crosses(s) {
			return true, nil
		}
	}
	// No boundary contact: one side may still be fully inside the other.
	for _, q := range o.anchors() {
		if p.shape.insidePolygons(q) {
			return true, nil
		}
	}
	for _, q := range p.shape.anchors() {
		if o.insidePolygons(q) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Prepared) coversPoint(q orb.Point) bool {
	for _, r := range p.shape.points {
		if r == q {
			return true
		}
	}
	hit := false
	p.segs.Search(q, q, func(_, _ [2]float64, s segment) bool {
		hit = onSegment(s.a, s.b, q)
		return !hit
	})
	return hit || p.shape.insidePolygons(q)
}

func (p *Prepared) crosses(s segment) bool {
	min, max := s.bound()
	hit := false
	p.segs.Search(min, max, func(_, _ [2]float64, t segment) bool {
		hit = segmentsIntersect(s.a, s.b, t.a, t.b)
		return !hit
	})
	return hit
}
