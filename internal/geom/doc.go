// Package geom holds the planar geometry helpers used by the repository
// engines: envelope arithmetic, structural validation and exact intersection
// tests between [orb.Geometry] values.
//
// # Semantics
//
// Every geometry is treated as closed. Touching boundaries intersect and a
// point on a polygon boundary is inside the polygon. A nil geometry and a
// geometry without coordinates are empty: they have no envelope and never
// intersect anything.
//
// [orb.Bound] values are treated as rectangles. Note that orb's own
// Bound.Union and Bound.Extend do not handle empty bounds, use [Union].
package geom
