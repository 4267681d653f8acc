// Defines the engine-neutral repository contract.

package repository

import (
	"github.com/maruel/georepo/internal/binding"
	"github.com/paulmach/orb"
)

// Repository is the uniform contract over a collection of spatial records of
// type T, keyed by a uint32 identifier.
//
// Every selection returns a freshly materialized slice sorted by ascending
// identifier; callers may keep it after the repository changes. Records whose
// geometry is nil or empty are never returned by spatial selections but are
// visible to predicate selections.
type Repository[T any] interface {
	// Title is a human readable name for the collection.
	Title() string
	// Accessors returns the binding used to read records.
	Accessors() *binding.AccessorSet[T]

	// SelectByEnvelope returns the records whose geometry intersects box.
	// It is equivalent to SelectByGeometry(box.ToPolygon()).
	SelectByEnvelope(box orb.Bound) ([]T, error)
	// SelectByGeometry returns the records whose geometry intersects g.
	SelectByGeometry(g orb.Geometry) ([]T, error)
	// SelectByPredicate returns the records for which match returns true.
	SelectByPredicate(match func(T) bool) ([]T, error)
	// SelectByQuery runs a composed attribute and envelope query.
	SelectByQuery(q *Query) ([]T, error)
	// SelectOne returns the record with the identifier id. The error matches
	// errs.ErrNotFound when there is none.
	SelectOne(id uint32) (T, error)
	// Find returns the matching record with the lowest identifier. The error
	// matches errs.ErrNotFound when there is none.
	Find(match func(T) bool) (T, error)
	// All returns every record.
	All() ([]T, error)

	// Insert adds records. If any identifier already exists, or is repeated
	// in records, nothing is inserted and the error matches
	// errs.ErrDuplicateKey.
	Insert(records ...T) error
	// Update replaces records by identifier. If any identifier is absent,
	// nothing is updated and the error matches errs.ErrNotFound.
	Update(records ...T) error
	// Delete removes records by identifier and returns how many were present.
	// Absent identifiers are ignored.
	Delete(records ...T) (int, error)
	// DeleteWhere removes the records for which match returns true.
	DeleteWhere(match func(T) bool) (int, error)

	// Count returns the number of records.
	Count() (int, error)
	// Extents returns the union of the envelopes of every valid, non-empty
	// geometry, or geom.EmptyBound.
	Extents() (orb.Bound, error)
}
