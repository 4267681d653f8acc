// Provides the feature provider wrapping a repository.

package projection

import (
	"sync/atomic"

	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/repository"
	"github.com/paulmach/orb"
)

// Option configures a Provider.
type Option[T any] func(*Provider[T])

// WithFilter restricts every selection to the records for which match
// returns true. Lookups by identifier are not filtered.
func WithFilter[T any](match func(T) bool) Option[T] {
	return func(p *Provider[T]) {
		p.filter = match
	}
}

// WithSRID sets the spatial reference identifier reported by the provider.
// Coordinates are never transformed.
func WithSRID[T any](srid int) Option[T] {
	return func(p *Provider[T]) {
		p.srid = srid
	}
}

// Provider projects the records of a repository into features.
//
// It is safe for concurrent use as long as the repository is.
type Provider[T any] struct {
	repo   repository.Repository[T]
	set    *binding.AccessorSet[T]
	filter func(T) bool
	srid   int
	open   atomic.Bool
}

// New returns a provider over repo.
func New[T any](repo repository.Repository[T], opts ...Option[T]) *Provider[T] {
	p := &Provider[T]{repo: repo, set: repo.Accessors()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConnectionID identifies the underlying collection.
func (p *Provider[T]) ConnectionID() string {
	return p.set.Name() + "s"
}

// SRID returns the spatial reference identifier, 0 when unset.
func (p *Provider[T]) SRID() int {
	return p.srid
}

// Open marks the provider as open. It never fails.
func (p *Provider[T]) Open() {
	p.open.Store(true)
}

// Close marks the provider as closed.
func (p *Provider[T]) Close() {
	p.open.Store(false)
}

// IsOpen reports whether Open was called more recently than Close.
func (p *Provider[T]) IsOpen() bool {
	return p.open.Load()
}

// Columns returns the column schema of the features.
func (p *Provider[T]) Columns() []binding.Column {
	return p.set.Columns()
}

// GetFeature returns the record id as a feature. The error matches
// errs.ErrNotFound when there is no such record.
func (p *Provider[T]) GetFeature(id uint32) (*Feature, error) {
	rec, err := p.repo.SelectOne(id)
	if err != nil {
		return nil, err
	}
	return p.feature(rec)
}

// GeometryByID returns the geometry of the record id, possibly nil.
func (p *Provider[T]) GeometryByID(id uint32) (orb.Geometry, error) {
	rec, err := p.repo.SelectOne(id)
	if err != nil {
		return nil, err
	}
	return p.set.Geometry(rec), nil
}

// GeometriesInView returns the geometries of the records intersecting box.
func (p *Provider[T]) GeometriesInView(box orb.Bound) ([]orb.Geometry, error) {
	records, err := p.selectFiltered(p.repo.SelectByEnvelope(box))
	if err != nil {
		return nil, err
	}
	out := make([]orb.Geometry, len(records))
	for i, rec := range records {
		out[i] = p.set.Geometry(rec)
	}
	return out, nil
}

// ObjectIDsInView returns the identifiers of the records intersecting box.
func (p *Provider[T]) ObjectIDsInView(box orb.Bound) ([]uint32, error) {
	records, err := p.selectFiltered(p.repo.SelectByEnvelope(box))
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(records))
	for i, rec := range records {
		out[i] = p.set.ID(rec)
	}
	return out, nil
}

// ExecuteIntersectionQuery returns the records whose geometry intersects g.
func (p *Provider[T]) ExecuteIntersectionQuery(g orb.Geometry) (*Table, error) {
	return p.table(p.selectFiltered(p.repo.SelectByGeometry(g)))
}

// ExecuteEnvelopeQuery returns the records whose geometry intersects box.
func (p *Provider[T]) ExecuteEnvelopeQuery(box orb.Bound) (*Table, error) {
	return p.table(p.selectFiltered(p.repo.SelectByEnvelope(box)))
}

// ExecuteQuery runs a composed query. The provider filter is applied after
// the query, so it can shorten a page selected with Offset and Limit.
func (p *Provider[T]) ExecuteQuery(q *repository.Query) (*Table, error) {
	return p.table(p.selectFiltered(p.repo.SelectByQuery(q)))
}

// FeatureCount returns the number of records, ignoring the filter.
func (p *Provider[T]) FeatureCount() (int, error) {
	return p.repo.Count()
}

// Extents returns the extent of the repository, ignoring the filter.
func (p *Provider[T]) Extents() (orb.Bound, error) {
	return p.repo.Extents()
}

func (p *Provider[T]) selectFiltered(records []T, err error) ([]T, error) {
	if err != nil || p.filter == nil {
		return records, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if p.filter(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *Provider[T]) feature(rec T) (*Feature, error) {
	values, err := p.set.Values(rec)
	if err != nil {
		return nil, err
	}
	return &Feature{ID: p.set.ID(rec), Geometry: p.set.Geometry(rec), Values: values}, nil
}

func (p *Provider[T]) table(records []T, err error) (*Table, error) {
	if err != nil {
		return nil, err
	}
	t := &Table{Name: p.repo.Title(), Columns: p.set.Columns(), Rows: make([]*Feature, 0, len(records))}
	for _, rec := range records {
		f, err := p.feature(rec)
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, f)
	}
	return t, nil
}
