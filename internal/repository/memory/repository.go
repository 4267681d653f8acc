// Provides the in-memory reference repository.

package memory

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/errs"
	"github.com/maruel/georepo/internal/geom"
	"github.com/maruel/georepo/internal/repository"
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

var _ repository.Repository[struct{}] = (*Repository[struct{}])(nil)

// Options configures a Repository.
type Options struct {
	// Title defaults to the accessor set name.
	Title string
	// OnAnomaly is called with the identifier of every record whose geometry
	// is malformed, when it is stored or when a spatial scan skips it. It is
	// called with the repository lock held and must not call back into the
	// repository. Defaults to a slog warning.
	OnAnomaly func(id uint32, err error)
}

// Repository is a concurrent-safe, in-memory [repository.Repository].
//
// Records are kept in a map keyed by identifier. The envelopes of their
// valid, non-empty geometries are indexed in an R-tree. A single
// sync.RWMutex guards the map, the R-tree and the cached extent; every
// traversal holds it for its whole duration.
type Repository[T any] struct {
	set       *binding.AccessorSet[T]
	title     string
	onAnomaly func(uint32, error)

	mu        sync.RWMutex
	records   map[uint32]T
	tree      rtree.RTreeG[uint32]
	bounds    map[uint32]orb.Bound
	malformed map[uint32]error
	cached    *orb.Bound
	observers []Observer[T]
}

// New returns an empty repository reading records through set. opts may be
// nil.
func New[T any](set *binding.AccessorSet[T], opts *Options) *Repository[T] {
	r := &Repository[T]{
		set:       set,
		title:     set.Name(),
		records:   make(map[uint32]T),
		bounds:    make(map[uint32]orb.Bound),
		malformed: make(map[uint32]error),
	}
	if opts != nil {
		if opts.Title != "" {
			r.title = opts.Title
		}
		r.onAnomaly = opts.OnAnomaly
	}
	if r.onAnomaly == nil {
		title := r.title
		r.onAnomaly = func(id uint32, err error) {
			slog.Warn("skipping malformed geometry", "repository", title, "id", id, "err", err)
		}
	}
	return r
}

// Title implements [repository.Repository].
func (r *Repository[T]) Title() string {
	return r.title
}

// Accessors implements [repository.Repository].
func (r *Repository[T]) Accessors() *binding.AccessorSet[T] {
	return r.set
}

// SelectByEnvelope implements [repository.Repository].
func (r *Repository[T]) SelectByEnvelope(box orb.Bound) ([]T, error) {
	if box.IsEmpty() {
		return []T{}, nil
	}
	return r.SelectByGeometry(box)
}

// SelectByGeometry implements [repository.Repository].
//
// The query geometry is prepared once; candidates come from the R-tree and
// each is tested exactly once.
func (r *Repository[T]) SelectByGeometry(g orb.Geometry) ([]T, error) {
	p, err := geom.Prepare(g)
	if err != nil {
		return nil, err
	}
	b, ok := p.Bound()
	if !ok {
		return []T{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uint32
	r.tree.Search(b.Min, b.Max, func(_, _ [2]float64, id uint32) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec := r.records[id]
		hit, err := p.Intersects(r.set.Geometry(rec))
		if err != nil {
			r.onAnomaly(id, err)
			continue
		}
		if hit {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SelectByPredicate implements [repository.Repository].
//
// match is called with the read lock held and must not modify the
// repository.
func (r *Repository[T]) SelectByPredicate(match func(T) bool) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []T{}
	for _, id := range r.sortedIDs() {
		if rec := r.records[id]; match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SelectByQuery implements [repository.Repository].
//
// The envelope restriction is resolved through the R-tree, the rest through
// [repository.Evaluate].
func (r *Repository[T]) SelectByQuery(q *repository.Query) ([]T, error) {
	if q == nil {
		return r.All()
	}
	if err := q.Validate(r.set.Columns()); err != nil {
		return nil, err
	}
	var candidates []T
	var err error
	if q.Envelope != nil {
		candidates, err = r.SelectByEnvelope(*q.Envelope)
	} else {
		candidates, err = r.All()
	}
	if err != nil {
		return nil, err
	}
	rest := *q
	rest.Envelope = nil
	return repository.Evaluate(&rest, r.set, candidates)
}

// SelectOne implements [repository.Repository].
func (r *Repository[T]) SelectOne(id uint32) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		var zero T
		return zero, errs.NotFound(id)
	}
	return rec, nil
}

// Find implements [repository.Repository].
func (r *Repository[T]) Find(match func(T) bool) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.sortedIDs() {
		if rec := r.records[id]; match(rec) {
			return rec, nil
		}
	}
	var zero T
	return zero, errs.NoMatch()
}

// All implements [repository.Repository].
func (r *Repository[T]) All() ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.sortedIDs()
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = r.records[id]
	}
	return out, nil
}

// Insert implements [repository.Repository].
//
// Inserting a single record grows the cached extent; inserting several
// invalidates it.
func (r *Repository[T]) Insert(records ...T) error {
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uint32]struct{}, len(records))
	for _, rec := range records {
		id := r.set.ID(rec)
		if _, ok := r.records[id]; ok {
			return errs.DuplicateKey(id)
		}
		if _, ok := seen[id]; ok {
			return errs.DuplicateKey(id)
		}
		seen[id] = struct{}{}
	}
	for _, rec := range records {
		id := r.set.ID(rec)
		r.records[id] = rec
		r.index(id, rec)
		for _, o := range r.observers {
			o.OnInsert(rec)
		}
	}
	if len(records) == 1 && r.cached != nil {
		if b, ok := r.bounds[r.set.ID(records[0])]; ok {
			u := geom.Union(*r.cached, b)
			r.cached = &u
		}
	} else if len(records) > 1 {
		r.cached = nil
	}
	return nil
}

// Update implements [repository.Repository].
func (r *Repository[T]) Update(records ...T) error {
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if id := r.set.ID(rec); !r.has(id) {
			return errs.NotFound(id)
		}
	}
	for _, rec := range records {
		id := r.set.ID(rec)
		prev := r.records[id]
		r.unindex(id)
		r.records[id] = rec
		r.index(id, rec)
		for _, o := range r.observers {
			o.OnUpdate(prev, rec)
		}
	}
	r.cached = nil
	return nil
}

// Delete implements [repository.Repository].
func (r *Repository[T]) Delete(records ...T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range records {
		if r.remove(r.set.ID(rec)) {
			n++
		}
	}
	return n, nil
}

// DeleteWhere implements [repository.Repository].
//
// match is called with the write lock held and must not call back into the
// repository.
func (r *Repository[T]) DeleteWhere(match func(T) bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.sortedIDs() {
		if match(r.records[id]) && r.remove(id) {
			n++
		}
	}
	return n, nil
}

// Count implements [repository.Repository].
func (r *Repository[T]) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// Extents implements [repository.Repository].
//
// The extent is recomputed from the indexed envelopes when the cache was
// invalidated.
func (r *Repository[T]) Extents() (orb.Bound, error) {
	r.mu.RLock()
	if c := r.cached; c != nil {
		r.mu.RUnlock()
		return *c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		b := geom.EmptyBound
		for _, e := range r.bounds {
			b = geom.Union(b, e)
		}
		r.cached = &b
	}
	return *r.cached, nil
}

// Reset atomically replaces the whole content with records. Observers see
// every previous record deleted then every new record inserted.
func (r *Repository[T]) Reset(records ...T) error {
	next := make(map[uint32]T, len(records))
	for _, rec := range records {
		id := r.set.ID(rec)
		if _, ok := next[id]; ok {
			return errs.DuplicateKey(id)
		}
		next[id] = rec
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.sortedIDs() {
		for _, o := range r.observers {
			o.OnDelete(r.records[id])
		}
	}
	r.records = next
	r.tree = rtree.RTreeG[uint32]{}
	r.bounds = make(map[uint32]orb.Bound, len(next))
	r.malformed = make(map[uint32]error)
	r.cached = nil
	for _, id := range r.sortedIDs() {
		rec := next[id]
		r.index(id, rec)
		for _, o := range r.observers {
			o.OnInsert(rec)
		}
	}
	return nil
}

// Malformed returns the identifiers of the records whose geometry failed
// validation, sorted.
func (r *Repository[T]) Malformed() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.malformed))
}

// AddObserver registers o and replays every current record to its OnInsert,
// in identifier order, so it starts in sync.
func (r *Repository[T]) AddObserver(o Observer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.sortedIDs() {
		o.OnInsert(r.records[id])
	}
	r.observers = append(r.observers, o)
}

// has returns true if id is present. Must be called with the lock held.
func (r *Repository[T]) has(id uint32) bool {
	_, ok := r.records[id]
	return ok
}

// sortedIDs must be called with the lock held.
func (r *Repository[T]) sortedIDs() []uint32 {
	return slices.Sorted(maps.Keys(r.records))
}

// index adds the envelope of rec to the R-tree. Must be called with the write
// lock held.
func (r *Repository[T]) index(id uint32, rec T) {
	g := r.set.Geometry(rec)
	if err := geom.Validate(g); err != nil {
		r.malformed[id] = err
		r.onAnomaly(id, err)
		return
	}
	b, ok := geom.Envelope(g)
	if !ok {
		return
	}
	r.tree.Insert(b.Min, b.Max, id)
	r.bounds[id] = b
}

// unindex must be called with the write lock held.
func (r *Repository[T]) unindex(id uint32) {
	if b, ok := r.bounds[id]; ok {
		r.tree.Delete(b.Min, b.Max, id)
		delete(r.bounds, id)
	}
	delete(r.malformed, id)
}

// remove deletes id and returns true if it was present. Must be called with
// the write lock held.
func (r *Repository[T]) remove(id uint32) bool {
	rec, ok := r.records[id]
	if !ok {
		return false
	}
	r.unindex(id)
	delete(r.records, id)
	r.cached = nil
	for _, o := range r.observers {
		o.OnDelete(rec)
	}
	return true
}
