// Provides concurrent-safe, in-memory secondary indexes for repositories.

package memory

import (
	"iter"
	"slices"
	"sync"
)

// Observer is notified of every change of a Repository.
//
// Calls are made with the repository write lock held: implementations must
// not call back into the repository.
type Observer[T any] interface {
	OnInsert(rec T)
	OnUpdate(prev, curr T)
	OnDelete(rec T)
}

// UniqueIndex provides O(1) lookup by a unique secondary key.
//
// The index is built from existing repository data when created and kept
// synchronized via the [Observer] interface. All operations are
// concurrent-safe.
type UniqueIndex[K comparable, T any] struct {
	repo    *Repository[T]
	keyFunc func(T) K
	mu      sync.Mutex
	// owners lists the records holding each key, most recently written last.
	owners map[K][]uint32
}

// NewUniqueIndex creates a unique index on the given repository.
//
// The keyFunc extracts the index key from each record. Keys should be
// unique; see [UniqueIndex.Get] for records sharing a key.
func NewUniqueIndex[K comparable, T any](repo *Repository[T], keyFunc func(T) K) *UniqueIndex[K, T] {
	idx := &UniqueIndex[K, T]{
		repo:    repo,
		keyFunc: keyFunc,
		owners:  make(map[K][]uint32),
	}
	repo.AddObserver(idx)
	return idx
}

// Get returns the record with the given key.
//
// When several records share the key, the most recently written one is
// returned. Deleting it or moving it to another key falls back to the
// previous one still holding the key.
func (idx *UniqueIndex[K, T]) Get(key K) (T, bool) {
	idx.mu.Lock()
	ids := idx.owners[key]
	var id uint32
	ok := len(ids) != 0
	if ok {
		id = ids[len(ids)-1]
	}
	idx.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	rec, err := idx.repo.SelectOne(id)
	return rec, err == nil
}

// Len returns the number of distinct keys.
func (idx *UniqueIndex[K, T]) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.owners)
}

// OnInsert implements [Observer].
func (idx *UniqueIndex[K, T]) OnInsert(rec T) {
	key := idx.keyFunc(rec)
	id := idx.repo.set.ID(rec)
	idx.mu.Lock()
	idx.release(key, id)
	idx.owners[key] = append(idx.owners[key], id)
	idx.mu.Unlock()
}

// OnUpdate implements [Observer].
func (idx *UniqueIndex[K, T]) OnUpdate(prev, curr T) {
	oldKey := idx.keyFunc(prev)
	newKey := idx.keyFunc(curr)
	id := idx.repo.set.ID(curr)
	idx.mu.Lock()
	idx.release(oldKey, id)
	idx.release(newKey, id)
	idx.owners[newKey] = append(idx.owners[newKey], id)
	idx.mu.Unlock()
}

// OnDelete implements [Observer].
func (idx *UniqueIndex[K, T]) OnDelete(rec T) {
	key := idx.keyFunc(rec)
	idx.mu.Lock()
	idx.release(key, idx.repo.set.ID(rec))
	idx.mu.Unlock()
}

// release removes id from the owners of key. Must be called with mu held.
func (idx *UniqueIndex[K, T]) release(key K, id uint32) {
	ids := slices.DeleteFunc(idx.owners[key], func(v uint32) bool { return v == id })
	if len(ids) == 0 {
		delete(idx.owners, key)
	} else {
		idx.owners[key] = ids
	}
}

// Index provides O(1) lookup by a non-unique secondary key.
//
// The index is built from existing repository data when created and kept
// synchronized via the [Observer] interface. All operations are
// concurrent-safe.
type Index[K comparable, T any] struct {
	repo    *Repository[T]
	keyFunc func(T) K
	mu      sync.Mutex
	byKey   map[K]map[uint32]struct{}
}

// NewIndex creates a non-unique index on the given repository.
//
// The keyFunc extracts the index key from each record. Multiple records
// may share the same key.
func NewIndex[K comparable, T any](repo *Repository[T], keyFunc func(T) K) *Index[K, T] {
	idx := &Index[K, T]{
		repo:    repo,
		keyFunc: keyFunc,
		byKey:   make(map[K]map[uint32]struct{}),
	}
	repo.AddObserver(idx)
	return idx
}

// Iter returns an iterator over all records matching the given key, in
// identifier order.
func (idx *Index[K, T]) Iter(key K) iter.Seq[T] {
	return func(yield func(T) bool) {
		// Copy IDs under lock to avoid holding lock during iteration.
		idx.mu.Lock()
		ids := make([]uint32, 0, len(idx.byKey[key]))
		for id := range idx.byKey[key] {
			ids = append(ids, id)
		}
		idx.mu.Unlock()
		slices.Sort(ids)

		for _, id := range ids {
			rec, err := idx.repo.SelectOne(id)
			if err != nil {
				continue // Record was deleted between snapshot and lookup
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// OnInsert implements [Observer].
func (idx *Index[K, T]) OnInsert(rec T) {
	key := idx.keyFunc(rec)
	idx.mu.Lock()
	if idx.byKey[key] == nil {
		idx.byKey[key] = make(map[uint32]struct{})
	}
	idx.byKey[key][idx.repo.set.ID(rec)] = struct{}{}
	idx.mu.Unlock()
}

// OnUpdate implements [Observer].
func (idx *Index[K, T]) OnUpdate(prev, curr T) {
	oldKey := idx.keyFunc(prev)
	newKey := idx.keyFunc(curr)
	id := idx.repo.set.ID(curr)
	idx.mu.Lock()
	if oldKey != newKey {
		delete(idx.byKey[oldKey], id)
		if len(idx.byKey[oldKey]) == 0 {
			delete(idx.byKey, oldKey)
		}
	}
	if idx.byKey[newKey] == nil {
		idx.byKey[newKey] = make(map[uint32]struct{})
	}
	idx.byKey[newKey][id] = struct{}{}
	idx.mu.Unlock()
}

// OnDelete implements [Observer].
func (idx *Index[K, T]) OnDelete(rec T) {
	key := idx.keyFunc(rec)
	idx.mu.Lock()
	delete(idx.byKey[key], idx.repo.set.ID(rec))
	if len(idx.byKey[key]) == 0 {
		delete(idx.byKey, key)
	}
	idx.mu.Unlock()
}
