// Resolves record descriptors into immutable accessor sets, once per type.

package binding

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/maruel/georepo/internal/errs"
	"github.com/paulmach/orb"
)

// Descriptor declares how to read a record of type T. Build it with
// [Describe] and resolve it with [Register].
type Descriptor[T any] struct {
	name     string
	idColumn string
	ids      []func(T) uint32
	geoms    []func(T) orb.Geometry
	attrs    []*Attribute[T]
}

// Describe starts the descriptor of T. name is used as the table name of
// projections; it defaults to the Go type name.
func Describe[T any](name string) *Descriptor[T] {
	if name == "" {
		name = reflect.TypeFor[T]().String()
	}
	return &Descriptor[T]{name: name, idColumn: DefaultIDColumn}
}

// ID declares the identifier getter. It must be declared exactly once.
func (d *Descriptor[T]) ID(get func(T) uint32) *Descriptor[T] {
	d.ids = append(d.ids, get)
	return d
}

// Geometry declares the geometry getter. It must be declared exactly once.
// The getter may return nil.
func (d *Descriptor[T]) Geometry(get func(T) orb.Geometry) *Descriptor[T] {
	d.geoms = append(d.geoms, get)
	return d
}

// Attribute appends attributes in declaration order.
func (d *Descriptor[T]) Attribute(attrs ...*Attribute[T]) *Descriptor[T] {
	d.attrs = append(d.attrs, attrs...)
	return d
}

// IDColumn renames the identifier column.
func (d *Descriptor[T]) IDColumn(name string) *Descriptor[T] {
	d.idColumn = name
	return d
}

// Registry holds the accessor sets resolved for each record type.
//
// It is safe for concurrent use. Callers own their registry; there is no
// package level one.
type Registry struct {
	mu   sync.RWMutex
	sets map[reflect.Type]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[reflect.Type]any)}
}

// Register validates d and stores the resulting accessor set for T.
//
// It fails with an error matching errs.ErrConfiguration when the descriptor
// is incomplete or T is already registered.
func Register[T any](r *Registry, d *Descriptor[T]) (*AccessorSet[T], error) {
	s, err := resolve(d)
	if err != nil {
		return nil, err
	}
	t := reflect.TypeFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sets == nil {
		r.sets = make(map[reflect.Type]any)
	}
	if _, ok := r.sets[t]; ok {
		return nil, errs.Configuration(d.name, "already registered")
	}
	r.sets[t] = s
	return s, nil
}

// Lookup returns the accessor set registered for T.
func Lookup[T any](r *Registry) (*AccessorSet[T], error) {
	t := reflect.TypeFor[T]()
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sets[t]
	if !ok {
		return nil, errs.Configuration(t.String(), "not registered")
	}
	return s.(*AccessorSet[T]), nil
}

func resolve[T any](d *Descriptor[T]) (*AccessorSet[T], error) {
	if d == nil {
		return nil, errs.Configuration(reflect.TypeFor[T]().String(), "nil descriptor")
	}
	switch {
	case len(d.ids) == 0:
		return nil, errs.Configuration(d.name, "no identifier getter")
	case len(d.ids) > 1:
		return nil, errs.Configuration(d.name, fmt.Sprintf("identifier getter declared %d times", len(d.ids)))
	case d.ids[0] == nil:
		return nil, errs.Configuration(d.name, "identifier getter is nil")
	case len(d.geoms) == 0:
		return nil, errs.Configuration(d.name, "no geometry getter")
	case len(d.geoms) > 1:
		return nil, errs.Configuration(d.name, fmt.Sprintf("geometry getter declared %d times", len(d.geoms)))
	case d.geoms[0] == nil:
		return nil, errs.Configuration(d.name, "geometry getter is nil")
	case d.idColumn == "":
		return nil, errs.Configuration(d.name, "identifier column name is empty")
	}

	s := &AccessorSet[T]{
		name:     d.name,
		idColumn: d.idColumn,
		id:       d.ids[0],
		geometry: d.geoms[0],
		byName:   make(map[string]*Attribute[T], len(d.attrs)),
	}
	for i, a := range d.attrs {
		switch {
		case a == nil:
			return nil, errs.Configuration(d.name, fmt.Sprintf("attribute %d is nil", i))
		case a.col.Name == "":
			return nil, errs.Configuration(d.name, fmt.Sprintf("attribute %d has no name", i))
		case a.col.Name == d.idColumn:
			return nil, errs.Configuration(d.name, fmt.Sprintf("attribute %q collides with the identifier column", a.col.Name))
		case a.get == nil:
			return nil, errs.Configuration(d.name, fmt.Sprintf("attribute %q has a nil getter", a.col.Name))
		}
		if _, ok := s.byName[a.col.Name]; ok {
			return nil, errs.Configuration(d.name, fmt.Sprintf("attribute %q declared twice", a.col.Name))
		}
		// Attributes are copied so the caller cannot mutate a registered set.
		c := *a
		c.seq = i
		s.byName[c.col.Name] = &c
		s.attrs = append(s.attrs, &c)
	}
	slices.SortStableFunc(s.attrs, func(a, b *Attribute[T]) int {
		if c := cmp.Compare(a.col.Ordinal, b.col.Ordinal); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	s.columns = make([]Column, 0, len(s.attrs)+1)
	s.columns = append(s.columns, Column{
		Name:     d.idColumn,
		Caption:  d.idColumn,
		Type:     ColumnTypeNumber,
		Ordinal:  0,
		Unique:   true,
		ReadOnly: true,
	})
	for _, a := range s.attrs {
		s.columns = append(s.columns, a.col)
	}
	return s, nil
}
