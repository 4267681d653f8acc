// Provides the immutable, resolved view of a record type.

package binding

import (
	"slices"

	"github.com/maruel/georepo/internal/errs"
	"github.com/paulmach/orb"
)

// AccessorSet is the resolved binding of a record type T.
//
// It is created once by [Register] and never changes afterward, so it can be
// shared across goroutines and repository instances.
type AccessorSet[T any] struct {
	name     string
	idColumn string
	id       func(T) uint32
	geometry func(T) orb.Geometry
	attrs    []*Attribute[T]
	byName   map[string]*Attribute[T]
	columns  []Column
}

// Name returns the descriptor name.
func (s *AccessorSet[T]) Name() string {
	return s.name
}

// IDColumn returns the name of the identifier column.
func (s *AccessorSet[T]) IDColumn() string {
	return s.idColumn
}

// ID returns the identifier of v.
func (s *AccessorSet[T]) ID(v T) uint32 {
	return s.id(v)
}

// Geometry returns the geometry of v, possibly nil.
func (s *AccessorSet[T]) Geometry(v T) orb.Geometry {
	return s.geometry(v)
}

// Attributes returns the attributes sorted by ordinal.
func (s *AccessorSet[T]) Attributes() []*Attribute[T] {
	return slices.Clone(s.attrs)
}

// Attribute returns the attribute named name.
func (s *AccessorSet[T]) Attribute(name string) (*Attribute[T], bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Columns returns the column schema: the identifier column followed by the
// attributes sorted by ordinal.
func (s *AccessorSet[T]) Columns() []Column {
	return slices.Clone(s.columns)
}

// Values reads every attribute of v, in column order and without the
// identifier. The error matches errs.ErrMaterialization and names the
// failing column.
func (s *AccessorSet[T]) Values(v T) ([]any, error) {
	out := make([]any, len(s.attrs))
	for i, a := range s.attrs {
		val, err := a.Read(v)
		if err != nil {
			return nil, errs.Materialization(s.id(v), a.col.Name, err)
		}
		out[i] = val
	}
	return out, nil
}

// Value reads the column named name of v. The identifier column is
// accepted.
func (s *AccessorSet[T]) Value(v T, name string) (any, error) {
	if name == s.idColumn {
		return s.id(v), nil
	}
	a, ok := s.byName[name]
	if !ok {
		return nil, errs.Configuration(s.name, "unknown column "+name)
	}
	val, err := a.Read(v)
	if err != nil {
		return nil, errs.Materialization(s.id(v), name, err)
	}
	return val, nil
}
