// Defines typed attribute getters and their column options.

package binding

import (
	"fmt"
	"reflect"
)

// Attribute is a named, typed read of a record of type T.
//
// Create one with [Attr], [AttrFunc] or [Dynamic] and hand it to
// [Descriptor.Attribute].
type Attribute[T any] struct {
	col Column
	get func(T) (any, error)
	seq int
}

// Option customizes the column of an attribute.
type Option func(*Column)

// Ordinal sets the sort key of the column. Ties keep declaration order.
func Ordinal(n int) Option {
	return func(c *Column) { c.Ordinal = n }
}

// Caption sets the display name.
func Caption(s string) Option {
	return func(c *Column) { c.Caption = s }
}

// Description sets the column description.
func Description(s string) Option {
	return func(c *Column) { c.Description = s }
}

// Nullable marks the column as accepting null values.
func Nullable() Option {
	return func(c *Column) { c.Nullable = true }
}

// Unique marks the column values as unique across records.
func Unique() Option {
	return func(c *Column) { c.Unique = true }
}

// ReadOnly marks the column as not writable by consumers.
func ReadOnly() Option {
	return func(c *Column) { c.ReadOnly = true }
}

// Attr declares an attribute read through get. The column type is derived
// from V.
func Attr[T, V any](name string, get func(T) V, opts ...Option) *Attribute[T] {
	var g func(T) (any, error)
	if get != nil {
		g = func(v T) (any, error) { return get(v), nil }
	}
	return newAttribute(name, reflect.TypeFor[V](), g, opts)
}

// AttrFunc declares an attribute whose read can fail.
func AttrFunc[T, V any](name string, get func(T) (V, error), opts ...Option) *Attribute[T] {
	var g func(T) (any, error)
	if get != nil {
		g = func(v T) (any, error) { return get(v) }
	}
	return newAttribute(name, reflect.TypeFor[V](), g, opts)
}

// Dynamic declares an untyped attribute of an explicit column type, typically
// an entry of a property bag.
func Dynamic[T any](name string, typ ColumnType, get func(T) any, opts ...Option) *Attribute[T] {
	var g func(T) (any, error)
	if get != nil {
		g = func(v T) (any, error) { return get(v), nil }
	}
	a := &Attribute[T]{
		col: Column{Name: name, Caption: name, Type: typ, Ordinal: DefaultOrdinal, Nullable: true},
		get: g,
	}
	for _, o := range opts {
		o(&a.col)
	}
	return a
}

func newAttribute[T any](name string, t reflect.Type, get func(T) (any, error), opts []Option) *Attribute[T] {
	a := &Attribute[T]{
		col: Column{
			Name:     name,
			Caption:  name,
			Type:     typeToColumnType(t),
			Ordinal:  DefaultOrdinal,
			Nullable: nullableKind(t),
		},
		get: get,
	}
	for _, o := range opts {
		o(&a.col)
	}
	return a
}

// Name returns the column name.
func (a *Attribute[T]) Name() string {
	return a.col.Name
}

// Column returns the column definition.
func (a *Attribute[T]) Column() Column {
	return a.col
}

// Read returns the attribute value of v. A panic in the getter is returned as
// an error.
func (a *Attribute[T]) Read(v T) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			val = nil
			err = fmt.Errorf("getter panicked: %v", r)
		}
	}()
	return a.get(v)
}
