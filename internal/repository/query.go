// Provides the composed query and its in-memory evaluation.

package repository

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/errs"
	"github.com/maruel/georepo/internal/geom"
	"github.com/paulmach/orb"
)

// Query is an engine-neutral composition of attribute filters, an optional
// envelope restriction, sorts and paging.
type Query struct {
	// Filters must all match.
	Filters []Filter `json:"filters,omitempty"`
	// Envelope restricts results to records intersecting it.
	Envelope *orb.Bound `json:"envelope,omitempty"`
	// Sorts are applied in order; the identifier breaks remaining ties.
	Sorts  []Sort `json:"sorts,omitempty"`
	Offset int    `json:"offset,omitempty"`
	// Limit is ignored when 0 or less.
	Limit int `json:"limit,omitempty"`
}

// Filter defines a condition on a column.
type Filter struct {
	Property string   `json:"property,omitempty"`
	Operator FilterOp `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`

	// Compound filters (mutually exclusive with Property/Operator/Value)
	And []Filter `json:"and,omitempty"`
	Or  []Filter `json:"or,omitempty"`
}

// FilterOp defines the comparison operator for a filter.
type FilterOp string

const (
	// FilterOpEquals matches if value equals the filter value.
	FilterOpEquals FilterOp = "equals"
	// FilterOpNotEquals matches if value does not equal the filter value.
	FilterOpNotEquals FilterOp = "not_equals"
	// FilterOpContains matches if value contains the filter value (text).
	FilterOpContains FilterOp = "contains"
	// FilterOpNotContains matches if value does not contain the filter value.
	FilterOpNotContains FilterOp = "not_contains"
	// FilterOpStartsWith matches if value starts with the filter value.
	FilterOpStartsWith FilterOp = "starts_with"
	// FilterOpEndsWith matches if value ends with the filter value.
	FilterOpEndsWith FilterOp = "ends_with"
	// FilterOpGreaterThan matches if value is greater than the filter value.
	FilterOpGreaterThan FilterOp = "gt"
	// FilterOpLessThan matches if value is less than the filter value.
	FilterOpLessThan FilterOp = "lt"
	// FilterOpGreaterEqual matches if value is greater than or equal to the filter value.
	FilterOpGreaterEqual FilterOp = "gte"
	// FilterOpLessEqual matches if value is less than or equal to the filter value.
	FilterOpLessEqual FilterOp = "lte"
	// FilterOpIsEmpty matches if value is empty/null.
	FilterOpIsEmpty FilterOp = "is_empty"
	// FilterOpIsNotEmpty matches if value is not empty/null.
	FilterOpIsNotEmpty FilterOp = "is_not_empty"
)

// Validate returns an error if the filter operator is not a known valid value.
func (f FilterOp) Validate() error {
	switch f {
	case FilterOpEquals, FilterOpNotEquals, FilterOpContains, FilterOpNotContains,
		FilterOpStartsWith, FilterOpEndsWith, FilterOpGreaterThan, FilterOpLessThan,
		FilterOpGreaterEqual, FilterOpLessEqual, FilterOpIsEmpty, FilterOpIsNotEmpty:
		return nil
	}
	return errs.InvalidQuery("invalid operator: " + string(f))
}

// Sort defines the sort order for a column.
type Sort struct {
	Property  string  `json:"property"`
	Direction SortDir `json:"direction,omitempty"`
}

// SortDir defines the sort direction.
type SortDir string

const (
	// SortAsc sorts in ascending order (A-Z, 0-9, oldest-newest).
	SortAsc SortDir = "asc"
	// SortDesc sorts in descending order (Z-A, 9-0, newest-oldest).
	SortDesc SortDir = "desc"
)

// Validate checks the operators and that every referenced column exists in
// columns. The error matches errs.ErrInvalidQuery.
func (q *Query) Validate(columns []binding.Column) error {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c.Name] = struct{}{}
	}
	for i := range q.Filters {
		if err := validateFilter(&q.Filters[i], known); err != nil {
			return err
		}
	}
	for _, s := range q.Sorts {
		if _, ok := known[s.Property]; !ok {
			return errs.InvalidQuery(fmt.Sprintf("unknown sort column %q", s.Property))
		}
		if s.Direction != "" && s.Direction != SortAsc && s.Direction != SortDesc {
			return errs.InvalidQuery(fmt.Sprintf("invalid sort direction %q", s.Direction))
		}
	}
	if q.Offset < 0 {
		return errs.InvalidQuery("negative offset")
	}
	if q.Envelope != nil {
		if err := geom.Validate(*q.Envelope); err != nil {
			return err
		}
	}
	return nil
}

func validateFilter(f *Filter, known map[string]struct{}) error {
	for i := range f.And {
		if err := validateFilter(&f.And[i], known); err != nil {
			return err
		}
	}
	for i := range f.Or {
		if err := validateFilter(&f.Or[i], known); err != nil {
			return err
		}
	}
	if f.Property == "" {
		return nil
	}
	if _, ok := known[f.Property]; !ok {
		return errs.InvalidQuery(fmt.Sprintf("unknown filter column %q", f.Property))
	}
	return f.Operator.Validate()
}

// Evaluate runs q over records in memory. records must be sorted by
// identifier; the result keeps that order unless q sorts.
//
// A nil query returns records unchanged. Records whose geometry is malformed
// never match an envelope restriction.
func Evaluate[T any](q *Query, set *binding.AccessorSet[T], records []T) ([]T, error) {
	if q == nil {
		return records, nil
	}
	if err := q.Validate(set.Columns()); err != nil {
		return nil, err
	}
	var box *geom.Prepared
	if q.Envelope != nil {
		var err error
		if box, err = geom.Prepare(*q.Envelope); err != nil {
			return nil, err
		}
	}

	type row struct {
		rec  T
		id   uint32
		keys []any
	}
	rows := make([]row, 0, len(records))
	for _, r := range records {
		if box != nil {
			if ok, err := box.Intersects(set.Geometry(r)); err != nil || !ok {
				continue
			}
		}
		ok, err := matchesFilters(set, r, q.Filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rw := row{rec: r, id: set.ID(r)}
		for _, s := range q.Sorts {
			v, err := set.Value(r, s.Property)
			if err != nil {
				return nil, err
			}
			rw.keys = append(rw.keys, normalize(v))
		}
		rows = append(rows, rw)
	}

	if len(q.Sorts) > 0 {
		slices.SortStableFunc(rows, func(a, b row) int {
			for i := range q.Sorts {
				if c := compareValues(a.keys[i], b.keys[i]); c != 0 {
					if q.Sorts[i].Direction == SortDesc {
						return -c
					}
					return c
				}
			}
			return cmp.Compare(a.id, b.id)
		})
	}

	start := min(q.Offset, len(rows))
	rows = rows[start:]
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	out := make([]T, len(rows))
	for i := range rows {
		out[i] = rows[i].rec
	}
	return out, nil
}

// matchesFilters checks if a record matches all filter conditions.
func matchesFilters[T any](set *binding.AccessorSet[T], r T, filters []Filter) (bool, error) {
	for i := range filters {
		ok, err := matchesFilter(set, r, &filters[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// matchesFilter checks if a record matches a single filter condition.
func matchesFilter[T any](set *binding.AccessorSet[T], r T, f *Filter) (bool, error) {
	if len(f.And) > 0 {
		return matchesFilters(set, r, f.And)
	}
	if len(f.Or) > 0 {
		for i := range f.Or {
			ok, err := matchesFilter(set, r, &f.Or[i])
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	if f.Property == "" {
		return true, nil
	}
	v, err := set.Value(r, f.Property)
	if err != nil {
		return false, err
	}
	return matchesOperator(normalize(v), f.Operator, normalize(f.Value)), nil
}

// matchesOperator applies the filter operator to compare values.
func matchesOperator(value any, op FilterOp, filterValue any) bool {
	switch op {
	case FilterOpIsEmpty:
		return isEmpty(value)
	case FilterOpIsNotEmpty:
		return !isEmpty(value)
	case FilterOpEquals:
		return compareValues(value, filterValue) == 0
	case FilterOpNotEquals:
		return compareValues(value, filterValue) != 0
	case FilterOpGreaterThan:
		return compareValues(value, filterValue) > 0
	case FilterOpLessThan:
		return compareValues(value, filterValue) < 0
	case FilterOpGreaterEqual:
		return compareValues(value, filterValue) >= 0
	case FilterOpLessEqual:
		return compareValues(value, filterValue) <= 0
	case FilterOpContains:
		return strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(filterValue)))
	case FilterOpNotContains:
		return !strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(filterValue)))
	case FilterOpStartsWith:
		return strings.HasPrefix(strings.ToLower(toString(value)), strings.ToLower(toString(filterValue)))
	case FilterOpEndsWith:
		return strings.HasSuffix(strings.ToLower(toString(value)), strings.ToLower(toString(filterValue)))
	default:
		return false
	}
}

// normalize dereferences pointers and widens every number to float64 so
// attribute values compare with JSON decoded filter values.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, float64, time.Time:
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

// isEmpty checks if a value is empty/null.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case time.Time:
		return v.IsZero()
	case orb.Geometry:
		return geom.IsEmpty(v)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	default:
		return false
	}
}

// compareValues compares two values, returning -1, 0, or 1. nil sorts first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return cmp.Compare(va, vb)
		}
	case float64:
		if vb, ok := b.(float64); ok {
			return cmp.Compare(va, vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			if va == vb {
				return 0
			}
			if !va && vb {
				return -1
			}
			return 1
		}
	case time.Time:
		switch vb := b.(type) {
		case time.Time:
			return va.Compare(vb)
		case string:
			if t, err := time.Parse(time.RFC3339, vb); err == nil {
				return va.Compare(t)
			}
		}
	}

	// Fallback: compare string representations
	return cmp.Compare(toString(a), toString(b))
}

// toString converts a value to its string representation.
func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
