// Handles column types and the column schema derived from attribute getters.

package binding

import (
	"reflect"
	"time"

	"github.com/paulmach/orb"
)

// ColumnType represents the type of a projected column.
type ColumnType string

// Column types.
const (
	ColumnTypeText     ColumnType = "text"
	ColumnTypeNumber   ColumnType = "number"
	ColumnTypeBool     ColumnType = "bool"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypeBlob     ColumnType = "blob"
	ColumnTypeGeometry ColumnType = "geometry"
	ColumnTypeJSON     ColumnType = "jsonb"
)

// Column describes one attribute of a record type as seen by tabular
// consumers.
type Column struct {
	Name        string     `json:"name"`
	Caption     string     `json:"caption,omitempty"`
	Type        ColumnType `json:"type"`
	Ordinal     int        `json:"ordinal"`
	Nullable    bool       `json:"nullable,omitempty"`
	Unique      bool       `json:"unique,omitempty"`
	ReadOnly    bool       `json:"read_only,omitempty"`
	Description string     `json:"description,omitempty"`
}

// DefaultOrdinal is the ordinal of an attribute that does not declare one.
const DefaultOrdinal = 9999

// DefaultIDColumn is the name of the identifier column unless overridden with
// [Descriptor.IDColumn].
const DefaultIDColumn = "ID"

var geometryType = reflect.TypeFor[orb.Geometry]()

// typeToColumnType maps Go types to column types.
func typeToColumnType(t reflect.Type) ColumnType {
	if t.Implements(geometryType) {
		return ColumnTypeGeometry
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		if t.Implements(geometryType) {
			return ColumnTypeGeometry
		}
	}
	if t == reflect.TypeFor[time.Time]() {
		return ColumnTypeDate
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return ColumnTypeBlob
	}
	switch t.Kind() {
	case reflect.String:
		return ColumnTypeText
	case reflect.Bool:
		return ColumnTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return ColumnTypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map, reflect.Interface,
		reflect.Complex64, reflect.Complex128:
		return ColumnTypeJSON
	default:
		return ColumnTypeText
	}
}

// nullableKind returns true for types whose zero value is nil.
func nullableKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}
