// Provides the feature rows returned by a Provider and their GeoJSON export.

package projection

import (
	"github.com/maruel/georepo/internal/binding"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one projected record.
type Feature struct {
	ID       uint32
	Geometry orb.Geometry
	// Values holds the attribute values in column order, without the
	// identifier.
	Values []any
}

// Table is the result of a selection.
type Table struct {
	Name string
	// Columns starts with the identifier column.
	Columns []binding.Column
	Rows    []*Feature
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Value returns the value of column in row. The identifier column is the
// first one.
func (t *Table) Value(row int, column string) (any, bool) {
	if row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	for i, c := range t.Columns {
		if c.Name != column {
			continue
		}
		if i == 0 {
			return t.Rows[row].ID, true
		}
		return t.Rows[row].Values[i-1], true
	}
	return nil, false
}

// GeoJSON converts the table to a feature collection. Attribute values become
// properties keyed by column name; the identifier becomes the feature id.
func (t *Table) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(t.Rows))
	for _, r := range t.Rows {
		f := geojson.NewFeature(r.Geometry)
		f.ID = r.ID
		for i, v := range r.Values {
			if i+1 < len(t.Columns) {
				f.Properties[t.Columns[i+1].Name] = v
			}
		}
		fc.Append(f)
	}
	return fc
}
