// Provides the JSON Schema of feature properties.

package projection

import (
	"github.com/invopop/jsonschema"
	"github.com/maruel/georepo/internal/binding"
)

// JSONSchema describes the properties of the GeoJSON features produced by
// [Table.GeoJSON] for columns. The identifier column is skipped since it is
// the feature id.
func JSONSchema(title string, columns []binding.Column) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Version:    jsonschema.Version,
		Title:      title,
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}
	for i, c := range columns {
		if i == 0 {
			continue
		}
		s.Properties.Set(c.Name, columnSchema(c))
		if !c.Nullable {
			s.Required = append(s.Required, c.Name)
		}
	}
	return s
}

func columnSchema(c binding.Column) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: c.Description, ReadOnly: c.ReadOnly}
	if c.Caption != c.Name {
		s.Title = c.Caption
	}
	switch c.Type {
	case binding.ColumnTypeText:
		s.Type = "string"
	case binding.ColumnTypeNumber:
		s.Type = "number"
	case binding.ColumnTypeBool:
		s.Type = "boolean"
	case binding.ColumnTypeDate:
		s.Type = "string"
		s.Format = "date-time"
	case binding.ColumnTypeBlob:
		s.Type = "string"
		s.ContentEncoding = "base64"
	case binding.ColumnTypeGeometry:
		s.Type = "object"
		s.Comments = "GeoJSON geometry"
	case binding.ColumnTypeJSON:
		// Any JSON value.
	}
	if c.Nullable && s.Type != "" {
		s.AnyOf = []*jsonschema.Schema{{Type: s.Type, Format: s.Format, ContentEncoding: s.ContentEncoding}, {Type: "null"}}
		s.Type = ""
		s.Format = ""
		s.ContentEncoding = ""
	}
	return s
}
