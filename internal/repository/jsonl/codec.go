// Provides the record encodings used for data lines.

package jsonl

import (
	"encoding/json"
	"fmt"

	"github.com/maruel/georepo/internal/binding"
	"github.com/paulmach/orb/geojson"
)

// Codec converts a record to and from one JSON line.
type Codec[T any] interface {
	Marshal(rec T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSONCodec encodes records with encoding/json. T must round-trip through
// json.Marshal and json.Unmarshal; geometry fields typically need a custom
// MarshalJSON using geojson.Geometry.
type JSONCodec[T any] struct{}

// Marshal implements [Codec].
func (JSONCodec[T]) Marshal(rec T) ([]byte, error) {
	return json.Marshal(rec)
}

// Unmarshal implements [Codec].
func (JSONCodec[T]) Unmarshal(data []byte) (T, error) {
	var rec T
	err := json.Unmarshal(data, &rec)
	return rec, err
}

// FeatureCodec encodes each record as a GeoJSON Feature: the identifier as
// "id", the geometry as "geometry" and every attribute under "properties".
type FeatureCodec[T any] struct {
	set        *binding.AccessorSet[T]
	decode     func(*geojson.Feature) (T, error)
	properties func(T) geojson.Properties
}

// FeatureOption configures a [FeatureCodec].
type FeatureOption[T any] func(*FeatureCodec[T])

// WithProperties writes the properties returned by get instead of the
// attribute values. Use it when records carry properties that are not
// registered attributes, so they survive a reload.
func WithProperties[T any](get func(T) geojson.Properties) FeatureOption[T] {
	return func(c *FeatureCodec[T]) {
		c.properties = get
	}
}

// NewFeatureCodec returns a codec writing features through set and reading
// them back with decode.
func NewFeatureCodec[T any](set *binding.AccessorSet[T], decode func(*geojson.Feature) (T, error), opts ...FeatureOption[T]) *FeatureCodec[T] {
	c := &FeatureCodec[T]{set: set, decode: decode}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feature converts rec. Attribute read failures are returned as
// materialization errors.
func (c *FeatureCodec[T]) Feature(rec T) (*geojson.Feature, error) {
	f := geojson.NewFeature(c.set.Geometry(rec))
	f.ID = c.set.ID(rec)
	if c.properties != nil {
		f.Properties = c.properties(rec).Clone()
		return f, nil
	}
	values, err := c.set.Values(rec)
	if err != nil {
		return nil, err
	}
	for i, a := range c.set.Attributes() {
		f.Properties[a.Name()] = values[i]
	}
	return f, nil
}

// Marshal implements [Codec].
func (c *FeatureCodec[T]) Marshal(rec T) ([]byte, error) {
	f, err := c.Feature(rec)
	if err != nil {
		return nil, err
	}
	return f.MarshalJSON()
}

// Unmarshal implements [Codec].
func (c *FeatureCodec[T]) Unmarshal(data []byte) (T, error) {
	f, err := geojson.UnmarshalFeature(data)
	if err != nil {
		var zero T
		return zero, err
	}
	rec, err := c.decode(f)
	if err != nil {
		return rec, fmt.Errorf("failed to decode feature %v: %w", f.ID, err)
	}
	return rec, nil
}
