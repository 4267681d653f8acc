// Package dataset binds GeoJSON features described by a configuration to
// the repository engines.
//
// A [Record] keeps the geometry and the properties of one feature. Its
// columns are not known at compile time: [Register] declares one dynamic
// attribute per configured property. [Open] returns an in-memory repository
// loaded from a GeoJSON file, or a JSON Lines store seeded from it.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/config"
	"github.com/maruel/georepo/internal/repository"
	"github.com/maruel/georepo/internal/repository/jsonl"
	"github.com/maruel/georepo/internal/repository/memory"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Record is one feature.
type Record struct {
	ID         uint32
	Geometry   orb.Geometry
	Properties geojson.Properties
}

// Register binds Record in r with the columns listed in ds.
func Register(r *binding.Registry, ds *config.Dataset) (*binding.AccessorSet[*Record], error) {
	d := binding.Describe[*Record](ds.Title).
		ID(func(rec *Record) uint32 { return rec.ID }).
		Geometry(func(rec *Record) orb.Geometry { return rec.Geometry })
	if ds.IDColumn != "" {
		d.IDColumn(ds.IDColumn)
	}
	for _, a := range ds.Attributes {
		var opts []binding.Option
		if a.Caption != "" {
			opts = append(opts, binding.Caption(a.Caption))
		}
		if a.Description != "" {
			opts = append(opts, binding.Description(a.Description))
		}
		if a.Ordinal != 0 {
			opts = append(opts, binding.Ordinal(a.Ordinal))
		}
		if a.Unique {
			opts = append(opts, binding.Unique())
		}
		name := a.Name
		d.Attribute(binding.Dynamic(name, a.Type, func(rec *Record) any { return rec.Properties[name] }, opts...))
	}
	return binding.Register(r, d)
}

// FromFeature converts a GeoJSON feature. The identifier is read from the
// idProperty property, or from the feature id when idProperty is empty.
func FromFeature(f *geojson.Feature, idProperty string) (*Record, error) {
	raw := f.ID
	if idProperty != "" {
		raw = f.Properties[idProperty]
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Geometry: f.Geometry, Properties: f.Properties.Clone()}, nil
}

// Feature converts rec back to a GeoJSON feature with every property.
func (rec *Record) Feature() *geojson.Feature {
	f := geojson.NewFeature(rec.Geometry)
	f.ID = rec.ID
	f.Properties = rec.Properties.Clone()
	return f
}

// ReadGeoJSON reads a FeatureCollection. Every required attribute of ds must
// be present and not null.
func ReadGeoJSON(r io.Reader, ds *config.Dataset) ([]*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read features: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse features: %w", err)
	}
	out := make([]*Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		rec, err := FromFeature(f, ds.IDProperty)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		for _, a := range ds.Attributes {
			if a.Required && rec.Properties[a.Name] == nil {
				return nil, fmt.Errorf("feature %d: missing required property %q", i, a.Name)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Open returns the repository described by ds. With a store, the store is
// seeded from the source when it does not exist yet; with Watch set, the
// store follows external edits until ctx is canceled.
func Open(ctx context.Context, ds *config.Dataset, set *binding.AccessorSet[*Record]) (repository.Repository[*Record], error) {
	memOpts := &memory.Options{Title: ds.Title}
	if ds.Store == "" {
		if ds.Source == "" {
			return nil, errors.New("dataset needs a source or a store")
		}
		records, err := readSource(ds)
		if err != nil {
			return nil, err
		}
		r := memory.New(set, memOpts)
		if err := r.Insert(records...); err != nil {
			return nil, err
		}
		return r, nil
	}

	_, statErr := os.Stat(ds.Store)
	s, err := jsonl.Open(ds.Store, set, &jsonl.Options[*Record]{
		Codec:  jsonl.NewFeatureCodec(set, storedFeature, jsonl.WithProperties(recordProperties)),
		Memory: memOpts,
		OnReload: func(err error) {
			if err == nil {
				slog.InfoContext(ctx, "reloaded store", "path", ds.Store)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	if errors.Is(statErr, os.ErrNotExist) && ds.Source != "" {
		records, err := readSource(ds)
		if err != nil {
			return nil, err
		}
		if err := s.Insert(records...); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "created store", "path", ds.Store, "source", ds.Source, "count", len(records))
	}
	if ds.Watch {
		if err := s.Watch(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func readSource(ds *config.Dataset) ([]*Record, error) {
	f, err := os.Open(ds.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadGeoJSON(f, ds)
}

// storedFeature decodes a line written by jsonl.FeatureCodec, which always
// carries the identifier as the feature id.
func storedFeature(f *geojson.Feature) (*Record, error) {
	return FromFeature(f, "")
}

func recordProperties(rec *Record) geojson.Properties {
	return rec.Properties
}

func parseID(v any) (uint32, error) {
	switch x := v.(type) {
	case nil:
		return 0, errors.New("missing identifier")
	case float64:
		if x < 0 || x > math.MaxUint32 || x != math.Trunc(x) {
			return 0, fmt.Errorf("invalid identifier %v", x)
		}
		return uint32(x), nil
	case uint32:
		return x, nil
	case int:
		if x < 0 || x > math.MaxUint32 {
			return 0, fmt.Errorf("invalid identifier %d", x)
		}
		return uint32(x), nil
	case string:
		n, err := strconv.ParseUint(x, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid identifier %q: %w", x, err)
		}
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("invalid identifier of type %T", v)
	}
}
