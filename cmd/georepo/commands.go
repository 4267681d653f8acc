// Implements the georepo commands.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/maruel/georepo/internal/dataset"
	"github.com/maruel/georepo/internal/geom"
	"github.com/maruel/georepo/internal/projection"
	"github.com/maruel/georepo/internal/repository"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

type command struct {
	help  string
	setup func(fs *flag.FlagSet) runFunc
}

var commands = map[string]command{
	"extent": {"print the extent and the number of records", setupExtent},
	"get":    {"print one record as a GeoJSON feature", setupGet},
	"schema": {"print the JSON Schema of the feature properties", setupSchema},
	"select": {"print the matching records as a GeoJSON FeatureCollection", setupSelect},
}

func commandNames() []string {
	return slices.Sorted(maps.Keys(commands))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type extentOutput struct {
	BBox  []float64 `json:"bbox"`
	Count int       `json:"count"`
	SRID  int       `json:"srid,omitempty"`
}

func setupExtent(fs *flag.FlagSet) runFunc {
	return func(_ context.Context, p *projection.Provider[*dataset.Record], w io.Writer) error {
		b, err := p.Extents()
		if err != nil {
			return err
		}
		n, err := p.FeatureCount()
		if err != nil {
			return err
		}
		out := extentOutput{Count: n, SRID: p.SRID()}
		if !b.IsEmpty() {
			out.BBox = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
		}
		return writeJSON(w, out)
	}
}

func setupGet(fs *flag.FlagSet) runFunc {
	id := fs.Uint("id", 0, "record identifier")
	return func(_ context.Context, p *projection.Provider[*dataset.Record], w io.Writer) error {
		if *id > math.MaxUint32 {
			return fmt.Errorf("invalid id %d", *id)
		}
		f, err := p.GetFeature(uint32(*id))
		if err != nil {
			return err
		}
		t := &projection.Table{Columns: p.Columns(), Rows: []*projection.Feature{f}}
		return writeJSON(w, t.GeoJSON().Features[0])
	}
}

func setupSchema(fs *flag.FlagSet) runFunc {
	return func(_ context.Context, p *projection.Provider[*dataset.Record], w io.Writer) error {
		return writeJSON(w, projection.JSONSchema(p.ConnectionID(), p.Columns()))
	}
}

func setupSelect(fs *flag.FlagSet) runFunc {
	bbox := fs.String("bbox", "", "envelope as minx,miny,maxx,maxy")
	wktGeom := fs.String("wkt", "", "query geometry as WKT")
	var q repository.Query
	fs.Func("filter", "property:operator[:value], repeatable", func(s string) error {
		f, err := parseFilter(s)
		if err == nil {
			q.Filters = append(q.Filters, f)
		}
		return err
	})
	fs.Func("sort", "property[:asc|desc], repeatable", func(s string) error {
		name, dir, _ := strings.Cut(s, ":")
		if dir == "" {
			dir = string(repository.SortAsc)
		}
		q.Sorts = append(q.Sorts, repository.Sort{Property: name, Direction: repository.SortDir(dir)})
		return nil
	})
	fs.IntVar(&q.Offset, "offset", 0, "number of records to skip")
	fs.IntVar(&q.Limit, "limit", 0, "maximum number of records, 0 for all")
	idsOnly := fs.Bool("ids", false, "print the identifiers only")

	return func(_ context.Context, p *projection.Provider[*dataset.Record], w io.Writer) error {
		if *bbox != "" && *wktGeom != "" {
			return errors.New("-bbox and -wkt are exclusive")
		}
		composed := len(q.Filters) > 0 || len(q.Sorts) > 0 || q.Offset != 0 || q.Limit != 0
		var t *projection.Table
		var err error
		switch {
		case *wktGeom != "":
			if composed {
				return errors.New("-wkt cannot be combined with -filter, -sort, -offset or -limit")
			}
			var g orb.Geometry
			if g, err = wkt.Unmarshal(*wktGeom); err != nil {
				return fmt.Errorf("failed to parse -wkt: %w", err)
			}
			t, err = p.ExecuteIntersectionQuery(g)
		case *bbox != "" && !composed:
			var b orb.Bound
			if b, err = geom.ParseBound(*bbox); err != nil {
				return err
			}
			if *idsOnly {
				ids, err := p.ObjectIDsInView(b)
				if err != nil {
					return err
				}
				return writeJSON(w, ids)
			}
			t, err = p.ExecuteEnvelopeQuery(b)
		default:
			if *bbox != "" {
				b, err := geom.ParseBound(*bbox)
				if err != nil {
					return err
				}
				q.Envelope = &b
			}
			t, err = p.ExecuteQuery(&q)
		}
		if err != nil {
			return err
		}
		if *idsOnly {
			ids := make([]uint32, len(t.Rows))
			for i, r := range t.Rows {
				ids[i] = r.ID
			}
			return writeJSON(w, ids)
		}
		return writeJSON(w, t.GeoJSON())
	}
}

// parseFilter parses "property:operator[:value]". The value is a number or a
// boolean when it parses as one, a string otherwise.
func parseFilter(s string) (repository.Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return repository.Filter{}, fmt.Errorf("invalid filter %q, want property:operator[:value]", s)
	}
	f := repository.Filter{Property: parts[0], Operator: repository.FilterOp(parts[1])}
	if err := f.Operator.Validate(); err != nil {
		return f, err
	}
	if len(parts) == 3 {
		v := parts[2]
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.Value = n
		} else if b, err := strconv.ParseBool(v); err == nil {
			f.Value = b
		} else {
			f.Value = v
		}
	}
	return f, nil
}
