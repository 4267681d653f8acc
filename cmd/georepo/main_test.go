package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/config"
	"github.com/maruel/georepo/internal/dataset"
	"github.com/maruel/georepo/internal/projection"
	"github.com/maruel/georepo/internal/repository"
	"github.com/maruel/georepo/internal/repository/memory"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func provider(t *testing.T) *projection.Provider[*dataset.Record] {
	t.Helper()
	ds := &config.Dataset{
		Title:    "Stop",
		IDColumn: "ID",
		Attributes: []config.Attribute{
			{Name: "name", Type: binding.ColumnTypeText, Ordinal: 1},
			{Name: "zone", Type: binding.ColumnTypeNumber, Ordinal: 2},
		},
	}
	set, err := dataset.Register(binding.NewRegistry(), ds)
	if err != nil {
		t.Fatal(err)
	}
	repo := memory.New(set, &memory.Options{Title: ds.Title})
	for i := range 9 {
		rec := &dataset.Record{
			ID:         uint32(i + 1),
			Geometry:   orb.Point{float64(i % 3), float64(i / 3)},
			Properties: geojson.Properties{"name": string(rune('a' + i)), "zone": float64(i % 3)},
		}
		if err := repo.Insert(rec); err != nil {
			t.Fatal(err)
		}
	}
	return projection.New[*dataset.Record](repo, projection.WithSRID[*dataset.Record](4326))
}

func run(t *testing.T, name string, args ...string) (string, error) {
	t.Helper()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	r := commands[name].setup(fs)
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err := r(t.Context(), provider(t), &buf)
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	t.Run("extent", func(t *testing.T) {
		out, err := run(t, "extent")
		if err != nil {
			t.Fatal(err)
		}
		var got extentOutput
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatal(err)
		}
		want := extentOutput{BBox: []float64{0, 0, 2, 2}, Count: 9, SRID: 4326}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("extent mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("get", func(t *testing.T) {
		out, err := run(t, "get", "-id", "5")
		if err != nil {
			t.Fatal(err)
		}
		f, err := geojson.UnmarshalFeature([]byte(out))
		if err != nil {
			t.Fatal(err)
		}
		if f.ID != float64(5) || f.Geometry != (orb.Point{1, 1}) {
			t.Errorf("feature = %v %v", f.ID, f.Geometry)
		}
		if diff := cmp.Diff(geojson.Properties{"name": "e", "zone": float64(1)}, f.Properties); diff != "" {
			t.Errorf("properties mismatch (-want +got):\n%s", diff)
		}
		if _, err := run(t, "get", "-id", "50"); err == nil {
			t.Error("get -id 50 succeeded")
		}
	})

	t.Run("schema", func(t *testing.T) {
		out, err := run(t, "schema")
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatal(err)
		}
		if got["type"] != "object" || got["title"] != "Stops" {
			t.Errorf("schema = %v", got)
		}
	})

	t.Run("select", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want []uint32
		}{
			{"bbox", []string{"-ids", "-bbox", "0.5,0.5,2,1.5"}, []uint32{5, 6}},
			{"wkt", []string{"-ids", "-wkt", "LINESTRING(0 2, 2 0)"}, []uint32{3, 5, 7}},
			{"query", []string{"-ids", "-filter", "zone:gt:0", "-sort", "name:desc", "-limit", "2"}, []uint32{9, 8}},
			{"query in bbox", []string{"-ids", "-bbox", "0,0,2,0", "-filter", "zone:lte:1"}, []uint32{1, 2}},
			{"all", []string{"-ids"}, []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out, err := run(t, "select", tt.args...)
				if err != nil {
					t.Fatal(err)
				}
				var got []uint32
				if err := json.Unmarshal([]byte(out), &got); err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("select mismatch (-want +got):\n%s", diff)
				}
			})
		}

		out, err := run(t, "select", "-bbox", "1.5,1.5,2.5,2.5")
		if err != nil {
			t.Fatal(err)
		}
		fc, err := geojson.UnmarshalFeatureCollection([]byte(out))
		if err != nil {
			t.Fatal(err)
		}
		if len(fc.Features) != 1 || fc.Features[0].Properties["name"] != "i" {
			t.Errorf("select -bbox returned %s", out)
		}
	})

	t.Run("select errors", func(t *testing.T) {
		for _, args := range [][]string{
			{"-bbox", "0,0,1,1", "-wkt", "POINT(0 0)"},
			{"-wkt", "POINT(0 0)", "-limit", "1"},
			{"-wkt", "NOT WKT"},
			{"-bbox", "0,0,1"},
			{"-filter", "zone"},
			{"-filter", "zone:near:1"},
			{"-sort", "nope"},
			{"-sort", "name:sideways"},
		} {
			if _, err := run(t, "select", args...); err == nil {
				t.Errorf("select %v succeeded", args)
			}
		}
	})
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want repository.Filter
	}{
		{"zone:gt:1", repository.Filter{Property: "zone", Operator: repository.FilterOpGreaterThan, Value: 1.0}},
		{"open:equals:true", repository.Filter{Property: "open", Operator: repository.FilterOpEquals, Value: true}},
		{"name:starts_with:Gare:du", repository.Filter{Property: "name", Operator: repository.FilterOpStartsWith, Value: "Gare:du"}},
		{"name:is_empty", repository.Filter{Property: "name", Operator: repository.FilterOpIsEmpty}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFilter(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseFilter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
	for _, in := range []string{"", "zone", ":gt:1", "zone:around:1"} {
		if _, err := parseFilter(in); err == nil {
			t.Errorf("parseFilter(%q) succeeded", in)
		}
	}
}

func TestElideZero(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: elideZero}))
	l.Warn("skipping malformed geometry", "id", uint32(0), "count", 0, "path", "", "err", nil, "zone", 2)
	out := buf.String()
	for _, want := range []string{"id=0", "zone=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q is missing %q", out, want)
		}
	}
	for _, unwanted := range []string{"count=", "path=", "err="} {
		if strings.Contains(out, unwanted) {
			t.Errorf("log %q contains %q", out, unwanted)
		}
	}
}
