package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/config"
	"github.com/maruel/georepo/internal/repository"
	"github.com/maruel/georepo/internal/repository/jsonl"
	"github.com/maruel/georepo/internal/repository/memory"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const stops = `{"type":"FeatureCollection","features":[
{"type":"Feature","id":1,"geometry":{"type":"Point","coordinates":[0,0]},"properties":{"stop_id":"10","name":"Depot","zone":1}},
{"type":"Feature","id":2,"geometry":{"type":"Point","coordinates":[2,1]},"properties":{"stop_id":"20","name":"Market","zone":2,"extra":true}},
{"type":"Feature","id":3,"geometry":null,"properties":{"stop_id":"30","name":"Unplaced","zone":null}}
]}`

func dataset(t *testing.T) *config.Dataset {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "stops.geojson")
	if err := os.WriteFile(src, []byte(stops), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := config.Parse([]byte(`
dataset:
  title: Stop
  source: ` + src + `
  attributes:
    - name: zone
      type: number
      ordinal: 2
    - name: name
      required: true
      caption: Stop name
      ordinal: 1
`))
	if err != nil {
		t.Fatal(err)
	}
	return &c.Dataset
}

func TestRegister(t *testing.T) {
	ds := dataset(t)
	set, err := Register(binding.NewRegistry(), ds)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range set.Columns() {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"ID", "name", "zone"}, names); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
	rec := &Record{ID: 4, Properties: geojson.Properties{"name": "x", "zone": 3.0}}
	values, err := set.Values(rec)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"x", 3.0}, values); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
	r := binding.NewRegistry()
	if _, err := Register(r, ds); err != nil {
		t.Fatal(err)
	}
	if _, err := Register(r, ds); err == nil {
		t.Error("second Register() succeeded")
	}
}

func TestReadGeoJSON(t *testing.T) {
	t.Run("feature id", func(t *testing.T) {
		ds := dataset(t)
		records, err := ReadGeoJSON(strings.NewReader(stops), ds)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 3 {
			t.Fatalf("%d records, want 3", len(records))
		}
		want := &Record{
			ID:         2,
			Geometry:   orb.Point{2, 1},
			Properties: geojson.Properties{"stop_id": "20", "name": "Market", "zone": 2.0, "extra": true},
		}
		if diff := cmp.Diff(want, records[1]); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
		if records[2].Geometry != nil {
			t.Errorf("Geometry = %v, want nil", records[2].Geometry)
		}
	})

	t.Run("id property", func(t *testing.T) {
		ds := dataset(t)
		ds.IDProperty = "stop_id"
		records, err := ReadGeoJSON(strings.NewReader(stops), ds)
		if err != nil {
			t.Fatal(err)
		}
		var got []uint32
		for _, r := range records {
			got = append(got, r.ID)
		}
		if diff := cmp.Diff([]uint32{10, 20, 30}, got); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			in   string
			want string
		}{
			{"json", `{`, "failed to parse features"},
			{"no id", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{"name":"a"}}]}`, "missing identifier"},
			{"negative id", `{"type":"FeatureCollection","features":[{"type":"Feature","id":-1,"geometry":null,"properties":{"name":"a"}}]}`, "invalid identifier"},
			{"fractional id", `{"type":"FeatureCollection","features":[{"type":"Feature","id":1.5,"geometry":null,"properties":{"name":"a"}}]}`, "invalid identifier"},
			{"text id", `{"type":"FeatureCollection","features":[{"type":"Feature","id":"a","geometry":null,"properties":{"name":"a"}}]}`, "invalid identifier"},
			{"required", `{"type":"FeatureCollection","features":[{"type":"Feature","id":1,"geometry":null,"properties":{}}]}`, "missing required property \"name\""},
		}
		ds := dataset(t)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ReadGeoJSON(strings.NewReader(tt.in), ds)
				if err == nil || !strings.Contains(err.Error(), tt.want) {
					t.Errorf("ReadGeoJSON() = %v, want error containing %q", err, tt.want)
				}
			})
		}
	})
}

func TestOpen(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		ds := dataset(t)
		set, err := Register(binding.NewRegistry(), ds)
		if err != nil {
			t.Fatal(err)
		}
		r, err := Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := r.(*memory.Repository[*Record]); !ok {
			t.Errorf("Open() = %T, want the memory engine", r)
		}
		if e, _ := r.Extents(); e != (orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 1}}) {
			t.Errorf("Extents() = %v", e)
		}
		if r.Title() != "Stop" {
			t.Errorf("Title() = %q", r.Title())
		}
	})

	t.Run("store", func(t *testing.T) {
		ds := dataset(t)
		ds.Store = filepath.Join(t.TempDir(), "db", "stops.jsonl")
		set, err := Register(binding.NewRegistry(), ds)
		if err != nil {
			t.Fatal(err)
		}
		r, err := Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := r.(*jsonl.Store[*Record]); !ok {
			t.Fatalf("Open() = %T, want the jsonl engine", r)
		}
		if n, _ := r.Count(); n != 3 {
			t.Fatalf("Count() = %d, want 3", n)
		}
		if _, err := r.Delete(&Record{ID: 1}); err != nil {
			t.Fatal(err)
		}

		// The store exists now: the source is not imported again.
		ds.Source = filepath.Join(t.TempDir(), "missing.geojson")
		r, err = Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		got, err := r.SelectOne(2)
		if err != nil {
			t.Fatal(err)
		}
		want := &Record{
			ID:         2,
			Geometry:   orb.Point{2, 1},
			Properties: geojson.Properties{"stop_id": "20", "name": "Market", "zone": 2.0, "extra": true},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("stored record mismatch (-want +got):\n%s", diff)
		}
		if n, _ := r.Count(); n != 2 {
			t.Errorf("Count() = %d, want 2", n)
		}
	})

	t.Run("store keeps every property", func(t *testing.T) {
		ds := dataset(t)
		set, err := Register(binding.NewRegistry(), ds)
		if err != nil {
			t.Fatal(err)
		}
		mem, err := Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		want, err := mem.All()
		if err != nil {
			t.Fatal(err)
		}
		ds.Store = filepath.Join(t.TempDir(), "stops.jsonl")
		fresh, err := Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		reopened, err := Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		for name, r := range map[string]repository.Repository[*Record]{"fresh": fresh, "reopened": reopened} {
			got, err := r.All()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s store mismatch (-memory +store):\n%s", name, diff)
			}
		}
		if err := reopened.Update(&Record{ID: 1, Geometry: orb.Point{5, 5}, Properties: geojson.Properties{"name": "Moved", "note": "x"}}); err != nil {
			t.Fatal(err)
		}
		again, err := Open(t.Context(), ds, set)
		if err != nil {
			t.Fatal(err)
		}
		got, err := again.SelectOne(1)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(geojson.Properties{"name": "Moved", "note": "x"}, got.Properties); diff != "" {
			t.Errorf("updated properties mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		ds := &config.DefaultConfig().Dataset
		set, err := Register(binding.NewRegistry(), ds)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Open(t.Context(), ds, set); err == nil {
			t.Error("Open() without source nor store succeeded")
		}
	})
}

func TestRecordFeature(t *testing.T) {
	rec := &Record{ID: 7, Geometry: orb.Point{1, 2}, Properties: geojson.Properties{"name": "a"}}
	f := rec.Feature()
	back, err := FromFeature(f, "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	f.Properties["name"] = "b"
	if rec.Properties["name"] != "a" {
		t.Error("Feature() shares the properties")
	}
}
