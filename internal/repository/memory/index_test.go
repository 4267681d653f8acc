package memory

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

func TestUniqueIndex(t *testing.T) {
	r := newGrid(t)
	idx := NewUniqueIndex(r, func(p *pointOfInterest) string { return p.Address })

	t.Run("built from existing records", func(t *testing.T) {
		got, ok := idx.Get("1 1")
		if !ok || got.ID != 5 {
			t.Errorf("Get(1 1) = %v, %v, want record 5", got, ok)
		}
		if idx.Len() != 9 {
			t.Errorf("Len() = %d, want 9", idx.Len())
		}
	})

	t.Run("insert", func(t *testing.T) {
		if err := r.Insert(&pointOfInterest{ID: 10, Address: "new"}); err != nil {
			t.Fatal(err)
		}
		if got, ok := idx.Get("new"); !ok || got.ID != 10 {
			t.Errorf("Get(new) = %v, %v, want record 10", got, ok)
		}
	})

	t.Run("update moves the key", func(t *testing.T) {
		if err := r.Update(&pointOfInterest{ID: 10, Address: "renamed"}); err != nil {
			t.Fatal(err)
		}
		if _, ok := idx.Get("new"); ok {
			t.Error("Get(new) still found")
		}
		if got, ok := idx.Get("renamed"); !ok || got.ID != 10 {
			t.Errorf("Get(renamed) = %v, %v, want record 10", got, ok)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := r.Delete(&pointOfInterest{ID: 10}); err != nil {
			t.Fatal(err)
		}
		if _, ok := idx.Get("renamed"); ok {
			t.Error("Get(renamed) still found")
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		if err := r.Insert(&pointOfInterest{ID: 11, Address: "0 0"}); err != nil {
			t.Fatal(err)
		}
		if got, ok := idx.Get("0 0"); !ok || got.ID != 11 {
			t.Errorf("Get(0 0) = %v, %v, want record 11", got, ok)
		}
		// Deleting the shadowed record keeps the winner.
		if _, err := r.Delete(&pointOfInterest{ID: 1}); err != nil {
			t.Fatal(err)
		}
		if got, ok := idx.Get("0 0"); !ok || got.ID != 11 {
			t.Errorf("Get(0 0) = %v, %v, want record 11", got, ok)
		}
	})

	t.Run("shared key falls back to remaining owner", func(t *testing.T) {
		if err := r.Insert(&pointOfInterest{ID: 20, Address: "k"}, &pointOfInterest{ID: 21, Address: "k"}); err != nil {
			t.Fatal(err)
		}
		if got, ok := idx.Get("k"); !ok || got.ID != 21 {
			t.Errorf("Get(k) = %v, %v, want record 21", got, ok)
		}
		if _, err := r.Delete(&pointOfInterest{ID: 21}); err != nil {
			t.Fatal(err)
		}
		if got, ok := idx.Get("k"); !ok || got.ID != 20 {
			t.Errorf("Get(k) after delete = %v, %v, want record 20", got, ok)
		}
		if err := r.Insert(&pointOfInterest{ID: 22, Address: "k"}); err != nil {
			t.Fatal(err)
		}
		if err := r.Update(&pointOfInterest{ID: 22, Address: "elsewhere"}); err != nil {
			t.Fatal(err)
		}
		if got, ok := idx.Get("k"); !ok || got.ID != 20 {
			t.Errorf("Get(k) after update = %v, %v, want record 20", got, ok)
		}
		if _, err := r.Delete(&pointOfInterest{ID: 20}); err != nil {
			t.Fatal(err)
		}
		if _, ok := idx.Get("k"); ok {
			t.Error("Get(k) found a record after every owner left")
		}
	})
}

func TestIndex(t *testing.T) {
	r := newGrid(t)
	idx := NewIndex(r, func(p *pointOfInterest) string { return p.Kind })
	collect := func(key string) []uint32 {
		var out []uint32
		for p := range idx.Iter(key) {
			out = append(out, p.ID)
		}
		return out
	}

	if diff := cmp.Diff([]uint32{2, 5, 8}, collect("shop")); diff != "" {
		t.Errorf("Iter(shop) mismatch (-want +got):\n%s", diff)
	}

	if err := r.Update(&pointOfInterest{ID: 2, Kind: "park", Geometry: orb.Point{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{5, 8}, collect("shop")); diff != "" {
		t.Errorf("Iter(shop) after update mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{2, 3, 6, 9}, collect("park")); diff != "" {
		t.Errorf("Iter(park) after update mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.DeleteWhere(func(p *pointOfInterest) bool { return p.Kind == "park" }); err != nil {
		t.Fatal(err)
	}
	if got := collect("park"); len(got) != 0 {
		t.Errorf("Iter(park) = %v, want none", got)
	}

	if err := r.Reset(&pointOfInterest{ID: 30, Kind: "cafe"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{30}, collect("cafe")); diff != "" {
		t.Errorf("Iter(cafe) after reset mismatch (-want +got):\n%s", diff)
	}

	// Early break.
	if err := r.Insert(&pointOfInterest{ID: 31, Kind: "cafe"}, &pointOfInterest{ID: 32, Kind: "cafe"}); err != nil {
		t.Fatal(err)
	}
	got := slices.Collect(func(yield func(uint32) bool) {
		for p := range idx.Iter("cafe") {
			if !yield(p.ID) || p.ID == 31 {
				return
			}
		}
	})
	if diff := cmp.Diff([]uint32{30, 31}, got); diff != "" {
		t.Errorf("early break mismatch (-want +got):\n%s", diff)
	}
}
