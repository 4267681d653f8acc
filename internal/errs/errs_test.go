package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	t.Run("Is", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			target error
			want   bool
		}{
			{"not found", NotFound(3), ErrNotFound, true},
			{"no match", NoMatch(), ErrNotFound, true},
			{"duplicate", DuplicateKey(3), ErrDuplicateKey, true},
			{"duplicate is not not-found", DuplicateKey(3), ErrNotFound, false},
			{"wrapped", fmt.Errorf("insert: %w", DuplicateKey(1)), ErrDuplicateKey, true},
			{"configuration", Configuration("Stop", "no geometry"), ErrConfiguration, true},
			{"materialization", Materialization(1, "Name", errors.New("boom")), ErrMaterialization, true},
			{"storage", Storage("failed to write", errors.New("disk full")), ErrStorage, true},
			{"malformed", MalformedGeometry("ring is not closed"), ErrMalformedGeometry, true},
			{"invalid query", InvalidQuery("unknown column"), ErrInvalidQuery, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := errors.Is(tt.err, tt.target); got != tt.want {
					t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
				}
			})
		}
	})

	t.Run("Materialization", func(t *testing.T) {
		cause := errors.New("boom")
		err := Materialization(42, "Address", cause)
		if !errors.Is(err, cause) {
			t.Errorf("cause not unwrapped from %v", err)
		}
		var e *Error
		if !errors.As(fmt.Errorf("query: %w", err), &e) {
			t.Fatal("errors.As failed")
		}
		if got := e.Details()["id"]; got != uint32(42) {
			t.Errorf("id = %v, want 42", got)
		}
		if got := e.Details()["column"]; got != "Address" {
			t.Errorf("column = %v, want Address", got)
		}
		if got, want := e.Error(), `failed to materialize column "Address" of record 42: boom`; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("Code", func(t *testing.T) {
		if got := NotFound(1).Code(); got != CodeNotFound {
			t.Errorf("Code() = %s, want %s", got, CodeNotFound)
		}
	})
}
