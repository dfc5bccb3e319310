package index

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

func TestNewMaskBadPattern(t *testing.T) {
	_, err := NewMask(map[string]string{"text": "(["})
	if !errors.Is(err, apperrors.ErrBadMask) {
		t.Fatalf("NewMask with malformed pattern: got %v, want ErrBadMask", err)
	}
}

func TestMaskApply(t *testing.T) {
	m, err := NewMask(map[string]string{
		"text": `http://coll\.mfn-berlin\.de/u/\w+`,
	})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		attr, value, want string
	}{
		{"text", "Mount Fuji http://coll.mfn-berlin.de/u/abc123 Japan", "Mount Fuji  Japan"},
		{"text", "no stamp here", "no stamp here"},
		{"location", "http://coll.mfn-berlin.de/u/abc123", "http://coll.mfn-berlin.de/u/abc123"},
	}
	for _, tt := range tests {
		if got := m.Apply(tt.attr, tt.value); got != tt.want {
			t.Errorf("Apply(%q, %q) = %q, want %q", tt.attr, tt.value, got, tt.want)
		}
	}
}

func TestMaskNilPassesThrough(t *testing.T) {
	var m *Mask
	if got := m.Apply("text", "unchanged"); got != "unchanged" {
		t.Errorf("nil mask Apply = %q, want unchanged", got)
	}
	if got := m.Patterns(); got != nil {
		t.Errorf("nil mask Patterns = %v, want nil", got)
	}
}

func TestMaskPatternsRoundTrip(t *testing.T) {
	src := map[string]string{"text": `\d+`, "location": `[A-Z]{2}-\d+`}
	m, err := NewMask(src)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Patterns(); !reflect.DeepEqual(got, src) {
		t.Errorf("Patterns() = %v, want %v", got, src)
	}
	if got := m.Attrs(); !reflect.DeepEqual(got, []string{"location", "text"}) {
		t.Errorf("Attrs() = %v, want sorted attribute names", got)
	}
}
