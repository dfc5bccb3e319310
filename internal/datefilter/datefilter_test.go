package datefilter

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/specimen-curation/labelsearch/internal/label"
	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRangeOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{
			name: "identical",
			a:    Range{day("1932-07-01"), day("1932-07-31")},
			b:    Range{day("1932-07-01"), day("1932-07-31")},
			want: true,
		},
		{
			name: "partial overlap",
			a:    Range{day("1932-07-01"), day("1932-07-31")},
			b:    Range{day("1932-07-20"), day("1932-08-10")},
			want: true,
		},
		{
			name: "touching endpoints are inclusive",
			a:    Range{day("1932-07-01"), day("1932-07-31")},
			b:    Range{day("1932-07-31"), day("1932-08-31")},
			want: true,
		},
		{
			name: "disjoint",
			a:    Range{day("1932-07-01"), day("1932-07-31")},
			b:    Range{day("1933-01-01"), day("1933-12-31")},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end string
	}{
		{"1932", "1932-01-01", "1932-12-31"},
		{"1932-07", "1932-07-01", "1932-07-31"},
		{"1932-07-15", "1932-07-15", "1932-07-15"},
		{"1932/1934", "1932-01-01", "1934-12-31"},
		{"1932-07/1932-09", "1932-07-01", "1932-09-30"},
		{"1932-07-01/1932-07-15", "1932-07-01", "1932-07-15"},
		{" 1932 / 1933 ", "1932-01-01", "1933-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Start.Equal(day(tt.start)) || !got.End.Equal(day(tt.end)) {
				t.Errorf("ParseRange(%q) = [%s, %s], want [%s, %s]", tt.in,
					got.Start.Format("2006-01-02"), got.End.Format("2006-01-02"),
					tt.start, tt.end)
			}
		})
	}
}

func TestParseRangeErrors(t *testing.T) {
	for _, in := range []string{"", "July 1932", "1932-13", "32", "1934/1932"} {
		if _, err := ParseRange(in); err == nil {
			t.Errorf("ParseRange(%q) accepted", in)
		}
	}
}

func testEvents() *label.Collection {
	return label.NewCollection(
		label.CollectingEvent{Identifier: "E1", Date: "1932-07", Text: "Mount Fuji"},
		label.CollectingEvent{Identifier: "E2", Date: "1933", Text: "Hokkaido"},
		label.CollectingEvent{Identifier: "E3", Date: "summer, no year", Text: "unknown"},
		label.CollectingEvent{Identifier: "E4", Text: "undated"},
	)
}

func TestBuildSkipsUnparseableDates(t *testing.T) {
	f := Build(testEvents())
	if f.Len() != 2 {
		t.Errorf("Len = %d, want 2 (unparseable and empty dates skipped)", f.Len())
	}
}

func TestPredicate(t *testing.T) {
	f := Build(testEvents())

	p, err := f.Predicate("1932")
	if err != nil {
		t.Fatal(err)
	}
	if !p("E1") {
		t.Error("E1 (1932-07) should overlap 1932")
	}
	if p("E2") {
		t.Error("E2 (1933) should not overlap 1932")
	}
	// Records without a parsed date never match by date.
	if p("E3") || p("E4") {
		t.Error("undated records matched")
	}
	if p("E9") {
		t.Error("unknown record matched")
	}

	p, err = f.Predicate("1932-06/1933-02")
	if err != nil {
		t.Fatal(err)
	}
	if !p("E1") || !p("E2") {
		t.Error("range query should admit both dated records")
	}

	if _, err := f.Predicate("sometime"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Predicate on malformed query: got %v, want ErrInvalidInput", err)
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	orig := Build(testEvents())
	var buf bytes.Buffer
	if err := orig.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != orig.Len() {
		t.Fatalf("Len = %d, want %d", loaded.Len(), orig.Len())
	}
	p, err := loaded.Predicate("1932-07-15")
	if err != nil {
		t.Fatal(err)
	}
	if !p("E1") || p("E2") {
		t.Error("loaded filter does not reproduce original verdicts")
	}
}

func TestLoadRejectsCorruptInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"span without separator", `[{"span": "1932-07-01", "id": "E1"}]`},
		{"unparseable start", `[{"span": "july - 1932-07-31", "id": "E1"}]`},
		{"unparseable end", `[{"span": "1932-07-01 - never", "id": "E1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, apperrors.ErrCorruptIndex) {
				t.Errorf("Load: got %v, want ErrCorruptIndex", err)
			}
		})
	}
}
