package search

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/specimen-curation/labelsearch/internal/index"
	"github.com/specimen-curation/labelsearch/internal/label"
	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

func mustSearcher(t *testing.T, coll *label.Collection, opts index.BuildOptions) *Searcher {
	t.Helper()
	if opts.Weighting == "" {
		opts.Weighting = index.WeightingCount
	}
	ix, err := index.Build(context.Background(), coll, opts)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(ix, coll)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func hitScore(t *testing.T, hits []Hit, id string) float64 {
	t.Helper()
	for _, h := range hits {
		if h.Record.ID() == id {
			return h.Score
		}
	}
	t.Fatalf("record %q not in results", id)
	return 0
}

func TestNewNilIndex(t *testing.T) {
	_, err := New(nil, label.NewCollection())
	if !errors.Is(err, apperrors.ErrNotIndexed) {
		t.Fatalf("New(nil, coll): got %v, want ErrNotIndexed", err)
	}
}

func TestNewIndexCollectionMismatch(t *testing.T) {
	coll := label.NewCollection(label.Label{Identifier: "A", Text: "quartz ridge"})
	ix, err := index.Build(context.Background(), coll, index.BuildOptions{
		Weighting: index.WeightingCount,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(ix, label.NewCollection())
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Fatalf("New with mismatched collection: got %v, want ErrCorruptIndex", err)
	}
}

func TestSearchUnknownScoring(t *testing.T) {
	coll := label.NewCollection(label.Label{Identifier: "A", Text: "quartz ridge"})
	s := mustSearcher(t, coll, index.BuildOptions{})
	_, err := s.Search(context.Background(), "quartz", Options{Scoring: "bm25"})
	if !errors.Is(err, apperrors.ErrUnknownScoring) {
		t.Fatalf("Search with unknown scoring: got %v, want ErrUnknownScoring", err)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	coll := label.NewCollection(label.Label{Identifier: "A", Text: "quartz ridge"})
	s := mustSearcher(t, coll, index.BuildOptions{})
	for _, q := range []string{"", "   ", "-- ;; !!"} {
		hits, err := s.Search(context.Background(), q, Options{})
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if hits != nil {
			t.Errorf("Search(%q) = %v, want no results", q, hits)
		}
	}
}

func TestSearchCancelledContext(t *testing.T) {
	coll := label.NewCollection(label.Label{Identifier: "A", Text: "quartz ridge"})
	s := mustSearcher(t, coll, index.BuildOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Search(ctx, "quartz", Options{})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("Search with cancelled context: got %v, want ErrTimeout", err)
	}
}

func TestSearchSelfMatchScoresOne(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "quartz ridge meadow"},
		label.Label{Identifier: "B", Text: "granite slope"},
	)
	for _, weighting := range []string{index.WeightingCount, index.WeightingImportance} {
		t.Run(weighting, func(t *testing.T) {
			s := mustSearcher(t, coll, index.BuildOptions{Weighting: weighting})
			hits, err := s.Search(context.Background(), "quartz ridge meadow", Options{})
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) == 0 || hits[0].Record.ID() != "A" {
				t.Fatalf("expected A first, got %v", hits)
			}
			if math.Abs(hits[0].Score-1) > 1e-9 {
				t.Errorf("self-match score = %g, want 1", hits[0].Score)
			}
		})
	}
}

func TestSearchFuzzyMatching(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "quartz ridge meadow"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})

	// One edit within a six-rune token stays inside the budget.
	hits, err := s.Search(context.Background(), "quarts", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("fuzzy query found %d records, want 1", len(hits))
	}
	// weight 1 at identity 5/6, normalized by max score 3 and one of one
	// query tokens matched.
	want := (5.0 / 6.0) / 3.0
	if math.Abs(hits[0].Score-want) > 1e-9 {
		t.Errorf("fuzzy score = %g, want %g", hits[0].Score, want)
	}

	// The same query under exact matching finds nothing.
	hits, err = s.Search(context.Background(), "quarts", Options{Exact: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("exact query matched %v, want nothing", hits)
	}
}

func TestSearchShortTokensMatchExactly(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "fuji"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})

	hits, err := s.Search(context.Background(), "fuj", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("three-rune token matched fuzzily: %v", hits)
	}

	hits, err = s.Search(context.Background(), "fuji", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("exact token failed to match")
	}
}

func TestSearchRepeatedQueryTokensDoNotDoubleCount(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "river bank"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})
	hits, err := s.Search(context.Background(), "river river", Options{})
	if err != nil {
		t.Fatal(err)
	}
	// The record's single "river" token is consumed once: weight 1 over
	// max score 2, and one distinct match over two query tokens.
	want := (1.0 / 2.0) * (1.0 / 2.0)
	if got := hitScore(t, hits, "A"); math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %g, want %g", got, want)
	}
}

func TestSearchRanking(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A1", Text: "mount fuji japan"},
		label.Label{Identifier: "A2", Text: "mont fuji japon"},
		label.Label{Identifier: "A3", Text: "mount kenya"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})
	hits, err := s.Search(context.Background(), "mount fuji japan", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d results, want 3", len(hits))
	}
	for i, id := range []string{"A1", "A2", "A3"} {
		if hits[i].Record.ID() != id {
			t.Fatalf("rank %d = %s, want %s (all: %v)", i, hits[i].Record.ID(), id, hits)
		}
	}
	if math.Abs(hits[0].Score-1) > 1e-9 {
		t.Errorf("exact record score = %g, want 1", hits[0].Score)
	}
	// A2 matches every query token, but two of them fuzzily.
	want := (0.8 + 1 + 0.8) / 3.0
	if math.Abs(hits[1].Score-want) > 1e-9 {
		t.Errorf("fuzzy record score = %g, want %g", hits[1].Score, want)
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("score %g for %s out of [0,1]", h.Score, h.Record.ID())
		}
	}
}

func TestSearchTieBreakByID(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "B", Text: "quartz ridge"},
		label.Label{Identifier: "A", Text: "quartz ridge"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})
	hits, err := s.Search(context.Background(), "quartz", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].Record.ID() != "A" || hits[1].Record.ID() != "B" {
		t.Errorf("equal scores not ordered by identifier: %v", hits)
	}
}

func TestSearchPredicate(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "quartz ridge"},
		label.Label{Identifier: "B", Text: "quartz slope"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})

	calls := make(map[string]int)
	hits, err := s.Search(context.Background(), "quartz ridge", Options{
		Predicate: func(id string) bool {
			calls[id]++
			return id != "A"
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Record.ID() != "B" {
		t.Errorf("predicate did not exclude A: %v", hits)
	}
	// The predicate runs at most once per record for the whole query, even
	// though both query tokens reach record A.
	for id, n := range calls {
		if n > 1 {
			t.Errorf("predicate called %d times for %s", n, id)
		}
	}
}

func TestSearchLevenshteinScoring(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "mount fuji"},
		label.Label{Identifier: "B", Text: "mont fuji"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})
	hits, err := s.Search(context.Background(), "mount fuji", Options{Scoring: ScoringLevenshtein})
	if err != nil {
		t.Fatal(err)
	}
	if got := hitScore(t, hits, "A"); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical text scored %g, want 1", got)
	}
	// One edit over ten simplified runes.
	if got := hitScore(t, hits, "B"); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("one-edit text scored %g, want 0.9", got)
	}
}

func TestSearchCombinedScoring(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "mount fuji"},
		label.Label{Identifier: "B", Text: "mount fuji extra words here"},
	)
	s := mustSearcher(t, coll, index.BuildOptions{})
	hits, err := s.Search(context.Background(), "mount fuji", Options{Scoring: ScoringCombined})
	if err != nil {
		t.Fatal(err)
	}
	if got := hitScore(t, hits, "A"); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical text scored %g, want 1", got)
	}
	// B matches both tokens but carries extra text, so both factors
	// shrink below one.
	if got := hitScore(t, hits, "B"); got <= 0 || got >= 1 {
		t.Errorf("partial match scored %g, want within (0,1)", got)
	}
	if hits[0].Record.ID() != "A" {
		t.Errorf("exact record not ranked first: %v", hits)
	}
}

func TestSearchAfterReloadMatchesOriginal(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "mount fuji expedition 1923"},
		label.Label{Identifier: "B", Text: "fuji mountain trip 1924"},
		label.Label{Identifier: "C", Text: "sahara desert survey 2001"},
	)
	ix, err := index.Build(context.Background(), coll, index.BuildOptions{
		Weighting: index.WeightingImportance,
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := ix.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	reloaded, err := index.Load(&buf)
	if err != nil {
		t.Fatal(err)
	}

	before, err := New(ix, coll)
	if err != nil {
		t.Fatal(err)
	}
	after, err := New(reloaded, coll)
	if err != nil {
		t.Fatal(err)
	}

	queries := []string{"fuji expedition", "mont fuji", "desert survey", "expedishun"}
	for _, scoring := range []string{ScoringWeighted, ScoringLevenshtein, ScoringCombined} {
		for _, q := range queries {
			want, err := before.Search(context.Background(), q, Options{Scoring: scoring})
			if err != nil {
				t.Fatalf("%s %q: %v", scoring, q, err)
			}
			got, err := after.Search(context.Background(), q, Options{Scoring: scoring})
			if err != nil {
				t.Fatalf("%s %q after reload: %v", scoring, q, err)
			}
			if len(got) != len(want) {
				t.Fatalf("%s %q: %d hits after reload, want %d", scoring, q, len(got), len(want))
			}
			for i := range want {
				if got[i].Record.ID() != want[i].Record.ID() {
					t.Errorf("%s %q: rank %d is %s after reload, want %s",
						scoring, q, i, got[i].Record.ID(), want[i].Record.ID())
				}
				if math.Abs(got[i].Score-want[i].Score) > 1e-12 {
					t.Errorf("%s %q: score %g after reload, want %g",
						scoring, q, got[i].Score, want[i].Score)
				}
			}
		}
	}
}

func TestSearchScoresBounded(t *testing.T) {
	coll := label.NewCollection(
		label.Label{Identifier: "A", Text: "quartz ridge meadow quartz"},
		label.Label{Identifier: "B", Text: "granite slope meadow"},
		label.Label{Identifier: "C", Text: "limestone cavern"},
	)
	queries := []string{"quartz", "meadow slope", "quartz quartz quartz", "limestne cavern ridge"}
	for _, weighting := range []string{index.WeightingCount, index.WeightingImportance} {
		s := mustSearcher(t, coll, index.BuildOptions{Weighting: weighting})
		for _, scoring := range []string{ScoringWeighted, ScoringLevenshtein, ScoringCombined} {
			for _, q := range queries {
				hits, err := s.Search(context.Background(), q, Options{Scoring: scoring})
				if err != nil {
					t.Fatalf("%s/%s %q: %v", weighting, scoring, q, err)
				}
				for _, h := range hits {
					if h.Score < 0 || h.Score > 1+1e-9 {
						t.Errorf("%s/%s %q: score %g for %s out of [0,1]",
							weighting, scoring, q, h.Score, h.Record.ID())
					}
				}
				for i := 1; i < len(hits); i++ {
					if hits[i].Score > hits[i-1].Score {
						t.Errorf("%s/%s %q: results not sorted", weighting, scoring, q)
					}
				}
			}
		}
	}
}
