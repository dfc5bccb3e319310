// Package datefilter builds a date index over a collecting-event collection
// and produces eligibility predicates for the search engine: a record is
// eligible when its collecting date range overlaps the queried date or
// range. It is maintained separately from the token index and supplied to
// queries as a predicate.
package datefilter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specimen-curation/labelsearch/internal/label"
	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

// Range is an inclusive date interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two inclusive intervals intersect.
func (r Range) Overlaps(other Range) bool {
	return !r.End.Before(other.Start) && !other.End.Before(r.Start)
}

// Filter maps record identifiers to their parsed date ranges. Records whose
// date attribute could not be parsed are absent and never match by date.
type Filter struct {
	entries map[string]Range
	order   []string
}

// Build parses the "date" attribute of every record. Unparseable dates are
// skipped with a diagnostic; they are a data-quality issue, not an error.
func Build(coll *label.Collection) *Filter {
	f := &Filter{entries: make(map[string]Range)}
	for _, r := range coll.All() {
		raw := r.Attribute("date")
		if raw == "" {
			continue
		}
		rng, err := ParseRange(raw)
		if err != nil {
			slog.Debug("skipping record with unparseable date",
				"id", r.ID(), "date", raw)
			continue
		}
		f.entries[r.ID()] = rng
		f.order = append(f.order, r.ID())
	}
	return f
}

// Len returns the number of date-indexed records.
func (f *Filter) Len() int {
	return len(f.entries)
}

// Predicate returns an eligibility test for records overlapping the query
// date or range. Records without a parsed date are ineligible.
func (f *Filter) Predicate(query string) (func(recordID string) bool, error) {
	qr, err := ParseRange(query)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
			"%q is not a date or date range", query)
	}
	return func(recordID string) bool {
		rng, ok := f.entries[recordID]
		return ok && rng.Overlaps(qr)
	}, nil
}

// ParseRange reads an ISO date ("2024", "2024-06", "2024-06-15") or a
// "start/end" range of such dates. A bare year or month denotes the whole
// year or month.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if start, end, ok := strings.Cut(s, "/"); ok {
		a, err := parseDate(start, false)
		if err != nil {
			return Range{}, err
		}
		b, err := parseDate(end, true)
		if err != nil {
			return Range{}, err
		}
		if b.Before(a) {
			return Range{}, fmt.Errorf("date range %q ends before it starts", s)
		}
		return Range{Start: a, End: b}, nil
	}
	a, err := parseDate(s, false)
	if err != nil {
		return Range{}, err
	}
	b, _ := parseDate(s, true)
	return Range{Start: a, End: b}, nil
}

// parseDate resolves a partial ISO date to its first or last covered day.
func parseDate(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !end {
			return t, nil
		}
		switch layout {
		case "2006":
			return t.AddDate(1, 0, -1), nil
		case "2006-01":
			return t.AddDate(0, 1, -1), nil
		default:
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// persistedEntry serializes one record's range as ["start - end", id], with
// ISO day precision.
type persistedEntry struct {
	Span string `json:"span"`
	ID   string `json:"id"`
}

// Dump writes the date index as JSON.
func (f *Filter) Dump(w io.Writer) error {
	entries := make([]persistedEntry, 0, len(f.order))
	for _, id := range f.order {
		rng := f.entries[id]
		entries = append(entries, persistedEntry{
			Span: rng.Start.Format("2006-01-02") + " - " + rng.End.Format("2006-01-02"),
			ID:   id,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding date index: %w", err)
	}
	return nil
}

// Load reads a date index written by Dump.
func Load(r io.Reader) (*Filter, error) {
	var entries []persistedEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503, "date index: %v", err)
	}
	f := &Filter{entries: make(map[string]Range, len(entries))}
	for _, e := range entries {
		start, end, ok := strings.Cut(e.Span, " - ")
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503,
				"date index span %q", e.Span)
		}
		a, err := parseDate(start, false)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503, "date index: %v", err)
		}
		b, err := parseDate(end, true)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503, "date index: %v", err)
		}
		f.entries[e.ID] = Range{Start: a, End: b}
		f.order = append(f.order, e.ID)
	}
	return f, nil
}
