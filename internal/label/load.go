package label

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LoadLabels reads a JSON array of label objects.
func LoadLabels(r io.Reader) (*Collection, error) {
	var items []Label
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding labels: %w", err)
	}
	c := NewCollection()
	for _, item := range items {
		c.Add(item)
	}
	return c, nil
}

// LoadCollectingEvents reads a JSON array of collecting-event objects.
func LoadCollectingEvents(r io.Reader) (*Collection, error) {
	var items []CollectingEvent
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding collecting events: %w", err)
	}
	c := NewCollection()
	for _, item := range items {
		c.Add(item)
	}
	return c, nil
}

// visionResponse mirrors the fragment of the Google Vision OCR output that
// carries the full transcribed text of one label image.
type visionResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
	} `json:"responses"`
}

// IDFormatter generates a record identifier from a 1-based ordinal.
type IDFormatter func(n int) string

// NewIDFormatter parses a "prefix:width" template, e.g. "MFNB:6" yields
// MFNB000001, MFNB000002, and so on.
func NewIDFormatter(template string) (IDFormatter, error) {
	prefix, width, ok := strings.Cut(template, ":")
	if !ok {
		return nil, fmt.Errorf("identifier template %q: want prefix:width", template)
	}
	var w int
	if _, err := fmt.Sscanf(width, "%d", &w); err != nil || w < 1 {
		return nil, fmt.Errorf("identifier template %q: bad width %q", template, width)
	}
	format := fmt.Sprintf("%%s%%0%dd", w)
	return func(n int) string {
		return fmt.Sprintf(format, prefix, n)
	}, nil
}

// LoadGoogleVision reads a Google Vision JSON output file and builds one
// label per response, with identifiers generated by ident starting at start.
func LoadGoogleVision(r io.Reader, ident IDFormatter, start int) (*Collection, error) {
	var doc visionResponse
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding vision output: %w", err)
	}
	c := NewCollection()
	n := start
	for _, resp := range doc.Responses {
		c.Add(Label{Identifier: ident(n), Text: resp.FullTextAnnotation.Text})
		n++
	}
	return c, nil
}

// TableOptions maps record attributes to 0-based column indexes of a
// delimited text file. A field mapped to several columns gets the non-empty
// cells joined with ", ".
type TableOptions struct {
	// Fields maps attribute names to the columns that feed them.
	Fields map[string][]int
	// Separator is the column delimiter. Empty means detect from the first
	// line, defaulting to tab.
	Separator string
	// SkipHeader drops the first line.
	SkipHeader bool
	// Ident generates record identifiers from the 1-based row number.
	Ident IDFormatter
}

// LoadTable reads collecting events from a delimited text file. When the
// separator cannot be determined from the first line, the reader falls back
// to tab and logs the decision so the input can be corrected later.
func LoadTable(r io.Reader, opts TableOptions) (*Collection, error) {
	if opts.Ident == nil {
		return nil, fmt.Errorf("table reader requires an identifier formatter")
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	c := NewCollection()
	sep := opts.Separator
	first := true
	row := 0
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if sep == "" {
				sep = detectSeparator(line)
			}
			if opts.SkipHeader {
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		row++
		cells := strings.Split(line, sep)
		event := CollectingEvent{Identifier: opts.Ident(row)}
		for field, cols := range opts.Fields {
			var parts []string
			for _, col := range cols {
				if col < 0 || col >= len(cells) {
					continue
				}
				if v := strings.TrimSpace(cells[col]); v != "" {
					parts = append(parts, v)
				}
			}
			value := strings.Join(parts, ", ")
			switch field {
			case "location":
				event.Location = value
			case "date":
				event.Date = value
			case "collector":
				event.Collector = value
			case "text":
				event.Text = value
			default:
				return nil, fmt.Errorf("table reader: unknown field %q", field)
			}
		}
		c.Add(event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	return c, nil
}

// detectSeparator guesses the column delimiter from a sample line. An
// ambiguous or delimiter-free line falls back to tab.
func detectSeparator(line string) string {
	for _, sep := range []string{"\t", ";", ","} {
		if strings.Contains(line, sep) {
			return sep
		}
	}
	slog.Warn("could not detect table separator, assuming tab")
	return "\t"
}
