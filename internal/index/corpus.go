package index

import (
	"strings"

	"github.com/specimen-curation/labelsearch/internal/label"
)

// corpusKeys resolves the attribute subset to extract: the caller's keys if
// given, otherwise every attribute of the collection except the identifier.
func corpusKeys(c *label.Collection, keys []string) []string {
	if len(keys) > 0 {
		return keys
	}
	var out []string
	for _, key := range c.Keys() {
		if key != "ID" {
			out = append(out, key)
		}
	}
	return out
}

// RecordText extracts one record's corpus text: the masked values of the
// selected attributes joined by newlines. Missing attributes contribute
// empty strings.
func RecordText(r label.Record, keys []string, mask *Mask) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, mask.Apply(key, r.Attribute(key)))
	}
	return strings.Join(parts, "\n")
}

// Corpus extracts the per-record text for the whole collection in insertion
// order.
func Corpus(c *label.Collection, keys []string, mask *Mask) []string {
	keys = corpusKeys(c, keys)
	out := make([]string, 0, c.Len())
	for _, r := range c.All() {
		out = append(out, RecordText(r, keys, mask))
	}
	return out
}
