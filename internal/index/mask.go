package index

import (
	"regexp"
	"sort"

	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

// Mask holds compiled patterns keyed by attribute name. Matching substrings
// are deleted from the attribute value before corpus extraction, stripping
// known noise such as stamped inventory URLs from OCR text.
type Mask struct {
	patterns map[string]*regexp.Regexp
}

// NewMask compiles one pattern per attribute name. A malformed pattern is a
// configuration error and is rejected here, not at first use.
func NewMask(patterns map[string]string) (*Mask, error) {
	m := &Mask{patterns: make(map[string]*regexp.Regexp, len(patterns))}
	for attr, expr := range patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrBadMask, 400,
				"attribute %q: %v", attr, err)
		}
		m.patterns[attr] = re
	}
	return m, nil
}

// Apply deletes all matches of the attribute's pattern from value.
// Attributes without a pattern pass through unchanged.
func (m *Mask) Apply(attr, value string) string {
	if m == nil {
		return value
	}
	re, ok := m.patterns[attr]
	if !ok {
		return value
	}
	return re.ReplaceAllString(value, "")
}

// Patterns returns the pattern sources keyed by attribute, for persistence.
func (m *Mask) Patterns() map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m.patterns))
	for attr, re := range m.patterns {
		out[attr] = re.String()
	}
	return out
}

// Attrs returns the masked attribute names, sorted.
func (m *Mask) Attrs() []string {
	if m == nil {
		return nil
	}
	attrs := make([]string, 0, len(m.patterns))
	for attr := range m.patterns {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	return attrs
}
