// Package label defines the record types produced by specimen label
// digitization (raw transcribed labels and curated collecting events) and the
// ordered collections the search engine indexes.
package label

// Record is any entity with a stable identifier and a fixed, ordered set of
// named text attributes. The two shapes in this domain are Label and
// CollectingEvent; the engine only depends on this interface.
type Record interface {
	// ID returns the unique identifier of the record.
	ID() string
	// Keys returns the ordered attribute names, identifier included.
	Keys() []string
	// Attribute returns the value of the named attribute, or the empty
	// string when the attribute is absent or unknown.
	Attribute(key string) string
}

// Label is a raw transcribed specimen label: an identifier and the OCR text.
type Label struct {
	Identifier string `json:"ID"`
	Text       string `json:"text"`
}

var labelKeys = []string{"ID", "text"}

func (l Label) ID() string { return l.Identifier }

func (l Label) Keys() []string { return labelKeys }

func (l Label) Attribute(key string) string {
	switch key {
	case "ID":
		return l.Identifier
	case "text":
		return l.Text
	}
	return ""
}

// CollectingEvent is a curated reference record: the raw label text plus the
// location, date, and collector extracted from it.
type CollectingEvent struct {
	Identifier string `json:"ID"`
	Location   string `json:"location"`
	Date       string `json:"date"`
	Collector  string `json:"collector"`
	Text       string `json:"text"`
}

var collectingEventKeys = []string{"ID", "location", "date", "collector", "text"}

func (e CollectingEvent) ID() string { return e.Identifier }

func (e CollectingEvent) Keys() []string { return collectingEventKeys }

func (e CollectingEvent) Attribute(key string) string {
	switch key {
	case "ID":
		return e.Identifier
	case "location":
		return e.Location
	case "date":
		return e.Date
	case "collector":
		return e.Collector
	case "text":
		return e.Text
	}
	return ""
}
