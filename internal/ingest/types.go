// Package ingest consumes OCR transcript events from Kafka and persists them
// in the record store, where the next batch index build picks them up.
package ingest

import "time"

// TranscriptEvent is the Kafka payload for one digitized label. Location,
// Date, and Collector are set when the upstream pipeline has already
// extracted a collecting event; a bare transcript carries only ID and Text.
type TranscriptEvent struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Location  string    `json:"location,omitempty"`
	Date      string    `json:"date,omitempty"`
	Collector string    `json:"collector,omitempty"`
	Source    string    `json:"source,omitempty"`
	ScannedAt time.Time `json:"scanned_at,omitempty"`
}

// IsCollectingEvent reports whether the event carries extracted fields.
func (e TranscriptEvent) IsCollectingEvent() bool {
	return e.Location != "" || e.Date != "" || e.Collector != ""
}

// IndexRebuiltEvent announces a completed index build so search instances
// can invalidate their query caches and reload.
type IndexRebuiltEvent struct {
	IndexPath  string    `json:"index_path"`
	Records    int       `json:"records"`
	Vocabulary int       `json:"vocabulary"`
	Weighting  string    `json:"weighting"`
	BuiltAt    time.Time `json:"built_at"`
}
