package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specimen-curation/labelsearch/internal/label"
	"github.com/specimen-curation/labelsearch/internal/store"
	"github.com/specimen-curation/labelsearch/pkg/kafka"
	"github.com/specimen-curation/labelsearch/pkg/metrics"
	"github.com/specimen-curation/labelsearch/pkg/resilience"
)

// Handler persists incoming transcript events.
type Handler struct {
	store   *store.RecordStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler writing to the given store. metrics may be
// nil.
func NewHandler(s *store.RecordStore, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   s,
		metrics: m,
		logger:  slog.Default().With("component", "ingest"),
	}
}

// Handle is the kafka.MessageHandler for transcript events. Store writes are
// retried; an event without an identifier is rejected.
func (h *Handler) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[TranscriptEvent](value)
	if err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("transcript event without id (key %q)", string(key))
	}

	var record label.Record
	if event.IsCollectingEvent() {
		record = label.CollectingEvent{
			Identifier: event.ID,
			Location:   event.Location,
			Date:       event.Date,
			Collector:  event.Collector,
			Text:       event.Text,
		}
	} else {
		record = label.Label{Identifier: event.ID, Text: event.Text}
	}

	err = resilience.Retry(ctx, "record-upsert", resilience.RetryConfig{}, func() error {
		return h.store.Upsert(ctx, record)
	})
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordsIngestedTotal.Inc()
	}
	h.logger.Debug("transcript stored", "id", event.ID, "source", event.Source)
	return nil
}
