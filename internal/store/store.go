// Package store persists transcript records in PostgreSQL. The table is the
// durable source the index builder reads from; insertion order is preserved
// so collections load in the same order they were ingested.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/specimen-curation/labelsearch/internal/label"
	"github.com/specimen-curation/labelsearch/pkg/postgres"
)

// Record kinds stored in the records table.
const (
	KindLabel           = "label"
	KindCollectingEvent = "collecting_event"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	event_date TEXT NOT NULL DEFAULT '',
	collector  TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS records_kind_idx ON records (kind);
`

// RecordStore reads and writes records.
type RecordStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a RecordStore over an open connection pool.
func New(client *postgres.Client) *RecordStore {
	return &RecordStore{
		client: client,
		logger: slog.Default().With("component", "record-store"),
	}
}

// EnsureSchema creates the records table if it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating records schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces one record. A duplicate identifier keeps its
// original position and takes the newer content, matching in-memory
// collection semantics.
func (s *RecordStore) Upsert(ctx context.Context, r label.Record) error {
	kind := KindLabel
	if len(r.Keys()) > 2 {
		kind = KindCollectingEvent
	}
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO records (id, kind, location, event_date, collector, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			location = EXCLUDED.location,
			event_date = EXCLUDED.event_date,
			collector = EXCLUDED.collector,
			body = EXCLUDED.body`,
		r.ID(), kind,
		r.Attribute("location"), r.Attribute("date"),
		r.Attribute("collector"), r.Attribute("text"),
	)
	if err != nil {
		return fmt.Errorf("upserting record %q: %w", r.ID(), err)
	}
	return nil
}

// UpsertBatch writes several records in one transaction.
func (s *RecordStore) UpsertBatch(ctx context.Context, records []label.Record) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (id, kind, location, event_date, collector, body)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				kind = EXCLUDED.kind,
				location = EXCLUDED.location,
				event_date = EXCLUDED.event_date,
				collector = EXCLUDED.collector,
				body = EXCLUDED.body`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range records {
			kind := KindLabel
			if len(r.Keys()) > 2 {
				kind = KindCollectingEvent
			}
			if _, err := stmt.ExecContext(ctx,
				r.ID(), kind,
				r.Attribute("location"), r.Attribute("date"),
				r.Attribute("collector"), r.Attribute("text"),
			); err != nil {
				return fmt.Errorf("upserting record %q: %w", r.ID(), err)
			}
		}
		return nil
	})
}

// LoadCollection reads all records of one kind, in insertion order.
func (s *RecordStore) LoadCollection(ctx context.Context, kind string) (*label.Collection, error) {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT id, location, event_date, collector, body
		FROM records WHERE kind = $1 ORDER BY seq`, kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s records: %w", kind, err)
	}
	defer rows.Close()

	coll := label.NewCollection()
	for rows.Next() {
		var id, location, date, collector, body string
		if err := rows.Scan(&id, &location, &date, &collector, &body); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if kind == KindLabel {
			coll.Add(label.Label{Identifier: id, Text: body})
		} else {
			coll.Add(label.CollectingEvent{
				Identifier: id,
				Location:   location,
				Date:       date,
				Collector:  collector,
				Text:       body,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	s.logger.Debug("collection loaded", "kind", kind, "records", coll.Len())
	return coll, nil
}

// Count returns the number of stored records of one kind.
func (s *RecordStore) Count(ctx context.Context, kind string) (int, error) {
	var n int
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE kind = $1`, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}
