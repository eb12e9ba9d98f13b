// Package pgwriter persists events to the Postgres events table.
package pgwriter

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// Writer is a Postgres-backed events.Writer.
type Writer struct {
	db *sql.DB
}

// New constructs a Writer backed by db.
func New(db *sql.DB) *Writer {
	return &Writer{db: db}
}

func (w *Writer) Write(ctx context.Context, eventType string, payload map[string]any) (*domain.Event, error) {
	evt, err := events.NewEvent(eventType, payload, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	payloadJSON, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to marshal event payload", err)
	}

	_, err = w.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, payload, witness_hash, schema_version, emitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.ID, evt.EventType, payloadJSON, evt.WitnessHash[:], evt.SchemaVersion, evt.EmittedAt)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to persist event", err)
	}
	return evt, nil
}
