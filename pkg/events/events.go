// Package events implements the Event Writer (C4): an append-only ledger
// of witnessed events, each carrying a hash over its canonical
// serialization.
//
// Canonical serialization relies on a property of Go's encoding/json: when
// marshaling a map[string]any, object keys are written in sorted order.
// That gives deterministic sorted-keys JSON for free, the same guarantee
// the original's signable_content()/to_json() methods construct by hand.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/hashing"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// Writer is the Event Writer contract (C4).
type Writer interface {
	// Write persists a new event: it assigns EmittedAt, computes
	// WitnessHash over the canonical JSON of payload, and appends the
	// record. Returns the persisted Event. Events are append-only; there
	// is no update or delete operation.
	Write(ctx context.Context, eventType string, payload map[string]any) (*domain.Event, error)
}

// Canonicalize serializes payload as sorted-keys JSON. Exposed so callers
// that need to pre-compute a witness hash outside of Write (none currently
// do, but the original's signable_content() pattern expects it) can reuse
// the exact same serialization.
func Canonicalize(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}

// NewEvent is a constructor shared by every Writer implementation so the
// witness-hash computation cannot drift between them.
func NewEvent(eventType string, payload map[string]any, now time.Time) (*domain.Event, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to canonicalize event payload", err)
	}
	return &domain.Event{
		ID:            uuid.New(),
		EventType:     eventType,
		Payload:       payload,
		WitnessHash:   hashing.Hash(canonical),
		SchemaVersion: domain.CurrentSchemaVersion,
		EmittedAt:     now,
	}, nil
}
