package memwriter

import (
	"context"
	"testing"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

func TestWriteAssignsWitnessHash(t *testing.T) {
	w := New()
	evt, err := w.Write(context.Background(), domain.EventPetitionReceived, map[string]any{"petition_id": "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var zero [32]byte
	if evt.WitnessHash == zero {
		t.Errorf("expected non-zero witness hash")
	}
	if evt.EmittedAt.IsZero() {
		t.Errorf("expected EmittedAt to be set")
	}
}

func TestWriteIsAppendOnly(t *testing.T) {
	w := New()
	ctx := context.Background()
	_, _ = w.Write(ctx, domain.EventPetitionReceived, map[string]any{"a": 1})
	_, _ = w.Write(ctx, domain.EventPetitionFated, map[string]any{"b": 2})

	all := w.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	if all[0].EventType != domain.EventPetitionReceived || all[1].EventType != domain.EventPetitionFated {
		t.Errorf("expected emission order preserved")
	}
}

func TestFailNextWrite(t *testing.T) {
	w := New()
	ctx := context.Background()
	w.FailNextWrite()

	_, err := w.Write(ctx, domain.EventPetitionFated, map[string]any{"a": 1})
	if petitionerr.KindOf(err) != petitionerr.KindTransient {
		t.Errorf("expected forced KindTransient failure, got %v", err)
	}

	// The toggle is one-shot; the next write should succeed.
	evt, err := w.Write(ctx, domain.EventPetitionFated, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("expected second write to succeed, got %v", err)
	}
	if evt == nil {
		t.Fatalf("expected event to be returned")
	}
	if w.CountByType(domain.EventPetitionFated) != 1 {
		t.Errorf("expected the failed write to not be persisted")
	}
}
