package petition

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
)

func TestCheckThresholdBoundary(t *testing.T) {
	if CheckThreshold(domain.PetitionCessation, 99).Reached {
		t.Errorf("expected 99 co-signers to not reach the CESSATION threshold")
	}
	if !CheckThreshold(domain.PetitionCessation, 100).Reached {
		t.Errorf("expected 100 co-signers to reach the CESSATION threshold")
	}
	if CheckThreshold(domain.PetitionGeneral, 1_000_000).Reached {
		t.Errorf("expected GENERAL petitions to never auto-escalate on co-signer count")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	id := uuid.New()
	cursor := BuildCursor(ts, id)
	parsed, err := ParseCursor(cursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.EscalatedAt.Equal(ts) || parsed.PetitionID != id {
		t.Errorf("expected round-tripped cursor to match input")
	}
}

func TestParseCursorRejectsMalformed(t *testing.T) {
	if _, err := ParseCursor("not-base64!!!"); petitionerr.KindOf(err) != petitionerr.KindValidation {
		t.Errorf("expected KindValidation for malformed cursor")
	}
}

func TestTextLengthBoundary(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	okText := strings.Repeat("a", domain.MaxTextLength)
	if _, err := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, okText, "governance", nil, nil); err != nil {
		t.Errorf("expected text at max length to be accepted, got %v", err)
	}

	tooLong := strings.Repeat("a", domain.MaxTextLength+1)
	if _, err := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, tooLong, "governance", nil, nil); petitionerr.KindOf(err) != petitionerr.KindValidation {
		t.Errorf("expected text over max length to be rejected")
	}
}

func TestKingRationaleLengthBoundary(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition", "governance", nil, nil)
	src := domain.EscalationDeliberation
	realm := "governance"
	_, _ = h.Coordinator.AssignFateTransactional(ctx, p.ID, statemachine.StateReceived, statemachine.StateEscalated, "test", nil, &src, &realm)

	exactly100 := strings.Repeat("a", 100)
	if _, err := h.AckExec.ExecuteKingAcknowledge(ctx, p.ID, uuid.New(), domain.ReasonAddressed, exactly100, "governance"); err != nil {
		t.Errorf("expected exactly 100 chars to be accepted, got %v", err)
	}

	p2, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition", "governance", nil, nil)
	_, _ = h.Coordinator.AssignFateTransactional(ctx, p2.ID, statemachine.StateReceived, statemachine.StateEscalated, "test", nil, &src, &realm)
	only99 := strings.Repeat("a", 99)
	if _, err := h.AckExec.ExecuteKingAcknowledge(ctx, p2.ID, uuid.New(), domain.ReasonAddressed, only99, "governance"); petitionerr.KindOf(err) != petitionerr.KindValidation {
		t.Errorf("expected 99 chars to be rejected")
	}
}

func TestMarquisAcknowledgmentIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition", "governance", nil, nil)
	_, _ = h.Store.AssignFateCAS(ctx, p.ID, statemachine.StateReceived, statemachine.StateDeliberating, nil, nil, nil)

	first, err := h.AckExec.Execute(ctx, p.ID, domain.ReasonAddressed, []int64{1, 2}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := h.AckExec.Execute(ctx, p.ID, domain.ReasonAddressed, []int64{1, 2}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected double-submit to return the same acknowledgment id")
	}
}

func TestKingAcknowledgmentSecondAttemptHardFails(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition", "governance", nil, nil)
	src := domain.EscalationDeliberation
	realm := "governance"
	_, _ = h.Coordinator.AssignFateTransactional(ctx, p.ID, statemachine.StateReceived, statemachine.StateEscalated, "test", nil, &src, &realm)

	rationale := strings.Repeat("a", 120)
	if _, err := h.AckExec.ExecuteKingAcknowledge(ctx, p.ID, uuid.New(), domain.ReasonAddressed, rationale, "governance"); err != nil {
		t.Fatalf("unexpected error on first King acknowledgment: %v", err)
	}

	_, err := h.AckExec.ExecuteKingAcknowledge(ctx, p.ID, uuid.New(), domain.ReasonAddressed, rationale, "governance")
	if petitionerr.KindOf(err) != petitionerr.KindAlreadyExists {
		t.Errorf("expected second King acknowledgment to hard-fail with KindAlreadyExists, got %v", err)
	}
}

func TestOrphanThresholdBoundary(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	monitor := NewOrphanMonitor(h.Store, h.Events, nil, 24*time.Hour, nil)
	monitor.Now = fixedClock(now)

	atBoundary := &domain.Petition{
		ID: uuid.New(), Type: domain.PetitionGeneral, Text: "at boundary",
		State: statemachine.StateReceived, Realm: "governance",
		CreatedAt: now.Add(-24 * time.Hour), UpdatedAt: now.Add(-24 * time.Hour),
	}
	strictlyBefore := &domain.Petition{
		ID: uuid.New(), Type: domain.PetitionGeneral, Text: "strictly before",
		State: statemachine.StateReceived, Realm: "governance",
		CreatedAt: now.Add(-25 * time.Hour), UpdatedAt: now.Add(-25 * time.Hour),
	}
	_ = h.Store.Save(ctx, atBoundary)
	_ = h.Store.Save(ctx, strictlyBefore)

	result, err := monitor.Detect(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 1 || result.IDs[0] != strictlyBefore.ID {
		t.Errorf("expected only the strictly-older petition to be reported as an orphan, got %+v", result)
	}
}

func TestOrphanDetectEmitsOnlyWhenNonEmpty(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	monitor := NewOrphanMonitor(h.Store, h.Events, nil, 24*time.Hour, nil)

	result, err := monitor.Detect(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 0 {
		t.Fatalf("expected no orphans in an empty store")
	}
	if h.Events.CountByType(domain.EventOrphansDetected) != 0 {
		t.Errorf("expected no event emitted when no orphans are found")
	}
}

func TestOrphanReprocessRejectsEmptyList(t *testing.T) {
	h := newHarness()
	monitor := NewOrphanMonitor(h.Store, h.Events, nil, 24*time.Hour, nil)
	_, err := monitor.Reprocess(context.Background(), nil, "operator", "stuck")
	if petitionerr.KindOf(err) != petitionerr.KindValidation {
		t.Errorf("expected KindValidation for empty id list")
	}
}
