package petition

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
)

// Scenario 1: happy submit + auto-escalate by co-signers.
func TestScenarioHappySubmitAutoEscalateByCoSigners(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	p, err := h.Submission.SubmitPetition(ctx, domain.PetitionCessation, "Halt system X", "governance", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	check := CheckThreshold(domain.PetitionCessation, 100)
	if !check.Reached {
		t.Fatalf("expected threshold reached at 100 co-signers")
	}

	result, err := h.EscExec.Execute(ctx, p.ID, "co_signer", 100, *check.Threshold, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Triggered {
		t.Fatalf("expected escalation to trigger")
	}

	got, _ := h.Store.Get(ctx, p.ID)
	if got.State != statemachine.StateEscalated {
		t.Errorf("expected state ESCALATED, got %s", got.State)
	}
	if got.EscalationSource == nil || *got.EscalationSource != domain.EscalationCoSignerThreshold {
		t.Errorf("expected escalation source CO_SIGNER_THRESHOLD")
	}
	if h.Events.CountByType(domain.EventEscalationTriggered) != 1 {
		t.Errorf("expected exactly one petition.escalation.triggered event")
	}

	page, err := h.Queue.GetQueue(ctx, "governance", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].PetitionID != p.ID {
		t.Errorf("expected the escalated petition to appear in its realm's queue")
	}
}

// Scenario 2: concurrent fate race.
func TestScenarioConcurrentFateRace(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition under deliberation", "governance", nil, nil)
	_, _ = h.Store.AssignFateCAS(ctx, p.ID, statemachine.StateReceived, statemachine.StateDeliberating, nil, nil, nil)

	targets := []statemachine.State{statemachine.StateAcknowledged, statemachine.StateReferred, statemachine.StateEscalated}
	type outcome struct {
		err error
	}
	results := make(chan outcome, len(targets))
	for _, target := range targets {
		go func(target statemachine.State) {
			var src *domain.EscalationSource
			var realm *string
			if target == statemachine.StateEscalated {
				s := domain.EscalationDeliberation
				r := "governance"
				src, realm = &s, &r
			}
			_, err := h.Coordinator.AssignFateTransactional(ctx, p.ID, statemachine.StateDeliberating, target, "test", nil, src, realm)
			results <- outcome{err: err}
		}(target)
	}

	successes := 0
	for i := 0; i < len(targets); i++ {
		o := <-results
		if o.err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one successful fate transition, got %d", successes)
	}

	got, _ := h.Store.Get(ctx, p.ID)
	if !statemachine.IsTerminal(got.State) {
		t.Errorf("expected final state to be terminal, got %s", got.State)
	}
	if h.Events.CountByType(domain.EventPetitionFated) != 1 {
		t.Errorf("expected exactly one fate event, got %d", h.Events.CountByType(domain.EventPetitionFated))
	}
}

// Scenario 3: event-emission rollback.
func TestScenarioEventEmissionRollback(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition", "governance", nil, nil)

	h.Events.FailNextWrite()

	_, err := h.Coordinator.AssignFateTransactional(ctx, p.ID, statemachine.StateReceived, statemachine.StateAcknowledged, "test", nil, nil, nil)
	if petitionerr.KindOf(err) != petitionerr.KindFateEventEmissionFailed {
		t.Fatalf("expected KindFateEventEmissionFailed, got %v", err)
	}

	got, _ := h.Store.Get(ctx, p.ID)
	if got.State != statemachine.StateReceived {
		t.Errorf("expected state rolled back to RECEIVED, got %s", got.State)
	}
	if h.Events.CountByType(domain.EventPetitionFated) != 0 {
		t.Errorf("expected no fate event to be persisted")
	}
}

// Scenario 4: referral expiry auto-ack.
func TestScenarioReferralExpiryAutoAck(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.RefExec.Now = fixedClock(now)
	h.RefExec.CycleLength = 5 * time.Second
	h.Coordinator.Now = fixedClock(now)
	h.AckExec.Now = fixedClock(now)

	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "a petition", "governance", nil, nil)
	_, _ = h.Store.AssignFateCAS(ctx, p.ID, statemachine.StateReceived, statemachine.StateDeliberating, nil, nil, nil)

	ref, err := h.RefExec.Execute(ctx, p.ID, "governance", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ref.Deadline.Equal(now.Add(5 * time.Second)) {
		t.Fatalf("expected deadline 5s in the future, got %v", ref.Deadline.Sub(now))
	}

	h.RefExec.Now = fixedClock(now.Add(6 * time.Second))
	h.AckExec.Now = fixedClock(now.Add(6 * time.Second))
	h.Coordinator.Now = fixedClock(now.Add(6 * time.Second))

	n, err := h.Scheduler.RunOnce(ctx, now.Add(6*time.Second), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job processed, got %d", n)
	}

	gotRef, _ := h.Referrals.GetByID(ctx, ref.ID)
	if gotRef.Status != domain.ReferralExpired {
		t.Errorf("expected referral EXPIRED, got %s", gotRef.Status)
	}

	ack, _ := h.Acks.GetByPetitionID(ctx, p.ID)
	if ack == nil || ack.ReasonCode != domain.ReasonExpired {
		t.Fatalf("expected an EXPIRED acknowledgment")
	}

	got, _ := h.Store.Get(ctx, p.ID)
	if got.State != statemachine.StateAcknowledged {
		t.Errorf("expected petition state ACKNOWLEDGED, got %s", got.State)
	}
}

// Scenario 5: King realm authorization.
func TestScenarioKingRealmAuthorization(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGrievance, "a grievance", "governance", nil, nil)
	src := domain.EscalationDeliberation
	realm := "governance"
	_, err := h.Coordinator.AssignFateTransactional(ctx, p.ID, statemachine.StateReceived, statemachine.StateEscalated, "test", nil, &src, &realm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rationale := make([]byte, 150)
	for i := range rationale {
		rationale[i] = 'a'
	}

	_, err = h.AckExec.ExecuteKingAcknowledge(ctx, p.ID, uuid.New(), domain.ReasonAddressed, string(rationale), "economy")
	if petitionerr.KindOf(err) != petitionerr.KindRealmMismatch {
		t.Fatalf("expected KindRealmMismatch, got %v", err)
	}

	got, _ := h.Store.Get(ctx, p.ID)
	if got.State != statemachine.StateEscalated {
		t.Errorf("expected petition to remain ESCALATED, got %s", got.State)
	}
}

// Scenario 6: escalation queue pagination.
func TestScenarioEscalationQueuePagination(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		p, _ := h.Submission.SubmitPetition(ctx, domain.PetitionGeneral, "petition", "governance", nil, nil)
		ids = append(ids, p.ID)

		escAt := base.Add(time.Duration(i) * time.Second)
		src := domain.EscalationDeliberation
		realm := "governance"
		h.Coordinator.Now = fixedClock(escAt)
		_, err := h.Coordinator.AssignFateTransactional(ctx, p.ID, statemachine.StateReceived, statemachine.StateEscalated, "test", nil, &src, &realm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page1, err := h.Queue.GetQueue(ctx, "governance", "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page1.Items) != 3 || !page1.HasMore || page1.NextCursor == "" {
		t.Fatalf("expected first page of 3 with has_more=true, got %+v", page1)
	}
	for i, item := range page1.Items {
		if item.PetitionID != ids[i] {
			t.Errorf("expected page 1 item %d to be petition %d in escalation order", i, i)
		}
	}

	page2, err := h.Queue.GetQueue(ctx, "governance", page1.NextCursor, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page2.Items) != 2 || page2.HasMore || page2.NextCursor != "" {
		t.Fatalf("expected second page of 2 with has_more=false, got %+v", page2)
	}
	for i, item := range page2.Items {
		if item.PetitionID != ids[i+3] {
			t.Errorf("expected page 2 item %d to continue the escalation order", i)
		}
	}
}
