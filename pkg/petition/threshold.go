package petition

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// thresholdTable holds the per-type co-signer escalation thresholds.
// GENERAL, COLLABORATION, and META have no threshold (never
// auto-escalate on co-signer count).
var thresholdTable = map[domain.PetitionType]int{
	domain.PetitionCessation: 100,
	domain.PetitionGrievance: 50,
}

// ThresholdResult is the Detector's pure output.
type ThresholdResult struct {
	Reached   bool
	Threshold *int
}

// CheckThreshold is the Threshold Detector (C11): a pure function with no
// I/O. Reached iff a threshold is defined for petitionType and count has
// met or passed it.
func CheckThreshold(petitionType domain.PetitionType, count int) ThresholdResult {
	threshold, ok := thresholdTable[petitionType]
	if !ok {
		return ThresholdResult{Reached: false}
	}
	return ThresholdResult{Reached: count >= threshold, Threshold: &threshold}
}

// EscalationResult is the Auto-Escalation Executor's outcome.
type EscalationResult struct {
	Triggered        bool
	AlreadyEscalated bool
	EscalationID     uuid.UUID
}

// AutoEscalationExecutor is the Auto-Escalation half of C11.
type AutoEscalationExecutor struct {
	Store       store.PetitionStore
	Events      events.Writer
	Coordinator *Coordinator
	Halt        *haltgate.Gate
	Logger      *log.Logger
	Now         Clock
}

// NewAutoEscalationExecutor constructs an AutoEscalationExecutor. logger
// may be nil.
func NewAutoEscalationExecutor(st store.PetitionStore, ev events.Writer, coordinator *Coordinator, halt *haltgate.Gate, logger *log.Logger) *AutoEscalationExecutor {
	if logger == nil {
		logger = log.New(log.Writer(), "[AutoEscalationExecutor] ", log.LstdFlags)
	}
	return &AutoEscalationExecutor{
		Store: st, Events: ev, Coordinator: coordinator, Halt: halt, Logger: logger,
		Now: func() time.Time { return time.Now().UTC() },
	}
}

// Execute implements spec.md §4.11's execute(petition_id, trigger_type,
// co_signer_count, threshold, triggered_by?). participatingActorIDs is the
// set of archon ids active in the deliberation being torn down, used only
// when the petition was DELIBERATING.
func (e *AutoEscalationExecutor) Execute(
	ctx context.Context,
	petitionID uuid.UUID,
	triggerType string,
	coSignerCount, threshold int,
	triggeredBy *string,
	participatingActorIDs []int64,
) (*EscalationResult, error) {
	if e.Halt != nil && e.Halt.IsHalted() {
		return nil, petitionerr.New(petitionerr.KindSystemHalted, "system halted: "+e.Halt.Reason())
	}

	p, err := e.Store.Get(ctx, petitionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if p.State == statemachine.StateEscalated {
		return &EscalationResult{Triggered: false, AlreadyEscalated: true}, nil
	}
	if p.State != statemachine.StateReceived && p.State != statemachine.StateDeliberating {
		return &EscalationResult{Triggered: false}, nil
	}

	wasDeliberating := p.State == statemachine.StateDeliberating
	escalationID := uuid.New()
	var cancelled *domain.DeliberationCancelled
	if wasDeliberating {
		cancelled = &domain.DeliberationCancelled{
			PetitionID:            petitionID,
			CancelReason:          domain.CancelAutoEscalated,
			ParticipatingActorIDs: participatingActorIDs,
			TranscriptPreserved:   true,
			EscalationID:          &escalationID,
			CancelledAt:           e.Now(),
		}
	}

	src := domain.EscalationCoSignerThreshold
	realm := p.Realm
	_, err = e.Coordinator.AssignFateTransactional(
		ctx, petitionID, p.State, statemachine.StateEscalated,
		derefOrSystem(triggeredBy), nil, &src, &realm,
	)
	if err != nil {
		switch petitionerr.KindOf(err) {
		case petitionerr.KindAlreadyFated, petitionerr.KindConcurrentModification:
			return &EscalationResult{Triggered: false, AlreadyEscalated: true}, nil
		default:
			return nil, err
		}
	}

	if e.Events != nil {
		triggeredAt := e.Now()
		if _, err := e.Events.Write(ctx, domain.EventEscalationTriggered, map[string]any{
			"escalation_id":     escalationID.String(),
			"petition_id":       petitionID.String(),
			"trigger_type":      triggerType,
			"co_signer_count":   coSignerCount,
			"threshold":         threshold,
			"triggered_at":      triggeredAt.Format(time.RFC3339Nano),
			"triggered_by":      derefOrNil(triggeredBy),
			"petition_type":     string(p.Type),
			"escalation_source": string(src),
			"realm_id":          realm,
		}); err != nil {
			e.Logger.Printf("failed to emit petition.escalation.triggered for petition %s: %v", petitionID, err)
		}

		if cancelled != nil {
			if _, err := e.Events.Write(ctx, domain.EventDeliberationSessionCancelled, map[string]any{
				"petition_id":             cancelled.PetitionID.String(),
				"cancel_reason":           string(cancelled.CancelReason),
				"participating_actor_ids": cancelled.ParticipatingActorIDs,
				"transcript_preserved":    cancelled.TranscriptPreserved,
				"escalation_id":           cancelled.EscalationID.String(),
				"cancelled_at":            cancelled.CancelledAt.Format(time.RFC3339Nano),
			}); err != nil {
				e.Logger.Printf("failed to emit deliberation.session.cancelled for petition %s: %v", petitionID, err)
			}
		}
	}

	return &EscalationResult{Triggered: true, EscalationID: escalationID}, nil
}

func derefOrSystem(s *string) string {
	if s == nil || *s == "" {
		return "system:threshold_detector"
	}
	return *s
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
