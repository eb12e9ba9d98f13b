package petition

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// Coordinator is the Transactional Fate Coordinator (C8): the only
// component permitted to move a petition into a terminal state. Every
// fate-assigning operation (Acknowledgment Executor, Referral Executor,
// Threshold Detector/Auto-Escalation) delegates here.
type Coordinator struct {
	Store   store.PetitionStore
	Events  events.Writer
	Halt    *haltgate.Gate
	Metrics *Metrics
	Now     Clock
}

// NewCoordinator constructs a Coordinator. metrics may be nil.
func NewCoordinator(st store.PetitionStore, ev events.Writer, halt *haltgate.Gate, metrics *Metrics) *Coordinator {
	return &Coordinator{Store: st, Events: ev, Halt: halt, Metrics: metrics, Now: func() time.Time { return time.Now().UTC() }}
}

// AssignFateTransactional implements the CAS -> emit -> commit or rollback
// pattern (spec.md §4.8, invariant I6). On success it returns the updated
// petition and the fate domain.EventPetitionFated event is durably
// persisted before the call returns. On event-emission failure, the state
// is rolled back to expected and a KindFateEventEmissionFailed error is
// returned chaining the original cause.
func (c *Coordinator) AssignFateTransactional(
	ctx context.Context,
	id uuid.UUID,
	expected, newState statemachine.State,
	actor string,
	reason *string,
	escalationSource *domain.EscalationSource,
	escalatedToRealm *string,
) (*domain.Petition, error) {
	if c.Halt != nil && c.Halt.IsHalted() {
		return nil, petitionerr.New(petitionerr.KindSystemHalted, "system halted: "+c.Halt.Reason())
	}

	updated, err := c.Store.AssignFateCAS(ctx, id, expected, newState, escalationSource, escalatedToRealm, reason)
	if err != nil {
		return nil, err
	}

	if c.Events == nil {
		c.rollback(ctx, id, expected)
		return nil, petitionerr.New(petitionerr.KindFateEventEmissionFailed, "no event writer configured")
	}

	payload := map[string]any{
		"petition_id": id.String(),
		"from_state":  string(expected),
		"to_state":    string(newState),
		"actor":       actor,
		"occurred_at": c.Now().Format(time.RFC3339Nano),
	}
	if reason != nil {
		payload["reason"] = *reason
	}

	if _, err := c.Events.Write(ctx, domain.EventPetitionFated, payload); err != nil {
		c.rollback(ctx, id, expected)
		return nil, petitionerr.Wrap(petitionerr.KindFateEventEmissionFailed,
			"fate event emission failed, state rolled back", err)
	}

	if c.Metrics != nil {
		c.Metrics.observeFate(string(newState))
	}
	return updated, nil
}

// rollback restores the pre-CAS state with a separate UpdateState call;
// the CAS has already committed on its own. The UpdateState error is
// discarded, so if rollback fails the petition stays in its terminal
// state with no fate event, and nothing in this repository detects or
// repairs that afterwards.
func (c *Coordinator) rollback(ctx context.Context, id uuid.UUID, expected statemachine.State) {
	_ = c.Store.UpdateState(ctx, id, expected)
}
