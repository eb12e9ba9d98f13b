package petition

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/hashing"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/scheduler"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// DefaultReferralCycles is the default number of deliberation cycles a
// referral's deadline spans when the caller does not specify one.
const DefaultReferralCycles = 3

// ReferralExecutor is the Referral Executor + Timeout Handler (C10).
type ReferralExecutor struct {
	Store        store.PetitionStore
	Referrals    store.ReferralStore
	Events       events.Writer
	Coordinator  *Coordinator
	Scheduler    *scheduler.Scheduler
	Acks         *AcknowledgmentExecutor
	CycleLength  time.Duration
	Logger       *log.Logger
	Now          Clock
}

// NewReferralExecutor constructs a ReferralExecutor. logger may be nil.
func NewReferralExecutor(
	st store.PetitionStore, referrals store.ReferralStore, ev events.Writer,
	coordinator *Coordinator, sched *scheduler.Scheduler, acks *AcknowledgmentExecutor,
	cycleLength time.Duration, logger *log.Logger,
) *ReferralExecutor {
	if logger == nil {
		logger = log.New(log.Writer(), "[ReferralExecutor] ", log.LstdFlags)
	}
	r := &ReferralExecutor{
		Store: st, Referrals: referrals, Events: ev, Coordinator: coordinator,
		Scheduler: sched, Acks: acks, CycleLength: cycleLength, Logger: logger,
		Now: func() time.Time { return time.Now().UTC() },
	}
	if sched != nil {
		sched.RegisterHandler(domain.JobReferralTimeout, r.handleTimeout)
	}
	return r
}

// Execute implements spec.md §4.10's execute(petition_id, realm_id, cycles?).
func (r *ReferralExecutor) Execute(ctx context.Context, petitionID uuid.UUID, realmID string, cycles int) (*domain.Referral, error) {
	if existing, err := r.Referrals.GetByPetitionID(ctx, petitionID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	p, err := r.Store.Get(ctx, petitionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if p.State != statemachine.StateDeliberating {
		return nil, petitionerr.New(petitionerr.KindInvalidTransition, "petition must be in DELIBERATING to be referred")
	}

	if cycles <= 0 {
		cycles = DefaultReferralCycles
	}
	now := r.Now()
	ref := &domain.Referral{
		ID:         uuid.New(),
		PetitionID: petitionID,
		RealmID:    realmID,
		Deadline:   now.Add(time.Duration(cycles) * r.CycleLength),
		CreatedAt:  now,
		Status:     domain.ReferralPending,
	}
	ref.WitnessHash = referralWitnessHash(ref)

	if err := r.Referrals.Save(ctx, ref); err != nil {
		return nil, err
	}

	if _, err := r.Coordinator.AssignFateTransactional(
		ctx, petitionID, statemachine.StateDeliberating, statemachine.StateReferred,
		"referral_executor", nil, nil, nil,
	); err != nil {
		return nil, err
	}

	if r.Scheduler != nil {
		if _, err := r.Scheduler.Schedule(ctx, domain.JobReferralTimeout, map[string]any{
			"referral_id": ref.ID.String(),
			"petition_id": petitionID.String(),
			"realm_id":    realmID,
			"deadline":    ref.Deadline.Format(time.RFC3339Nano),
		}, ref.Deadline); err != nil {
			r.Logger.Printf("failed to schedule referral timeout job for referral %s: %v", ref.ID, err)
		}
	}

	if r.Events != nil {
		if _, err := r.Events.Write(ctx, domain.EventReferralCreated, map[string]any{
			"referral_id": ref.ID.String(),
			"petition_id": petitionID.String(),
			"realm_id":    realmID,
			"deadline":    ref.Deadline.Format(time.RFC3339Nano),
		}); err != nil {
			r.Logger.Printf("failed to emit petition.referral.created for petition %s: %v", petitionID, err)
		}
	}

	return ref, nil
}

// handleTimeout is the scheduler.Handler registered for
// domain.JobReferralTimeout, implementing spec.md §4.10's timeout handler.
func (r *ReferralExecutor) handleTimeout(ctx context.Context, job *domain.Job) error {
	refIDStr, _ := job.Payload["referral_id"].(string)
	refID, err := uuid.Parse(refIDStr)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindValidation, "referral_timeout job has an invalid referral_id", err)
	}

	ref, err := r.Referrals.GetByID(ctx, refID)
	if err != nil {
		return err
	}
	if ref == nil || ref.Status != domain.ReferralPending {
		return nil // idempotent no-op: already resolved or unknown
	}

	if err := r.Referrals.UpdateStatus(ctx, refID, domain.ReferralExpired); err != nil {
		return err
	}

	_, err = r.Acks.ExecuteSystemAcknowledge(ctx, ref.PetitionID, domain.ReasonExpired,
		"referral deadline elapsed without King action; auto-acknowledged")
	return err
}

// referralWitnessHash implements spec.md §4.10 step 5's content formula:
// (ref_id, petition_id, realm_id, deadline, created_at, schema_version)
// joined by "|". Referrals reuse the acknowledgment schema version since
// spec.md does not define a distinct one for this record type.
func referralWitnessHash(ref *domain.Referral) [32]byte {
	parts := []string{
		ref.ID.String(),
		ref.PetitionID.String(),
		ref.RealmID,
		ref.Deadline.Format(time.RFC3339Nano),
		ref.CreatedAt.Format(time.RFC3339Nano),
		domain.AcknowledgmentSchemaVersion,
	}
	return hashing.HashText(strings.Join(parts, "|"))
}
