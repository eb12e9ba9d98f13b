package petition

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/hashing"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// AcknowledgmentExecutor is the Acknowledgment Executor (C9). Its three
// entry points — Execute (Marquis), ExecuteKingAcknowledge, and
// ExecuteSystemAcknowledge — share validation and event emission but
// differ in authorization, idempotency, and witness-hash shape.
type AcknowledgmentExecutor struct {
	Store          store.PetitionStore
	Acks           store.AcknowledgmentStore
	Events         events.Writer
	Coordinator    *Coordinator
	Sessions       SessionLookup
	Notifier       Notifier
	MinDwell       time.Duration
	Logger         *log.Logger
	Now            Clock
}

// NewAcknowledgmentExecutor constructs an AcknowledgmentExecutor. sessions
// and notifier may be nil. logger may be nil.
func NewAcknowledgmentExecutor(
	st store.PetitionStore, acks store.AcknowledgmentStore, ev events.Writer,
	coordinator *Coordinator, sessions SessionLookup, notifier Notifier,
	minDwell time.Duration, logger *log.Logger,
) *AcknowledgmentExecutor {
	if logger == nil {
		logger = log.New(log.Writer(), "[AcknowledgmentExecutor] ", log.LstdFlags)
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &AcknowledgmentExecutor{
		Store: st, Acks: acks, Events: ev, Coordinator: coordinator,
		Sessions: sessions, Notifier: notifier, MinDwell: minDwell, Logger: logger,
		Now: func() time.Time { return time.Now().UTC() },
	}
}

// Execute is the Marquis (collective archon) acknowledgment path
// (spec.md §4.9).
func (a *AcknowledgmentExecutor) Execute(
	ctx context.Context,
	petitionID uuid.UUID,
	reason domain.AcknowledgmentReasonCode,
	archonIDs []int64,
	rationale *string,
	refID *uuid.UUID,
) (*domain.Acknowledgment, error) {
	if !reason.IsSystemTriggered() && len(archonIDs) < domain.MinAcknowledgingArchons {
		return nil, petitionerr.New(petitionerr.KindValidation,
			fmt.Sprintf("at least %d acknowledging archons are required", domain.MinAcknowledgingArchons))
	}
	if err := domain.ValidateRequirements(reason, rationale, refID); err != nil {
		return nil, err
	}

	p, err := a.Store.Get(ctx, petitionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}

	if existing, err := a.Acks.GetByPetitionID(ctx, petitionID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	allowedStates := map[statemachine.State]bool{statemachine.StateDeliberating: true}
	if reason.IsSystemTriggered() {
		allowedStates[statemachine.StateReferred] = true
	}
	if !allowedStates[p.State] {
		return nil, petitionerr.New(petitionerr.KindInvalidTransition,
			"petition must be in DELIBERATING"+map[bool]string{true: " or REFERRED", false: ""}[reason.IsSystemTriggered()]+" to be acknowledged")
	}

	if a.MinDwell >= time.Second && a.Sessions != nil && !reason.IsSystemTriggered() {
		session, err := a.Sessions.GetSession(ctx, petitionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			elapsed := a.Now().Sub(session.CreatedAt)
			if elapsed < a.MinDwell {
				remaining := a.MinDwell - elapsed
				return nil, petitionerr.New(petitionerr.KindValidation,
					fmt.Sprintf("dwell time not elapsed: %d seconds remaining", int(remaining.Seconds()+0.999)))
			}
		}
	}

	if reason.RequiresReference() {
		ref, err := a.Store.Get(ctx, *refID)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, petitionerr.New(petitionerr.KindValidation, "reference_petition_id does not resolve to an existing petition")
		}
	}

	ack := &domain.Acknowledgment{
		ID:                     uuid.New(),
		PetitionID:             petitionID,
		ReasonCode:             reason,
		Rationale:              rationale,
		ReferencePetitionID:    refID,
		AcknowledgingArchonIDs: archonIDs,
		AcknowledgedAt:         a.Now(),
	}
	ack.WitnessHash = marquisWitnessHash(ack)

	if err := a.Acks.Save(ctx, ack); err != nil {
		return nil, err
	}

	if _, err := a.Coordinator.AssignFateTransactional(
		ctx, petitionID, p.State, statemachine.StateAcknowledged,
		"marquis", stringPtr(string(reason)), nil, nil,
	); err != nil {
		return nil, err
	}

	if a.Events != nil {
		if _, err := a.Events.Write(ctx, domain.EventPetitionFateAcknowledged, map[string]any{
			"petition_id":     petitionID.String(),
			"acknowledgment_id": ack.ID.String(),
			"reason_code":     string(reason),
		}); err != nil {
			a.Logger.Printf("failed to emit petition.fate.acknowledged for petition %s: %v", petitionID, err)
		}
	}

	a.Notifier.NotifyFateChange(ctx, petitionID, string(statemachine.StateAcknowledged))
	return ack, nil
}

// ExecuteKingAcknowledge is the King (single-actor, realm-scoped)
// acknowledgment path (spec.md §4.9).
func (a *AcknowledgmentExecutor) ExecuteKingAcknowledge(
	ctx context.Context,
	petitionID uuid.UUID,
	kingID uuid.UUID,
	reason domain.AcknowledgmentReasonCode,
	rationale string,
	realm string,
) (*domain.Acknowledgment, error) {
	if utf8.RuneCountInString(strings.TrimSpace(rationale)) < domain.MinKingRationaleLength {
		return nil, petitionerr.New(petitionerr.KindValidation,
			fmt.Sprintf("King rationale must be at least %d characters", domain.MinKingRationaleLength))
	}

	p, err := a.Store.Get(ctx, petitionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if p.State != statemachine.StateEscalated {
		return nil, petitionerr.New(petitionerr.KindInvalidTransition, "petition must be in ESCALATED to receive a King acknowledgment")
	}
	if p.EscalatedToRealm == nil || *p.EscalatedToRealm != realm {
		return nil, petitionerr.New(petitionerr.KindRealmMismatch,
			fmt.Sprintf("petition escalated to realm %q, King acts in realm %q", derefStr(p.EscalatedToRealm), realm))
	}

	if existing, err := a.Acks.GetByPetitionID(ctx, petitionID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, petitionerr.New(petitionerr.KindAlreadyExists, "petition already has an acknowledgment")
	}

	ack := &domain.Acknowledgment{
		ID:                   uuid.New(),
		PetitionID:           petitionID,
		ReasonCode:           reason,
		Rationale:            &rationale,
		AcknowledgedByKingID: &kingID,
		AcknowledgedAt:       a.Now(),
	}
	ack.WitnessHash = kingWitnessHash(ack, kingID, realm)

	if err := a.Acks.Save(ctx, ack); err != nil {
		return nil, err
	}

	if _, err := a.Coordinator.AssignFateTransactional(
		ctx, petitionID, statemachine.StateEscalated, statemachine.StateAcknowledged,
		kingID.String(), stringPtr(string(reason)), nil, nil,
	); err != nil {
		return nil, err
	}

	if a.Events != nil {
		if _, err := a.Events.Write(ctx, domain.EventEscalationAcknowledgedByKing, map[string]any{
			"petition_id":       petitionID.String(),
			"acknowledgment_id": ack.ID.String(),
			"king_id":           kingID.String(),
			"realm_id":          realm,
		}); err != nil {
			a.Logger.Printf("failed to emit petition.escalation.acknowledged_by_king for petition %s: %v", petitionID, err)
		}
	}

	a.Notifier.NotifyFateChange(ctx, petitionID, string(statemachine.StateAcknowledged))
	return ack, nil
}

// ExecuteSystemAcknowledge is the system-triggered acknowledgment path
// used by the referral timeout handler (EXPIRED) and Knight routing
// (KNIGHT_REFERRAL). It bypasses archon count, dwell, and accepts REFERRED
// state.
func (a *AcknowledgmentExecutor) ExecuteSystemAcknowledge(
	ctx context.Context,
	petitionID uuid.UUID,
	reason domain.AcknowledgmentReasonCode,
	rationale string,
) (*domain.Acknowledgment, error) {
	if !reason.IsSystemTriggered() {
		return nil, petitionerr.New(petitionerr.KindValidation, "system acknowledgment requires a system-triggered reason code")
	}
	return a.Execute(ctx, petitionID, reason, nil, &rationale, nil)
}

// marquisWitnessHash implements spec.md §4.9 step 7's content formula:
// (ack_id, petition_id, reason, sorted archon ids, acknowledged_at,
// schema_version[, rationale][, ref_id]) joined by "|".
func marquisWitnessHash(ack *domain.Acknowledgment) [32]byte {
	sortedIDs := make([]int64, len(ack.AcknowledgingArchonIDs))
	copy(sortedIDs, ack.AcknowledgingArchonIDs)
	sort.Slice(sortedIDs, func(i, j int) bool { return sortedIDs[i] < sortedIDs[j] })

	idStrs := make([]string, len(sortedIDs))
	for i, id := range sortedIDs {
		idStrs[i] = strconv.FormatInt(id, 10)
	}

	parts := []string{
		ack.ID.String(),
		ack.PetitionID.String(),
		string(ack.ReasonCode),
		strings.Join(idStrs, ","),
		ack.AcknowledgedAt.Format(time.RFC3339Nano),
		domain.AcknowledgmentSchemaVersion,
	}
	if ack.Rationale != nil {
		parts = append(parts, *ack.Rationale)
	}
	if ack.ReferencePetitionID != nil {
		parts = append(parts, ack.ReferencePetitionID.String())
	}
	return hashing.HashText(strings.Join(parts, "|"))
}

// kingWitnessHash is the King-specific canonical form, extending the
// Marquis formula with king_id and realm_id.
func kingWitnessHash(ack *domain.Acknowledgment, kingID uuid.UUID, realm string) [32]byte {
	parts := []string{
		ack.ID.String(),
		ack.PetitionID.String(),
		string(ack.ReasonCode),
		kingID.String(),
		realm,
		ack.AcknowledgedAt.Format(time.RFC3339Nano),
		domain.AcknowledgmentSchemaVersion,
	}
	if ack.Rationale != nil {
		parts = append(parts, *ack.Rationale)
	}
	return hashing.HashText(strings.Join(parts, "|"))
}

func stringPtr(s string) *string { return &s }

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
