package petition

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/hashing"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// SubmissionService is the Submission Service (C7): accepts petitions,
// validates, persists, and emits petition.received.
type SubmissionService struct {
	Store         store.PetitionStore
	Events        events.Writer
	Halt          *haltgate.Gate
	Realms        RealmResolver
	Notifications NotificationPreferencesStore
	Notifier      Notifier
	Coordinator   *Coordinator
	Logger        *log.Logger
	Now           Clock
}

// NewSubmissionService constructs a SubmissionService. logger may be nil.
func NewSubmissionService(
	st store.PetitionStore, ev events.Writer, halt *haltgate.Gate, realms RealmResolver,
	notifications NotificationPreferencesStore, notifier Notifier, coordinator *Coordinator, logger *log.Logger,
) *SubmissionService {
	if logger == nil {
		logger = log.New(log.Writer(), "[SubmissionService] ", log.LstdFlags)
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &SubmissionService{
		Store: st, Events: ev, Halt: halt, Realms: realms,
		Notifications: notifications, Notifier: notifier, Coordinator: coordinator,
		Logger: logger, Now: func() time.Time { return time.Now().UTC() },
	}
}

// SubmitPetition implements spec.md §4.7's submit_petition.
func (s *SubmissionService) SubmitPetition(
	ctx context.Context,
	petitionType domain.PetitionType,
	text string,
	realm string,
	submitterID *uuid.UUID,
	notificationPrefs map[string]any,
) (*domain.Petition, error) {
	if s.Halt != nil && s.Halt.IsHalted() {
		return nil, petitionerr.New(petitionerr.KindSystemHalted, "system halted: "+s.Halt.Reason())
	}

	if n := utf8.RuneCountInString(text); n == 0 || n > domain.MaxTextLength {
		return nil, petitionerr.New(petitionerr.KindValidation,
			"text must be between 1 and 10000 characters")
	}

	resolvedRealm := realm
	if s.Realms != nil {
		r, err := s.Realms.Resolve(realm)
		if err != nil {
			return nil, err
		}
		resolvedRealm = r
	}

	now := s.Now()
	p := &domain.Petition{
		ID:          uuid.New(),
		Type:        petitionType,
		Text:        text,
		State:       statemachine.StateReceived,
		ContentHash: hashing.HashText(text),
		Realm:       resolvedRealm,
		SubmitterID: submitterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Store.Save(ctx, p); err != nil {
		return nil, err
	}

	if notificationPrefs != nil && s.Notifications != nil {
		if err := s.Notifications.Save(ctx, p.ID, notificationPrefs); err != nil {
			s.Logger.Printf("failed to persist notification preferences for petition %s: %v", p.ID, err)
		}
	}

	if s.Events != nil {
		if _, err := s.Events.Write(ctx, domain.EventPetitionReceived, map[string]any{
			"petition_id": p.ID.String(),
			"type":        string(p.Type),
			"realm":       p.Realm,
			"anonymous":   p.IsAnonymous(),
			"occurred_at": now.Format(time.RFC3339Nano),
		}); err != nil {
			s.Logger.Printf("failed to emit petition.received for petition %s: %v", p.ID, err)
		}
	}

	return p, nil
}

// WithdrawPetition implements spec.md §4.7's withdraw_petition.
func (s *SubmissionService) WithdrawPetition(ctx context.Context, id uuid.UUID, requesterID uuid.UUID, reason *string) (*domain.Petition, error) {
	if s.Halt != nil && s.Halt.IsHalted() {
		return nil, petitionerr.New(petitionerr.KindSystemHalted, "system halted: "+s.Halt.Reason())
	}

	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if p.IsAnonymous() {
		return nil, petitionerr.New(petitionerr.KindUnauthorized, "anonymous petitions cannot be withdrawn")
	}
	if p.SubmitterID == nil || *p.SubmitterID != requesterID {
		return nil, petitionerr.New(petitionerr.KindUnauthorized, "only the original submitter may withdraw this petition")
	}
	if statemachine.IsTerminal(p.State) {
		return nil, petitionerr.New(petitionerr.KindAlreadyFated, "petition has already reached a terminal state")
	}

	withdrawnReason := string(domain.ReasonWithdrawn)
	fateReason := withdrawnReason
	if reason != nil && *reason != "" {
		fateReason = *reason
	}

	updated, err := s.Coordinator.AssignFateTransactional(
		ctx, id, p.State, statemachine.StateAcknowledged,
		requesterID.String(), &fateReason, nil, nil,
	)
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		if _, err := s.Events.Write(ctx, domain.EventPetitionWithdrawn, map[string]any{
			"petition_id":  id.String(),
			"requester_id": requesterID.String(),
			"reason":       fateReason,
		}); err != nil {
			s.Logger.Printf("failed to emit petition.withdrawn for petition %s: %v", id, err)
		}
	}

	s.Notifier.NotifyFateChange(ctx, id, string(updated.State))
	return updated, nil
}
