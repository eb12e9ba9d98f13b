// Package store defines the Petition Store contract (C3): the durable
// repository of petitions with atomic compare-and-swap fate assignment.
// Concrete implementations live in pkg/store/memstore (in-memory, used by
// tests and by the original's infrastructure/stubs equivalent) and
// pkg/store/pgstore (Postgres, via github.com/lib/pq).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/statemachine"
)

// PetitionStore is the repository contract every component depends on.
// Implementations must guarantee that, under concurrent invocations of
// AssignFateCAS against the same petition, at most one caller observes
// success (spec.md §4.4, invariants I2/I6).
type PetitionStore interface {
	// Save persists a new petition. Fails with KindAlreadyExists if id
	// already exists.
	Save(ctx context.Context, p *domain.Petition) error

	// Get returns the petition, or (nil, nil) if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Petition, error)

	// ListByState returns petitions in the given state, newest first, and
	// the unfiltered total count for that state.
	ListByState(ctx context.Context, state statemachine.State, limit, offset int) ([]*domain.Petition, int, error)

	// UpdateState performs an unconditional state write. Used ONLY by the
	// Transactional Fate Coordinator's rollback path.
	UpdateState(ctx context.Context, id uuid.UUID, state statemachine.State) error

	// AssignFateCAS is the atomic heart of the store. See spec.md §4.4 for
	// the exact ordered semantics (not found / already fated / invalid
	// transition / concurrent modification / success with COALESCE
	// escalation-triple population). fateReason is persisted on the
	// petition's fate_reason column when newState is terminal; nil leaves
	// it unset.
	AssignFateCAS(ctx context.Context, id uuid.UUID, expected, newState statemachine.State,
		escalationSource *domain.EscalationSource, escalatedToRealm *string, fateReason *string) (*domain.Petition, error)

	// MarkAdopted writes the adoption triple exactly once. Fails with
	// KindAlreadyExists if already adopted.
	MarkAdopted(ctx context.Context, id uuid.UUID, motionID, kingID uuid.UUID) error

	// FindByState supports C13's time-bounded orphan scan: when
	// receivedBefore is non-nil, only petitions whose CreatedAt is
	// strictly before it are returned.
	FindByState(ctx context.Context, state statemachine.State, receivedBefore *time.Time) ([]*domain.Petition, error)

	// GetQueueDepth returns the count of petitions in the given state, or
	// the total petition count if state is nil.
	GetQueueDepth(ctx context.Context, state *statemachine.State) (int, error)

	// ListEscalatedByRealm supports the Escalation Queue (C12): petitions
	// in ESCALATED state scoped to realm, ordered ascending by
	// (escalated_at, id) for stable FIFO. When after is non-nil, only rows
	// strictly greater than (after.EscalatedAt, after.PetitionID) in lex
	// order are returned. Fetches at most limit rows; the caller is
	// responsible for the "fetch limit+1 to detect has_more" technique.
	ListEscalatedByRealm(ctx context.Context, realm string, after *EscalationCursor, limit int) ([]*domain.Petition, error)

	// CoSign records actorID's co-signature on id, incrementing its
	// co-signer count exactly once per actor. alreadySigned is true (and
	// count unchanged) if actorID had already co-signed.
	CoSign(ctx context.Context, id uuid.UUID, actorID int64) (p *domain.Petition, alreadySigned bool, err error)
}

// EscalationCursor is the decoded form of an escalation-queue page cursor.
type EscalationCursor struct {
	EscalatedAt time.Time
	PetitionID  uuid.UUID
}

// AcknowledgmentStore persists Acknowledgment records, with a unique
// constraint on PetitionID (at most one Acknowledgment per petition).
type AcknowledgmentStore interface {
	Save(ctx context.Context, a *domain.Acknowledgment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Acknowledgment, error)
	GetByPetitionID(ctx context.Context, petitionID uuid.UUID) (*domain.Acknowledgment, error)
}

// ReferralStore persists Referral records, with a unique constraint on
// PetitionID.
type ReferralStore interface {
	Save(ctx context.Context, r *domain.Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Referral, error)
	GetByPetitionID(ctx context.Context, petitionID uuid.UUID) (*domain.Referral, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReferralStatus) error
}
