// Package domain holds the data model shared across the petition
// governance engine: the Petition, Acknowledgment, Referral, and Event
// records plus their enumerations, grounded on spec.md §3 and the
// original's src/domain/models/*.py.
//
// These are plain structs, not frozen/immutable value types with builder
// methods — per spec.md §9's re-architecture note, the Petition Store is
// the sole authoritative owner of current state; callers must re-fetch
// rather than cache a copy across a suspension point.
package domain

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/statemachine"
)

// PetitionType enumerates the five petition categories.
type PetitionType string

const (
	PetitionGeneral       PetitionType = "GENERAL"
	PetitionCessation     PetitionType = "CESSATION"
	PetitionGrievance     PetitionType = "GRIEVANCE"
	PetitionCollaboration PetitionType = "COLLABORATION"
	PetitionMeta          PetitionType = "META"
)

// EscalationSource enumerates how a petition arrived at ESCALATED.
type EscalationSource string

const (
	EscalationDeliberation        EscalationSource = "DELIBERATION"
	EscalationCoSignerThreshold   EscalationSource = "CO_SIGNER_THRESHOLD"
	EscalationKnightRecommendation EscalationSource = "KNIGHT_RECOMMENDATION"
)

// MaxTextLength is the maximum petition text length, inclusive.
const MaxTextLength = 10_000

// Petition is the durable record owned exclusively by the Petition Store.
type Petition struct {
	ID           uuid.UUID
	Type         PetitionType
	Text         string
	State        statemachine.State
	ContentHash  [32]byte
	Realm        string
	SubmitterID  *uuid.UUID // nil = anonymous, withdrawal-ineligible
	CoSignerCount int
	FateReason   *string

	// Escalation triple: all set atomically when State becomes ESCALATED.
	EscalationSource   *EscalationSource
	EscalatedAt        *time.Time
	EscalatedToRealm   *string

	// Adoption triple: write-once.
	AdoptedAsMotionID *uuid.UUID
	AdoptedAt         *time.Time
	AdoptedByKingID   *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAnonymous reports whether the petition has no submitter identity.
func (p *Petition) IsAnonymous() bool {
	return p.SubmitterID == nil
}

// StatusToken is a derived value over (content_hash, state) used for
// long-poll change detection. It is never persisted.
type StatusToken string

// NewStatusToken builds the token for a petition's current observable
// state.
func NewStatusToken(p *Petition) StatusToken {
	return StatusToken(hex.EncodeToString(p.ContentHash[:]) + ":" + string(p.State))
}
