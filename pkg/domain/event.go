package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted to the ledger (spec.md §6). All carry
// schema_version 1, canonical sorted-keys JSON, and a witness_hash over
// the canonical payload.
const (
	EventPetitionReceived                  = "petition.received"
	EventPetitionFated                     = "petition.fated"
	EventPetitionFateAcknowledged          = "petition.fate.acknowledged"
	EventEscalationAcknowledgedByKing      = "petition.escalation.acknowledged_by_king"
	EventReferralCreated                   = "petition.referral.created"
	EventEscalationTriggered               = "petition.escalation.triggered"
	EventDeliberationSessionCancelled      = "deliberation.session.cancelled"
	EventPetitionWithdrawn                 = "petition.withdrawn"
	EventOrphansDetected                   = "petition.monitoring.orphans_detected"
	EventReprocessingTriggered             = "petition.monitoring.reprocessing_triggered"
)

// CurrentSchemaVersion is the schema_version carried by every event this
// engine emits.
const CurrentSchemaVersion = 1

// Event is an immutable, append-only ledger record.
type Event struct {
	ID             uuid.UUID
	EventType      string
	Payload        map[string]any // canonicalized to sorted-keys JSON at write time
	WitnessHash    [32]byte
	SchemaVersion  int
	EmittedAt      time.Time
}

// CancelReason enumerates why an in-flight deliberation was cancelled.
type CancelReason string

const (
	CancelAutoEscalated      CancelReason = "AUTO_ESCALATED"
	CancelTimeout            CancelReason = "TIMEOUT"
	CancelManual             CancelReason = "MANUAL"
	CancelPetitionWithdrawn  CancelReason = "PETITION_WITHDRAWN"
)

// DeliberationCancelled mirrors the original's DeliberationCancelledEvent:
// built whenever an auto-escalation or other process tears down an
// in-flight deliberation session.
type DeliberationCancelled struct {
	PetitionID           uuid.UUID
	CancelReason         CancelReason
	ParticipatingActorIDs []int64
	TranscriptPreserved  bool
	EscalationID         *uuid.UUID // required (non-nil) when CancelReason == AUTO_ESCALATED
	CancelledAt          time.Time
}
