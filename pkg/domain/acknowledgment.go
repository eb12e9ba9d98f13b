package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// AcknowledgmentSchemaVersion is carried in every witness-hash payload so
// future revisions of the content formula can be distinguished.
const AcknowledgmentSchemaVersion = "1.0.0"

// MinAcknowledgingArchons is the Marquis-path supermajority floor
// (2-of-3), per FR-11.5 in the original.
const MinAcknowledgingArchons = 2

// MinKingRationaleLength is the higher rationale bar Kings must clear,
// per the original's Story 6.5 AC2.
const MinKingRationaleLength = 100

// AcknowledgmentReasonCode enumerates why a petition was acknowledged.
// The full enumeration is resolved against the original's
// acknowledgment_reason.py since spec.md only describes validation rules.
type AcknowledgmentReasonCode string

const (
	ReasonAddressed         AcknowledgmentReasonCode = "ADDRESSED"
	ReasonNoted             AcknowledgmentReasonCode = "NOTED"
	ReasonDuplicate         AcknowledgmentReasonCode = "DUPLICATE"
	ReasonOutOfScope        AcknowledgmentReasonCode = "OUT_OF_SCOPE"
	ReasonRefused           AcknowledgmentReasonCode = "REFUSED"
	ReasonNoActionWarranted AcknowledgmentReasonCode = "NO_ACTION_WARRANTED"
	ReasonWithdrawn         AcknowledgmentReasonCode = "WITHDRAWN"
	ReasonExpired           AcknowledgmentReasonCode = "EXPIRED"
	ReasonKnightReferral    AcknowledgmentReasonCode = "KNIGHT_REFERRAL"
)

// RequiresRationale reports whether reason requires a non-empty rationale.
func (r AcknowledgmentReasonCode) RequiresRationale() bool {
	return r == ReasonRefused || r == ReasonNoActionWarranted
}

// RequiresReference reports whether reason requires a reference petition.
func (r AcknowledgmentReasonCode) RequiresReference() bool {
	return r == ReasonDuplicate
}

// IsSystemTriggered reports whether reason is one of the system-triggered
// codes exempt from the archon-count floor and dwell-time enforcement
// (EXPIRED from referral timeout, KNIGHT_REFERRAL from Knight routing).
func (r AcknowledgmentReasonCode) IsSystemTriggered() bool {
	return r == ReasonExpired || r == ReasonKnightReferral
}

// ValidateRequirements checks reason-code-specific validation rules,
// returning a classified KindValidation error on failure.
func ValidateRequirements(reason AcknowledgmentReasonCode, rationale *string, referenceID *uuid.UUID) error {
	if reason.RequiresRationale() && (rationale == nil || strings.TrimSpace(*rationale) == "") {
		return petitionerr.New(petitionerr.KindValidation,
			"reason code "+string(reason)+" requires a non-empty rationale")
	}
	if reason.RequiresReference() && referenceID == nil {
		return petitionerr.New(petitionerr.KindValidation,
			"reason code "+string(reason)+" requires a reference_petition_id")
	}
	return nil
}

// Acknowledgment is 1:1 with a petition that ended in ACKNOWLEDGED.
type Acknowledgment struct {
	ID                      uuid.UUID
	PetitionID              uuid.UUID
	ReasonCode              AcknowledgmentReasonCode
	Rationale               *string
	ReferencePetitionID     *uuid.UUID
	AcknowledgingArchonIDs  []int64 // empty for King/system acknowledgments
	AcknowledgedByKingID    *uuid.UUID
	AcknowledgedAt          time.Time
	WitnessHash             [32]byte
}

// Referral is 1:1 with a petition that ended in REFERRED.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "PENDING"
	ReferralResolved ReferralStatus = "RESOLVED"
	ReferralExpired  ReferralStatus = "EXPIRED"
)

type Referral struct {
	ID          uuid.UUID
	PetitionID  uuid.UUID
	RealmID     string
	Deadline    time.Time
	CreatedAt   time.Time
	Status      ReferralStatus
	WitnessHash [32]byte
}
