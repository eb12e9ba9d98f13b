// Package petition implements the Submission Service (C7), Transactional
// Fate Coordinator (C8), Acknowledgment Executor (C9), Referral Executor +
// Timeout Handler (C10), Threshold Detector + Auto-Escalation (C11),
// Escalation Queue (C12), and Orphan Monitor (C13): the petition-domain
// services built on top of the Petition Store, Event Writer, and Job
// Scheduler ports.
package petition

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
)

// SessionLookup resolves the deliberation session backing a petition, the
// minimal abstraction spec.md §9 allows for dwell-time enforcement. It is
// its own small port (rather than fields on Petition) per SPEC_FULL.md's
// supplemented-features note, mirroring the original's
// ArchonAssignmentServiceProtocol.
type SessionLookup interface {
	// GetSession returns the deliberation session for petitionID, or
	// (nil, nil) if none is tracked.
	GetSession(ctx context.Context, petitionID uuid.UUID) (*domain.DeliberationSession, error)
}

// RealmResolver resolves a realm label against the realm registry.
// Resolve returns the canonical realm label, or an error of kind
// KindValidation if the label is present but unknown. An empty input
// resolves to the configured default realm.
type RealmResolver interface {
	Resolve(label string) (string, error)
}

// Notifier is a best-effort, fire-and-forget delivery port.
// NotifyFateChange returns nothing, so a delivery failure never reaches
// the caller: notification is not on the durability path for any
// petition-domain operation.
type Notifier interface {
	NotifyFateChange(ctx context.Context, petitionID uuid.UUID, newState string)
}

// DeliberationOrchestrator is the abstract collaborator the Orphan
// Monitor's manual reprocess path delegates to in order to (re)initiate
// deliberation for a petition. Its internals are out of this engine's
// bounded context (spec.md §9 Open Questions).
type DeliberationOrchestrator interface {
	InitiateDeliberation(ctx context.Context, petitionID uuid.UUID) error
}

// Clock abstracts time.Now so tests can advance it deterministically,
// e.g. to exercise dwell-time and referral-expiry boundaries.
type Clock func() time.Time
