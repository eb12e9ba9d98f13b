package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType enumerates the durable job kinds the scheduler dispatches.
type JobType string

// JobReferralTimeout is scheduled by the Referral Executor (C10) for its
// deadline-driven auto-acknowledgment.
const JobReferralTimeout JobType = "referral_timeout"

// JobStatus tracks a scheduled job's lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Job is a durable timer persisted by the Job Scheduler (C5). It must
// survive process restart: a scheduled deadline fires at-least-once at or
// after RunAt.
type Job struct {
	ID        uuid.UUID
	Type      JobType
	Payload   map[string]any
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

// DeliberationSession is the minimal abstraction of the deliberation
// rollout needed for dwell-time enforcement (spec.md §9 Open Questions):
// only the session's age is modeled, not its rounds or archon votes.
type DeliberationSession struct {
	PetitionID uuid.UUID
	CreatedAt  time.Time
}
