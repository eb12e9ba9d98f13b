// Package scheduler implements the Job Scheduler (C5): durable timers that
// survive process restart and fire at-least-once at or after a deadline.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
)

// Store is the durable persistence port a Scheduler is built on. Concrete
// implementations live in memscheduler and pgscheduler.
type Store interface {
	// Insert persists a new job in PENDING status.
	Insert(ctx context.Context, job *domain.Job) error
	// Cancel marks a job CANCELLED if it is still PENDING. Idempotent:
	// cancelling an already-cancelled or already-completed job is not an
	// error.
	Cancel(ctx context.Context, jobID uuid.UUID) error
	// DueJobs returns PENDING jobs with RunAt <= asOf, oldest first.
	DueJobs(ctx context.Context, asOf time.Time, limit int) ([]*domain.Job, error)
	// Complete marks a job COMPLETED. Called after its handler returns
	// without error.
	Complete(ctx context.Context, jobID uuid.UUID) error
}

// Handler processes a due job's payload. Handlers must be idempotent:
// redelivery of the same job, or re-entry against the same business state,
// must not create duplicate effects.
type Handler func(ctx context.Context, job *domain.Job) error

// HaltChecker reports whether writes are currently refused. The runner
// consults it before dispatching a handler, since handlers run as writes.
type HaltChecker interface {
	IsHalted() bool
}

// Scheduler schedules durable jobs and drains due ones to registered
// handlers.
type Scheduler struct {
	store    Store
	halted   HaltChecker
	handlers map[domain.JobType]Handler
}

// New constructs a Scheduler backed by store. halted may be nil, in which
// case the halt check is skipped (used in tests that don't wire a gate).
func New(store Store, halted HaltChecker) *Scheduler {
	return &Scheduler{
		store:    store,
		halted:   halted,
		handlers: make(map[domain.JobType]Handler),
	}
}

// RegisterHandler binds jobType to handler. Registering the same jobType
// twice replaces the prior handler.
func (s *Scheduler) RegisterHandler(jobType domain.JobType, handler Handler) {
	s.handlers[jobType] = handler
}

// Schedule persists a new job durably and returns its id.
func (s *Scheduler) Schedule(ctx context.Context, jobType domain.JobType, payload map[string]any, runAt time.Time) (uuid.UUID, error) {
	job := &domain.Job{
		ID:        uuid.New(),
		Type:      jobType,
		Payload:   payload,
		RunAt:     runAt,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, job); err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// Cancel best-effort cancels a pending job. Idempotent.
func (s *Scheduler) Cancel(ctx context.Context, jobID uuid.UUID) error {
	return s.store.Cancel(ctx, jobID)
}

// RunOnce drains up to limit due jobs in arrival order, dispatching each to
// its registered handler. A job whose type has no registered handler, or
// whose handler errors, is left PENDING and retried on a later RunOnce
// call. If halted is non-nil and reports the system halted, no jobs are
// dispatched this pass (they remain due and are retried with the caller's
// own backoff between RunOnce calls).
func (s *Scheduler) RunOnce(ctx context.Context, asOf time.Time, limit int) (processed int, err error) {
	if s.halted != nil && s.halted.IsHalted() {
		return 0, nil
	}

	due, err := s.store.DueJobs(ctx, asOf, limit)
	if err != nil {
		return 0, err
	}

	for _, job := range due {
		handler, ok := s.handlers[job.Type]
		if !ok {
			continue
		}
		if herr := handler(ctx, job); herr != nil {
			continue
		}
		if cerr := s.store.Complete(ctx, job.ID); cerr != nil {
			return processed, cerr
		}
		processed++
	}
	return processed, nil
}
