// Package memscheduler provides an in-memory scheduler.Store, grounded on
// the same sync.Mutex-guarded-map convention used in pkg/store/memstore.
// It does not survive process restart; it exists for tests and for the
// in-memory wiring of a development/demo binary.
package memscheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// Store is an in-memory scheduler.Store.
type Store struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

// New constructs an empty Store.
func New() *Store {
	return &Store{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *Store) Insert(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) Cancel(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	if job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusCancelled
	}
	return nil
}

func (s *Store) DueJobs(_ context.Context, asOf time.Time, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusPending && !job.RunAt.After(asOf) {
			cp := *job
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].RunAt.Before(due[j].RunAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) Complete(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return petitionerr.New(petitionerr.KindNotFound, "job not found")
	}
	job.Status = domain.JobStatusCompleted
	return nil
}

// Get returns a job by id, for test assertions.
func (s *Store) Get(jobID uuid.UUID) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}
