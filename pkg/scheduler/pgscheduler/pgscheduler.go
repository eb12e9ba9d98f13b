// Package pgscheduler persists scheduled jobs to the scheduled_jobs table,
// giving the Job Scheduler (C5) the durability-across-restart guarantee
// spec.md §4.6 requires.
package pgscheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// Store is a Postgres-backed scheduler.Store.
type Store struct {
	db *sql.DB
}

// New constructs a Store backed by db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, job *domain.Job) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to marshal job payload", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, job_type, payload, run_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID, string(job.Type), payloadJSON, job.RunAt, string(job.Status), job.CreatedAt)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to persist job", err)
	}
	return nil
}

func (s *Store) Cancel(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs SET status = $2 WHERE id = $1 AND status = $3
	`, jobID, string(domain.JobStatusCancelled), string(domain.JobStatusPending))
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to cancel job", err)
	}
	return nil
}

func (s *Store) DueJobs(ctx context.Context, asOf time.Time, limit int) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_type, payload, run_at, status, created_at
		FROM scheduled_jobs
		WHERE status = $1 AND run_at <= $2
		ORDER BY run_at ASC, created_at ASC
		LIMIT $3
	`, string(domain.JobStatusPending), asOf, limit)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to query due jobs", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var (
			job         domain.Job
			jobType     string
			status      string
			payloadJSON []byte
		)
		if err := rows.Scan(&job.ID, &jobType, &payloadJSON, &job.RunAt, &status, &job.CreatedAt); err != nil {
			return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to scan job row", err)
		}
		job.Type = domain.JobType(jobType)
		job.Status = domain.JobStatus(status)
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
				return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to unmarshal job payload", err)
			}
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to iterate due jobs", err)
	}
	return jobs, nil
}

func (s *Store) Complete(ctx context.Context, jobID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs SET status = $2 WHERE id = $1
	`, jobID, string(domain.JobStatusCompleted))
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to complete job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to read rows affected", err)
	}
	if n == 0 {
		return petitionerr.New(petitionerr.KindNotFound, "job not found")
	}
	return nil
}
