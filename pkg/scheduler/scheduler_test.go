package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/scheduler/memscheduler"
)

type fakeHalt struct{ halted bool }

func (f *fakeHalt) IsHalted() bool { return f.halted }

func TestScheduleAndRunOnceDispatches(t *testing.T) {
	store := memscheduler.New()
	sched := New(store, nil)
	ctx := context.Background()

	var fired []string
	sched.RegisterHandler(domain.JobReferralTimeout, func(_ context.Context, job *domain.Job) error {
		fired = append(fired, job.ID.String())
		return nil
	})

	id, err := sched.Schedule(ctx, domain.JobReferralTimeout, map[string]any{"petition_id": "p1"}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := sched.RunOnce(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job processed, got %d", n)
	}
	if len(fired) != 1 || fired[0] != id.String() {
		t.Errorf("expected handler to fire for scheduled job")
	}

	job, ok := store.Get(id)
	if !ok || job.Status != domain.JobStatusCompleted {
		t.Errorf("expected job marked completed")
	}
}

func TestRunOnceSkipsWhenHalted(t *testing.T) {
	store := memscheduler.New()
	halt := &fakeHalt{halted: true}
	sched := New(store, halt)
	ctx := context.Background()

	fired := false
	sched.RegisterHandler(domain.JobReferralTimeout, func(_ context.Context, _ *domain.Job) error {
		fired = true
		return nil
	})
	_, _ = sched.Schedule(ctx, domain.JobReferralTimeout, nil, time.Now().Add(-time.Minute))

	n, err := sched.RunOnce(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || fired {
		t.Errorf("expected no dispatch while halted")
	}
}

func TestRunOnceLeavesFailedJobPendingForRetry(t *testing.T) {
	store := memscheduler.New()
	sched := New(store, nil)
	ctx := context.Background()

	attempts := 0
	sched.RegisterHandler(domain.JobReferralTimeout, func(_ context.Context, _ *domain.Job) error {
		attempts++
		if attempts == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	id, _ := sched.Schedule(ctx, domain.JobReferralTimeout, nil, time.Now().Add(-time.Minute))

	n, _ := sched.RunOnce(ctx, time.Now(), 10)
	if n != 0 {
		t.Errorf("expected failed handler to not count as processed")
	}
	job, _ := store.Get(id)
	if job.Status != domain.JobStatusPending {
		t.Errorf("expected job to remain pending after handler failure")
	}

	n, _ = sched.RunOnce(ctx, time.Now(), 10)
	if n != 1 {
		t.Errorf("expected retry to succeed on second RunOnce")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	store := memscheduler.New()
	sched := New(store, nil)
	ctx := context.Background()

	id, _ := sched.Schedule(ctx, domain.JobReferralTimeout, nil, time.Now().Add(time.Hour))
	if err := sched.Cancel(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sched.Cancel(ctx, id); err != nil {
		t.Errorf("expected second cancel to be a no-op, got %v", err)
	}
	job, _ := store.Get(id)
	if job.Status != domain.JobStatusCancelled {
		t.Errorf("expected job cancelled")
	}
}
