package petition

import (
	"time"

	"github.com/archon-governance/three-fates/pkg/events/memwriter"
	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/scheduler"
	"github.com/archon-governance/three-fates/pkg/scheduler/memscheduler"
	"github.com/archon-governance/three-fates/pkg/store/memstore"
)

// harness bundles every in-memory port a petition-package test needs,
// wired the way a production binary would wire the durable equivalents.
type harness struct {
	Store       *memstore.Store
	Acks        *memstore.AcknowledgmentStore
	Referrals   *memstore.ReferralStore
	Events      *memwriter.Writer
	Halt        *haltgate.Gate
	Scheduler   *scheduler.Scheduler
	SchedStore  *memscheduler.Store
	Coordinator *Coordinator
	AckExec     *AcknowledgmentExecutor
	RefExec     *ReferralExecutor
	EscExec     *AutoEscalationExecutor
	Queue       *EscalationQueue
	Submission  *SubmissionService
}

func newHarness() *harness {
	st := memstore.New()
	acks := memstore.NewAcknowledgmentStore()
	referrals := memstore.NewReferralStore()
	ev := memwriter.New()
	halt := haltgate.New(nil)
	coord := NewCoordinator(st, ev, halt, nil)
	ackExec := NewAcknowledgmentExecutor(st, acks, ev, coord, nil, nil, 0, nil)
	schedStore := memscheduler.New()
	sched := scheduler.New(schedStore, halt)
	refExec := NewReferralExecutor(st, referrals, ev, coord, sched, ackExec, time.Hour, nil)
	escExec := NewAutoEscalationExecutor(st, ev, coord, halt, nil)
	queue := NewEscalationQueue(st, halt)
	realms := NewStaticRealmRegistry("governance", "economy")
	submission := NewSubmissionService(st, ev, halt, realms, nil, nil, coord, nil)

	return &harness{
		Store: st, Acks: acks, Referrals: referrals, Events: ev, Halt: halt,
		Scheduler: sched, SchedStore: schedStore, Coordinator: coord,
		AckExec: ackExec, RefExec: refExec, EscExec: escExec, Queue: queue,
		Submission: submission,
	}
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
