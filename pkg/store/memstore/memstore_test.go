package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
)

func newPetition() *domain.Petition {
	now := time.Now().UTC()
	return &domain.Petition{
		ID:        uuid.New(),
		Type:      domain.PetitionGeneral,
		Text:      "test petition",
		State:     statemachine.StateDeliberating,
		Realm:     "governance",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := New()
	p := newPetition()
	ctx := context.Background()

	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected id %v, got %v", p.ID, got.ID)
	}
}

func TestSaveDuplicateFails(t *testing.T) {
	s := New()
	p := newPetition()
	ctx := context.Background()
	_ = s.Save(ctx, p)

	err := s.Save(ctx, p)
	if petitionerr.KindOf(err) != petitionerr.KindAlreadyExists {
		t.Errorf("expected KindAlreadyExists, got %v", err)
	}
}

func TestAssignFateCASConcurrentSingleWinner(t *testing.T) {
	s := New()
	p := newPetition()
	ctx := context.Background()
	_ = s.Save(ctx, p)

	targets := []statemachine.State{statemachine.StateAcknowledged, statemachine.StateReferred, statemachine.StateEscalated}
	var wg sync.WaitGroup
	results := make([]error, len(targets))
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target statemachine.State) {
			defer wg.Done()
			_, err := s.AssignFateCAS(ctx, p.ID, statemachine.StateDeliberating, target, nil, nil, nil)
			results[i] = err
		}(i, target)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one successful CAS, got %d", successes)
	}

	final, _ := s.Get(ctx, p.ID)
	if !statemachine.IsTerminal(final.State) {
		t.Errorf("expected final state to be terminal, got %s", final.State)
	}
}

func TestAssignFateCASNotFound(t *testing.T) {
	s := New()
	_, err := s.AssignFateCAS(context.Background(), uuid.New(), statemachine.StateDeliberating, statemachine.StateAcknowledged, nil, nil, nil)
	if petitionerr.KindOf(err) != petitionerr.KindNotFound {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}

func TestAssignFateCASEscalationTripleCoalesce(t *testing.T) {
	s := New()
	p := newPetition()
	p.State = statemachine.StateReceived
	ctx := context.Background()
	_ = s.Save(ctx, p)

	src := domain.EscalationCoSignerThreshold
	realm := "governance"
	got, err := s.AssignFateCAS(ctx, p.ID, statemachine.StateReceived, statemachine.StateEscalated, &src, &realm, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EscalationSource == nil || *got.EscalationSource != src {
		t.Errorf("expected escalation source to be set")
	}
	if got.EscalatedAt == nil {
		t.Errorf("expected escalated_at to be set")
	}
}

func TestMarkAdoptedWriteOnce(t *testing.T) {
	s := New()
	p := newPetition()
	ctx := context.Background()
	_ = s.Save(ctx, p)

	motionID, kingID := uuid.New(), uuid.New()
	if err := s.MarkAdopted(ctx, p.ID, motionID, kingID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.MarkAdopted(ctx, p.ID, uuid.New(), uuid.New())
	if petitionerr.KindOf(err) != petitionerr.KindAlreadyExists {
		t.Errorf("expected KindAlreadyExists on second adoption, got %v", err)
	}
}

func TestFindByStateReceivedBefore(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := newPetition()
	old.State = statemachine.StateReceived
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	_ = s.Save(ctx, old)

	recent := newPetition()
	recent.State = statemachine.StateReceived
	recent.CreatedAt = time.Now()
	_ = s.Save(ctx, recent)

	cutoff := time.Now().Add(-24 * time.Hour)
	found, err := s.FindByState(ctx, statemachine.StateReceived, &cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].ID != old.ID {
		t.Errorf("expected only the old petition, got %d results", len(found))
	}
}
