// Package memstore provides an in-memory PetitionStore, AcknowledgmentStore,
// and ReferralStore, used by tests and grounded on the teacher's MemoryKV
// pattern (a mutex-guarded map satisfying the same interface as the
// durable implementation) from the teacher's main.go, generalized to the
// petition domain's richer CAS contract.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// Store is an in-memory PetitionStore. Safe for concurrent use: all
// mutation is serialized through a single mutex, which also provides the
// linearization point AssignFateCAS's contract requires.
type Store struct {
	mu        sync.Mutex
	petitions map[uuid.UUID]*domain.Petition
	signers   map[uuid.UUID]map[int64]bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		petitions: make(map[uuid.UUID]*domain.Petition),
		signers:   make(map[uuid.UUID]map[int64]bool),
	}
}

func clone(p *domain.Petition) *domain.Petition {
	cp := *p
	return &cp
}

func (s *Store) Save(_ context.Context, p *domain.Petition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.petitions[p.ID]; exists {
		return petitionerr.New(petitionerr.KindAlreadyExists, "petition already exists")
	}
	s.petitions[p.ID] = clone(p)
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*domain.Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.petitions[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (s *Store) ListByState(_ context.Context, state statemachine.State, limit, offset int) ([]*domain.Petition, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Petition
	for _, p := range s.petitions {
		if p.State == state {
			matched = append(matched, clone(p))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) || limit <= 0 {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *Store) UpdateState(_ context.Context, id uuid.UUID, state statemachine.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.petitions[id]
	if !ok {
		return petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	p.State = state
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AssignFateCAS(_ context.Context, id uuid.UUID, expected, newState statemachine.State,
	escalationSource *domain.EscalationSource, escalatedToRealm *string, fateReason *string) (*domain.Petition, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.petitions[id]
	if !ok {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if statemachine.IsTerminal(p.State) {
		return nil, petitionerr.New(petitionerr.KindAlreadyFated, "petition has already reached a terminal state")
	}
	if err := statemachine.Validate(p.State, newState); err != nil {
		return nil, err
	}
	if p.State != expected {
		return nil, petitionerr.New(petitionerr.KindConcurrentModification,
			"petition state changed since it was read; re-read and retry")
	}

	p.State = newState
	p.UpdatedAt = time.Now().UTC()
	if statemachine.IsTerminal(newState) {
		p.FateReason = fateReason
	}

	if newState == statemachine.StateEscalated {
		// COALESCE semantics: do not overwrite an already-set triple.
		if p.EscalationSource == nil && escalationSource != nil {
			p.EscalationSource = escalationSource
			now := p.UpdatedAt
			p.EscalatedAt = &now
			p.EscalatedToRealm = escalatedToRealm
		}
	}

	return clone(p), nil
}

func (s *Store) MarkAdopted(_ context.Context, id uuid.UUID, motionID, kingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.petitions[id]
	if !ok {
		return petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if p.AdoptedAsMotionID != nil {
		return petitionerr.New(petitionerr.KindAlreadyExists, "petition already adopted")
	}
	now := time.Now().UTC()
	p.AdoptedAsMotionID = &motionID
	p.AdoptedAt = &now
	p.AdoptedByKingID = &kingID
	return nil
}

func (s *Store) FindByState(_ context.Context, state statemachine.State, receivedBefore *time.Time) ([]*domain.Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Petition
	for _, p := range s.petitions {
		if p.State != state {
			continue
		}
		if receivedBefore != nil && !p.CreatedAt.Before(*receivedBefore) {
			continue
		}
		matched = append(matched, clone(p))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *Store) GetQueueDepth(_ context.Context, state *statemachine.State) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil {
		return len(s.petitions), nil
	}
	count := 0
	for _, p := range s.petitions {
		if p.State == *state {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListEscalatedByRealm(_ context.Context, realm string, after *store.EscalationCursor, limit int) ([]*domain.Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Petition
	for _, p := range s.petitions {
		if p.State != statemachine.StateEscalated || p.EscalatedToRealm == nil || *p.EscalatedToRealm != realm {
			continue
		}
		matched = append(matched, clone(p))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].EscalatedAt.Equal(*matched[j].EscalatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].EscalatedAt.Before(*matched[j].EscalatedAt)
	})

	if after != nil {
		filtered := matched[:0]
		for _, p := range matched {
			if p.EscalatedAt.After(after.EscalatedAt) ||
				(p.EscalatedAt.Equal(after.EscalatedAt) && p.ID.String() > after.PetitionID.String()) {
				filtered = append(filtered, p)
			}
		}
		matched = filtered
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) CoSign(_ context.Context, id uuid.UUID, actorID int64) (*domain.Petition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.petitions[id]
	if !ok {
		return nil, false, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if statemachine.IsTerminal(p.State) {
		return nil, false, petitionerr.New(petitionerr.KindAlreadyFated, "petition has already reached a terminal state")
	}

	if s.signers[id] == nil {
		s.signers[id] = make(map[int64]bool)
	}
	if s.signers[id][actorID] {
		return clone(p), true, nil
	}
	s.signers[id][actorID] = true
	p.CoSignerCount++
	p.UpdatedAt = time.Now().UTC()
	return clone(p), false, nil
}

// AcknowledgmentStore is an in-memory AcknowledgmentStore.
type AcknowledgmentStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Acknowledgment
	byPetition map[uuid.UUID]uuid.UUID
}

func NewAcknowledgmentStore() *AcknowledgmentStore {
	return &AcknowledgmentStore{
		byID:       make(map[uuid.UUID]*domain.Acknowledgment),
		byPetition: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *AcknowledgmentStore) Save(_ context.Context, a *domain.Acknowledgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPetition[a.PetitionID]; exists {
		return petitionerr.New(petitionerr.KindAlreadyExists, "acknowledgment already exists for petition")
	}
	cp := *a
	s.byID[a.ID] = &cp
	s.byPetition[a.PetitionID] = a.ID
	return nil
}

func (s *AcknowledgmentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *AcknowledgmentStore) GetByPetitionID(_ context.Context, petitionID uuid.UUID) (*domain.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPetition[petitionID]
	if !ok {
		return nil, nil
	}
	a := s.byID[id]
	cp := *a
	return &cp, nil
}

// ReferralStore is an in-memory ReferralStore.
type ReferralStore struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*domain.Referral
	byPetition map[uuid.UUID]uuid.UUID
}

func NewReferralStore() *ReferralStore {
	return &ReferralStore{
		byID:       make(map[uuid.UUID]*domain.Referral),
		byPetition: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *ReferralStore) Save(_ context.Context, r *domain.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPetition[r.PetitionID]; exists {
		return petitionerr.New(petitionerr.KindAlreadyExists, "referral already exists for petition")
	}
	cp := *r
	s.byID[r.ID] = &cp
	s.byPetition[r.PetitionID] = r.ID
	return nil
}

func (s *ReferralStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *ReferralStore) GetByPetitionID(_ context.Context, petitionID uuid.UUID) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPetition[petitionID]
	if !ok {
		return nil, nil
	}
	r := s.byID[id]
	cp := *r
	return &cp, nil
}

func (s *ReferralStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ReferralStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return petitionerr.New(petitionerr.KindNotFound, "referral not found")
	}
	r.Status = status
	return nil
}
