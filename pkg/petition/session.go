package petition

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
)

// MemSessionLookup is an in-memory SessionLookup, grounded on the same
// sync.Mutex-guarded-map convention used across the store packages.
type MemSessionLookup struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.DeliberationSession
}

// NewMemSessionLookup constructs an empty lookup.
func NewMemSessionLookup() *MemSessionLookup {
	return &MemSessionLookup{sessions: make(map[uuid.UUID]*domain.DeliberationSession)}
}

// Start records a deliberation session's creation for petitionID.
func (m *MemSessionLookup) Start(session *domain.DeliberationSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.PetitionID] = session
}

// Clear removes any tracked session for petitionID, e.g. once a petition
// is fated.
func (m *MemSessionLookup) Clear(petitionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, petitionID)
}

func (m *MemSessionLookup) GetSession(_ context.Context, petitionID uuid.UUID) (*domain.DeliberationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[petitionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// NoopNotifier discards every notification. Used where no delivery
// channel is wired in.
type NoopNotifier struct{}

func (NoopNotifier) NotifyFateChange(context.Context, uuid.UUID, string) {}
