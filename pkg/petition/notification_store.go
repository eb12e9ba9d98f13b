package petition

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// NotificationPreferencesStore persists a submitter's delivery
// preferences for a petition. It is best-effort on the submission path:
// a failure here is logged and never fails the submission (spec.md
// §4.7 step 6).
type NotificationPreferencesStore interface {
	Save(ctx context.Context, petitionID uuid.UUID, prefs map[string]any) error
}

// MemNotificationPreferencesStore is an in-memory
// NotificationPreferencesStore.
type MemNotificationPreferencesStore struct {
	mu    sync.Mutex
	prefs map[uuid.UUID]map[string]any
}

// NewMemNotificationPreferencesStore constructs an empty store.
func NewMemNotificationPreferencesStore() *MemNotificationPreferencesStore {
	return &MemNotificationPreferencesStore{prefs: make(map[uuid.UUID]map[string]any)}
}

func (m *MemNotificationPreferencesStore) Save(_ context.Context, petitionID uuid.UUID, prefs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[petitionID] = prefs
	return nil
}

// Get returns the stored preferences for petitionID, for test assertions.
func (m *MemNotificationPreferencesStore) Get(petitionID uuid.UUID) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[petitionID]
	return p, ok
}
