package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// NotificationPreferencesStore is a Postgres-backed
// petition.NotificationPreferencesStore.
type NotificationPreferencesStore struct {
	db *sql.DB
}

// NewNotificationPreferencesStore constructs a store backed by db.
func NewNotificationPreferencesStore(db *sql.DB) *NotificationPreferencesStore {
	return &NotificationPreferencesStore{db: db}
}

func (s *NotificationPreferencesStore) Save(ctx context.Context, petitionID uuid.UUID, prefs map[string]any) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to marshal notification preferences", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (petition_id, preferences)
		VALUES ($1, $2)
		ON CONFLICT (petition_id) DO UPDATE SET preferences = EXCLUDED.preferences
	`, petitionID, payload)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to persist notification preferences", err)
	}
	return nil
}
