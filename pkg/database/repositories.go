// Copyright 2025 Certen Protocol
//
// Repositories - Convenience wrapper for all Postgres-backed repositories
// Provides a single point of access to every store the petition
// governance engine persists through.

package database

import (
	"log"

	"github.com/archon-governance/three-fates/pkg/scheduler/pgscheduler"
	"github.com/archon-governance/three-fates/pkg/store/pgstore"
)

// Repositories holds all Postgres-backed store instances built on a
// shared connection pool.
type Repositories struct {
	Petitions            *pgstore.Store
	Acknowledgments       *pgstore.AcknowledgmentStore
	Referrals             *pgstore.ReferralStore
	NotificationPrefs     *pgstore.NotificationPreferencesStore
	Scheduler             *pgscheduler.Store
}

// NewRepositories creates all repositories with the given client.
func NewRepositories(client *Client, logger *log.Logger) *Repositories {
	db := client.DB()
	return &Repositories{
		Petitions:         pgstore.New(db, logger),
		Acknowledgments:   pgstore.NewAcknowledgmentStore(db),
		Referrals:         pgstore.NewReferralStore(db),
		NotificationPrefs: pgstore.NewNotificationPreferencesStore(db),
		Scheduler:         pgscheduler.New(db),
	}
}
