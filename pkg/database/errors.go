// Copyright 2025 Certen Protocol
//
// Package database provides sentinel errors for the low-level connection
// layer. Repository-level domain errors are classified through
// pkg/petitionerr instead. These sentinels name connection and migration
// failures; Client does not currently return either of them.

package database

import "errors"

// Sentinel errors for the connection/migration layer.
var (
	// ErrNotConnected signals an operation attempted without a live
	// connection.
	ErrNotConnected = errors.New("database: not connected")

	// ErrMigrationFailed wraps a failure applying an embedded migration.
	ErrMigrationFailed = errors.New("database: migration failed")
)
