// Package store defines the aggregate persistence interface. Each
// subsystem (workflow definitions, transition history, schedules)
// defines its own store interface; the composite Store composes them
// all. Backends: Postgres (Bun), Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/transit/transition"
	"github.com/xraph/transit/workflow"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// implements all of them.
type Store interface {
	workflow.Store
	transition.HistoryStore
	transition.ScheduleStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
