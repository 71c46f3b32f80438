// Package store provides WorkflowState persistence backends for the
// engine. The engine's authoritative live state always lives in its own
// in-process instance table (the spec's Non-goals explicitly exclude
// persistence across process restarts); Store is a write-through audit
// side channel the engine pushes every successful mutation into, so a
// completed or in-flight instance "remain[s] queryable for audit" (§3)
// by whatever backend the caller configured — MemoryStore by default, or
// a SQL store for out-of-process queries.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested instance ID does not exist in
// the store.
var ErrNotFound = errors.New("store: not found")

// Record is the persisted shape of a workflow instance. It mirrors
// engine.WorkflowState structurally but lives in this package to avoid an
// import cycle (engine depends on store, not the reverse).
type Record struct {
	WorkflowID      string
	InstanceID      string
	UserID          string
	CurrentNodeID   string
	NodeHistory     []string
	Responses       map[string]any
	Completed       bool
	Waiting         bool
	CompleteMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store persists WorkflowState snapshots keyed by instance ID. The engine
// writes through to whichever Store it was constructed with on every
// successful mutation; it never reads from Store to drive behavior.
//
// Implementations:
//   - MemoryStore: the default, in-process and non-durable.
//   - SQLiteStore / MySQLStore: durable audit backends an external process
//     can query independently of the running engine.
type Store interface {
	// Save persists the current snapshot of rec, replacing any prior
	// snapshot for the same InstanceID.
	Save(ctx context.Context, rec Record) error

	// Load retrieves the latest snapshot for instanceID, or ErrNotFound.
	Load(ctx context.Context, instanceID string) (Record, error)

	// List returns every persisted record, for audit queries. Order is
	// unspecified.
	List(ctx context.Context) ([]Record, error)
}
