// Package ext defines the extension system for Transit.
// Extensions are notified of lifecycle events (transition executed,
// denied, scheduled, abandoned, etc.) and can react to them, for
// example by recording metrics or busting host-side caches.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/transit/transition"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// TransitionExecuted is called after a transition executes: the state
// slot is updated and the history record is written.
type TransitionExecuted interface {
	OnTransitionExecuted(ctx context.Context, rec *transition.Record) error
}

// TransitionDenied is called when the gate rejects a non-forced
// request. The entity state is unchanged.
type TransitionDenied interface {
	OnTransitionDenied(ctx context.Context, req *transition.Request) error
}

// TransitionScheduled is called after a transition is stored for
// deferred execution.
type TransitionScheduled interface {
	OnTransitionScheduled(ctx context.Context, sch *transition.Scheduled) error
}

// ScheduleAbandoned is called when a due schedule is discarded because
// the entity's present state diverged from the recorded from-state.
type ScheduleAbandoned interface {
	OnScheduleAbandoned(ctx context.Context, sch *transition.Scheduled, presentStateID string) error
}

// SweepCompleted is called at the end of each scheduled-transition
// sweep with the counts of executed and abandoned items.
type SweepCompleted interface {
	OnSweepCompleted(ctx context.Context, executed, abandoned int, elapsed time.Duration) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
