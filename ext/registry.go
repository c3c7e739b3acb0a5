package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/transit/transition"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type transitionExecutedEntry struct {
	name string
	hook TransitionExecuted
}

type transitionDeniedEntry struct {
	name string
	hook TransitionDenied
}

type transitionScheduledEntry struct {
	name string
	hook TransitionScheduled
}

type scheduleAbandonedEntry struct {
	name string
	hook ScheduleAbandoned
}

type sweepCompletedEntry struct {
	name string
	hook SweepCompleted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	transitionExecuted  []transitionExecutedEntry
	transitionDenied    []transitionDeniedEntry
	transitionScheduled []transitionScheduledEntry
	scheduleAbandoned   []scheduleAbandonedEntry
	sweepCompleted      []sweepCompletedEntry
	shutdown            []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TransitionExecuted); ok {
		r.transitionExecuted = append(r.transitionExecuted, transitionExecutedEntry{name, h})
	}
	if h, ok := e.(TransitionDenied); ok {
		r.transitionDenied = append(r.transitionDenied, transitionDeniedEntry{name, h})
	}
	if h, ok := e.(TransitionScheduled); ok {
		r.transitionScheduled = append(r.transitionScheduled, transitionScheduledEntry{name, h})
	}
	if h, ok := e.(ScheduleAbandoned); ok {
		r.scheduleAbandoned = append(r.scheduleAbandoned, scheduleAbandonedEntry{name, h})
	}
	if h, ok := e.(SweepCompleted); ok {
		r.sweepCompleted = append(r.sweepCompleted, sweepCompletedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitTransitionExecuted notifies all extensions that implement
// TransitionExecuted.
func (r *Registry) EmitTransitionExecuted(ctx context.Context, rec *transition.Record) {
	for _, e := range r.transitionExecuted {
		if err := e.hook.OnTransitionExecuted(ctx, rec); err != nil {
			r.logHookError("OnTransitionExecuted", e.name, err)
		}
	}
}

// EmitTransitionDenied notifies all extensions that implement
// TransitionDenied.
func (r *Registry) EmitTransitionDenied(ctx context.Context, req *transition.Request) {
	for _, e := range r.transitionDenied {
		if err := e.hook.OnTransitionDenied(ctx, req); err != nil {
			r.logHookError("OnTransitionDenied", e.name, err)
		}
	}
}

// EmitTransitionScheduled notifies all extensions that implement
// TransitionScheduled.
func (r *Registry) EmitTransitionScheduled(ctx context.Context, sch *transition.Scheduled) {
	for _, e := range r.transitionScheduled {
		if err := e.hook.OnTransitionScheduled(ctx, sch); err != nil {
			r.logHookError("OnTransitionScheduled", e.name, err)
		}
	}
}

// EmitScheduleAbandoned notifies all extensions that implement
// ScheduleAbandoned.
func (r *Registry) EmitScheduleAbandoned(ctx context.Context, sch *transition.Scheduled, presentStateID string) {
	for _, e := range r.scheduleAbandoned {
		if err := e.hook.OnScheduleAbandoned(ctx, sch, presentStateID); err != nil {
			r.logHookError("OnScheduleAbandoned", e.name, err)
		}
	}
}

// EmitSweepCompleted notifies all extensions that implement
// SweepCompleted.
func (r *Registry) EmitSweepCompleted(ctx context.Context, executed, abandoned int, elapsed time.Duration) {
	for _, e := range r.sweepCompleted {
		if err := e.hook.OnSweepCompleted(ctx, executed, abandoned, elapsed); err != nil {
			r.logHookError("OnSweepCompleted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block execution.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
