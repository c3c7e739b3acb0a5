package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/transit/ext"
	"github.com/xraph/transit/transition"
)

// Compile-time interface checks.
var (
	_ ext.Extension           = (*Extension)(nil)
	_ ext.TransitionExecuted  = (*Extension)(nil)
	_ ext.TransitionDenied    = (*Extension)(nil)
	_ ext.TransitionScheduled = (*Extension)(nil)
	_ ext.ScheduleAbandoned   = (*Extension)(nil)
	_ ext.SweepCompleted      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import
// any particular audit store. Callers inject their concrete backend at
// wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension emits an audit event for each lifecycle hook it observes.
type Extension struct {
	recorder Recorder
	logger   *slog.Logger
	enabled  map[string]bool
}

// New creates an audit extension that forwards events to rec.
// All actions are enabled unless narrowed with WithActions.
func New(rec Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: rec,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Transition lifecycle hooks ──────────────────────

// OnTransitionExecuted implements ext.TransitionExecuted.
func (e *Extension) OnTransitionExecuted(ctx context.Context, rec *transition.Record) error {
	return e.record(ctx, ActionTransitionExecuted, SeverityInfo, OutcomeSuccess,
		ResourceTransition, rec.ID.String(), CategoryTransition, nil,
		"workflow_id", rec.WorkflowID,
		"entity", rec.Ref.Key(rec.FieldName),
		"from", rec.FromID,
		"to", rec.ToID,
		"actor_id", rec.ActorID,
	)
}

// OnTransitionDenied implements ext.TransitionDenied.
func (e *Extension) OnTransitionDenied(ctx context.Context, req *transition.Request) error {
	return e.record(ctx, ActionTransitionDenied, SeverityWarning, OutcomeDenied,
		ResourceTransition, req.ID.String(), CategoryTransition, nil,
		"entity", req.Ref.Key(req.FieldName),
		"from", req.FromID,
		"to", req.ToID,
		"actor_id", req.ActorID,
	)
}

// OnTransitionScheduled implements ext.TransitionScheduled.
func (e *Extension) OnTransitionScheduled(ctx context.Context, sch *transition.Scheduled) error {
	return e.record(ctx, ActionTransitionScheduled, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, sch.ID.String(), CategorySchedule, nil,
		"entity", sch.Ref.Key(sch.FieldName),
		"from", sch.FromID,
		"to", sch.ToID,
		"actor_id", sch.ActorID,
		"due_at", sch.DueAt.Format(time.RFC3339),
	)
}

// ── Schedule and sweep lifecycle hooks ──────────────

// OnScheduleAbandoned implements ext.ScheduleAbandoned.
func (e *Extension) OnScheduleAbandoned(ctx context.Context, sch *transition.Scheduled, presentStateID string) error {
	return e.record(ctx, ActionScheduleAbandoned, SeverityWarning, OutcomeAbandoned,
		ResourceSchedule, sch.ID.String(), CategorySchedule, nil,
		"entity", sch.Ref.Key(sch.FieldName),
		"expected_from", sch.FromID,
		"present_state", presentStateID,
		"to", sch.ToID,
		"actor_id", sch.ActorID,
	)
}

// OnSweepCompleted implements ext.SweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, executed, abandoned int, elapsed time.Duration) error {
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSweep, "", CategorySweep, nil,
		"executed", executed,
		"abandoned", abandoned,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
