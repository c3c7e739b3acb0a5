// Package engine orchestrates workflow transitions: it is the single
// funnel every execution path goes through: UI, API, lifecycle hooks,
// bulk actions, and the scheduled sweep.
//
// The engine owns no storage and no session state. It reads and writes
// the entity's current-state slot through the host's StateAccessor,
// consults the host's AccessPolicy through the gate, and persists
// definitions, history, and schedules through the composable store
// interfaces.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/transit"
	"github.com/xraph/transit/ext"
	"github.com/xraph/transit/transition"
	"github.com/xraph/transit/workflow"
)

// Store is the persistence surface the engine needs: definitions,
// history, and schedules. The aggregate store.Store satisfies it.
type Store interface {
	workflow.Store
	transition.HistoryStore
	transition.ScheduleStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFieldLookup sets the host field lookup used to resolve which
// workflow a field slot carries.
func WithFieldLookup(fields transit.FieldLookup) Option {
	return func(e *Engine) { e.fields = fields }
}

// WithCacheInvalidator sets the host render-cache invalidator used
// after field-less sweep executions.
func WithCacheInvalidator(inv transit.CacheInvalidator) Option {
	return func(e *Engine) { e.cacheInv = inv }
}

// WithExtensions sets the lifecycle extension registry.
func WithExtensions(reg *ext.Registry) Option {
	return func(e *Engine) { e.exts = reg }
}

// WithClock overrides the time source. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWorkflows replaces the definition service the engine builds by
// default, for hosts that share one service across components.
func WithWorkflows(svc *workflow.Service) Option {
	return func(e *Engine) { e.workflows = svc }
}

// Engine executes transitions against entity state slots, maintains the
// audit history, and sweeps due scheduled transitions.
type Engine struct {
	store     Store
	accessor  transit.StateAccessor
	policy    transit.AccessPolicy
	fields    transit.FieldLookup
	cacheInv  transit.CacheInvalidator
	workflows *workflow.Service
	gate      *transition.Gate
	exts      *ext.Registry
	logger    *slog.Logger
	now       func() time.Time

	// pending holds transitions captured before their entity was
	// persisted, keyed by entity type + field. OnEntityInserted
	// re-binds and executes them.
	pendingMu sync.Mutex
	pending   map[string][]*transition.Request
}

// New creates an Engine over the given store and host collaborators.
func New(store Store, accessor transit.StateAccessor, policy transit.AccessPolicy, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		accessor: accessor,
		policy:   policy,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		pending:  make(map[string][]*transition.Request),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workflows == nil {
		svcOpts := []workflow.ServiceOption{
			workflow.WithLogger(e.logger),
			workflow.WithAccessPolicy(policy),
		}
		if e.fields != nil {
			svcOpts = append(svcOpts, workflow.WithFieldLookup(e.fields))
		}
		e.workflows = workflow.NewService(store, svcOpts...)
	}
	e.gate = transition.NewGate(e.workflows, policy)
	return e
}

// Workflows returns the definition service the engine operates on.
func (e *Engine) Workflows() *workflow.Service { return e.workflows }

// Gate returns the permission gate, for callers that want a dry-run
// allow/deny answer without executing anything.
func (e *Engine) Gate() *transition.Gate { return e.gate }

// Close emits the shutdown hook. The engine holds no connections of its
// own; stores are closed by their owner.
func (e *Engine) Close(ctx context.Context) error {
	if e.exts != nil {
		e.exts.EmitShutdown(ctx)
	}
	return nil
}

// workflowFor resolves the workflow id carried by an entity type's
// field slot.
func (e *Engine) workflowFor(ctx context.Context, entityType, field string) (string, error) {
	if e.fields == nil {
		return "", transit.ErrWorkflowNotFound
	}
	bindings, err := e.fields.WorkflowFields(ctx, entityType)
	if err != nil {
		return "", err
	}
	for _, b := range bindings {
		if b.FieldName == field {
			return b.WorkflowID, nil
		}
	}
	return "", transit.ErrWorkflowNotFound
}

// ── Execution ─────────────────────────────────────────────────────

// ExecuteTransition runs a single transition request through the gate
// and, when allowed, updates the entity's state slot and appends a
// history record.
//
// The returned state id is the success/failure signal: a denied,
// non-forced request returns the unchanged from-state id with a nil
// error and writes nothing. When the target entity has not been
// persisted yet, execution is deferred until OnEntityInserted reports
// the insert; the to-state id is returned as the pending value.
//
// The state-slot write happens before the history append, so a
// persistence failure can never leave an audit row for a state change
// that did not happen.
func (e *Engine) ExecuteTransition(ctx context.Context, req *transition.Request) (string, error) {
	workflowID, err := e.workflowFor(ctx, req.Ref.Type, req.FieldName)
	if err != nil {
		return req.FromID, err
	}

	if !req.Forced {
		allowed, gerr := e.gate.Allowed(ctx, workflowID, req, false)
		if gerr != nil {
			return req.FromID, gerr
		}
		if !allowed {
			e.logger.Info("transition denied",
				slog.String("workflow_id", workflowID),
				slog.String("entity", req.Ref.Key(req.FieldName)),
				slog.String("from", req.FromID),
				slog.String("to", req.ToID),
				slog.String("actor_id", req.ActorID),
			)
			if e.exts != nil {
				e.exts.EmitTransitionDenied(ctx, req)
			}
			return req.FromID, nil
		}
	}

	// Insert-before-id-exists race: hold the request until the host
	// reports the entity's insert.
	if req.Ref.IsNew() {
		e.stashPending(req)
		return req.ToID, nil
	}

	// No state change and nothing to say: skip the audit row.
	if req.IsNoop() && req.Comment == "" {
		return req.ToID, nil
	}

	if err := e.accessor.SetStateValue(ctx, req.Ref, req.FieldName, req.ToID); err != nil {
		return req.FromID, err
	}

	executedAt := e.now()
	rec := transition.NewRecord(req, workflowID, executedAt)
	if err := e.store.AppendHistory(ctx, rec); err != nil {
		// Slot already moved; report the write but fail the operation.
		return req.ToID, err
	}
	req.Executed = true

	if wf, werr := e.workflows.Workflow(ctx, workflowID); werr == nil && wf.Options.LogOnChange && !req.IsNoop() {
		e.logger.Info("state changed",
			slog.String("workflow_id", workflowID),
			slog.String("entity", req.Ref.Key(req.FieldName)),
			slog.String("from", req.FromID),
			slog.String("to", req.ToID),
			slog.String("actor_id", req.ActorID),
		)
	}

	if e.exts != nil {
		e.exts.EmitTransitionExecuted(ctx, rec)
	}
	return req.ToID, nil
}

func pendingKey(entityType, field string) string {
	return entityType + ":" + field
}

func (e *Engine) stashPending(req *transition.Request) {
	key := pendingKey(req.Ref.Type, req.FieldName)
	e.pendingMu.Lock()
	e.pending[key] = append(e.pending[key], req)
	e.pendingMu.Unlock()
}

// takePending removes and returns the stashed requests for a key.
func (e *Engine) takePending(entityType, field string) []*transition.Request {
	key := pendingKey(entityType, field)
	e.pendingMu.Lock()
	reqs := e.pending[key]
	delete(e.pending, key)
	e.pendingMu.Unlock()
	return reqs
}

// pendingFields returns the distinct field names with stashed requests
// for an entity type.
func (e *Engine) pendingFields(entityType string) []string {
	prefix := entityType + ":"
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	var fields []string
	for key := range e.pending {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			fields = append(fields, key[len(prefix):])
		}
	}
	return fields
}

// ExecuteTransitionsOfEntity is the lifecycle hook invoked after the
// host inserts or updates an entity. Pending requests captured before
// the entity id existed are re-bound to the now-known id and executed.
// Entities with nothing pending are left untouched.
func (e *Engine) ExecuteTransitionsOfEntity(ctx context.Context, ref transit.EntityRef) error {
	if ref.IsNew() {
		return transit.ErrEntityNotPersisted
	}

	var firstErr error
	for _, field := range e.pendingFields(ref.Type) {
		for _, req := range e.takePending(ref.Type, field) {
			req.Bind(ref)
			if _, err := e.ExecuteTransition(ctx, req); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// OnEntityInserted is the host's named entry point for entity inserts.
func (e *Engine) OnEntityInserted(ctx context.Context, ref transit.EntityRef) error {
	return e.ExecuteTransitionsOfEntity(ctx, ref)
}

// OnEntityUpdated is the host's named entry point for entity updates.
func (e *Engine) OnEntityUpdated(ctx context.Context, ref transit.EntityRef) error {
	return e.ExecuteTransitionsOfEntity(ctx, ref)
}

// ── Scheduling ────────────────────────────────────────────────────

// ScheduleTransition validates and stores a transition for deferred
// execution. An already-executed schedule is converted and executed as
// a plain immediate transition; the pending store is not written.
//
// The returned bool reports whether the transition was accepted: a
// gated denial is a normal outcome, not an error.
func (e *Engine) ScheduleTransition(ctx context.Context, sch *transition.Scheduled) (bool, error) {
	if sch.Executed {
		_, err := e.ExecuteTransition(ctx, sch.Request(e.now()))
		return err == nil, err
	}

	workflowID, err := e.workflowFor(ctx, sch.Ref.Type, sch.FieldName)
	if err != nil {
		return false, err
	}
	wf, err := e.workflows.Workflow(ctx, workflowID)
	if err != nil {
		return false, err
	}
	if !wf.Options.AllowScheduling {
		return false, transit.ErrSchedulingDisabled
	}

	// Validate the actor now; the sweep will execute with force later.
	probe := transition.NewRequest(sch.Ref, sch.FieldName, sch.FromID, sch.ToID, sch.ActorID, sch.DueAt, sch.Comment)
	allowed, err := e.gate.Allowed(ctx, workflowID, probe, false)
	if err != nil {
		return false, err
	}
	if !allowed {
		if e.exts != nil {
			e.exts.EmitTransitionDenied(ctx, probe)
		}
		return false, nil
	}

	if err := e.store.SaveSchedule(ctx, sch); err != nil {
		return false, err
	}
	e.logger.Info("transition scheduled",
		slog.String("workflow_id", workflowID),
		slog.String("entity", sch.Ref.Key(sch.FieldName)),
		slog.String("from", sch.FromID),
		slog.String("to", sch.ToID),
		slog.Time("due_at", sch.DueAt),
	)
	if e.exts != nil {
		e.exts.EmitTransitionScheduled(ctx, sch)
	}
	return true, nil
}

// ExecuteScheduledTransitionsBetween sweeps the schedule store for
// transitions whose due time falls in the half-open window (start, end),
// in ascending due order. Each item is re-validated against the
// entity's present state immediately before executing: a manual change
// made in the meantime wins, and the schedule is abandoned without
// error. Whole-entity items (empty field name) invalidate the host
// render cache once at the end of the sweep.
func (e *Engine) ExecuteScheduledTransitionsBetween(ctx context.Context, start, end time.Time) error {
	due, err := e.store.ListDueBetween(ctx, start, end)
	if err != nil {
		return err
	}

	began := e.now()
	var executed, abandoned int
	clearCache := false

	for _, sch := range due {
		sch.DefaultComment()

		present, perr := e.CurrentStateID(ctx, sch.Ref, sch.FieldName)
		if perr != nil {
			e.logger.Error("sweep read present state",
				slog.String("entity", sch.Ref.Key(sch.FieldName)),
				slog.String("error", perr.Error()),
			)
			continue
		}

		if present != sch.FromID {
			// The entity is no longer in the state it was in when the
			// transition was scheduled. Defer to the current state and
			// abandon the schedule.
			if derr := e.store.DeleteSchedule(ctx, sch.ID); derr != nil {
				e.logger.Error("sweep delete diverged schedule",
					slog.String("schedule_id", sch.ID.String()),
					slog.String("error", derr.Error()),
				)
				continue
			}
			abandoned++
			e.logger.Info("scheduled transition abandoned",
				slog.String("entity", sch.Ref.Key(sch.FieldName)),
				slog.String("recorded_from", sch.FromID),
				slog.String("present", present),
			)
			if e.exts != nil {
				e.exts.EmitScheduleAbandoned(ctx, sch, present)
			}
			continue
		}

		// Force it: the scheduling actor was checked at schedule time.
		req := sch.Request(e.now()).Force(true)
		if _, xerr := e.ExecuteTransition(ctx, req); xerr != nil {
			e.logger.Error("sweep execute",
				slog.String("schedule_id", sch.ID.String()),
				slog.String("error", xerr.Error()),
			)
			continue
		}
		if derr := e.store.DeleteSchedule(ctx, sch.ID); derr != nil {
			e.logger.Error("sweep delete executed schedule",
				slog.String("schedule_id", sch.ID.String()),
				slog.String("error", derr.Error()),
			)
		}
		executed++
		if sch.FieldName == "" {
			clearCache = true
		}
	}

	if clearCache && e.cacheInv != nil {
		// A whole-entity transition may have published something the
		// anonymous user could not see before.
		if cerr := e.cacheInv.InvalidateRendered(ctx); cerr != nil {
			e.logger.Warn("render cache invalidation", slog.String("error", cerr.Error()))
		}
	}

	if e.exts != nil {
		e.exts.EmitSweepCompleted(ctx, executed, abandoned, e.now().Sub(began))
	}
	return nil
}

// OnTick is the host's periodic entry point mapping straight onto
// ExecuteScheduledTransitionsBetween.
func (e *Engine) OnTick(ctx context.Context, start, end time.Time) error {
	return e.ExecuteScheduledTransitionsBetween(ctx, start, end)
}

// ── Read-path helpers ─────────────────────────────────────────────

// CurrentStateID resolves the entity's present state for a field slot.
// An empty slot falls back to the workflow's creation state: content
// created before the workflow was attached has implicitly never left
// it. Missing definitions surface as a logged diagnostic, not a
// propagated failure; only store errors propagate.
func (e *Engine) CurrentStateID(ctx context.Context, ref transit.EntityRef, field string) (string, error) {
	sid, err := e.accessor.StateValue(ctx, ref, field)
	if err != nil {
		return "", err
	}
	if sid != "" {
		return sid, nil
	}
	return e.creationStateFor(ctx, ref, field)
}

// PreviousStateID resolves the state the entity was in before its most
// recent transition: the creation state for new entities, else the
// from-state of the latest history record, else the creation state.
func (e *Engine) PreviousStateID(ctx context.Context, ref transit.EntityRef, field string) (string, error) {
	if ref.IsNew() {
		return e.creationStateFor(ctx, ref, field)
	}

	rec, err := e.store.LatestHistory(ctx, ref, field)
	if err != nil {
		if errors.Is(err, transit.ErrHistoryNotFound) {
			return e.creationStateFor(ctx, ref, field)
		}
		return "", err
	}
	return rec.FromID, nil
}

func (e *Engine) creationStateFor(ctx context.Context, ref transit.EntityRef, field string) (string, error) {
	workflowID, err := e.workflowFor(ctx, ref.Type, field)
	if err != nil {
		if errors.Is(err, transit.ErrWorkflowNotFound) {
			e.logger.Error("workflow cannot be resolved, contact your system administrator",
				slog.String("entity_type", ref.Type),
				slog.String("field", field),
			)
			return "", nil
		}
		return "", err
	}
	return e.workflows.CreationStateID(ctx, workflowID)
}

// ── Account lifecycle ─────────────────────────────────────────────

// CancelPolicy selects what happens to an actor's workflow records when
// the account is cancelled.
type CancelPolicy string

const (
	// CancelBlock disables the account and keeps its records.
	CancelBlock CancelPolicy = "block"
	// CancelBlockUnpublish disables the account and unpublishes its
	// content. Workflow records are kept.
	CancelBlockUnpublish CancelPolicy = "block_unpublish"
	// CancelReassign deletes the account and reassigns its records to
	// the anonymous actor.
	CancelReassign CancelPolicy = "reassign"
	// CancelDelete deletes the account and its content; workflow
	// records move to the anonymous actor.
	CancelDelete CancelPolicy = "delete"
)

// CancelActor applies the account-cancellation policy to the actor's
// history and schedule records. Block policies leave everything
// untouched; reassign policies move ownership to the anonymous sentinel
// so the audit trail survives the account.
func (e *Engine) CancelActor(ctx context.Context, actorID string, policy CancelPolicy) error {
	switch policy {
	case CancelBlock, CancelBlockUnpublish:
		return nil
	case CancelReassign, CancelDelete:
		histN, err := e.store.ReassignHistoryActor(ctx, actorID, transit.AnonymousActorID)
		if err != nil {
			return err
		}
		schedN, err := e.store.ReassignScheduleActor(ctx, actorID, transit.AnonymousActorID)
		if err != nil {
			return err
		}
		e.logger.Info("workflow records reassigned to anonymous",
			slog.String("actor_id", actorID),
			slog.Int64("history", histN),
			slog.Int64("schedules", schedN),
		)
		return nil
	default:
		return nil
	}
}

// DeleteActor is the host's account-deletion hook.
func (e *Engine) DeleteActor(ctx context.Context, actorID string) error {
	return e.CancelActor(ctx, actorID, CancelDelete)
}
