package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
	"github.com/xraph/transit/transition"
	"github.com/xraph/transit/workflow"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle concerns aside, the
// subsystem interfaces are the contract); verify each one.
var (
	_ workflow.Store           = (*Store)(nil)
	_ transition.HistoryStore  = (*Store)(nil)
	_ transition.ScheduleStore = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	workflows map[string]*workflow.Workflow
	states    map[string]*workflow.State       // key: "workflowID:stateID"
	edges     map[string]*workflow.Edge        // key: "workflowID:fromID:toID"
	history   map[string]*transition.Record    // key: record id
	schedules map[string]*transition.Scheduled // key: schedule id
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*workflow.Workflow),
		states:    make(map[string]*workflow.State),
		edges:     make(map[string]*workflow.Edge),
		history:   make(map[string]*transition.Record),
		schedules: make(map[string]*transition.Scheduled),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow definition store
// ──────────────────────────────────────────────────

func stateKey(workflowID, stateID string) string {
	return workflowID + ":" + stateID
}

// SaveWorkflow inserts or updates a workflow definition.
func (m *Store) SaveWorkflow(_ context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *wf
	m.workflows[wf.ID] = &cp
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (m *Store) GetWorkflow(_ context.Context, workflowID string) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[workflowID]
	if !ok {
		return nil, transit.ErrWorkflowNotFound
	}
	cp := *wf
	return &cp, nil
}

// ListWorkflows returns all workflow definitions ordered by id.
func (m *Store) ListWorkflows(_ context.Context) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*workflow.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		cp := *wf
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteWorkflow removes a workflow definition and its edges.
func (m *Store) DeleteWorkflow(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[workflowID]; !ok {
		return transit.ErrWorkflowNotFound
	}
	delete(m.workflows, workflowID)
	for key := range m.edges {
		if strings.HasPrefix(key, workflowID+":") {
			delete(m.edges, key)
		}
	}
	return nil
}

// SaveState inserts or updates a state.
func (m *Store) SaveState(_ context.Context, st *workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *st
	m.states[stateKey(st.WorkflowID, st.ID)] = &cp
	return nil
}

// GetState retrieves a state by workflow and state id.
func (m *Store) GetState(_ context.Context, workflowID, stateID string) (*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[stateKey(workflowID, stateID)]
	if !ok {
		return nil, transit.ErrStateNotFound
	}
	cp := *st
	return &cp, nil
}

// ListStates returns all states owned by the workflow.
func (m *Store) ListStates(_ context.Context, workflowID string) ([]*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.State
	for _, st := range m.states {
		if st.WorkflowID == workflowID {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteState removes a state.
func (m *Store) DeleteState(_ context.Context, workflowID, stateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stateKey(workflowID, stateID)
	if _, ok := m.states[key]; !ok {
		return transit.ErrStateNotFound
	}
	delete(m.states, key)
	return nil
}

// SaveEdge upserts a transition edge by its (from, to) key.
func (m *Store) SaveEdge(_ context.Context, e *workflow.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.edges[e.Key()] = &cp
	return nil
}

// ListEdges returns all edges owned by the workflow.
func (m *Store) ListEdges(_ context.Context, workflowID string) ([]*workflow.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Edge
	for _, e := range m.edges {
		if e.WorkflowID == workflowID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// DeleteEdge removes the edge for the (from, to) pair.
func (m *Store) DeleteEdge(_ context.Context, workflowID, fromID, toID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := workflowID + ":" + fromID + ":" + toID
	if _, ok := m.edges[key]; !ok {
		return transit.ErrEdgeNotFound
	}
	delete(m.edges, key)
	return nil
}

// ──────────────────────────────────────────────────
// History store
// ──────────────────────────────────────────────────

// AppendHistory inserts an executed transition record.
func (m *Store) AppendHistory(_ context.Context, rec *transition.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.history[rec.ID.String()] = &cp
	return nil
}

// matchHistory collects records for the entity+field, unsorted.
func (m *Store) matchHistory(ref transit.EntityRef, field string) []*transition.Record {
	var out []*transition.Record
	for _, rec := range m.history {
		if rec.Ref == ref && rec.FieldName == field {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

// sortHistoryDesc orders records most recent first: highest timestamp,
// ties broken by highest record id.
func sortHistoryDesc(records []*transition.Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID.String() > records[j].ID.String()
	})
}

// LatestHistory returns the most recent record for the entity+field.
func (m *Store) LatestHistory(_ context.Context, ref transit.EntityRef, field string) (*transition.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.matchHistory(ref, field)
	if len(records) == 0 {
		return nil, transit.ErrHistoryNotFound
	}
	sortHistoryDesc(records)
	return records[0], nil
}

// ListHistory returns records for the entity+field, most recent first.
func (m *Store) ListHistory(_ context.Context, ref transit.EntityRef, field string, limit int) ([]*transition.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.matchHistory(ref, field)
	sortHistoryDesc(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ReassignHistoryActor rewrites the actor id on records owned by
// oldActorID.
func (m *Store) ReassignHistoryActor(_ context.Context, oldActorID, newActorID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, rec := range m.history {
		if rec.ActorID == oldActorID {
			rec.ActorID = newActorID
			n++
		}
	}
	return n, nil
}

// DeleteHistoryByWorkflow removes all history for a deleted workflow.
func (m *Store) DeleteHistoryByWorkflow(_ context.Context, workflowID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, rec := range m.history {
		if rec.WorkflowID == workflowID {
			delete(m.history, key)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Schedule store
// ──────────────────────────────────────────────────

// SaveSchedule upserts a pending schedule, deleting any prior pending
// schedule for the same (entity, field) key first. At most one pending
// schedule exists per key.
func (m *Store) SaveSchedule(_ context.Context, sch *transition.Scheduled) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, prior := range m.schedules {
		if prior.Ref == sch.Ref && prior.FieldName == sch.FieldName && key != sch.ID.String() {
			delete(m.schedules, key)
		}
	}
	cp := *sch
	m.schedules[sch.ID.String()] = &cp
	return nil
}

// PendingSchedule returns the pending schedule for the entity+field key.
func (m *Store) PendingSchedule(_ context.Context, ref transit.EntityRef, field string) (*transition.Scheduled, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sch := range m.schedules {
		if sch.Ref == ref && sch.FieldName == field {
			cp := *sch
			return &cp, nil
		}
	}
	return nil, transit.ErrScheduleNotFound
}

// ListDueBetween returns schedules due in the window (start, end), both
// bounds exclusive, a zero time meaning unbounded, ascending due order.
func (m *Store) ListDueBetween(_ context.Context, start, end time.Time) ([]*transition.Scheduled, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*transition.Scheduled
	for _, sch := range m.schedules {
		if !start.IsZero() && !sch.DueAt.After(start) {
			continue
		}
		if !end.IsZero() && !sch.DueAt.Before(end) {
			continue
		}
		cp := *sch
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// DeleteSchedule removes a schedule.
func (m *Store) DeleteSchedule(_ context.Context, scheduleID id.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := scheduleID.String()
	if _, ok := m.schedules[key]; !ok {
		return transit.ErrScheduleNotFound
	}
	delete(m.schedules, key)
	return nil
}

// ReassignScheduleActor rewrites the actor id on pending schedules
// owned by oldActorID.
func (m *Store) ReassignScheduleActor(_ context.Context, oldActorID, newActorID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, sch := range m.schedules {
		if sch.ActorID == oldActorID {
			sch.ActorID = newActorID
			n++
		}
	}
	return n, nil
}
