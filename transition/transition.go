// Package transition defines transition requests (candidate or
// historical state changes of one entity field), the permission gate
// that decides whether a request may execute, and the store contracts
// for the append-only history log and the pending-schedule table.
package transition

import (
	"time"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
)

// Request represents one candidate state change: move the entity's
// field slot from FromID to ToID, on behalf of ActorID. Once executed
// it becomes an immutable history record.
type Request struct {
	transit.Entity

	ID        id.HistoryID      `json:"id"`
	Ref       transit.EntityRef `json:"ref"`
	FieldName string            `json:"field_name"`
	FromID    string            `json:"from_id"`
	ToID      string            `json:"to_id"`
	ActorID   string            `json:"actor_id"`
	Timestamp time.Time         `json:"timestamp"`
	Comment   string            `json:"comment,omitempty"`

	// Forced bypasses the permission gate. Used by trusted automated
	// callers, including the scheduled sweep.
	Forced bool `json:"forced"`

	// Scheduled marks a request held for deferred execution.
	Scheduled bool `json:"scheduled"`

	// Executed marks a request that has been applied and logged.
	Executed bool `json:"executed"`
}

// NewRequest builds an immediate transition request.
func NewRequest(ref transit.EntityRef, field, fromID, toID, actorID string, ts time.Time, comment string) *Request {
	return &Request{
		Entity:    transit.NewEntity(),
		ID:        id.NewHistoryID(),
		Ref:       ref,
		FieldName: field,
		FromID:    fromID,
		ToID:      toID,
		ActorID:   actorID,
		Timestamp: ts,
		Comment:   comment,
	}
}

// Force marks the request as bypassing the permission gate.
func (r *Request) Force(force bool) *Request {
	r.Forced = force
	return r
}

// Bind attaches the now-known entity identity to a request created
// before the entity was persisted.
func (r *Request) Bind(ref transit.EntityRef) *Request {
	r.Ref = ref
	return r
}

// SetComment replaces the request comment.
func (r *Request) SetComment(comment string) *Request {
	r.Comment = comment
	return r
}

// IsNoop reports whether the request would not change the state.
func (r *Request) IsNoop() bool { return r.FromID == r.ToID }

// Record is one executed transition in the append-only history log.
// Never mutated or deleted except by bulk actor reassignment or an
// explicit workflow deletion cascade.
type Record struct {
	transit.Entity

	ID         id.HistoryID      `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	Ref        transit.EntityRef `json:"ref"`
	FieldName  string            `json:"field_name"`
	FromID     string            `json:"from_id"`
	ToID       string            `json:"to_id"`
	ActorID    string            `json:"actor_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Comment    string            `json:"comment,omitempty"`
	ExecutedAt time.Time         `json:"executed_at"`
}

// NewRecord converts an executed request into its history row.
func NewRecord(r *Request, workflowID string, executedAt time.Time) *Record {
	return &Record{
		Entity:     transit.NewEntity(),
		ID:         r.ID,
		WorkflowID: workflowID,
		Ref:        r.Ref,
		FieldName:  r.FieldName,
		FromID:     r.FromID,
		ToID:       r.ToID,
		ActorID:    r.ActorID,
		Timestamp:  r.Timestamp,
		Comment:    r.Comment,
		ExecutedAt: executedAt,
	}
}
