package transition

import (
	"context"
	"time"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
)

// HistoryStore defines the persistence contract for the append-only
// transition history log.
type HistoryStore interface {
	// AppendHistory inserts an executed transition record. Records are
	// never updated in place.
	AppendHistory(ctx context.Context, rec *Record) error

	// LatestHistory returns the most recent record for the entity+field:
	// highest timestamp, ties broken by highest record id (TypeIDs are
	// K-sortable). Returns transit.ErrHistoryNotFound when no history
	// exists.
	LatestHistory(ctx context.Context, ref transit.EntityRef, field string) (*Record, error)

	// ListHistory returns records for the entity+field, most recent
	// first. A zero limit means no limit.
	ListHistory(ctx context.Context, ref transit.EntityRef, field string, limit int) ([]*Record, error)

	// ReassignHistoryActor rewrites the actor id on every history record
	// owned by oldActorID. Returns the number of records touched.
	ReassignHistoryActor(ctx context.Context, oldActorID, newActorID string) (int64, error)

	// DeleteHistoryByWorkflow removes all history for a deleted
	// workflow. Only the explicit deletion cascade calls this.
	DeleteHistoryByWorkflow(ctx context.Context, workflowID string) (int64, error)
}

// ScheduleStore defines the persistence contract for pending scheduled
// transitions.
type ScheduleStore interface {
	// SaveSchedule upserts a pending schedule. Any prior pending
	// schedule for the same (entity type, entity id, field) key is
	// deleted first: at most one pending schedule exists per key, so
	// two schedules can never fire in contradictory order.
	SaveSchedule(ctx context.Context, sch *Scheduled) error

	// PendingSchedule returns the pending schedule for the entity+field
	// key, or transit.ErrScheduleNotFound.
	PendingSchedule(ctx context.Context, ref transit.EntityRef, field string) (*Scheduled, error)

	// ListDueBetween returns schedules whose due time falls in the
	// window (start, end). Both bounds are exclusive; a zero time means
	// unbounded on that side. Results are ordered by ascending due time.
	ListDueBetween(ctx context.Context, start, end time.Time) ([]*Scheduled, error)

	// DeleteSchedule removes a schedule, whether executed or abandoned.
	DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error

	// ReassignScheduleActor rewrites the actor id on every pending
	// schedule owned by oldActorID. Returns the number touched.
	ReassignScheduleActor(ctx context.Context, oldActorID, newActorID string) (int64, error)
}
