package transition

import (
	"fmt"
	"time"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
)

// Scheduled is a transition request held for deferred execution. It
// carries the same payload as a Request plus a due timestamp, and sits
// in the pending store until the sweep executes or abandons it.
type Scheduled struct {
	transit.Entity

	ID        id.ScheduleID     `json:"id"`
	Ref       transit.EntityRef `json:"ref"`
	FieldName string            `json:"field_name"`
	FromID    string            `json:"from_id"`
	ToID      string            `json:"to_id"`
	ActorID   string            `json:"actor_id"`

	// DueAt is the moment the transition becomes eligible to execute.
	DueAt time.Time `json:"due_at"`

	Comment string `json:"comment,omitempty"`

	// Executed flips when the sweep converts this schedule into a
	// history record. An already-executed schedule saves as a plain
	// immediate transition, never back into the pending store.
	Executed bool `json:"executed"`
}

// NewScheduled builds a transition request deferred until due.
func NewScheduled(ref transit.EntityRef, field, fromID, toID, actorID string, due time.Time, comment string) *Scheduled {
	return &Scheduled{
		Entity:    transit.NewEntity(),
		ID:        id.NewScheduleID(),
		Ref:       ref,
		FieldName: field,
		FromID:    fromID,
		ToID:      toID,
		ActorID:   actorID,
		DueAt:     due,
		Comment:   comment,
	}
}

// Request converts the schedule into an executable immediate request.
// The scheduling actor's permission was validated at schedule time, so
// the sweep executes the result with force set.
func (s *Scheduled) Request(ts time.Time) *Request {
	r := NewRequest(s.Ref, s.FieldName, s.FromID, s.ToID, s.ActorID, ts, s.Comment)
	r.Scheduled = true
	return r
}

// DefaultComment fills in a synthesized comment naming the scheduling
// actor when the user supplied none.
func (s *Scheduled) DefaultComment() {
	if s.Comment == "" {
		s.Comment = fmt.Sprintf("Scheduled by user %s.", s.ActorID)
	}
}
