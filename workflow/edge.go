package workflow

import (
	"github.com/xraph/transit"
)

// Edge is a permitted static move between two states of a workflow.
// At most one edge exists per (from, to) pair per workflow. Edges whose
// endpoint state no longer resolves are orphaned: excluded from
// traversal but not auto-deleted.
type Edge struct {
	transit.Entity

	WorkflowID string `json:"workflow_id"`
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`

	// Roles restricts the edge to actors holding at least one of the
	// listed role ids. Empty means unrestricted.
	Roles []string `json:"roles,omitempty"`
}

// Key renders the uniqueness key for the (from, to) pair.
func (e *Edge) Key() string {
	return e.WorkflowID + ":" + e.FromID + ":" + e.ToID
}

// Restricted reports whether the edge carries a role restriction.
func (e *Edge) Restricted() bool { return len(e.Roles) > 0 }
