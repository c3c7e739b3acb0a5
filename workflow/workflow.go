// Package workflow defines workflow definitions (the named state graph
// assignable to content) along with states, transition edges, and the
// definition store interface. The Service layer owns creation-state
// bootstrapping, scoped state listing, edge lookup, and next-state
// derivation.
package workflow

import (
	"github.com/xraph/transit"
)

// CommentStyle controls whether a comment box is shown for a transition
// in a given display context, and whether a comment is mandatory.
type CommentStyle string

const (
	// CommentHidden hides the comment box.
	CommentHidden CommentStyle = "hidden"
	// CommentOptional shows the comment box; a comment may be left empty.
	CommentOptional CommentStyle = "optional"
	// CommentRequired shows the comment box and requires a comment.
	CommentRequired CommentStyle = "required"
)

// Options is the per-workflow option bag. The two comment styles are
// independent because the node widget and the dedicated transition tab
// are configured separately.
type Options struct {
	// AllowScheduling permits transitions to be deferred to a future time.
	AllowScheduling bool `json:"allow_scheduling"`

	// TimezoneDisplay shows scheduled times in the actor's timezone.
	TimezoneDisplay bool `json:"timezone_display"`

	// CommentOnNode is the comment style on the entity edit widget.
	CommentOnNode CommentStyle `json:"comment_on_node"`

	// CommentOnTab is the comment style on the transition tab.
	CommentOnTab CommentStyle `json:"comment_on_tab"`

	// HistoryTabEnabled exposes the transition history tab.
	HistoryTabEnabled bool `json:"history_tab_enabled"`

	// LogOnChange appends history only when the state actually changes.
	LogOnChange bool `json:"log_on_change"`

	// HistoryViewRoles lists role ids permitted to view history.
	// Empty means any actor may view it.
	HistoryViewRoles []string `json:"history_view_roles,omitempty"`
}

// DefaultOptions returns the option bag applied to new workflows.
func DefaultOptions() Options {
	return Options{
		AllowScheduling:   true,
		CommentOnNode:     CommentOptional,
		CommentOnTab:      CommentOptional,
		HistoryTabEnabled: true,
	}
}

// Workflow is a named state graph assignable to content fields.
// ID is an administratively chosen machine name, unique system-wide.
type Workflow struct {
	transit.Entity

	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Options Options `json:"options"`
}
