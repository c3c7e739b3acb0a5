package workflow

import (
	"github.com/xraph/transit"
)

// CreationStateName is the reserved label given to the synthetic
// creation state bootstrapped for every workflow.
const CreationStateName = "(creation)"

// CreationStateWeight sorts the creation state before all regular states.
const CreationStateWeight = -50

// Scope selects which states a listing returns.
type Scope int

const (
	// ScopeAll returns every state, including inactive and creation.
	ScopeAll Scope = iota
	// ScopeActive returns active states, excluding the creation state.
	ScopeActive
	// ScopeActiveOrCreation returns active states plus the creation state.
	ScopeActiveOrCreation
)

// State is a node in a workflow's graph. ID is unique within the
// workflow; WorkflowID never changes after creation. Deactivating a
// state hides it from new transitions without touching historical
// references to it.
type State struct {
	transit.Entity

	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Label      string `json:"label"`

	// Weight defines the default ordering and "next state" semantics.
	Weight int `json:"weight"`

	Active   bool `json:"active"`
	Creation bool `json:"creation"`
}

// InScope reports whether the state matches the listing scope.
func (s *State) InScope(scope Scope) bool {
	switch scope {
	case ScopeAll:
		return true
	case ScopeActive:
		return s.Active && !s.Creation
	case ScopeActiveOrCreation:
		return s.Active || s.Creation
	default:
		return false
	}
}

// StateOption is one entry in an ordered allowed-options listing:
// a reachable to-state id with its display label.
type StateOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
