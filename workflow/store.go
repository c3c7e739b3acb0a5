package workflow

import (
	"context"
)

// Store defines the persistence contract for workflow definitions.
// Listing order is the backend's concern only up to determinism; the
// Service applies the canonical weight-then-id ordering.
type Store interface {
	// SaveWorkflow inserts or updates a workflow definition.
	SaveWorkflow(ctx context.Context, wf *Workflow) error

	// GetWorkflow retrieves a workflow by id.
	// Returns transit.ErrWorkflowNotFound if absent.
	GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error)

	// ListWorkflows returns all workflow definitions.
	ListWorkflows(ctx context.Context) ([]*Workflow, error)

	// DeleteWorkflow removes a workflow definition. States must be
	// removed first; the Service enforces the ordering.
	DeleteWorkflow(ctx context.Context, workflowID string) error

	// SaveState inserts or updates a state.
	SaveState(ctx context.Context, st *State) error

	// GetState retrieves a state by workflow and state id.
	// Returns transit.ErrStateNotFound if absent.
	GetState(ctx context.Context, workflowID, stateID string) (*State, error)

	// ListStates returns all states owned by the workflow.
	ListStates(ctx context.Context, workflowID string) ([]*State, error)

	// DeleteState removes a state.
	DeleteState(ctx context.Context, workflowID, stateID string) error

	// SaveEdge upserts a transition edge by its (from, to) key, keeping
	// the one-edge-per-pair invariant. Backends that detect a
	// concurrent insert of the same pair report transit.ErrDuplicateEdge.
	SaveEdge(ctx context.Context, e *Edge) error

	// ListEdges returns all edges owned by the workflow.
	ListEdges(ctx context.Context, workflowID string) ([]*Edge, error)

	// DeleteEdge removes the edge for the (from, to) pair.
	DeleteEdge(ctx context.Context, workflowID, fromID, toID string) error
}
