package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/transit"
	"github.com/xraph/transit/workflow"
)

// SaveWorkflow inserts or updates a workflow definition.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	m, err := toWorkflowModel(wf)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("label = EXCLUDED.label").
		Set("options = EXCLUDED.options").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	m := new(workflowModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", workflowID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, transit.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("transit/bun: get workflow: %w", err)
	}
	return fromWorkflowModel(m)
}

// ListWorkflows returns all workflow definitions ordered by id.
func (s *Store) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	var models []workflowModel
	err := s.db.NewSelect().Model(&models).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("transit/bun: list workflows: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0, len(models))
	for i := range models {
		wf, convErr := fromWorkflowModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("transit/bun: list workflows convert: %w", convErr)
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// DeleteWorkflow removes a workflow definition and its edges.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID string) error {
	res, err := s.db.NewDelete().
		Model((*workflowModel)(nil)).
		Where("id = ?", workflowID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: delete workflow: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return transit.ErrWorkflowNotFound
	}

	_, err = s.db.NewDelete().
		Model((*edgeModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: delete workflow edges: %w", err)
	}
	return nil
}

// SaveState inserts or updates a state.
func (s *Store) SaveState(ctx context.Context, st *workflow.State) error {
	m := toStateModel(st)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (workflow_id, id) DO UPDATE").
		Set("label = EXCLUDED.label").
		Set("weight = EXCLUDED.weight").
		Set("active = EXCLUDED.active").
		Set("creation = EXCLUDED.creation").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: save state: %w", err)
	}
	return nil
}

// GetState retrieves a state by workflow and state id.
func (s *Store) GetState(ctx context.Context, workflowID, stateID string) (*workflow.State, error) {
	m := new(stateModel)
	err := s.db.NewSelect().Model(m).
		Where("workflow_id = ?", workflowID).
		Where("id = ?", stateID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, transit.ErrStateNotFound
		}
		return nil, fmt.Errorf("transit/bun: get state: %w", err)
	}
	return fromStateModel(m), nil
}

// ListStates returns all states owned by the workflow.
func (s *Store) ListStates(ctx context.Context, workflowID string) ([]*workflow.State, error) {
	var models []stateModel
	err := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", workflowID).
		Order("weight ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("transit/bun: list states: %w", err)
	}

	states := make([]*workflow.State, 0, len(models))
	for i := range models {
		states = append(states, fromStateModel(&models[i]))
	}
	return states, nil
}

// DeleteState removes a state.
func (s *Store) DeleteState(ctx context.Context, workflowID, stateID string) error {
	res, err := s.db.NewDelete().
		Model((*stateModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Where("id = ?", stateID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: delete state: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return transit.ErrStateNotFound
	}
	return nil
}

// SaveEdge upserts a transition edge by its (from, to) key.
func (s *Store) SaveEdge(ctx context.Context, e *workflow.Edge) error {
	m := toEdgeModel(e)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (workflow_id, from_id, to_id) DO UPDATE").
		Set("roles = EXCLUDED.roles").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return transit.ErrDuplicateEdge
		}
		return fmt.Errorf("transit/bun: save edge: %w", err)
	}
	return nil
}

// ListEdges returns all edges owned by the workflow.
func (s *Store) ListEdges(ctx context.Context, workflowID string) ([]*workflow.Edge, error) {
	var models []edgeModel
	err := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", workflowID).
		Order("from_id ASC", "to_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("transit/bun: list edges: %w", err)
	}

	edges := make([]*workflow.Edge, 0, len(models))
	for i := range models {
		edges = append(edges, fromEdgeModel(&models[i]))
	}
	return edges, nil
}

// DeleteEdge removes the edge for the (from, to) pair.
func (s *Store) DeleteEdge(ctx context.Context, workflowID, fromID, toID string) error {
	res, err := s.db.NewDelete().
		Model((*edgeModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Where("from_id = ?", fromID).
		Where("to_id = ?", toID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: delete edge: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return transit.ErrEdgeNotFound
	}
	return nil
}
