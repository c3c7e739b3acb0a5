package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/xraph/transit"
	"github.com/xraph/transit/workflow"
)

// SaveWorkflow inserts or updates a workflow definition.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	if err := s.setEntity(ctx, workflowKey(wf.ID), wf); err != nil {
		return fmt.Errorf("transit/redis: save workflow: %w", err)
	}
	if err := s.rdb.SAdd(ctx, workflowIDsKey, wf.ID).Err(); err != nil {
		return fmt.Errorf("transit/redis: save workflow index: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := s.getEntity(ctx, workflowKey(workflowID), &wf); err != nil {
		if isNotFound(err) {
			return nil, transit.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("transit/redis: get workflow: %w", err)
	}
	return &wf, nil
}

// ListWorkflows returns all workflow definitions ordered by id.
func (s *Store) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	ids, err := s.rdb.SMembers(ctx, workflowIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("transit/redis: list workflow ids: %w", err)
	}
	sort.Strings(ids)

	workflows := make([]*workflow.Workflow, 0, len(ids))
	for _, id := range ids {
		var wf workflow.Workflow
		if getErr := s.getEntity(ctx, workflowKey(id), &wf); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return nil, fmt.Errorf("transit/redis: list workflows: %w", getErr)
		}
		workflows = append(workflows, &wf)
	}
	return workflows, nil
}

// DeleteWorkflow removes a workflow definition and its edges.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID string) error {
	removed, err := s.rdb.SRem(ctx, workflowIDsKey, workflowID).Result()
	if err != nil {
		return fmt.Errorf("transit/redis: delete workflow index: %w", err)
	}
	if removed == 0 {
		return transit.ErrWorkflowNotFound
	}
	if err := s.rdb.Del(ctx, workflowKey(workflowID)).Err(); err != nil {
		return fmt.Errorf("transit/redis: delete workflow: %w", err)
	}

	edgeKeys, err := s.rdb.SMembers(ctx, edgeIndexKey(workflowID)).Result()
	if err != nil {
		return fmt.Errorf("transit/redis: delete workflow edges index: %w", err)
	}
	if len(edgeKeys) > 0 {
		if err := s.rdb.Del(ctx, edgeKeys...).Err(); err != nil {
			return fmt.Errorf("transit/redis: delete workflow edges: %w", err)
		}
	}
	if err := s.rdb.Del(ctx, edgeIndexKey(workflowID)).Err(); err != nil {
		return fmt.Errorf("transit/redis: delete workflow edge index: %w", err)
	}
	return nil
}

// SaveState inserts or updates a state.
func (s *Store) SaveState(ctx context.Context, st *workflow.State) error {
	if err := s.setEntity(ctx, stateKey(st.WorkflowID, st.ID), st); err != nil {
		return fmt.Errorf("transit/redis: save state: %w", err)
	}
	if err := s.rdb.SAdd(ctx, stateIndexKey(st.WorkflowID), st.ID).Err(); err != nil {
		return fmt.Errorf("transit/redis: save state index: %w", err)
	}
	return nil
}

// GetState retrieves a state by workflow and state id.
func (s *Store) GetState(ctx context.Context, workflowID, stateID string) (*workflow.State, error) {
	var st workflow.State
	if err := s.getEntity(ctx, stateKey(workflowID, stateID), &st); err != nil {
		if isNotFound(err) {
			return nil, transit.ErrStateNotFound
		}
		return nil, fmt.Errorf("transit/redis: get state: %w", err)
	}
	return &st, nil
}

// ListStates returns all states owned by the workflow.
func (s *Store) ListStates(ctx context.Context, workflowID string) ([]*workflow.State, error) {
	ids, err := s.rdb.SMembers(ctx, stateIndexKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("transit/redis: list state ids: %w", err)
	}
	sort.Strings(ids)

	states := make([]*workflow.State, 0, len(ids))
	for _, id := range ids {
		var st workflow.State
		if getErr := s.getEntity(ctx, stateKey(workflowID, id), &st); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return nil, fmt.Errorf("transit/redis: list states: %w", getErr)
		}
		states = append(states, &st)
	}
	return states, nil
}

// DeleteState removes a state.
func (s *Store) DeleteState(ctx context.Context, workflowID, stateID string) error {
	removed, err := s.rdb.SRem(ctx, stateIndexKey(workflowID), stateID).Result()
	if err != nil {
		return fmt.Errorf("transit/redis: delete state index: %w", err)
	}
	if removed == 0 {
		return transit.ErrStateNotFound
	}
	if err := s.rdb.Del(ctx, stateKey(workflowID, stateID)).Err(); err != nil {
		return fmt.Errorf("transit/redis: delete state: %w", err)
	}
	return nil
}

// SaveEdge upserts a transition edge by its (from, to) key.
func (s *Store) SaveEdge(ctx context.Context, e *workflow.Edge) error {
	key := edgeKey(e.WorkflowID, e.FromID, e.ToID)
	if err := s.setEntity(ctx, key, e); err != nil {
		return fmt.Errorf("transit/redis: save edge: %w", err)
	}
	if err := s.rdb.SAdd(ctx, edgeIndexKey(e.WorkflowID), key).Err(); err != nil {
		return fmt.Errorf("transit/redis: save edge index: %w", err)
	}
	return nil
}

// ListEdges returns all edges owned by the workflow.
func (s *Store) ListEdges(ctx context.Context, workflowID string) ([]*workflow.Edge, error) {
	keys, err := s.rdb.SMembers(ctx, edgeIndexKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("transit/redis: list edge keys: %w", err)
	}
	sort.Strings(keys)

	edges := make([]*workflow.Edge, 0, len(keys))
	for _, key := range keys {
		var e workflow.Edge
		if getErr := s.getEntity(ctx, key, &e); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return nil, fmt.Errorf("transit/redis: list edges: %w", getErr)
		}
		edges = append(edges, &e)
	}
	return edges, nil
}

// DeleteEdge removes the edge for the (from, to) pair.
func (s *Store) DeleteEdge(ctx context.Context, workflowID, fromID, toID string) error {
	key := edgeKey(workflowID, fromID, toID)
	removed, err := s.rdb.SRem(ctx, edgeIndexKey(workflowID), key).Result()
	if err != nil {
		return fmt.Errorf("transit/redis: delete edge index: %w", err)
	}
	if removed == 0 {
		return transit.ErrEdgeNotFound
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("transit/redis: delete edge: %w", err)
	}
	return nil
}
