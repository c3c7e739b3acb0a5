package transition

import (
	"context"

	"github.com/xraph/transit"
	"github.com/xraph/transit/workflow"
)

// Gate is the pure permission/validity check every non-forced transition
// passes through. Denial is a normal outcome signalled by the boolean,
// not an error: the caller's documented recovery is to leave the state
// unchanged.
type Gate struct {
	workflows *workflow.Service
	policy    transit.AccessPolicy
}

// NewGate creates a Gate over the definition service and the host's
// access policy.
func NewGate(workflows *workflow.Service, policy transit.AccessPolicy) *Gate {
	return &Gate{workflows: workflows, policy: policy}
}

// Allowed decides whether the request may execute against the given
// workflow. A forced request short-circuits to allowed. Otherwise an
// edge (from → to) must exist, and either the edge is unrestricted, the
// actor holds one of its roles, or the actor holds the blanket bypass
// capability.
//
// Allowed has no side effects; identical inputs yield identical results.
func (g *Gate) Allowed(ctx context.Context, workflowID string, req *Request, force bool) (bool, error) {
	if force || req.Forced {
		return true, nil
	}

	edges, err := g.workflows.EdgesBetween(ctx, workflowID, req.FromID, req.ToID)
	if err != nil {
		return false, err
	}
	if len(edges) == 0 {
		return false, nil
	}

	edge := edges[0]
	if !edge.Restricted() {
		return true, nil
	}

	if g.policy == nil {
		return false, nil
	}
	for _, role := range edge.Roles {
		ok, err := g.policy.ActorHasRole(ctx, req.ActorID, role)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return g.policy.ActorCanBypass(ctx, req.ActorID)
}
