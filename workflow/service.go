package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/transit"
)

// CreationStateID is the reserved state id synthesized when a workflow
// has no creation state yet.
const CreationStateID = "creation"

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithFieldLookup sets the host field lookup used for deletability checks.
func WithFieldLookup(fields transit.FieldLookup) ServiceOption {
	return func(s *Service) { s.fields = fields }
}

// WithAccessPolicy sets the actor/permission oracle used to filter
// role-restricted edges out of allowed-options listings.
func WithAccessPolicy(policy transit.AccessPolicy) ServiceOption {
	return func(s *Service) { s.policy = policy }
}

// Service provides definition-level reads and writes over a Store.
//
// States and edges are cached per workflow id in an explicitly
// invalidisable cache: every write through the Service invalidates the
// owning workflow's entry, and Invalidate is exported for hosts that
// write to the store directly.
type Service struct {
	store  Store
	fields transit.FieldLookup
	policy transit.AccessPolicy
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*definition
}

// definition is the cached states+edges snapshot for one workflow.
type definition struct {
	states []*State // weight then id order
	edges  []*Edge  // from-state weight, then to-state weight order
}

// NewService creates a definition Service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		cache:  make(map[string]*definition),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached definition for a workflow. The next read
// loads fresh from the store.
func (s *Service) Invalidate(workflowID string) {
	s.mu.Lock()
	delete(s.cache, workflowID)
	s.mu.Unlock()
}

// load returns the cached definition, reading through on a miss.
func (s *Service) load(ctx context.Context, workflowID string) (*definition, error) {
	s.mu.RLock()
	def, ok := s.cache[workflowID]
	s.mu.RUnlock()
	if ok {
		return def, nil
	}

	states, err := s.store.ListStates(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.ListEdges(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	sortStates(states)
	sortEdges(edges, states)
	def = &definition{states: states, edges: edges}

	s.mu.Lock()
	s.cache[workflowID] = def
	s.mu.Unlock()
	return def, nil
}

// sortStates applies the canonical stable ordering: weight, ties by id.
func sortStates(states []*State) {
	sort.SliceStable(states, func(i, j int) bool {
		if states[i].Weight != states[j].Weight {
			return states[i].Weight < states[j].Weight
		}
		return states[i].ID < states[j].ID
	})
}

// sortEdges orders edges by from-state weight, then to-state weight,
// ties by state ids. Unresolvable endpoints sort last.
func sortEdges(edges []*Edge, states []*State) {
	weights := make(map[string]int, len(states))
	for _, st := range states {
		weights[st.ID] = st.Weight
	}
	weightOf := func(stateID string) int {
		if w, ok := weights[stateID]; ok {
			return w
		}
		return int(^uint(0) >> 1) // max int
	}
	sort.SliceStable(edges, func(i, j int) bool {
		fi, fj := weightOf(edges[i].FromID), weightOf(edges[j].FromID)
		if fi != fj {
			return fi < fj
		}
		if edges[i].FromID != edges[j].FromID {
			return edges[i].FromID < edges[j].FromID
		}
		ti, tj := weightOf(edges[i].ToID), weightOf(edges[j].ToID)
		if ti != tj {
			return ti < tj
		}
		return edges[i].ToID < edges[j].ToID
	})
}

// ── Workflow CRUD ─────────────────────────────────────────────────

// SaveWorkflow inserts or updates a workflow definition and makes sure a
// creation state exists, mirroring first-save bootstrapping.
func (s *Service) SaveWorkflow(ctx context.Context, wf *Workflow) error {
	if wf.CreatedAt.IsZero() {
		wf.Entity = transit.NewEntity()
	} else {
		wf.Touch()
	}
	if err := s.store.SaveWorkflow(ctx, wf); err != nil {
		return err
	}
	s.Invalidate(wf.ID)

	_, err := s.CreationState(ctx, wf.ID)
	return err
}

// Workflow retrieves a workflow definition by id.
func (s *Service) Workflow(ctx context.Context, workflowID string) (*Workflow, error) {
	return s.store.GetWorkflow(ctx, workflowID)
}

// Deletable reports whether the workflow may be deleted: no host field
// configuration may still reference it.
func (s *Service) Deletable(ctx context.Context, workflowID string) (bool, error) {
	if s.fields == nil {
		return true, nil
	}
	inUse, err := s.fields.WorkflowInUse(ctx, workflowID)
	if err != nil {
		return false, err
	}
	return !inUse, nil
}

// Delete removes the workflow and everything it owns. States are
// deactivated and deleted before the workflow itself.
func (s *Service) Delete(ctx context.Context, workflowID string) error {
	deletable, err := s.Deletable(ctx, workflowID)
	if err != nil {
		return err
	}
	if !deletable {
		return transit.ErrWorkflowInUse
	}

	states, err := s.store.ListStates(ctx, workflowID)
	if err != nil {
		return err
	}
	for _, st := range states {
		st.Active = false
		if err := s.store.SaveState(ctx, st); err != nil {
			return err
		}
		if err := s.store.DeleteState(ctx, workflowID, st.ID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteWorkflow(ctx, workflowID); err != nil {
		return err
	}
	s.Invalidate(workflowID)
	return nil
}

// ── States ────────────────────────────────────────────────────────

// CreationState returns the workflow's creation state, synthesizing and
// persisting one if absent. Idempotent: repeated calls never create a
// second creation state.
func (s *Service) CreationState(ctx context.Context, workflowID string) (*State, error) {
	def, err := s.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, st := range def.states {
		if st.Creation {
			return st, nil
		}
	}

	st := &State{
		Entity:     transit.NewEntity(),
		ID:         CreationStateID,
		WorkflowID: workflowID,
		Label:      CreationStateName,
		Weight:     CreationStateWeight,
		Active:     true,
		Creation:   true,
	}
	if err := s.store.SaveState(ctx, st); err != nil {
		return nil, err
	}
	s.Invalidate(workflowID)
	return st, nil
}

// CreationStateID returns the id of the workflow's creation state.
func (s *Service) CreationStateID(ctx context.Context, workflowID string) (string, error) {
	st, err := s.CreationState(ctx, workflowID)
	if err != nil {
		return "", err
	}
	return st.ID, nil
}

// States returns the workflow's states in stable weight-then-id order,
// filtered by scope.
func (s *Service) States(ctx context.Context, workflowID string, scope Scope) ([]*State, error) {
	def, err := s.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	out := make([]*State, 0, len(def.states))
	for _, st := range def.states {
		if st.InScope(scope) {
			out = append(out, st)
		}
	}
	return out, nil
}

// State retrieves a single state of the workflow.
func (s *Service) State(ctx context.Context, workflowID, stateID string) (*State, error) {
	def, err := s.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, st := range def.states {
		if st.ID == stateID {
			return st, nil
		}
	}
	return nil, transit.ErrStateNotFound
}

// CreateState persists a new state for the workflow.
func (s *Service) CreateState(ctx context.Context, workflowID, stateID, label string, weight int) (*State, error) {
	if existing, err := s.State(ctx, workflowID, stateID); err == nil {
		return existing, nil
	} else if !errors.Is(err, transit.ErrStateNotFound) {
		return nil, err
	}

	st := &State{
		Entity:     transit.NewEntity(),
		ID:         stateID,
		WorkflowID: workflowID,
		Label:      label,
		Weight:     weight,
		Active:     true,
	}
	if err := s.store.SaveState(ctx, st); err != nil {
		return nil, err
	}
	s.Invalidate(workflowID)
	return st, nil
}

// DeactivateState marks a state inactive. Historical references to the
// state are untouched. The creation state cannot be deactivated.
func (s *Service) DeactivateState(ctx context.Context, workflowID, stateID string) error {
	st, err := s.State(ctx, workflowID, stateID)
	if err != nil {
		return err
	}
	if st.Creation {
		return transit.ErrCreationUndeletable
	}
	cp := *st
	cp.Active = false
	cp.Touch()
	if err := s.store.SaveState(ctx, &cp); err != nil {
		return err
	}
	s.Invalidate(workflowID)
	return nil
}

// ── Edges ─────────────────────────────────────────────────────────

// CreateEdge persists a transition edge, returning the existing edge when
// the (from, to) pair is already defined.
func (s *Service) CreateEdge(ctx context.Context, workflowID, fromID, toID string, roles ...string) (*Edge, error) {
	def, err := s.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, e := range def.edges {
		if e.FromID == fromID && e.ToID == toID {
			return e, nil
		}
	}

	e := &Edge{
		Entity:     transit.NewEntity(),
		WorkflowID: workflowID,
		FromID:     fromID,
		ToID:       toID,
		Roles:      roles,
	}
	if err := s.store.SaveEdge(ctx, e); err != nil {
		return nil, err
	}
	s.Invalidate(workflowID)
	return e, nil
}

// DeleteEdge removes the edge for the (from, to) pair.
func (s *Service) DeleteEdge(ctx context.Context, workflowID, fromID, toID string) error {
	if err := s.store.DeleteEdge(ctx, workflowID, fromID, toID); err != nil {
		return err
	}
	s.Invalidate(workflowID)
	return nil
}

// EdgesBetween returns the edges out of fromID, optionally narrowed to a
// single toID (empty means any). Edges whose endpoints do not resolve to
// a live state of this workflow are treated as not yet garbage collected
// and skipped rather than reported as an error.
func (s *Service) EdgesBetween(ctx context.Context, workflowID, fromID, toID string) ([]*Edge, error) {
	def, err := s.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	live := make(map[string]bool, len(def.states))
	for _, st := range def.states {
		if st.InScope(ScopeActiveOrCreation) {
			live[st.ID] = true
		}
	}

	var out []*Edge
	for _, e := range def.edges {
		if !live[e.FromID] || !live[e.ToID] {
			continue // orphaned endpoint
		}
		if fromID != "" && e.FromID != fromID {
			continue
		}
		if toID != "" && e.ToID != toID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ── Assignment validity ───────────────────────────────────────────

// ValidForAssignment reports whether the workflow may be attached to new
// content: it needs at least one active state and at least one edge out
// of its creation state. Each missing prerequisite logs a warning; an
// invalid workflow is unusable, not broken.
func (s *Service) ValidForAssignment(ctx context.Context, workflowID string) (bool, error) {
	valid := true

	active, err := s.States(ctx, workflowID, ScopeActive)
	if err != nil {
		return false, err
	}
	if len(active) == 0 {
		s.logger.Warn("workflow has no states defined, so it cannot be assigned to content yet",
			slog.String("workflow_id", workflowID),
		)
		valid = false
	}

	creation, err := s.CreationState(ctx, workflowID)
	if err != nil {
		return false, err
	}
	edges, err := s.EdgesBetween(ctx, workflowID, creation.ID, "")
	if err != nil {
		return false, err
	}
	if len(edges) == 0 {
		s.logger.Warn("workflow has no transitions defined, so it cannot be assigned to content yet",
			slog.String("workflow_id", workflowID),
		)
		valid = false
	}

	return valid, nil
}

// ── Allowed options and next-state derivation ─────────────────────

// AllowedOptions returns the ordered to-state choices an actor may take
// from the given state right now. Role-restricted edges the actor fails
// are dropped unless force is set or the actor holds the bypass
// capability. An empty result is a valid outcome (terminal or locked
// state), not an error.
func (s *Service) AllowedOptions(ctx context.Context, workflowID, stateID string, ref transit.EntityRef, actorID string, force bool) ([]StateOption, error) {
	edges, err := s.EdgesBetween(ctx, workflowID, stateID, "")
	if err != nil {
		return nil, err
	}

	bypass := force
	if !bypass && s.policy != nil {
		bypass, err = s.policy.ActorCanBypass(ctx, actorID)
		if err != nil {
			return nil, err
		}
	}

	options := make([]StateOption, 0, len(edges))
	for _, e := range edges {
		if e.Restricted() && !bypass {
			ok, aerr := s.actorHoldsAny(ctx, actorID, e.Roles)
			if aerr != nil {
				return nil, aerr
			}
			if !ok {
				continue
			}
		}

		to, serr := s.State(ctx, workflowID, e.ToID)
		if serr != nil {
			continue
		}
		options = append(options, StateOption{ID: to.ID, Label: to.Label})
	}
	return options, nil
}

func (s *Service) actorHoldsAny(ctx context.Context, actorID string, roles []string) (bool, error) {
	if s.policy == nil {
		return false, nil
	}
	for _, role := range roles {
		ok, err := s.policy.ActorHasRole(ctx, actorID, role)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// NextStateID derives the deterministic single target used by bulk and
// automated transitions that present no UI.
//
// From the creation state it returns the first allowed option. From any
// other state it walks the ordered option list and returns the option
// immediately after the current id; when the current id is absent from
// the option list the current id is returned unchanged, a deliberate
// no-op. There is no wrap-around.
func (s *Service) NextStateID(ctx context.Context, workflowID, currentID string, ref transit.EntityRef, actorID string, force bool) (string, error) {
	current, err := s.State(ctx, workflowID, currentID)
	if err != nil {
		return "", err
	}

	options, err := s.AllowedOptions(ctx, workflowID, currentID, ref, actorID, force)
	if err != nil {
		return "", err
	}

	next := currentID
	matched := current.Creation
	for _, opt := range options {
		if matched {
			next = opt.ID
			break
		}
		if opt.ID == currentID {
			matched = true
		}
	}
	return next, nil
}

// FirstStateID returns the first state a new entity may take: the first
// allowed option out of the creation state for this actor.
func (s *Service) FirstStateID(ctx context.Context, workflowID string, ref transit.EntityRef, actorID string, force bool) (string, error) {
	creation, err := s.CreationState(ctx, workflowID)
	if err != nil {
		return "", err
	}
	options, err := s.AllowedOptions(ctx, workflowID, creation.ID, ref, actorID, force)
	if err != nil {
		return "", err
	}
	if len(options) == 0 {
		// This should never happen on a workflow that passed
		// ValidForAssignment, but it did during testing.
		s.logger.Error("no workflow states available for new entity",
			slog.String("workflow_id", workflowID),
		)
		return "", fmt.Errorf("workflow %s: %w", workflowID, transit.ErrStateNotFound)
	}
	return options[0].ID, nil
}

// ShowsWidget reports whether a state-selection widget is worth
// rendering: false exactly when the allowed-options set has at most one
// member equal to the current state.
func (s *Service) ShowsWidget(ctx context.Context, workflowID, currentID string, ref transit.EntityRef, actorID string, force bool) (bool, error) {
	options, err := s.AllowedOptions(ctx, workflowID, currentID, ref, actorID, force)
	if err != nil {
		return false, err
	}
	switch len(options) {
	case 0:
		return false, nil
	case 1:
		return options[0].ID != currentID, nil
	default:
		return true, nil
	}
}
