package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/transit"
	"github.com/xraph/transit/store/memory"
	"github.com/xraph/transit/workflow"
)

// stubPolicy is a fixed actor/role oracle.
type stubPolicy struct {
	roles  map[string][]string
	bypass map[string]bool
}

func (p *stubPolicy) ActorHasRole(_ context.Context, actorID, roleID string) (bool, error) {
	for _, r := range p.roles[actorID] {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (p *stubPolicy) ActorCanBypass(_ context.Context, actorID string) (bool, error) {
	return p.bypass[actorID], nil
}

// stubFields reports a fixed in-use answer.
type stubFields struct {
	inUse bool
}

func (f *stubFields) WorkflowFields(_ context.Context, _ string) ([]transit.FieldBinding, error) {
	return nil, nil
}

func (f *stubFields) WorkflowInUse(_ context.Context, _ string) (bool, error) {
	return f.inUse, nil
}

// newEditorialService builds the canonical test workflow:
// (creation) -> draft -> review -> {published, draft}.
func newEditorialService(t *testing.T, opts ...workflow.ServiceOption) *workflow.Service {
	t.Helper()
	ctx := context.Background()
	svc := workflow.NewService(memory.New(), opts...)

	wf := &workflow.Workflow{ID: "editorial", Label: "Editorial", Options: workflow.DefaultOptions()}
	if err := svc.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	for i, stateID := range []string{"draft", "review", "published"} {
		if _, err := svc.CreateState(ctx, "editorial", stateID, stateID, i+1); err != nil {
			t.Fatalf("CreateState %s: %v", stateID, err)
		}
	}
	for _, pair := range [][2]string{
		{workflow.CreationStateID, "draft"},
		{"draft", "review"},
		{"review", "published"},
		{"review", "draft"},
	} {
		if _, err := svc.CreateEdge(ctx, "editorial", pair[0], pair[1]); err != nil {
			t.Fatalf("CreateEdge %s->%s: %v", pair[0], pair[1], err)
		}
	}
	return svc
}

func TestSaveWorkflowBootstrapsCreationState(t *testing.T) {
	ctx := context.Background()
	svc := workflow.NewService(memory.New())

	wf := &workflow.Workflow{ID: "editorial", Label: "Editorial"}
	if err := svc.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}

	creation, err := svc.CreationState(ctx, "editorial")
	if err != nil {
		t.Fatalf("CreationState: %v", err)
	}
	if creation.ID != workflow.CreationStateID {
		t.Fatalf("expected creation id %q, got %q", workflow.CreationStateID, creation.ID)
	}
	if creation.Label != workflow.CreationStateName {
		t.Fatalf("expected label %q, got %q", workflow.CreationStateName, creation.Label)
	}
	if creation.Weight != workflow.CreationStateWeight {
		t.Fatalf("expected weight %d, got %d", workflow.CreationStateWeight, creation.Weight)
	}

	// Saving again must not create a second creation state.
	if err := svc.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("second SaveWorkflow: %v", err)
	}
	states, err := svc.States(ctx, "editorial", workflow.ScopeAll)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	var creations int
	for _, st := range states {
		if st.Creation {
			creations++
		}
	}
	if creations != 1 {
		t.Fatalf("expected exactly one creation state, got %d", creations)
	}
}

func TestStatesScopedListing(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)

	if err := svc.DeactivateState(ctx, "editorial", "published"); err != nil {
		t.Fatalf("DeactivateState: %v", err)
	}

	all, err := svc.States(ctx, "editorial", workflow.ScopeAll)
	if err != nil {
		t.Fatalf("States all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 states in ScopeAll, got %d", len(all))
	}
	// Creation state sorts first by weight.
	if !all[0].Creation {
		t.Fatalf("expected creation state first, got %q", all[0].ID)
	}

	active, err := svc.States(ctx, "editorial", workflow.ScopeActive)
	if err != nil {
		t.Fatalf("States active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active states, got %d", len(active))
	}
	for _, st := range active {
		if st.Creation || !st.Active {
			t.Fatalf("state %q out of scope in ScopeActive", st.ID)
		}
	}

	withCreation, err := svc.States(ctx, "editorial", workflow.ScopeActiveOrCreation)
	if err != nil {
		t.Fatalf("States active-or-creation: %v", err)
	}
	if len(withCreation) != 3 {
		t.Fatalf("expected 3 states in ScopeActiveOrCreation, got %d", len(withCreation))
	}
}

func TestDeactivateCreationState(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)

	err := svc.DeactivateState(ctx, "editorial", workflow.CreationStateID)
	if !errors.Is(err, transit.ErrCreationUndeletable) {
		t.Fatalf("expected ErrCreationUndeletable, got %v", err)
	}
}

func TestCreateStateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)

	st, err := svc.CreateState(ctx, "editorial", "draft", "Draft Again", 99)
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	if st.Label != "draft" || st.Weight != 1 {
		t.Fatalf("expected existing state returned unchanged, got %q weight %d", st.Label, st.Weight)
	}
}

func TestCreateEdgeIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)

	e, err := svc.CreateEdge(ctx, "editorial", "draft", "review", "editor")
	if err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}
	// The pair already exists unrestricted; the existing edge wins.
	if e.Restricted() {
		t.Fatal("expected existing unrestricted edge to be returned")
	}

	edges, err := svc.EdgesBetween(ctx, "editorial", "draft", "review")
	if err != nil {
		t.Fatalf("EdgesBetween: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge for the pair, got %d", len(edges))
	}
}

func TestEdgesBetweenSkipsOrphans(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)

	// Deactivating published orphans the review->published edge.
	if err := svc.DeactivateState(ctx, "editorial", "published"); err != nil {
		t.Fatalf("DeactivateState: %v", err)
	}

	edges, err := svc.EdgesBetween(ctx, "editorial", "review", "")
	if err != nil {
		t.Fatalf("EdgesBetween: %v", err)
	}
	if len(edges) != 1 || edges[0].ToID != "draft" {
		t.Fatalf("expected only review->draft to survive, got %d edges", len(edges))
	}
}

func TestValidForAssignment(t *testing.T) {
	ctx := context.Background()

	svc := newEditorialService(t)
	valid, err := svc.ValidForAssignment(ctx, "editorial")
	if err != nil {
		t.Fatalf("ValidForAssignment: %v", err)
	}
	if !valid {
		t.Fatal("expected fully wired workflow to be assignable")
	}

	// A workflow with states but no edge out of creation is unusable.
	bare := workflow.NewService(memory.New())
	if err := bare.SaveWorkflow(ctx, &workflow.Workflow{ID: "bare", Label: "Bare"}); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	if _, err := bare.CreateState(ctx, "bare", "only", "Only", 1); err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	valid, err = bare.ValidForAssignment(ctx, "bare")
	if err != nil {
		t.Fatalf("ValidForAssignment: %v", err)
	}
	if valid {
		t.Fatal("expected workflow without creation edges to be unassignable")
	}
}

func TestDeleteWorkflowInUse(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t, workflow.WithFieldLookup(&stubFields{inUse: true}))

	if err := svc.Delete(ctx, "editorial"); !errors.Is(err, transit.ErrWorkflowInUse) {
		t.Fatalf("expected ErrWorkflowInUse, got %v", err)
	}
}

func TestDeleteWorkflowCascades(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t, workflow.WithFieldLookup(&stubFields{inUse: false}))

	if err := svc.Delete(ctx, "editorial"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Workflow(ctx, "editorial"); !errors.Is(err, transit.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
	states, err := svc.States(ctx, "editorial", workflow.ScopeAll)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if len(states) != 0 {
		t.Fatalf("expected states deleted with workflow, got %d", len(states))
	}
}

func TestAllowedOptionsOrderAndLabels(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)
	ref := transit.EntityRef{Type: "node", ID: "17"}

	options, err := svc.AllowedOptions(ctx, "editorial", "review", ref, "42", false)
	if err != nil {
		t.Fatalf("AllowedOptions: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 options from review, got %d", len(options))
	}
	// Ordered by to-state weight: draft (1) before published (3).
	if options[0].ID != "draft" || options[1].ID != "published" {
		t.Fatalf("expected [draft published], got [%s %s]", options[0].ID, options[1].ID)
	}
	if options[0].Label != "draft" {
		t.Fatalf("expected state label, got %q", options[0].Label)
	}
}

func TestAllowedOptionsRoleFiltering(t *testing.T) {
	ctx := context.Background()
	policy := &stubPolicy{
		roles:  map[string][]string{"editor-actor": {"editor"}},
		bypass: map[string]bool{"admin-actor": true},
	}
	svc := newEditorialService(t, workflow.WithAccessPolicy(policy))
	ref := transit.EntityRef{Type: "node", ID: "17"}

	// Restrict review->published to editors.
	if err := svc.DeleteEdge(ctx, "editorial", "review", "published"); err != nil {
		t.Fatalf("DeleteEdge: %v", err)
	}
	if _, err := svc.CreateEdge(ctx, "editorial", "review", "published", "editor"); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}

	// An actor without the role loses the restricted option.
	options, err := svc.AllowedOptions(ctx, "editorial", "review", ref, "plain-actor", false)
	if err != nil {
		t.Fatalf("AllowedOptions: %v", err)
	}
	if len(options) != 1 || options[0].ID != "draft" {
		t.Fatalf("expected only draft for unprivileged actor, got %d options", len(options))
	}

	// The role holder sees both.
	options, err = svc.AllowedOptions(ctx, "editorial", "review", ref, "editor-actor", false)
	if err != nil {
		t.Fatalf("AllowedOptions: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 options for editor, got %d", len(options))
	}

	// Bypass capability ignores restrictions.
	options, err = svc.AllowedOptions(ctx, "editorial", "review", ref, "admin-actor", false)
	if err != nil {
		t.Fatalf("AllowedOptions: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 options for bypass actor, got %d", len(options))
	}

	// So does force.
	options, err = svc.AllowedOptions(ctx, "editorial", "review", ref, "plain-actor", true)
	if err != nil {
		t.Fatalf("AllowedOptions: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 options under force, got %d", len(options))
	}
}

func TestNextStateID(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)
	ref := transit.EntityRef{Type: "node", ID: "17"}

	// From creation: the first allowed option.
	next, err := svc.NextStateID(ctx, "editorial", workflow.CreationStateID, ref, "42", false)
	if err != nil {
		t.Fatalf("NextStateID from creation: %v", err)
	}
	if next != "draft" {
		t.Fatalf("expected draft from creation, got %q", next)
	}

	// From review the options are [draft published]; review itself is
	// absent from the list, so the state stays put.
	next, err = svc.NextStateID(ctx, "editorial", "review", ref, "42", false)
	if err != nil {
		t.Fatalf("NextStateID from review: %v", err)
	}
	if next != "review" {
		t.Fatalf("expected review to stay put, got %q", next)
	}

	// With a self-edge the walk advances past the current state.
	if _, err := svc.CreateEdge(ctx, "editorial", "review", "review"); err != nil {
		t.Fatalf("CreateEdge self: %v", err)
	}
	next, err = svc.NextStateID(ctx, "editorial", "review", ref, "42", false)
	if err != nil {
		t.Fatalf("NextStateID with self-edge: %v", err)
	}
	// Options ordered by weight: [draft review published]; the entry
	// after review is published.
	if next != "published" {
		t.Fatalf("expected published after review, got %q", next)
	}
}

func TestFirstStateID(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)
	ref := transit.EntityRef{Type: "node", ID: ""}

	first, err := svc.FirstStateID(ctx, "editorial", ref, "42", false)
	if err != nil {
		t.Fatalf("FirstStateID: %v", err)
	}
	if first != "draft" {
		t.Fatalf("expected draft, got %q", first)
	}

	// No options out of creation is an error, not a silent empty id.
	bare := workflow.NewService(memory.New())
	if err := bare.SaveWorkflow(ctx, &workflow.Workflow{ID: "bare", Label: "Bare"}); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	if _, err := bare.FirstStateID(ctx, "bare", ref, "42", false); err == nil {
		t.Fatal("expected error for workflow with no creation options")
	}
}

func TestShowsWidget(t *testing.T) {
	ctx := context.Background()
	svc := newEditorialService(t)
	ref := transit.EntityRef{Type: "node", ID: "17"}

	// Two options: widget shows.
	show, err := svc.ShowsWidget(ctx, "editorial", "review", ref, "42", false)
	if err != nil {
		t.Fatalf("ShowsWidget: %v", err)
	}
	if !show {
		t.Fatal("expected widget with two options")
	}

	// Published is terminal: no options, no widget.
	show, err = svc.ShowsWidget(ctx, "editorial", "published", ref, "42", false)
	if err != nil {
		t.Fatalf("ShowsWidget: %v", err)
	}
	if show {
		t.Fatal("expected no widget on a terminal state")
	}

	// A single option equal to the current state is not a choice.
	if _, err := svc.CreateEdge(ctx, "editorial", "published", "published"); err != nil {
		t.Fatalf("CreateEdge self: %v", err)
	}
	show, err = svc.ShowsWidget(ctx, "editorial", "published", ref, "42", false)
	if err != nil {
		t.Fatalf("ShowsWidget: %v", err)
	}
	if show {
		t.Fatal("expected no widget when the only option is the current state")
	}

	// A single option different from the current state is a real move.
	show, err = svc.ShowsWidget(ctx, "editorial", "draft", ref, "42", false)
	if err != nil {
		t.Fatalf("ShowsWidget: %v", err)
	}
	if !show {
		t.Fatal("expected widget for a single real move")
	}
}
