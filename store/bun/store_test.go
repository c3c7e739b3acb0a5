//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/transit"
	"github.com/xraph/transit/transition"
	"github.com/xraph/transit/workflow"

	bunstore "github.com/xraph/transit/store/bun"
)

// setupTestStore creates a Postgres container and returns a connected Bun Store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("transit_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())

	t.Cleanup(func() {
		_ = db.Close()
	})

	store := bunstore.New(db, bunstore.WithLogger(slog.Default()))

	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	return store
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	// Second migrate should be a no-op.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Workflow store tests
// ──────────────────────────────────────────────────

func TestWorkflowStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wf := &workflow.Workflow{
		Entity:  transit.NewEntity(),
		ID:      "editorial",
		Label:   "Editorial",
		Options: workflow.DefaultOptions(),
	}
	if err := s.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetWorkflow(ctx, "editorial")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != "Editorial" {
		t.Fatalf("expected label Editorial, got %s", got.Label)
	}
	if !got.Options.AllowScheduling {
		t.Fatal("options did not round-trip through jsonb")
	}

	// Save again updates in place.
	wf.Label = "Editorial v2"
	if err := s.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = s.GetWorkflow(ctx, "editorial")
	if got.Label != "Editorial v2" {
		t.Fatalf("expected updated label, got %s", got.Label)
	}
}

func TestWorkflowStore_StatesAndEdges(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, stateID := range []string{"draft", "review", "published"} {
		st := &workflow.State{ID: stateID, WorkflowID: "editorial", Label: stateID, Weight: i, Active: true}
		if err := s.SaveState(ctx, st); err != nil {
			t.Fatalf("save state %s: %v", stateID, err)
		}
	}

	states, err := s.ListStates(ctx, "editorial")
	if err != nil {
		t.Fatalf("list states: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("expected 3 states, got %d", len(states))
	}

	e := &workflow.Edge{WorkflowID: "editorial", FromID: "draft", ToID: "review", Roles: []string{"editor"}}
	if err := s.SaveEdge(ctx, e); err != nil {
		t.Fatalf("save edge: %v", err)
	}
	// Upsert replaces the role list rather than duplicating the pair.
	e.Roles = []string{"editor", "admin"}
	if err := s.SaveEdge(ctx, e); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}

	edges, err := s.ListEdges(ctx, "editorial")
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if len(edges[0].Roles) != 2 {
		t.Fatalf("expected 2 roles after upsert, got %v", edges[0].Roles)
	}
}

// ──────────────────────────────────────────────────
// History store tests
// ──────────────────────────────────────────────────

func TestHistoryStore_AppendAndLatest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ref := transit.EntityRef{Type: "node", ID: "17"}
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := transition.NewRequest(ref, "field_state", "draft", "review", "42", base, "")
	second := transition.NewRequest(ref, "field_state", "review", "published", "42", base.Add(time.Hour), "")
	if err := s.AppendHistory(ctx, transition.NewRecord(first, "editorial", base)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendHistory(ctx, transition.NewRecord(second, "editorial", base.Add(time.Hour))); err != nil {
		t.Fatalf("append: %v", err)
	}

	latest, err := s.LatestHistory(ctx, ref, "field_state")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ToID != "published" {
		t.Fatalf("expected latest to land in published, got %s", latest.ToID)
	}

	records, err := s.ListHistory(ctx, ref, "field_state", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ToID != "published" {
		t.Fatalf("limit not applied: %d records", len(records))
	}

	if _, err := s.LatestHistory(ctx, ref, "field_other"); !errors.Is(err, transit.ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Schedule store tests
// ──────────────────────────────────────────────────

func TestScheduleStore_ReplaceAndWindow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ref := transit.EntityRef{Type: "node", ID: "17"}
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := transition.NewScheduled(ref, "field_state", "draft", "review", "42", now.Add(time.Hour), "")
	if err := s.SaveSchedule(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := transition.NewScheduled(ref, "field_state", "draft", "published", "42", now.Add(2*time.Hour), "")
	if err := s.SaveSchedule(ctx, second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	pending, err := s.PendingSchedule(ctx, ref, "field_state")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending.ID.String() != second.ID.String() {
		t.Fatalf("expected replacement schedule, got %s", pending.ID)
	}

	due, err := s.ListDueBetween(ctx, time.Time{}, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 pending schedule, got %d", len(due))
	}

	// Exact end bound is excluded.
	due, err = s.ListDueBetween(ctx, time.Time{}, second.DueAt)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected exclusive end bound, got %d", len(due))
	}

	if err := s.DeleteSchedule(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.PendingSchedule(ctx, ref, "field_state"); !errors.Is(err, transit.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}
