package ext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/transit"
	"github.com/xraph/transit/transition"
)

// executedOnly implements just the TransitionExecuted hook.
type executedOnly struct {
	name  string
	calls []string
	err   error
	log   *[]string
}

func (e *executedOnly) Name() string { return e.name }

func (e *executedOnly) OnTransitionExecuted(_ context.Context, rec *transition.Record) error {
	e.calls = append(e.calls, rec.ToID)
	if e.log != nil {
		*e.log = append(*e.log, e.name)
	}
	return e.err
}

// allHooks counts every lifecycle event.
type allHooks struct {
	executed, denied, scheduled, abandoned, sweeps, shutdowns int
}

func (a *allHooks) Name() string { return "all" }

func (a *allHooks) OnTransitionExecuted(_ context.Context, _ *transition.Record) error {
	a.executed++
	return nil
}

func (a *allHooks) OnTransitionDenied(_ context.Context, _ *transition.Request) error {
	a.denied++
	return nil
}

func (a *allHooks) OnTransitionScheduled(_ context.Context, _ *transition.Scheduled) error {
	a.scheduled++
	return nil
}

func (a *allHooks) OnScheduleAbandoned(_ context.Context, _ *transition.Scheduled, _ string) error {
	a.abandoned++
	return nil
}

func (a *allHooks) OnSweepCompleted(_ context.Context, _, _ int, _ time.Duration) error {
	a.sweeps++
	return nil
}

func (a *allHooks) OnShutdown(_ context.Context) error {
	a.shutdowns++
	return nil
}

func testRecord() *transition.Record {
	ref := transit.EntityRef{Type: "node", ID: "17"}
	req := transition.NewRequest(ref, "field_state", "draft", "review", "42", time.Now().UTC(), "")
	return transition.NewRecord(req, "editorial", time.Now().UTC())
}

func testScheduled() *transition.Scheduled {
	ref := transit.EntityRef{Type: "node", ID: "17"}
	return transition.NewScheduled(ref, "field_state", "draft", "review", "42", time.Now().UTC(), "")
}

func TestRegistryDispatchesAllHooks(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	hooks := &allHooks{}
	reg.Register(hooks)

	reg.EmitTransitionExecuted(ctx, testRecord())
	reg.EmitTransitionDenied(ctx, transition.NewRequest(transit.EntityRef{Type: "node", ID: "17"}, "field_state", "a", "b", "42", time.Now().UTC(), ""))
	reg.EmitTransitionScheduled(ctx, testScheduled())
	reg.EmitScheduleAbandoned(ctx, testScheduled(), "review")
	reg.EmitSweepCompleted(ctx, 1, 2, time.Second)
	reg.EmitShutdown(ctx)

	if hooks.executed != 1 || hooks.denied != 1 || hooks.scheduled != 1 ||
		hooks.abandoned != 1 || hooks.sweeps != 1 || hooks.shutdowns != 1 {
		t.Fatalf("expected every hook called once, got %+v", hooks)
	}

	if len(reg.Extensions()) != 1 {
		t.Fatalf("expected 1 registered extension, got %d", len(reg.Extensions()))
	}
}

func TestRegistryPartialHooks(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	only := &executedOnly{name: "partial"}
	reg.Register(only)

	// Events the extension does not implement are simply not delivered.
	reg.EmitTransitionScheduled(ctx, testScheduled())
	reg.EmitShutdown(ctx)
	reg.EmitTransitionExecuted(ctx, testRecord())

	if len(only.calls) != 1 || only.calls[0] != "review" {
		t.Fatalf("expected one executed call, got %v", only.calls)
	}
}

func TestRegistryNotifiesInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	var order []string
	reg.Register(&executedOnly{name: "first", log: &order})
	reg.Register(&executedOnly{name: "second", log: &order})

	reg.EmitTransitionExecuted(ctx, testRecord())

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected registration order, got %v", order)
	}
}

func TestRegistryIsolatesHookErrors(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	failing := &executedOnly{name: "failing", err: errors.New("boom")}
	healthy := &executedOnly{name: "healthy"}
	reg.Register(failing)
	reg.Register(healthy)

	// The failing hook must not stop later ones.
	reg.EmitTransitionExecuted(ctx, testRecord())

	if len(healthy.calls) != 1 {
		t.Fatalf("expected healthy hook called despite earlier error, got %d", len(healthy.calls))
	}
}
