package sweep

import (
	"context"
	"sync"
	"testing"
	"time"
)

// spyTicker records every sweep window it receives.
type spyTicker struct {
	mu    sync.Mutex
	calls [][2]time.Time
}

func (s *spyTicker) OnTick(_ context.Context, start, end time.Time) error {
	s.mu.Lock()
	s.calls = append(s.calls, [2]time.Time{start, end})
	s.mu.Unlock()
	return nil
}

func (s *spyTicker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *spyTicker) windows() [][2]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][2]time.Time, len(s.calls))
	copy(out, s.calls)
	return out
}

func TestSweeperTicks(t *testing.T) {
	spy := &spyTicker{}
	s, err := New(spy, WithTickInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if spy.count() < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", spy.count())
	}
	for i, w := range spy.windows() {
		if !w[0].IsZero() {
			t.Fatalf("tick %d: expected unbounded window start, got %v", i, w[0])
		}
		if w[1].IsZero() {
			t.Fatalf("tick %d: expected window end set to now", i)
		}
	}
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	s, err := New(&spyTicker{}, WithTickInterval(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSweeperStopsTicking(t *testing.T) {
	spy := &spyTicker{}
	s, err := New(spy, WithTickInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	n := spy.count()
	time.Sleep(30 * time.Millisecond)
	if spy.count() != n {
		t.Fatal("expected no ticks after Stop")
	}
}

func TestNewDerivesIntervalFromSchedule(t *testing.T) {
	s, err := New(&spyTicker{}, WithSchedule("@every 30s"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.tickInterval != 30*time.Second {
		t.Fatalf("expected 30s tick interval, got %v", s.tickInterval)
	}

	s, err = New(&spyTicker{}, WithSchedule("*/5 * * * *"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.tickInterval != 5*time.Minute {
		t.Fatalf("expected 5m tick interval, got %v", s.tickInterval)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(&spyTicker{}, WithSchedule("definitely not cron")); err == nil {
		t.Fatal("expected parse error")
	}
}
