// Package sweep runs the periodic tick that drives due scheduled
// transitions through the engine. Each tick sweeps everything due up to
// now; executed and abandoned schedules leave the pending store, so
// consecutive sweeps never double-fire an item.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Ticker is the callback each sweep window is handed to.
// engine.Engine.OnTick satisfies it.
type Ticker interface {
	OnTick(ctx context.Context, start, end time.Time) error
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithTickInterval sets how often the sweeper checks for due schedules.
func WithTickInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.tickInterval = d }
}

// WithSchedule sets the sweep cadence from a cron descriptor such as
// "@every 30s" or a standard 5-field expression. The interval between
// the next two activations becomes the tick interval.
func WithSchedule(expr string) Option {
	return func(s *Sweeper) { s.scheduleExpr = expr }
}

// WithLogger sets the sweeper logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Sweeper fires the engine's scheduled-transition sweep on a tick loop.
// Each tick covers the unbounded window up to now: the window start is
// exclusive, so the zero start means "everything pending". Items a
// failed sweep leaves behind are simply picked up by the next tick.
type Sweeper struct {
	ticker Ticker
	logger *slog.Logger

	tickInterval time.Duration
	scheduleExpr string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Sweeper over the given Ticker.
func New(ticker Ticker, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		ticker:       ticker,
		logger:       slog.Default(),
		tickInterval: 1 * time.Minute,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.scheduleExpr != "" {
		sched, err := ParseSchedule(s.scheduleExpr)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		first := sched.Next(now)
		s.tickInterval = sched.Next(first).Sub(first)
	}
	return s, nil
}

// Start launches the tick goroutine.
func (s *Sweeper) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("transition sweeper started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the sweeper to stop and waits for the tick goroutine.
func (s *Sweeper) Stop(_ context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("transition sweeper stopped")
	return nil
}

func (s *Sweeper) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sweeper) tick() {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.ticker.OnTick(ctx, time.Time{}, now); err != nil {
		s.logger.Error("sweep error", slog.String("error", err.Error()))
	}
}
