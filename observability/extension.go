// Package observability provides an OpenTelemetry metrics extension for
// Transit. Register it with the extension registry to track execution,
// denial, schedule, abandonment, and sweep counts.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/transit/ext"
	"github.com/xraph/transit/transition"
)

// Compile-time interface checks.
var (
	_ ext.Extension           = (*MetricsExtension)(nil)
	_ ext.TransitionExecuted  = (*MetricsExtension)(nil)
	_ ext.TransitionDenied    = (*MetricsExtension)(nil)
	_ ext.TransitionScheduled = (*MetricsExtension)(nil)
	_ ext.ScheduleAbandoned   = (*MetricsExtension)(nil)
	_ ext.SweepCompleted      = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics via an OpenTelemetry Meter.
type MetricsExtension struct {
	executed  metric.Int64Counter
	denied    metric.Int64Counter
	scheduled metric.Int64Counter
	abandoned metric.Int64Counter
	sweeps    metric.Int64Counter
	sweepTime metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global meter
// provider.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithMeter(otel.Meter("transit/observability"))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided Meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) (*MetricsExtension, error) {
	m := &MetricsExtension{}

	var err error
	if m.executed, err = meter.Int64Counter("transit.transition.executed"); err != nil {
		return nil, err
	}
	if m.denied, err = meter.Int64Counter("transit.transition.denied"); err != nil {
		return nil, err
	}
	if m.scheduled, err = meter.Int64Counter("transit.transition.scheduled"); err != nil {
		return nil, err
	}
	if m.abandoned, err = meter.Int64Counter("transit.schedule.abandoned"); err != nil {
		return nil, err
	}
	if m.sweeps, err = meter.Int64Counter("transit.sweep.completed"); err != nil {
		return nil, err
	}
	if m.sweepTime, err = meter.Float64Histogram("transit.sweep.duration_seconds"); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnTransitionExecuted implements ext.TransitionExecuted.
func (m *MetricsExtension) OnTransitionExecuted(ctx context.Context, _ *transition.Record) error {
	m.executed.Add(ctx, 1)
	return nil
}

// OnTransitionDenied implements ext.TransitionDenied.
func (m *MetricsExtension) OnTransitionDenied(ctx context.Context, _ *transition.Request) error {
	m.denied.Add(ctx, 1)
	return nil
}

// OnTransitionScheduled implements ext.TransitionScheduled.
func (m *MetricsExtension) OnTransitionScheduled(ctx context.Context, _ *transition.Scheduled) error {
	m.scheduled.Add(ctx, 1)
	return nil
}

// OnScheduleAbandoned implements ext.ScheduleAbandoned.
func (m *MetricsExtension) OnScheduleAbandoned(ctx context.Context, _ *transition.Scheduled, _ string) error {
	m.abandoned.Add(ctx, 1)
	return nil
}

// OnSweepCompleted implements ext.SweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(ctx context.Context, _, _ int, elapsed time.Duration) error {
	m.sweeps.Add(ctx, 1)
	m.sweepTime.Record(ctx, elapsed.Seconds())
	return nil
}
