package game

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Garsondee/Squad-Tactics/internal/game"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// simMetrics are the engine's OTel instruments. The global provider is a
// no-op unless the host process installs one.
type simMetrics struct {
	ticks      metric.Int64Counter
	tickTime   metric.Float64Histogram
	explosions metric.Int64Counter
	anomalies  metric.Int64Counter
	kills      metric.Int64Counter
	exhausted  metric.Int64Counter
}

func newSimMetrics() (*simMetrics, error) {
	m := meter()
	var (
		sm  simMetrics
		err error
	)
	if sm.ticks, err = m.Int64Counter("sim.ticks",
		metric.WithDescription("Simulation ticks executed")); err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	if sm.tickTime, err = m.Float64Histogram("sim.tick.duration",
		metric.WithDescription("Wall time spent per tick"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}
	if sm.explosions, err = m.Int64Counter("sim.explosions",
		metric.WithDescription("Detonations resolved, chain reactions included")); err != nil {
		return nil, fmt.Errorf("creating explosion counter: %w", err)
	}
	if sm.anomalies, err = m.Int64Counter("sim.physics.anomalies",
		metric.WithDescription("Bodies clamped after non-finite state")); err != nil {
		return nil, fmt.Errorf("creating anomaly counter: %w", err)
	}
	if sm.kills, err = m.Int64Counter("sim.kills",
		metric.WithDescription("Units killed")); err != nil {
		return nil, fmt.Errorf("creating kill counter: %w", err)
	}
	if sm.exhausted, err = m.Int64Counter("sim.resource.exhausted",
		metric.WithDescription("Attacks or heals skipped for lack of ammo or charges")); err != nil {
		return nil, fmt.Errorf("creating exhausted counter: %w", err)
	}
	return &sm, nil
}

func (m *simMetrics) tick(ms float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	m.tickTime.Record(ctx, ms)
}

func (m *simMetrics) explosion(depth int) {
	if m == nil {
		return
	}
	m.explosions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int("depth", depth)))
}

func (m *simMetrics) anomaly(body string) {
	if m == nil {
		return
	}
	m.anomalies.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("body", body)))
}

func (m *simMetrics) kill(victim Side) {
	if m == nil {
		return
	}
	m.kills.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("side", victim.String())))
}

func (m *simMetrics) exhaust(resource string) {
	if m == nil {
		return
	}
	m.exhausted.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("resource", resource)))
}
