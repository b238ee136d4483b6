// Package observability exposes simulation runs as Prometheus metrics and
// OpenTelemetry traces.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/tickflow/internal/sim"
)

// TickCollector bundles Prometheus metrics for a simulation run.
//
// Implements sim.TickObserver. Safe for concurrent use: the runner calls
// ObserveTick while the metrics handler gathers.
type TickCollector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	Grants        *prometheus.CounterVec
	Granted       *prometheus.CounterVec
	PoolRemaining *prometheus.GaugeVec
	Signals       *prometheus.GaugeVec
	TickDurations prometheus.Histogram

	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewTickCollector registers tick metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewTickCollector(reg prometheus.Registerer) (*TickCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickflow_ticks_total",
		Help: "Total number of computed ticks.",
	}), "tickflow_ticks_total")
	if err != nil {
		return nil, err
	}

	grants, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickflow_grants_total",
		Help: "Total number of resolved requests, labeled by source and property.",
	}, []string{"source", "property"}), "tickflow_grants_total")
	if err != nil {
		return nil, err
	}

	granted, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickflow_granted_total",
		Help: "Total amount granted, labeled by source and property.",
	}, []string{"source", "property"}), "tickflow_granted_total")
	if err != nil {
		return nil, err
	}

	remaining, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tickflow_pool_remaining",
		Help: "Output left unrequested after the last tick's resolution.",
	}, []string{"source", "property"}), "tickflow_pool_remaining")
	if err != nil {
		return nil, err
	}

	signals, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tickflow_signal",
		Help: "Current value of each simulation signal.",
	}, []string{"name"}), "tickflow_signal")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tickflow_tick_duration_seconds",
		Help:    "Wall time between consecutive observed ticks.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "tickflow_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &TickCollector{
		gatherer:      gatherer,
		Ticks:         ticks,
		Grants:        grants,
		Granted:       granted,
		PoolRemaining: remaining,
		Signals:       signals,
		TickDurations: durations,
		now:           time.Now,
	}, nil
}

// ObserveTick implements sim.TickObserver.
func (c *TickCollector) ObserveTick(_ context.Context, next *sim.State, report *sim.TickReport) error {
	if c == nil {
		return nil
	}
	c.Ticks.Inc()

	if report != nil {
		for _, g := range report.Grants {
			c.Grants.WithLabelValues(g.Source, g.Property).Inc()
			c.Granted.WithLabelValues(g.Source, g.Property).Add(max(g.Granted, 0))
		}
		for source, values := range report.Remaining {
			for property, v := range values {
				c.PoolRemaining.WithLabelValues(source, property).Set(v)
			}
		}
	}
	for name, v := range next.Signals.Map() {
		c.Signals.WithLabelValues(name).Set(v)
	}

	c.mu.Lock()
	now := c.now()
	if !c.last.IsZero() {
		c.TickDurations.Observe(now.Sub(c.last).Seconds())
	}
	c.last = now
	c.mu.Unlock()
	return nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TickCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
