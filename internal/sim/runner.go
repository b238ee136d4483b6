package sim

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/roach88/tickflow/internal/sim"

// DefaultMaxTicks is the default tick quota for a single Run call.
const DefaultMaxTicks = 1_000_000

// TickObserver is notified after every committed tick.
// Observers run inline on the runner goroutine, in registration order.
// An observer error stops the run.
type TickObserver interface {
	ObserveTick(ctx context.Context, next *State, report *TickReport) error
}

// ObserverFunc adapts a function to TickObserver.
type ObserverFunc func(ctx context.Context, next *State, report *TickReport) error

// ObserveTick calls f.
func (f ObserverFunc) ObserveTick(ctx context.Context, next *State, report *TickReport) error {
	return f(ctx, next, report)
}

// Runner drives a Program tick by tick.
//
// CRITICAL: a Runner is single-writer. Run must not be called concurrently
// on the same Runner; ticks are strictly ordered.
type Runner struct {
	program   *Program
	maxTicks  int64
	observers []TickObserver
	tracer    trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxTicks sets the tick quota per Run call.
//
// Default: 1,000,000 ticks (DefaultMaxTicks). Zero or negative disables
// the quota.
func WithMaxTicks(n int64) RunnerOption {
	return func(r *Runner) {
		r.maxTicks = n
	}
}

// WithObserver appends a tick observer.
func WithObserver(o TickObserver) RunnerOption {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// WithTracer sets the tracer used for per-tick spans. The default is the
// global OpenTelemetry tracer, which is a no-op unless a provider is
// installed.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a Runner for p.
func NewRunner(p *Program, opts ...RunnerOption) *Runner {
	r := &Runner{
		program:  p,
		maxTicks: DefaultMaxTicks,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Program returns the program being run.
func (r *Runner) Program() *Program {
	return r.program
}

// Run advances start by ticks ticks and returns the last committed state.
//
// Cancellation is checked between ticks only; a tick in progress always
// completes. On any error the last committed state is returned together
// with the error, so callers can persist or inspect it.
func (r *Runner) Run(ctx context.Context, start *State, ticks int64) (*State, error) {
	if start == nil {
		return nil, stateError("start state is nil")
	}
	slog.Info("run starting", "program", r.program.Name(), "from_tick", start.Tick, "ticks", ticks)

	quota := NewTickQuota(r.maxTicks)
	state := start
	for i := int64(0); i < ticks; i++ {
		select {
		case <-ctx.Done():
			slog.Info("run stopping: context cancelled", "tick", state.Tick)
			return state, ctx.Err()
		default:
		}

		if err := quota.Check(r.program.Name()); err != nil {
			return state, err
		}

		next, err := r.step(ctx, state)
		if err != nil {
			slog.Error("run aborted", "program", r.program.Name(), "tick", state.Tick+1, "error", err)
			return state, err
		}
		state = next
	}

	slog.Info("run finished", "program", r.program.Name(), "tick", state.Tick)
	return state, nil
}

// step advances one tick inside a span and notifies observers.
func (r *Runner) step(ctx context.Context, prev *State) (*State, error) {
	ctx, span := r.tracer.Start(ctx, "sim.tick", trace.WithAttributes(
		attribute.String("tickflow.program", r.program.Name()),
		attribute.Int64("tickflow.tick", prev.Tick+1),
	))
	defer span.End()

	next, report, err := r.program.Advance(prev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance failed")
		return nil, fmt.Errorf("tick %d: %w", prev.Tick+1, err)
	}
	span.SetAttributes(attribute.Int("tickflow.grants", len(report.Grants)))

	for _, o := range r.observers {
		if err := o.ObserveTick(ctx, next, report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "observer failed")
			return nil, fmt.Errorf("observe tick %d: %w", next.Tick, err)
		}
	}
	return next, nil
}
