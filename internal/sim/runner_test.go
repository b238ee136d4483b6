package sim_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/testutil"
)

func TestRunnerRunsRequestedTicks(t *testing.T) {
	p := flowProgram()
	var seen []int64
	r := sim.NewRunner(p, sim.WithObserver(sim.ObserverFunc(
		func(_ context.Context, next *sim.State, report *sim.TickReport) error {
			assert.Equal(t, next.Tick, report.Tick)
			seen = append(seen, next.Tick)
			return nil
		})))

	final, err := r.Run(context.Background(), testutil.MustInitialState(p), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), final.Tick)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
	assert.Same(t, p, r.Program())
}

func TestRunnerMatchesAdvance(t *testing.T) {
	p := flowProgram()
	start := testutil.MustInitialState(p)

	final, err := sim.NewRunner(p).Run(context.Background(), start, 10)
	require.NoError(t, err)

	s := start
	for i := 0; i < 10; i++ {
		s, err = sim.Advance(p, s)
		require.NoError(t, err)
	}

	want, err := s.Digest()
	require.NoError(t, err)
	got, err := final.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	p := flowProgram()
	ctx, cancel := context.WithCancel(context.Background())

	r := sim.NewRunner(p, sim.WithObserver(sim.ObserverFunc(
		func(_ context.Context, next *sim.State, _ *sim.TickReport) error {
			if next.Tick == 3 {
				cancel()
			}
			return nil
		})))

	final, err := r.Run(ctx, testutil.MustInitialState(p), 100)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(3), final.Tick, "tick in progress completes before cancellation")
}

func TestRunnerQuota(t *testing.T) {
	p := flowProgram()
	r := sim.NewRunner(p, sim.WithMaxTicks(4))

	final, err := r.Run(context.Background(), testutil.MustInitialState(p), 10)
	require.Error(t, err)
	assert.True(t, sim.IsTicksExceededError(err))
	assert.Equal(t, int64(4), final.Tick)
}

func TestRunnerObserverErrorStopsRun(t *testing.T) {
	p := flowProgram()
	boom := errors.New("disk full")
	r := sim.NewRunner(p, sim.WithObserver(sim.ObserverFunc(
		func(_ context.Context, next *sim.State, _ *sim.TickReport) error {
			if next.Tick == 2 {
				return boom
			}
			return nil
		})))

	final, err := r.Run(context.Background(), testutil.MustInitialState(p), 10)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), final.Tick, "unobserved tick is not committed")
}

func TestRunnerWiringErrorReturnsLastState(t *testing.T) {
	p := testutil.MustProgram("late-failure",
		&testutil.Func{
			Name: "flaky",
			Init: sim.Values{"n": 0},
			In: func(prev sim.Values) []sim.Request {
				if prev["n"] >= 2 {
					return []sim.Request{{Source: "ghost", Property: "x"}}
				}
				return nil
			},
			Up: func(step *sim.Step) sim.Values {
				return sim.Values{"n": step.Prev["n"] + 1}
			},
		},
	)

	final, err := sim.NewRunner(p).Run(context.Background(), testutil.MustInitialState(p), 10)
	require.Error(t, err)
	assert.Equal(t, sim.ErrCodeUnknownSource, sim.ErrorCode(err))
	assert.Contains(t, err.Error(), "tick 3")
	assert.Equal(t, int64(2), final.Tick)
}

func TestRunnerNilStart(t *testing.T) {
	_, err := sim.NewRunner(flowProgram()).Run(context.Background(), nil, 1)
	assert.Equal(t, sim.ErrCodeInvalidState, sim.ErrorCode(err))
}

func TestRunnerRecordsTickSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := flowProgram()
	r := sim.NewRunner(p, sim.WithTracer(tp.Tracer("test")))
	_, err := r.Run(context.Background(), testutil.MustInitialState(p), 3)
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	for i, span := range spans {
		assert.Equal(t, "sim.tick", span.Name())
		attrs := map[string]any{}
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsInterface()
		}
		assert.Equal(t, "flow", attrs["tickflow.program"])
		assert.Equal(t, int64(i+1), attrs["tickflow.tick"])
		assert.Contains(t, attrs, "tickflow.grants")
	}
}
