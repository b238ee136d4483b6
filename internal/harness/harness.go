package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tickflow/internal/canon"
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/machines"
	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/store"
	"github.com/roach88/tickflow/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs one scenario against a fresh in-memory ledger.
type Harness struct {
	scenario *Scenario
	program  *sim.Program
	table    *compiler.Table
	store    *store.Store
	runID    string
}

// Option configures Run.
type Option func(*options)

type options struct {
	programs map[string]machines.ProgramBuilder
}

// WithProgram makes a program available to scenarios under name, in
// addition to the registered programs. It shadows a registered program of
// the same name.
func WithProgram(name string, b machines.ProgramBuilder) Option {
	return func(o *options) {
		if o.programs == nil {
			o.programs = make(map[string]machines.ProgramBuilder)
		}
		o.programs[name] = b
	}
}

func (o *options) lookup(name string) (machines.ProgramBuilder, bool) {
	if b, ok := o.programs[name]; ok {
		return b, true
	}
	return machines.Lookup(name)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the tuning table and build the program
// 2. Create fresh in-memory ledger and record a run
// 3. Apply initial controls and signals, then run, applying events
// 4. Evaluate assertions against the final state and the ledger
//
// A returned error means the scenario could not be set up; a failed run
// is reported in Result.RunErr and judged by the assertions.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	table, err := loadTable(scenario.Tuning)
	if err != nil {
		return nil, err
	}
	build, ok := o.lookup(scenario.Program)
	if !ok {
		return nil, fmt.Errorf("scenario %s: unknown program %q", scenario.Name, scenario.Program)
	}
	program, err := build(table)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: build %s: %w", scenario.Name, scenario.Program, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = testutil.NewFixedRunIDGenerator("").Generate()
	}

	h := &Harness{
		scenario: scenario,
		program:  program,
		table:    table,
		store:    st,
		runID:    runID,
	}

	result := NewResult(runID)
	final, runErr := h.execute(ctx, true)
	result.Final = final
	result.RunErr = runErr
	if final != nil {
		digest, err := final.Digest()
		if err != nil {
			return nil, err
		}
		result.Digest = digest
	}

	for _, msg := range h.evaluate(ctx, result) {
		result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"tick", tickOf(final),
		"pass", result.Pass,
	)
	return result, nil
}

func loadTable(path string) (*compiler.Table, error) {
	if path == "" {
		return compiler.Default()
	}
	return compiler.Load(path)
}

// execute runs the scenario once from its initial state. When record is
// set, the run is written to the ledger.
//
// The returned state is the last one reached, even on error. It is nil
// only when the initial state could not be built.
func (h *Harness) execute(ctx context.Context, record bool) (*sim.State, error) {
	state, err := sim.CreateInitialState(h.program)
	if err != nil {
		return nil, err
	}
	state, err = h.apply(state, h.scenario.Controls, h.scenario.Signals)
	if err != nil {
		return state, err
	}

	var runOpts []sim.RunnerOption
	if record {
		run, err := store.NewRun(h.runID, h.program, h.table, state)
		if err != nil {
			return state, err
		}
		if _, err := h.store.CreateRun(ctx, run); err != nil {
			return state, err
		}
		runOpts = append(runOpts, sim.WithObserver(store.NewRecorder(h.store, h.runID)))
	}
	runner := sim.NewRunner(h.program, runOpts...)

	for _, e := range h.scenario.Events {
		state, err = runner.Run(ctx, state, e.At-state.Tick)
		if err != nil {
			return state, err
		}
		state, err = h.apply(state, e.Controls, e.Signals)
		if err != nil {
			return state, fmt.Errorf("event at tick %d: %w", e.At, err)
		}
	}
	return runner.Run(ctx, state, h.scenario.Ticks-state.Tick)
}

// apply sets controls and signals in key order, so the first invalid
// control reported is stable.
func (h *Harness) apply(state *sim.State, controls map[string]map[string]float64, signals map[string]float64) (*sim.State, error) {
	for _, machine := range canon.SortedKeys(controls) {
		props := controls[machine]
		for _, prop := range canon.SortedKeys(props) {
			next, err := h.program.SetControl(state, machine, prop, props[prop])
			if err != nil {
				return state, err
			}
			state = next
		}
	}
	for _, name := range canon.SortedKeys(signals) {
		state = state.WithSignal(name, signals[name])
	}
	return state, nil
}

func tickOf(s *sim.State) int64 {
	if s == nil {
		return 0
	}
	return s.Tick
}
