package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// flowProgram has one capped grant and one self-return grant per tick, and
// an alarm that writes a signal every tick.
func flowProgram(_ *compiler.Table) (*sim.Program, error) {
	return sim.NewProgram("flow",
		&testutil.Producer{Name: "src", Property: "power", Amount: 10},
		&testutil.Consumer{Name: "load", Requests: []sim.Request{
			{Source: "src", Property: "power", Max: sim.Cap(4), Priority: 1},
		}},
		&testutil.Tank{Name: "tank", Property: "water", Level: 5},
		&testutil.Func{
			Name: "alarm",
			Init: sim.Values{"count": 0},
			Up: func(step *sim.Step) sim.Values {
				step.EmitBool("alarm", step.Tick%2 == 0)
				return sim.Values{"count": step.Prev["count"] + 1}
			},
		},
	)
}

func buildFlow(name string, t *compiler.Table) (*sim.Program, error) {
	return flowProgram(t)
}

func emptyTable(t *testing.T) *compiler.Table {
	t.Helper()
	table, err := compiler.CompileJSON("empty.json", []byte(`{}`))
	require.NoError(t, err)
	return table
}

// recordRun creates a run of the flow program and records ticks ticks.
func recordRun(t *testing.T, s *Store, id string, ticks int64) *sim.State {
	t.Helper()
	ctx := context.Background()

	p, err := flowProgram(nil)
	require.NoError(t, err)
	start := testutil.MustInitialState(p)

	run, err := NewRun(id, p, emptyTable(t), start)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, run)
	require.NoError(t, err)

	runner := sim.NewRunner(p, sim.WithObserver(NewRecorder(s, id)))
	final, err := runner.Run(ctx, start, ticks)
	require.NoError(t, err)
	return final
}
