package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

// BuildFunc builds a program by name from a tuning table.
type BuildFunc func(program string, t *compiler.Table) (*sim.Program, error)

// Divergence is the first tick whose recomputed digest differs from the
// recorded one.
type Divergence struct {
	Tick     int64
	Recorded string
	Replayed string
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	RunID string

	// Ticks is the number of ticks recomputed, including a divergent one.
	Ticks int

	// Divergence is nil when every tick matched.
	Divergence *Divergence
}

// Matched reports whether every recorded tick was reproduced.
func (r ReplayResult) Matched() bool {
	return r.Divergence == nil
}

// Replay recomputes a recorded run and compares every tick digest.
//
// The program is rebuilt from the recorded name and tuning table. A
// program whose hash differs from the recorded one is an error rather than
// a divergence: the ledger was written by different machine code.
// Replay stops at the first divergent tick.
func (s *Store) Replay(ctx context.Context, runID string, build BuildFunc) (ReplayResult, error) {
	result := ReplayResult{RunID: runID}

	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return result, err
	}

	table, err := compiler.CompileJSON("run "+runID, []byte(run.Tuning))
	if err != nil {
		return result, fmt.Errorf("replay %s: recorded tuning: %w", runID, err)
	}
	program, err := build(run.Program, table)
	if err != nil {
		return result, fmt.Errorf("replay %s: build %s: %w", runID, run.Program, err)
	}
	hash, err := program.Hash()
	if err != nil {
		return result, fmt.Errorf("replay %s: %w", runID, err)
	}
	if hash != run.ProgramHash {
		return result, fmt.Errorf("replay %s: program %s hash %s does not match recorded %s",
			runID, run.Program, hash, run.ProgramHash)
	}

	state, err := sim.DecodeState([]byte(run.StartState))
	if err != nil {
		return result, fmt.Errorf("replay %s: start state: %w", runID, err)
	}

	records, err := s.ReadTickRecords(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("replay %s: %w", runID, err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if rec.Tick != state.Tick+1 {
			return result, fmt.Errorf("replay %s: ledger jumps from tick %d to %d", runID, state.Tick, rec.Tick)
		}

		next, err := sim.Advance(program, state)
		if err != nil {
			return result, fmt.Errorf("replay %s: tick %d: %w", runID, rec.Tick, err)
		}
		digest, err := next.Digest()
		if err != nil {
			return result, fmt.Errorf("replay %s: %w", runID, err)
		}
		result.Ticks++

		if digest != rec.Digest {
			result.Divergence = &Divergence{Tick: rec.Tick, Recorded: rec.Digest, Replayed: digest}
			slog.Warn("replay diverged", "run_id", runID, "tick", rec.Tick)
			return result, nil
		}
		state = next
	}

	slog.Info("replay matched", "run_id", runID, "ticks", result.Ticks)
	return result, nil
}
