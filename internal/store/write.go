package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/tickflow/internal/canon"
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

// Run is one recorded simulation run.
type Run struct {
	ID string

	// Seq orders runs by creation. Assigned by CreateRun.
	Seq int64

	Program       string
	ProgramHash   string
	Tuning        string // canonical JSON tuning table
	TuningHash    string
	EngineVersion string
	FormatVersion string
	StartTick     int64
	StartState    string // canonical JSON state
}

// NewRun describes a run of p with tuning t starting from start.
func NewRun(id string, p *sim.Program, t *compiler.Table, start *sim.State) (Run, error) {
	programHash, err := p.Hash()
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	tuning, err := t.Canonical()
	if err != nil {
		return Run{}, fmt.Errorf("new run: tuning: %w", err)
	}
	state, err := start.Canonical()
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	return Run{
		ID:            id,
		Program:       p.Name(),
		ProgramHash:   programHash,
		Tuning:        string(tuning),
		TuningHash:    canon.DigestBytes(canon.DomainTuning, tuning),
		EngineVersion: canon.EngineVersion,
		FormatVersion: canon.FormatVersion,
		StartTick:     start.Tick,
		StartState:    string(state),
	}, nil
}

// CreateRun inserts run and returns it with Seq assigned. Seq is one more
// than the largest recorded so far.
func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("create run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, program, program_hash, tuning, tuning_hash, engine_version, format_version, start_tick, start_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Program,
		run.ProgramHash,
		run.Tuning,
		run.TuningHash,
		run.EngineVersion,
		run.FormatVersion,
		run.StartTick,
		run.StartState,
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run %s: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("create run %s: %w", run.ID, err)
	}

	run.Seq = seq
	slog.Debug("run created", "run_id", run.ID, "seq", seq, "program", run.Program)
	return run, nil
}

// WriteTick records one computed tick: the state after it, every grant and
// every signal write. All rows are written in one transaction.
//
// Ticks must be written in order without gaps; a tick that is already
// recorded fails on the primary key.
func (s *Store) WriteTick(ctx context.Context, runID string, next *sim.State, report *sim.TickReport) error {
	if report != nil && report.Tick != next.Tick {
		return fmt.Errorf("write tick %d: report is for tick %d", next.Tick, report.Tick)
	}
	state, err := next.Canonical()
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	digest := canon.DigestBytes(canon.DomainState, state)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write tick %d: %w", next.Tick, err)
	}
	defer tx.Rollback()

	if err := checkNextTick(ctx, tx, runID, next.Tick); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticks (run_id, tick, digest, state)
		VALUES (?, ?, ?, ?)
	`, runID, next.Tick, digest, string(state))
	if err != nil {
		return fmt.Errorf("write tick %d: %w", next.Tick, err)
	}

	if report != nil {
		if err := writeGrants(ctx, tx, runID, next.Tick, report.Grants); err != nil {
			return err
		}
		if err := writeSignalWrites(ctx, tx, runID, next.Tick, report.SignalWrites); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write tick %d: commit: %w", next.Tick, err)
	}
	return nil
}

// checkNextTick rejects a tick that does not directly follow the last one
// recorded for the run.
func checkNextTick(ctx context.Context, tx *sql.Tx, runID string, tick int64) error {
	var startTick int64
	var latest sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT r.start_tick, (SELECT MAX(tick) FROM ticks WHERE run_id = r.id)
		FROM runs r WHERE r.id = ?
	`, runID).Scan(&startTick, &latest)
	if err == sql.ErrNoRows {
		return fmt.Errorf("write tick %d: run %s: %w", tick, runID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("write tick %d: %w", tick, err)
	}

	want := startTick + 1
	if latest.Valid {
		want = latest.Int64 + 1
	}
	if tick != want {
		return fmt.Errorf("write tick %d: run %s expects tick %d", tick, runID, want)
	}
	return nil
}

func writeGrants(ctx context.Context, tx *sql.Tx, runID string, tick int64, grants []sim.Grant) error {
	if len(grants) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grants
		(run_id, tick, seq, requester, source, property, target, priority, requested, available, granted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write grants: %w", err)
	}
	defer stmt.Close()

	for _, g := range grants {
		var requested sql.NullFloat64
		if g.Requested != nil {
			requested = sql.NullFloat64{Float64: *g.Requested, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			runID, tick, g.Seq,
			g.Requester, g.Source, g.Property, g.Target,
			g.Priority, requested, g.Available, g.Granted,
		)
		if err != nil {
			return fmt.Errorf("write grant %d at tick %d: %w", g.Seq, tick, err)
		}
	}
	return nil
}

func writeSignalWrites(ctx context.Context, tx *sql.Tx, runID string, tick int64, writes []sim.SignalWrite) error {
	for i, w := range writes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO signal_writes (run_id, tick, seq, machine, name, value)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, tick, i, w.Machine, w.Name, w.Value)
		if err != nil {
			return fmt.Errorf("write signal %s at tick %d: %w", w.Name, tick, err)
		}
	}
	return nil
}
