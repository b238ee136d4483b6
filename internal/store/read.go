package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/tickflow/internal/query"
	"github.com/roach88/tickflow/internal/sim"
)

// ErrNotFound is returned when a run or tick is not in the ledger.
var ErrNotFound = errors.New("not found")

var runColumns = []string{"id", "seq", "program", "program_hash", "tuning", "tuning_hash", "engine_version", "format_version", "start_tick", "start_state"}

// ReadRun returns one run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	runs, err := s.readRuns(ctx, query.Equals{Column: "id", Value: id})
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	return runs[0], nil
}

// ListRuns returns every run in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	runs, err := s.readRuns(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return runs[len(runs)-1], nil
}

func (s *Store) readRuns(ctx context.Context, filter query.Predicate) ([]Run, error) {
	rows, err := s.Query(ctx, query.Select{From: "runs", Columns: runColumns, Filter: filter})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Seq, &r.Program, &r.ProgramHash,
			&r.Tuning, &r.TuningHash, &r.EngineVersion, &r.FormatVersion,
			&r.StartTick, &r.StartState,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestTick returns the last tick recorded for a run, or the run's start
// tick when nothing has been recorded yet.
func (s *Store) LatestTick(ctx context.Context, runID string) (int64, error) {
	var startTick int64
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT r.start_tick, (SELECT MAX(tick) FROM ticks WHERE run_id = r.id)
		FROM runs r WHERE r.id = ?
	`, runID).Scan(&startTick, &latest)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("latest tick: run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("latest tick: %w", err)
	}
	if latest.Valid {
		return latest.Int64, nil
	}
	return startTick, nil
}

// TickRecord is one row of the ticks table without the state.
type TickRecord struct {
	Tick   int64
	Digest string
}

// ReadTickRecords returns every recorded tick of a run in order.
func (s *Store) ReadTickRecords(ctx context.Context, runID string) ([]TickRecord, error) {
	rows, err := s.Query(ctx, query.Select{
		From:    "ticks",
		Columns: []string{"tick", "digest"},
		Filter:  query.Equals{Column: "run_id", Value: runID},
	})
	if err != nil {
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	defer rows.Close()

	var out []TickRecord
	for rows.Next() {
		var rec TickRecord
		if err := rows.Scan(&rec.Tick, &rec.Digest); err != nil {
			return nil, fmt.Errorf("read ticks: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	return out, nil
}

// ReadState returns the recorded state at tick. The run's start tick
// returns its start state.
func (s *Store) ReadState(ctx context.Context, runID string, tick int64) (*sim.State, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if tick == run.StartTick {
		return sim.DecodeState([]byte(run.StartState))
	}

	rows, err := s.Query(ctx, query.Select{
		From:    "ticks",
		Columns: []string{"state"},
		Filter: query.AllOf(
			query.Equals{Column: "run_id", Value: runID},
			query.Equals{Column: "tick", Value: tick},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("read state at tick %d: %w", tick, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read state at tick %d: %w", tick, err)
		}
		return nil, fmt.Errorf("read state: run %s tick %d: %w", runID, tick, ErrNotFound)
	}
	var data string
	if err := rows.Scan(&data); err != nil {
		return nil, fmt.Errorf("read state at tick %d: %w", tick, err)
	}
	return sim.DecodeState([]byte(data))
}

// GrantFilter narrows ReadGrants. Zero fields do not filter; ToTick zero
// means no upper bound.
type GrantFilter struct {
	FromTick  int64
	ToTick    int64
	Source    string
	Requester string
}

func (f GrantFilter) predicate(runID string) query.Predicate {
	var ps []query.Predicate
	ps = append(ps, query.Equals{Column: "run_id", Value: runID})
	if f.FromTick != 0 || f.ToTick != 0 {
		hi := f.ToTick
		if hi == 0 {
			hi = math.MaxInt64
		}
		ps = append(ps, query.Between{Column: "tick", Lo: f.FromTick, Hi: hi})
	}
	if f.Source != "" {
		ps = append(ps, query.Equals{Column: "source", Value: f.Source})
	}
	if f.Requester != "" {
		ps = append(ps, query.Equals{Column: "requester", Value: f.Requester})
	}
	return query.AllOf(ps...)
}

// GrantRecord is a recorded grant and the tick it was resolved in.
type GrantRecord struct {
	Tick int64
	sim.Grant
}

// ReadGrants returns a run's grants in resolution order.
func (s *Store) ReadGrants(ctx context.Context, runID string, filter GrantFilter) ([]GrantRecord, error) {
	if filter.ToTick != 0 && filter.ToTick < filter.FromTick {
		return nil, nil
	}
	rows, err := s.Query(ctx, query.Select{
		From:    "grants",
		Columns: []string{"tick", "seq", "requester", "source", "property", "target", "priority", "requested", "available", "granted"},
		Filter:  filter.predicate(runID),
	})
	if err != nil {
		return nil, fmt.Errorf("read grants: %w", err)
	}
	defer rows.Close()

	var out []GrantRecord
	for rows.Next() {
		var rec GrantRecord
		var requested sql.NullFloat64
		if err := rows.Scan(
			&rec.Tick, &rec.Seq, &rec.Requester, &rec.Source, &rec.Property,
			&rec.Target, &rec.Priority, &requested, &rec.Available, &rec.Granted,
		); err != nil {
			return nil, fmt.Errorf("read grants: %w", err)
		}
		if requested.Valid {
			v := requested.Float64
			rec.Requested = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read grants: %w", err)
	}
	return out, nil
}

// SignalWriteRecord is a recorded signal write.
type SignalWriteRecord struct {
	Tick int64
	Seq  int
	sim.SignalWrite
}

// ReadSignalWrites returns a run's signal writes in evaluation order.
func (s *Store) ReadSignalWrites(ctx context.Context, runID string) ([]SignalWriteRecord, error) {
	rows, err := s.Query(ctx, query.Select{
		From:    "signal_writes",
		Columns: []string{"tick", "seq", "machine", "name", "value"},
		Filter:  query.Equals{Column: "run_id", Value: runID},
	})
	if err != nil {
		return nil, fmt.Errorf("read signal writes: %w", err)
	}
	defer rows.Close()

	var out []SignalWriteRecord
	for rows.Next() {
		var rec SignalWriteRecord
		if err := rows.Scan(&rec.Tick, &rec.Seq, &rec.Machine, &rec.Name, &rec.Value); err != nil {
			return nil, fmt.Errorf("read signal writes: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read signal writes: %w", err)
	}
	return out, nil
}
