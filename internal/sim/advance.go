package sim

import (
	"fmt"
	"log/slog"
)

// TickReport describes what happened during one tick.
type TickReport struct {
	// Tick is the number of the tick that was computed.
	Tick int64 `json:"tick"`

	// Grants lists every resolved request in resolution order.
	Grants []Grant `json:"grants"`

	// Remaining is the output left in the pool after resolution. Output
	// nobody requested is lost.
	Remaining Pool `json:"remaining"`

	// SignalWrites lists Step.Emit calls in evaluation order.
	SignalWrites []SignalWrite `json:"signal_writes,omitempty"`
}

// Advance computes the state after prev. It is the function form of
// Program.Advance and discards the report.
func Advance(p *Program, prev *State) (*State, error) {
	next, _, err := p.Advance(prev)
	return next, err
}

// Advance runs one tick: gather requests, resolve them against the previous
// tick's outputs, then update every component. prev is not modified.
//
// On a wiring error no state is returned.
func (p *Program) Advance(prev *State) (*State, *TickReport, error) {
	if err := p.checkState(prev); err != nil {
		return nil, nil, err
	}
	tick := prev.Tick + 1

	// Phase A: gather
	reqs := p.gather(prev)
	pool := p.snapshotPool(prev)

	// Phase B: resolve
	inputs, grants, err := p.resolve(tick, pool, reqs)
	if err != nil {
		return nil, nil, err
	}

	// Phase C: update
	next := &State{
		Tick:     tick,
		Machines: make(map[string]Values, len(p.components)),
	}
	var writes []SignalWrite
	for _, c := range p.components {
		id := c.ID()
		step := &Step{
			Tick:    tick,
			Machine: id,
			Prev:    prev.Machines[id].Clone(),
			Input:   inputs[id],
			Signals: prev.Signals,
		}
		out := c.Update(step)
		if out == nil {
			return nil, nil, &WiringError{
				Code:    ErrCodeInvalidState,
				Message: fmt.Sprintf("component %q returned no state", id),
				Tick:    tick,
			}
		}
		next.Machines[id] = out.Clone()
		writes = append(writes, step.writes...)
	}

	// Signal writes become visible at the tick boundary.
	next.Signals = prev.Signals.apply(writes)

	slog.Debug("tick advanced",
		"program", p.name,
		"tick", tick,
		"requests", len(reqs),
		"grants", len(grants),
		"signal_writes", len(writes))

	return next, &TickReport{
		Tick:         tick,
		Grants:       grants,
		Remaining:    pool,
		SignalWrites: writes,
	}, nil
}

// Validate gathers and resolves the requests s would produce, without
// updating anything. It reports the wiring error the next tick would hit.
func (p *Program) Validate(s *State) error {
	if err := p.checkState(s); err != nil {
		return err
	}
	_, _, err := p.resolve(s.Tick+1, p.snapshotPool(s), p.gather(s))
	return err
}
