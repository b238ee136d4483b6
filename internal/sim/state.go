package sim

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/tickflow/internal/canon"
)

// State is an immutable-by-convention snapshot of the whole simulation.
// Advance never modifies its input; every method that "changes" a state
// returns a copy.
type State struct {
	// Tick starts at 0 and increases by exactly one per Advance.
	Tick int64 `json:"tick"`

	// Machines maps each component ID to its state. Exactly one entry per
	// registered component.
	Machines map[string]Values `json:"machines"`

	// Signals is the shared signal set.
	Signals Signals `json:"signals"`
}

// CreateInitialState calls InitialState once per component, in registration
// order, and checks that every declared output has a value.
func CreateInitialState(p *Program) (*State, error) {
	s := &State{
		Tick:     0,
		Machines: make(map[string]Values, len(p.components)),
	}
	for _, c := range p.components {
		id := c.ID()
		init := c.InitialState().Clone()
		for _, out := range p.outputs[id] {
			v, ok := init[out]
			if !ok {
				return nil, programError("component %q declares output %q but its initial state has no value for it", id, out)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, programError("component %q initial output %q is not finite", id, out)
			}
		}
		s.Machines[id] = init
	}
	return s, nil
}

// Value returns machine's property, or zero if either is absent.
func (s *State) Value(machine, property string) float64 {
	return s.Machines[machine][property]
}

// Machine returns a copy of one component's state.
func (s *State) Machine(id string) (Values, bool) {
	v, ok := s.Machines[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Tick:     s.Tick,
		Machines: make(map[string]Values, len(s.Machines)),
		Signals:  s.Signals,
	}
	for id, v := range s.Machines {
		out.Machines[id] = v.Clone()
	}
	return out
}

// WithValue returns a copy with machine's property set. It does not check
// controls; use Program.SetControl for operator input.
func (s *State) WithValue(machine, property string, value float64) *State {
	out := s.Clone()
	vals := out.Machines[machine]
	if vals == nil {
		vals = Values{}
	}
	vals[property] = value
	out.Machines[machine] = vals
	return out
}

// WithSignal returns a copy with the signal set.
func (s *State) WithSignal(name string, value float64) *State {
	out := s.Clone()
	out.Signals = s.Signals.With(name, value)
	return out
}

// canonicalMap returns the state as a value MarshalCanonical accepts.
func (s *State) canonicalMap() map[string]any {
	machines := make(map[string]map[string]float64, len(s.Machines))
	for id, v := range s.Machines {
		machines[id] = map[string]float64(v)
	}
	return map[string]any{
		"tick":     s.Tick,
		"machines": machines,
		"signals":  s.Signals.Map(),
	}
}

// Canonical returns the canonical JSON encoding of the state.
func (s *State) Canonical() ([]byte, error) {
	data, err := canon.MarshalCanonical(s.canonicalMap())
	if err != nil {
		return nil, fmt.Errorf("canonical state at tick %d: %w", s.Tick, err)
	}
	return data, nil
}

// Digest returns the content digest of the state. Equal states have equal
// digests regardless of map iteration order.
func (s *State) Digest() (string, error) {
	data, err := s.Canonical()
	if err != nil {
		return "", err
	}
	return canon.DigestBytes(canon.DomainState, data), nil
}

// DecodeState parses a state previously produced by Canonical.
func DecodeState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if s.Machines == nil {
		s.Machines = map[string]Values{}
	}
	for id, v := range s.Machines {
		if v == nil {
			s.Machines[id] = Values{}
		}
	}
	return &s, nil
}
