package sim

import (
	"maps"
	"math"
)

// Values is a flat bag of named numbers. It is used for component state,
// resolved input and the output pool. A missing key reads as zero.
type Values map[string]float64

// Clone returns an independent copy. Cloning nil yields an empty map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Component is one state machine in a Program.
//
// InitialState is called exactly once, when the initial simulation state is
// built. Update is called once per tick and must return the complete next
// state; it must not retain or mutate step.Prev or step.Input.
type Component interface {
	// ID is unique within a program and stable for the program's lifetime.
	ID() string

	// Outputs lists the state properties other components may request.
	Outputs() []string

	InitialState() Values

	Update(step *Step) Values
}

// Requester is implemented by components that consume other outputs.
// Input receives the component's own previous state and must be free of
// side effects. Requests against the component itself are allowed.
type Requester interface {
	Input(prev Values) []Request
}

// Range bounds an operator control.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

// Controllable is implemented by components exposing state properties an
// operator may set between ticks (valve openings, weights, switches).
type Controllable interface {
	Controls() map[string]Range
}

// Step carries everything a component sees while computing one tick.
type Step struct {
	// Tick is the number of the tick being computed.
	Tick int64

	// Machine is the ID of the component being updated.
	Machine string

	// Prev is a private copy of the component's previous state.
	Prev Values

	// Input holds the amounts granted this tick, keyed by target property.
	Input Values

	// Signals is the signal set as of the start of the tick.
	Signals Signals

	writes []SignalWrite
}

// NewStep builds a Step. The engine builds steps itself; this is for
// exercising a component's Update directly.
func NewStep(tick int64, machine string, prev, input Values, signals Signals) *Step {
	if input == nil {
		input = Values{}
	}
	return &Step{
		Tick:    tick,
		Machine: machine,
		Prev:    prev.Clone(),
		Input:   input,
		Signals: signals,
	}
}

// Emit records a signal write. It becomes visible to all components on the
// next tick; later writes to the same name in the same tick win.
func (s *Step) Emit(name string, value float64) {
	s.writes = append(s.writes, SignalWrite{Machine: s.Machine, Name: name, Value: value})
}

// EmitBool emits 1 for true and 0 for false.
func (s *Step) EmitBool(name string, on bool) {
	if on {
		s.Emit(name, 1)
		return
	}
	s.Emit(name, 0)
}

// Writes returns the signal writes recorded so far.
func (s *Step) Writes() []SignalWrite {
	return s.writes
}
