package testutil

import (
	"github.com/roach88/tickflow/internal/sim"
)

// Producer outputs a constant Amount of Property every tick.
type Producer struct {
	Name     string
	Property string
	Amount   float64
}

func (p *Producer) ID() string                  { return p.Name }
func (p *Producer) Outputs() []string           { return []string{p.Property} }
func (p *Producer) InitialState() sim.Values    { return sim.Values{p.Property: p.Amount} }
func (p *Producer) Update(*sim.Step) sim.Values { return sim.Values{p.Property: p.Amount} }

// Consumer issues a fixed list of requests every tick and stores whatever
// it receives as its state, plus a "ticks" counter.
type Consumer struct {
	Name     string
	Requests []sim.Request
}

func (c *Consumer) ID() string               { return c.Name }
func (c *Consumer) Outputs() []string        { return nil }
func (c *Consumer) InitialState() sim.Values { return sim.Values{"ticks": 0} }

func (c *Consumer) Input(sim.Values) []sim.Request {
	return append([]sim.Request(nil), c.Requests...)
}

func (c *Consumer) Update(step *sim.Step) sim.Values {
	out := step.Input.Clone()
	out["ticks"] = step.Prev["ticks"] + 1
	return out
}

// Tank holds Level of Property and asks for its own unconsumed output back
// at sim.ReturnPriority, so the level only drops when someone else draws.
type Tank struct {
	Name     string
	Property string
	Level    float64
}

func (t *Tank) ID() string               { return t.Name }
func (t *Tank) Outputs() []string        { return []string{t.Property} }
func (t *Tank) InitialState() sim.Values { return sim.Values{t.Property: t.Level} }

func (t *Tank) Input(sim.Values) []sim.Request {
	return []sim.Request{{
		Source:   t.Name,
		Property: t.Property,
		As:       "kept",
		Priority: sim.ReturnPriority,
	}}
}

func (t *Tank) Update(step *sim.Step) sim.Values {
	return sim.Values{t.Property: step.Input["kept"]}
}

// Func builds a component from closures. Nil In means no requests; nil Up
// keeps the previous state.
type Func struct {
	Name string
	Outs []string
	Init sim.Values
	In   func(prev sim.Values) []sim.Request
	Up   func(step *sim.Step) sim.Values
}

func (f *Func) ID() string               { return f.Name }
func (f *Func) Outputs() []string        { return f.Outs }
func (f *Func) InitialState() sim.Values { return f.Init.Clone() }

func (f *Func) Input(prev sim.Values) []sim.Request {
	if f.In == nil {
		return nil
	}
	return f.In(prev)
}

func (f *Func) Update(step *sim.Step) sim.Values {
	if f.Up == nil {
		return step.Prev
	}
	return f.Up(step)
}

// MustProgram builds a program and panics on error.
func MustProgram(name string, components ...sim.Component) *sim.Program {
	p, err := sim.NewProgram(name, components...)
	if err != nil {
		panic(err)
	}
	return p
}

// MustInitialState builds the initial state and panics on error.
func MustInitialState(p *sim.Program) *sim.State {
	s, err := sim.CreateInitialState(p)
	if err != nil {
		panic(err)
	}
	return s
}
