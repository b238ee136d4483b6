package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const ReactorCoolingID = "reactor-cooling"

// ReactorCooling spends power to draw heat out of the reactor. The
// operator sets the cooling level; without enough power only part of it
// is effective.
type ReactorCooling struct {
	maxCooling      float64
	powerPerCooling float64
}

// NewReactorCooling builds the reactor cooling.
func NewReactorCooling(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(ReactorCoolingID)
	m := &ReactorCooling{
		maxCooling:      r.Value("maxCooling"),
		powerPerCooling: r.Value("powerPerCooling"),
	}
	if err := readErr(ReactorCoolingID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ReactorCooling) ID() string        { return ReactorCoolingID }
func (m *ReactorCooling) Outputs() []string { return nil }

func (m *ReactorCooling) Controls() map[string]sim.Range {
	return map[string]sim.Range{"cooling": {Min: 0, Max: m.maxCooling}}
}

func (m *ReactorCooling) InitialState() sim.Values {
	return sim.Values{
		"cooling":           0,
		"effectiveCooling":  0,
		"powerRequired":     0,
		"powerConsumed":     0,
		"powerSatisfaction": 1,
	}
}

func (m *ReactorCooling) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: PowerDistributorID, Property: "power", Max: sim.Cap(prev["powerRequired"])},
		{Source: ReactorID, Property: "heat", Max: sim.Cap(prev["effectiveCooling"])},
	}
}

func (m *ReactorCooling) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	cooling := prev["cooling"]
	required := cooling * m.powerPerCooling

	satisfaction, effective := 1.0, 0.0
	if cooling > 0 {
		satisfaction = clamp(ratio(in["power"], required), 0, 1)
		effective = cooling * satisfaction
	}

	return sim.Values{
		"cooling":           cooling,
		"effectiveCooling":  effective,
		"powerRequired":     required,
		"powerConsumed":     in["power"],
		"powerSatisfaction": satisfaction,
	}
}
