package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const BaseID = "base"

// Base is the habitat. Its power demand drops under silent running and
// further under lockdown; both are read from signals.
type Base struct {
	powerRequired         float64
	silentRunningPower    float64
	lockdownPower         float64
	drinkingWaterRequired float64
}

// NewBase builds the base.
func NewBase(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(BaseID)
	m := &Base{
		powerRequired:         r.Value("powerRequired"),
		silentRunningPower:    r.Value("silentRunningPowerRequired"),
		lockdownPower:         r.Value("lockdownPowerRequired"),
		drinkingWaterRequired: r.Value("drinkingWaterRequired") / HourToTick,
	}
	if err := readErr(BaseID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Base) ID() string        { return BaseID }
func (m *Base) Outputs() []string { return nil }

func (m *Base) InitialState() sim.Values {
	return sim.Values{
		"powerRequired":             m.powerRequired,
		"powerSatisfaction":         0,
		"drinkingWaterRequired":     m.drinkingWaterRequired,
		"drinkingWaterSatisfaction": 0,
	}
}

func (m *Base) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: PowerCapacitorID, Property: "power", Max: sim.Cap(prev["powerRequired"])},
		{Source: WaterTreatmentID, Property: "drinkingWater", Max: sim.Cap(prev["drinkingWaterRequired"])},
	}
}

func (m *Base) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	required := m.powerRequired
	switch {
	case step.Signals.On(sim.SignalLockdown):
		required = m.lockdownPower
	case step.Signals.On(sim.SignalSilentRunning):
		required = m.silentRunningPower
	}

	return sim.Values{
		"powerRequired":             required,
		"powerSatisfaction":         ratio(in["power"], required),
		"drinkingWaterRequired":     prev["drinkingWaterRequired"],
		"drinkingWaterSatisfaction": ratio(in["drinkingWater"], prev["drinkingWaterRequired"]),
	}
}
