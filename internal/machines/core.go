package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const CoreID = "core"

// Core consumes a fixed amount of energy per tick, from the distributor
// first and from the energy capacitor for the rest.
type Core struct {
	energyRequired float64
}

// NewCore builds the core.
func NewCore(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(CoreID)
	m := &Core{energyRequired: r.Value("energyRequired")}
	if err := readErr(CoreID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Core) ID() string        { return CoreID }
func (m *Core) Outputs() []string { return nil }

func (m *Core) InitialState() sim.Values {
	return sim.Values{
		"energyRequired":        m.energyRequired,
		"energyConsumed":        0,
		"energyFromDistributor": 0,
		"energyFromCapacitor":   0,
		"energyMissing":         0,
		"energySatisfaction":    0,
	}
}

func (m *Core) Input(prev sim.Values) []sim.Request {
	required := prev["energyRequired"]
	return []sim.Request{
		{Source: EnergyDistributorID, Property: "coreEnergy", As: "energy", Max: sim.Cap(required)},
		{Source: EnergyCapacitorID, Property: "energy", As: "capacitorEnergy", Max: sim.Cap(max(required-prev["energyFromDistributor"], 0))},
	}
}

func (m *Core) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input
	required := prev["energyRequired"]

	// Both draws are capped independently, so together they can exceed
	// the requirement. The excess is discarded.
	energy := min(in["energy"]+in["capacitorEnergy"], required)

	return sim.Values{
		"energyRequired":        required,
		"energyConsumed":        energy,
		"energyFromDistributor": in["energy"],
		"energyFromCapacitor":   in["capacitorEnergy"],
		"energyMissing":         max(required-energy, 0),
		"energySatisfaction":    ratio(energy, required),
	}
}
