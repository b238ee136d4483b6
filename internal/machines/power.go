package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const (
	PowerDistributorID = "power-distributor"
	PowerCapacitorID   = "power-capacitor"
)

// PowerDistributor passes converter power on to consumers. Power nobody
// drew heats the distributor; above maxTemperature it stops drawing power
// for shutdownDuration ticks.
type PowerDistributor struct {
	minTemperature   float64
	maxTemperature   float64
	cooling          float64
	powerToHeat      float64
	shutdownDuration float64
}

// NewPowerDistributor builds the power distributor.
func NewPowerDistributor(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(PowerDistributorID)
	m := &PowerDistributor{
		minTemperature:   r.Value("minTemperature"),
		maxTemperature:   r.Value("maxTemperature"),
		cooling:          r.Value("cooling"),
		powerToHeat:      r.Value("powerToHeatFactor"),
		shutdownDuration: r.Value("shutdownDuration"),
	}
	if err := readErr(PowerDistributorID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PowerDistributor) ID() string        { return PowerDistributorID }
func (m *PowerDistributor) Outputs() []string { return []string{"power", "heat"} }

func (m *PowerDistributor) InitialState() sim.Values {
	return sim.Values{
		"power":             0,
		"wastedPower":       0,
		"heat":              m.minTemperature,
		"shutdownRemaining": 0,
	}
}

func (m *PowerDistributor) Input(prev sim.Values) []sim.Request {
	// Uncapped unless overheated.
	var supply *float64
	if prev["shutdownRemaining"] > 0 {
		supply = sim.Cap(0)
	}
	return []sim.Request{
		{Source: EnergyConverterID, Property: "power", Max: supply, Priority: 100},
		{Source: PowerDistributorID, Property: "power", As: "unusedPower", Priority: sim.ReturnPriority},
		{Source: PowerDistributorID, Property: "heat", Priority: 100},
	}
}

func (m *PowerDistributor) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	generated := in["unusedPower"] * m.powerToHeat
	heat := max(in["heat"]+generated-m.cooling, m.minTemperature)
	shutdown := max(prev["shutdownRemaining"]-1, 0)
	if heat > m.maxTemperature {
		shutdown = m.shutdownDuration
	}

	return sim.Values{
		"power":             in["power"],
		"wastedPower":       in["unusedPower"],
		"heat":              heat,
		"shutdownRemaining": shutdown,
	}
}

// PowerCapacitor buffers distributor power for the base and the water
// plant. When its charge falls to the generator threshold a backup
// generator holds it there; the capacitor reports this through the
// generatorRunning signal.
type PowerCapacitor struct {
	capacity           float64
	generatorThreshold float64
	initialPower       float64
}

// NewPowerCapacitor builds the power capacitor.
func NewPowerCapacitor(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(PowerCapacitorID)
	m := &PowerCapacitor{
		capacity:           r.Value("capacity"),
		generatorThreshold: r.Value("generatorThreshold"),
		initialPower:       r.Initial("power"),
	}
	if err := readErr(PowerCapacitorID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PowerCapacitor) ID() string        { return PowerCapacitorID }
func (m *PowerCapacitor) Outputs() []string { return []string{"power"} }

func (m *PowerCapacitor) InitialState() sim.Values {
	return sim.Values{
		"capacity":   m.capacity,
		"power":      m.initialPower,
		"difference": 0,
	}
}

func (m *PowerCapacitor) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: PowerDistributorID, Property: "power", Max: sim.Cap(prev["capacity"] - prev["power"])},
		{Source: PowerCapacitorID, Property: "power", As: "storedPower", Priority: sim.ReturnPriority},
	}
}

func (m *PowerCapacitor) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	threshold := prev["capacity"] * m.generatorThreshold
	power := in["storedPower"] + in["power"]
	step.EmitBool(sim.SignalGeneratorRunning, power <= threshold)

	return sim.Values{
		"capacity":   prev["capacity"],
		"power":      max(power, threshold),
		"difference": power - prev["power"],
	}
}
