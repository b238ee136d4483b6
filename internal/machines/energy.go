package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const (
	EnergyDistributorID = "energy-distributor"
	EnergyCapacitorID   = "energy-capacitor"
	EnergyConverterID   = "energy-converter"
)

// EnergyDistributor draws reactor energy into three output buffers,
// weighted by operator-set controls. Buffer contents nobody drew are taken
// back at ReturnPriority and topped up the next tick.
type EnergyDistributor struct {
	outputBuffer float64

	converterWeight float64
	capacitorWeight float64
	coreWeight      float64
}

// NewEnergyDistributor builds the energy distributor.
func NewEnergyDistributor(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(EnergyDistributorID)
	m := &EnergyDistributor{
		outputBuffer:    r.Value("outputBuffer"),
		converterWeight: r.Initial("converterWeight"),
		capacitorWeight: r.Initial("capacitorWeight"),
		coreWeight:      r.Initial("coreWeight"),
	}
	if err := readErr(EnergyDistributorID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EnergyDistributor) ID() string { return EnergyDistributorID }

func (m *EnergyDistributor) Outputs() []string {
	return []string{"converterEnergy", "capacitorEnergy", "coreEnergy"}
}

func (m *EnergyDistributor) Controls() map[string]sim.Range {
	return map[string]sim.Range{
		"converterWeight": {Min: 0, Max: 1},
		"capacitorWeight": {Min: 0, Max: 1},
		"coreWeight":      {Min: 0, Max: 1},
	}
}

func (m *EnergyDistributor) InitialState() sim.Values {
	return sim.Values{
		"unusedEnergy":    0,
		"converterEnergy": 0,
		"capacitorEnergy": 0,
		"coreEnergy":      0,
		"converterWeight": m.converterWeight,
		"capacitorWeight": m.capacitorWeight,
		"coreWeight":      m.coreWeight,
	}
}

func (m *EnergyDistributor) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: ReactorID, Property: "energy", Max: sim.Cap(m.outputBuffer*3 - prev["unusedEnergy"])},
		{Source: EnergyDistributorID, Property: "converterEnergy", Priority: sim.ReturnPriority},
		{Source: EnergyDistributorID, Property: "capacitorEnergy", Priority: sim.ReturnPriority},
		{Source: EnergyDistributorID, Property: "coreEnergy", Priority: sim.ReturnPriority},
	}
}

func (m *EnergyDistributor) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	// Core first: it is served first in every round.
	res := sim.Split(prev["unusedEnergy"]+in["energy"], []sim.Share{
		{Name: "core", Weight: prev["coreWeight"], Filled: in["coreEnergy"], Capacity: m.outputBuffer},
		{Name: "converter", Weight: prev["converterWeight"], Filled: in["converterEnergy"], Capacity: m.outputBuffer},
		{Name: "capacitor", Weight: prev["capacitorWeight"], Filled: in["capacitorEnergy"], Capacity: m.outputBuffer},
	}, sim.SplitOptions{})

	return sim.Values{
		"unusedEnergy":    res.Unused,
		"coreEnergy":      res.Filled[0],
		"converterEnergy": res.Filled[1],
		"capacitorEnergy": res.Filled[2],
		"converterWeight": prev["converterWeight"],
		"capacitorWeight": prev["capacitorWeight"],
		"coreWeight":      prev["coreWeight"],
	}
}

// EnergyCapacitor stores distributor energy up to its capacity and offers
// it to the core.
type EnergyCapacitor struct {
	capacity float64
}

// NewEnergyCapacitor builds the energy capacitor.
func NewEnergyCapacitor(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(EnergyCapacitorID)
	m := &EnergyCapacitor{capacity: r.Value("capacity")}
	if err := readErr(EnergyCapacitorID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EnergyCapacitor) ID() string        { return EnergyCapacitorID }
func (m *EnergyCapacitor) Outputs() []string { return []string{"energy"} }

func (m *EnergyCapacitor) InitialState() sim.Values {
	return sim.Values{"capacity": m.capacity, "energy": 0}
}

func (m *EnergyCapacitor) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: EnergyDistributorID, Property: "capacitorEnergy", As: "energy", Max: sim.Cap(prev["capacity"] - prev["energy"])},
		{Source: EnergyCapacitorID, Property: "energy", As: "storedEnergy", Priority: sim.ReturnPriority},
	}
}

func (m *EnergyCapacitor) Update(step *sim.Step) sim.Values {
	return sim.Values{
		"capacity": step.Prev["capacity"],
		"energy":   step.Input["storedEnergy"] + step.Input["energy"],
	}
}

// EnergyConverter turns distributor energy into power at a fixed factor.
// The operator sets how much energy it draws per tick.
type EnergyConverter struct {
	energyToPower float64
	maxConversion float64
}

// NewEnergyConverter builds the energy converter.
func NewEnergyConverter(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(EnergyConverterID)
	m := &EnergyConverter{
		energyToPower: r.Value("energyToPowerFactor"),
		maxConversion: r.Value("maxConversion"),
	}
	if err := readErr(EnergyConverterID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EnergyConverter) ID() string        { return EnergyConverterID }
func (m *EnergyConverter) Outputs() []string { return []string{"power", "energy"} }

func (m *EnergyConverter) Controls() map[string]sim.Range {
	return map[string]sim.Range{"energyConversion": {Min: 0, Max: m.maxConversion}}
}

func (m *EnergyConverter) InitialState() sim.Values {
	return sim.Values{"energy": 0, "energyConversion": 0, "power": 0}
}

func (m *EnergyConverter) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: EnergyDistributorID, Property: "converterEnergy", As: "energy", Max: sim.Cap(prev["energyConversion"])},
	}
}

func (m *EnergyConverter) Update(step *sim.Step) sim.Values {
	energy := step.Input["energy"]
	return sim.Values{
		"energy":           energy,
		"energyConversion": step.Prev["energyConversion"],
		"power":            energy * m.energyToPower,
	}
}
