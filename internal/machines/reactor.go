package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const ReactorID = "reactor"

// Reactor burns matter and antimatter into energy and heat.
//
// Energy and heat nobody drew are taken back at ReturnPriority: leftover
// energy is wasted and turns into heat. Above the maximum operating
// temperature the reactor shuts down for shutdownDuration ticks, and the
// countdown restarts every tick the heat stays above the limit.
type Reactor struct {
	minTemperature          float64
	minOperatingTemperature float64
	minOptimalTemperature   float64
	maxOptimalTemperature   float64
	maxOperatingTemperature float64

	maxMatterInput     float64
	maxAntimatterInput float64

	energyGeneration float64
	heatGeneration   float64
	energyToHeat     float64
	shutdownDuration float64
	cooling          float64
}

// NewReactor builds the reactor.
func NewReactor(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(ReactorID)
	m := &Reactor{
		minTemperature:          r.Value("minTemperature"),
		minOperatingTemperature: r.Value("minOperatingTemperature"),
		minOptimalTemperature:   r.Value("minOptimalTemperature"),
		maxOptimalTemperature:   r.Value("maxOptimalTemperature"),
		maxOperatingTemperature: r.Value("maxOperatingTemperature"),
		maxMatterInput:          r.Value("maxMatterInput"),
		maxAntimatterInput:      r.Value("maxAntimatterInput"),
		energyGeneration:        r.Value("maxEnergyGeneration"),
		heatGeneration:          r.Value("maxHeatGeneration"),
		energyToHeat:            r.Value("energyToHeatFactor"),
		shutdownDuration:        r.Value("shutdownDuration"),
		cooling:                 r.Value("cooling"),
	}
	if err := readErr(ReactorID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Reactor) ID() string        { return ReactorID }
func (m *Reactor) Outputs() []string { return []string{"energy", "heat"} }

func (m *Reactor) InitialState() sim.Values {
	return sim.Values{
		"storedMatter":      0,
		"storedAntimatter":  0,
		"shutdownRemaining": 0,
		"energy":            0,
		"energyWasted":      0,
		"heat":              m.minTemperature,
	}
}

func (m *Reactor) Input(prev sim.Values) []sim.Request {
	running := prev["shutdownRemaining"] <= 0

	maxMatter := clamp(m.maxMatterInput-prev["storedMatter"], 0, m.maxMatterInput)
	maxAntimatter := clamp(m.maxAntimatterInput-prev["storedAntimatter"], 0, m.maxAntimatterInput)
	if !running {
		maxMatter, maxAntimatter = 0, 0
	}

	return []sim.Request{
		{Source: StorageMatterID, Property: "releasedMatter", As: "matter", Max: sim.Cap(maxMatter)},
		{Source: StorageAntimatterID, Property: "releasedAntimatter", As: "antimatter", Max: sim.Cap(maxAntimatter)},
		{Source: ReactorID, Property: "energy", Priority: sim.ReturnPriority},
		{Source: ReactorID, Property: "heat", Priority: sim.ReturnPriority},
	}
}

func (m *Reactor) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	storedMatter := prev["storedMatter"] + in["matter"]
	storedAntimatter := prev["storedAntimatter"] + in["antimatter"]
	shutdown := max(prev["shutdownRemaining"]-1, 0)
	energy := 0.0
	heat := max(in["heat"]+in["energy"]*m.energyToHeat, m.minTemperature)

	if heat > m.maxOperatingTemperature {
		shutdown = m.shutdownDuration
	}

	if shutdown <= 0 {
		productivity := clamp(min(
			ratio(min(storedMatter, m.maxMatterInput), m.maxMatterInput),
			ratio(min(storedAntimatter, m.maxAntimatterInput), m.maxAntimatterInput),
		), 0, 1)

		storedMatter -= m.maxMatterInput * productivity
		storedAntimatter -= m.maxAntimatterInput * productivity

		energy += m.energyGeneration * productivity * m.heatEfficiency(heat)
		heat += (m.heatGeneration - m.cooling) * productivity
	}

	return sim.Values{
		"storedMatter":      storedMatter,
		"storedAntimatter":  storedAntimatter,
		"shutdownRemaining": shutdown,
		"energy":            energy,
		"energyWasted":      in["energy"],
		"heat":              heat,
	}
}

// heatEfficiency ramps up between the minimum operating and minimum
// optimal temperature and down between the maximum optimal and maximum
// operating temperature.
func (m *Reactor) heatEfficiency(heat float64) float64 {
	var eff float64
	switch {
	case heat < m.minOptimalTemperature:
		eff = normalizeRange(heat, m.minOperatingTemperature, m.minOptimalTemperature)
	case heat > m.maxOptimalTemperature:
		eff = 1 - normalizeRange(heat, m.maxOptimalTemperature, m.maxOperatingTemperature)
	default:
		eff = 1
	}
	return clamp(eff, 0, 1)
}
