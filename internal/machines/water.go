package machines

import (
	"fmt"

	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const (
	WaterTankID      = "water-tank"
	WaterTreatmentID = "water-treatment"
)

// PumpIDs lists the water pumps in registration order.
var PumpIDs = []string{"pump-a", "pump-b", "pump-c"}

// Pump produces raw water while enabled. Output scales with filter health,
// which wears down by one every tick.
type Pump struct {
	id              string
	maxProduction   float64
	enabled         float64
	filterHealth    float64
	filterMaxHealth float64
}

// NewPump builds the pump with the given ID.
func NewPump(t *compiler.Table, id string) (sim.Component, error) {
	r := t.Reader(id)
	m := &Pump{
		id:              id,
		maxProduction:   r.Value("maxProduction") / HourToTick,
		enabled:         r.Initial("enabled"),
		filterHealth:    r.Initial("filterHealth"),
		filterMaxHealth: r.Initial("filterMaxHealth"),
	}
	if err := readErr(id, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Pump) ID() string        { return m.id }
func (m *Pump) Outputs() []string { return []string{"water"} }

func (m *Pump) Controls() map[string]sim.Range {
	return map[string]sim.Range{"enabled": {Min: 0, Max: 1}}
}

func (m *Pump) InitialState() sim.Values {
	return sim.Values{
		"maxProduction":   m.maxProduction,
		"enabled":         m.enabled,
		"filterHealth":    m.filterHealth,
		"filterMaxHealth": m.filterMaxHealth,
		"water":           0,
	}
}

func (m *Pump) Update(step *sim.Step) sim.Values {
	prev := step.Prev

	efficiency := 0.0
	if flag(prev["enabled"]) {
		efficiency = clamp(ratio(prev["filterHealth"], prev["filterMaxHealth"]), 0, 1)
	}

	return sim.Values{
		"maxProduction":   prev["maxProduction"],
		"enabled":         prev["enabled"],
		"filterHealth":    max(prev["filterHealth"]-1, 0),
		"filterMaxHealth": prev["filterMaxHealth"],
		"water":           prev["maxProduction"] * efficiency,
	}
}

// WaterTank collects everything the pumps produce, up to its capacity.
// Water nobody drew is piped back in.
type WaterTank struct {
	capacity float64
	initial  float64
}

// NewWaterTank builds the water tank.
func NewWaterTank(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(WaterTankID)
	m := &WaterTank{
		capacity: r.Value("capacity"),
		initial:  r.Initial("water"),
	}
	if err := readErr(WaterTankID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WaterTank) ID() string        { return WaterTankID }
func (m *WaterTank) Outputs() []string { return []string{"water"} }

func (m *WaterTank) InitialState() sim.Values {
	return sim.Values{"capacity": m.capacity, "water": m.initial}
}

func pumpInput(id string) string {
	return fmt.Sprintf("water-%s", id)
}

func (m *WaterTank) Input(sim.Values) []sim.Request {
	reqs := make([]sim.Request, 0, len(PumpIDs)+1)
	for _, id := range PumpIDs {
		reqs = append(reqs, sim.Request{Source: id, Property: "water", As: pumpInput(id)})
	}
	return append(reqs, sim.Request{
		Source:   WaterTankID,
		Property: "water",
		As:       "unusedWater",
		Priority: sim.ReturnPriority,
	})
}

func (m *WaterTank) Update(step *sim.Step) sim.Values {
	water := step.Input["unusedWater"]
	for _, id := range PumpIDs {
		water += step.Input[pumpInput(id)]
	}
	return sim.Values{
		"capacity": step.Prev["capacity"],
		"water":    clamp(water, 0, step.Prev["capacity"]),
	}
}

// WaterTreatment turns tank water into drinking water, using power in
// proportion to the water it processes. Treatment consumes cleaner,
// chlorine and minerals.
type WaterTreatment struct {
	maxWaterConsumption   float64
	maxPowerConsumption   float64
	drinkingWaterCapacity float64

	initialDrinkingWater float64
	initialCleaner       float64
	initialChlorine      float64
	initialMinerals      float64
}

// NewWaterTreatment builds the water treatment plant.
func NewWaterTreatment(t *compiler.Table) (sim.Component, error) {
	r := t.Reader(WaterTreatmentID)
	m := &WaterTreatment{
		maxWaterConsumption:   r.Value("maxWaterConsumption") / HourToTick,
		maxPowerConsumption:   r.Value("maxPowerConsumption"),
		drinkingWaterCapacity: r.Value("drinkingWaterCapacity"),
		initialDrinkingWater:  r.Initial("drinkingWater"),
		initialCleaner:        r.Initial("resourceCleaner"),
		initialChlorine:       r.Initial("resourceChlorine"),
		initialMinerals:       r.Initial("resourceMinerals"),
	}
	if err := readErr(WaterTreatmentID, r); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WaterTreatment) ID() string        { return WaterTreatmentID }
func (m *WaterTreatment) Outputs() []string { return []string{"drinkingWater"} }

func (m *WaterTreatment) InitialState() sim.Values {
	return sim.Values{
		"resourceCleaner":   m.initialCleaner,
		"resourceChlorine":  m.initialChlorine,
		"resourceMinerals":  m.initialMinerals,
		"powerSatisfaction": 0,
		"requiredWater":     0,
		"requiredPower":     m.maxPowerConsumption,
		"water":             0,
		"drinkingWater":     m.initialDrinkingWater,
	}
}

func (m *WaterTreatment) Input(prev sim.Values) []sim.Request {
	return []sim.Request{
		{Source: WaterTankID, Property: "water", Max: sim.Cap(prev["requiredWater"]), Priority: 50},
		{Source: PowerCapacitorID, Property: "power", Max: sim.Cap(prev["requiredPower"])},
		{Source: WaterTreatmentID, Property: "drinkingWater", As: "unusedDrinkingWater", Priority: sim.ReturnPriority},
	}
}

func (m *WaterTreatment) Update(step *sim.Step) sim.Values {
	prev, in := step.Prev, step.Input

	// Fraction of full throughput, by volume.
	load := func(water float64) float64 {
		if m.maxWaterConsumption <= 0 {
			return 0
		}
		return water / m.maxWaterConsumption
	}

	total := prev["water"] + in["water"]
	powerNeeded := load(total) * m.maxPowerConsumption
	satisfaction := 0.0
	if powerNeeded > 0 {
		satisfaction = clamp(in["power"]/powerNeeded, 0, 1)
	}
	treated := total * satisfaction
	efficiency := load(treated)

	water := max(total-treated, 0)
	requiredWater := max(m.maxWaterConsumption-water, 0)
	requiredPower := clamp(load(water+requiredWater), 0, 1) * m.maxPowerConsumption

	if requiredPower <= 0 {
		satisfaction = 1
	}

	return sim.Values{
		"resourceCleaner":   max(prev["resourceCleaner"]-efficiency, 0),
		"resourceChlorine":  max(prev["resourceChlorine"]-efficiency, 0),
		"resourceMinerals":  max(prev["resourceMinerals"]-efficiency, 0),
		"powerSatisfaction": satisfaction,
		"requiredWater":     requiredWater,
		"requiredPower":     requiredPower,
		"water":             water,
		"drinkingWater":     clamp(in["unusedDrinkingWater"]+treated, 0, m.drinkingWaterCapacity),
	}
}
