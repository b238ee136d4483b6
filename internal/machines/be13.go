package machines

import (
	"fmt"
	"slices"

	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

// BE13Name is the registered name of the BE13 program.
const BE13Name = "be13"

// Constructor builds one machine from a tuning table.
type Constructor func(*compiler.Table) (sim.Component, error)

// Entry is one machine in a program's registration order.
type Entry struct {
	ID  string
	New Constructor
}

func pump(id string) Entry {
	return Entry{ID: id, New: func(t *compiler.Table) (sim.Component, error) {
		return NewPump(t, id)
	}}
}

// Order returns BE13's machines in registration order.
//
// Cooling precedes the power capacitor so that it is served first when
// both draw distributor power at the same priority. The base precedes the
// water treatment plant for the same reason on capacitor power.
func Order() []Entry {
	return []Entry{
		{StorageMatterID, NewStorageMatter},
		{StorageAntimatterID, NewStorageAntimatter},
		{ReactorID, NewReactor},
		{EnergyDistributorID, NewEnergyDistributor},
		{EnergyCapacitorID, NewEnergyCapacitor},
		{EnergyConverterID, NewEnergyConverter},
		{PowerDistributorID, NewPowerDistributor},
		{ReactorCoolingID, NewReactorCooling},
		{PowerCapacitorID, NewPowerCapacitor},
		{CoreID, NewCore},
		{BaseID, NewBase},
		pump(PumpIDs[0]),
		pump(PumpIDs[1]),
		pump(PumpIDs[2]),
		{WaterTankID, NewWaterTank},
		{WaterTreatmentID, NewWaterTreatment},
	}
}

// BE13 builds the BE13 program from t. It fails on the first machine whose
// tuning is incomplete.
func BE13(t *compiler.Table) (*sim.Program, error) {
	return Build(BE13Name, Order(), t)
}

// Build constructs every entry in order and registers the result as a
// program named name.
func Build(name string, entries []Entry, t *compiler.Table) (*sim.Program, error) {
	components := make([]sim.Component, 0, len(entries))
	for _, e := range entries {
		c, err := e.New(t)
		if err != nil {
			return nil, err
		}
		if c.ID() != e.ID {
			return nil, fmt.Errorf("machine %s built as %q", e.ID, c.ID())
		}
		components = append(components, c)
	}
	return sim.NewProgram(name, components...)
}

// ProgramBuilder builds a named program from a tuning table.
type ProgramBuilder func(*compiler.Table) (*sim.Program, error)

var programs = map[string]ProgramBuilder{
	BE13Name: BE13,
}

// Lookup returns the builder for a registered program name.
func Lookup(name string) (ProgramBuilder, bool) {
	b, ok := programs[name]
	return b, ok
}

// Programs returns the registered program names, sorted.
func Programs() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
