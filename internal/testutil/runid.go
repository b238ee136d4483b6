package testutil

// FixedRunID is the run ID used by deterministic tests and scenarios.
const FixedRunID = "run-00000000-0000-0000-0000-000000000001"

// FixedRunIDGenerator returns the same run ID every time.
//
// Unlike sim.FixedGenerator, which hands out a sequence and panics when it
// runs dry, this generator never runs out. Useful when a test records many
// runs and only cares that the IDs are stable.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id selects
// FixedRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = FixedRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements sim.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
