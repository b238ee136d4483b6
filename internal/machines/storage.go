package machines

import (
	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/sim"
)

const (
	StorageMatterID     = "storage-matter"
	StorageAntimatterID = "storage-antimatter"
)

// Storage holds a stock of fuel and releases up to a controlled amount per
// tick. Released fuel nobody took flows back into the stock.
type Storage struct {
	id       string
	stock    string
	perTick  string
	released string
	unused   string

	maxRelease float64
	initial    float64
}

// NewStorageMatter builds the matter storage.
func NewStorageMatter(t *compiler.Table) (sim.Component, error) {
	return newStorage(t, StorageMatterID, "matter", "releasedMatterPerTick", "releasedMatter", "unusedMatter", "maxReleasedMatter")
}

// NewStorageAntimatter builds the antimatter storage.
func NewStorageAntimatter(t *compiler.Table) (sim.Component, error) {
	return newStorage(t, StorageAntimatterID, "antimatter", "releasedAntimatterPerTick", "releasedAntimatter", "unusedAntimatter", "maxReleasedAntimatter")
}

func newStorage(t *compiler.Table, id, stock, perTick, released, unused, maxKey string) (*Storage, error) {
	r := t.Reader(id)
	s := &Storage{
		id:         id,
		stock:      stock,
		perTick:    perTick,
		released:   released,
		unused:     unused,
		maxRelease: r.Value(maxKey),
		initial:    r.Initial(stock),
	}
	if err := readErr(id, r); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ID() string        { return s.id }
func (s *Storage) Outputs() []string { return []string{s.released} }

func (s *Storage) Controls() map[string]sim.Range {
	return map[string]sim.Range{s.perTick: {Min: 0, Max: s.maxRelease}}
}

func (s *Storage) InitialState() sim.Values {
	return sim.Values{
		s.stock:    s.initial,
		s.perTick:  0,
		s.released: 0,
	}
}

func (s *Storage) Input(sim.Values) []sim.Request {
	return []sim.Request{{
		Source:   s.id,
		Property: s.released,
		As:       s.unused,
		Priority: sim.ReturnPriority,
	}}
}

func (s *Storage) Update(step *sim.Step) sim.Values {
	prev := step.Prev
	released := min(prev[s.perTick], prev[s.stock])
	return sim.Values{
		s.stock:    prev[s.stock] - released + step.Input[s.unused],
		s.perTick:  prev[s.perTick],
		s.released: released,
	}
}
