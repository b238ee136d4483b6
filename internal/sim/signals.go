package sim

import (
	"encoding/json"
	"maps"

	"github.com/roach88/tickflow/internal/canon"
)

// Well-known signal names.
const (
	SignalLockdown         = "lockdown"
	SignalSilentRunning    = "silentRunning"
	SignalGeneratorRunning = "generatorRunning"
)

// Signals is an immutable set of named numbers shared by all components.
// The zero value is an empty set.
type Signals struct {
	m map[string]float64
}

// NewSignals copies m into a signal set.
func NewSignals(m map[string]float64) Signals {
	if len(m) == 0 {
		return Signals{}
	}
	return Signals{m: maps.Clone(m)}
}

// Get returns the value of name, or zero if it was never set.
func (s Signals) Get(name string) float64 {
	return s.m[name]
}

// On reports whether name is set to a non-zero value.
func (s Signals) On(name string) bool {
	return s.m[name] != 0
}

// Len returns the number of signals set.
func (s Signals) Len() int {
	return len(s.m)
}

// Names returns the signal names in canonical order.
func (s Signals) Names() []string {
	return canon.SortedKeys(s.m)
}

// Map returns a copy of the signals as a plain map.
func (s Signals) Map() map[string]float64 {
	out := make(map[string]float64, len(s.m))
	maps.Copy(out, s.m)
	return out
}

// With returns a copy of s with name set to value.
func (s Signals) With(name string, value float64) Signals {
	m := s.Map()
	m[name] = value
	return Signals{m: m}
}

// apply returns a new set with writes applied in order.
func (s Signals) apply(writes []SignalWrite) Signals {
	if len(writes) == 0 {
		return s
	}
	m := s.Map()
	for _, w := range writes {
		m[w.Name] = w.Value
	}
	return Signals{m: m}
}

// MarshalJSON encodes the signals as a JSON object.
func (s Signals) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes a JSON object of numbers.
func (s *Signals) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = NewSignals(m)
	return nil
}

// SignalWrite records one Step.Emit call.
type SignalWrite struct {
	Machine string  `json:"machine"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
}
