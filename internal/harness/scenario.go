package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one simulation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the registered program to build.
	Program string `yaml:"program"`

	// Tuning is an optional tuning table path. Empty selects the default
	// table. Relative paths are resolved against the scenario file.
	Tuning string `yaml:"tuning,omitempty"`

	// Ticks is the number of ticks to run.
	Ticks int64 `yaml:"ticks"`

	// Controls are set on the initial state, machine -> property -> value.
	Controls map[string]map[string]float64 `yaml:"controls,omitempty"`

	// Signals are set on the initial state.
	Signals map[string]float64 `yaml:"signals,omitempty"`

	// Events apply operator input during the run.
	Events []Event `yaml:"events,omitempty"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID. Defaults to testutil.FixedRunID.
	RunID string `yaml:"run_id,omitempty"`
}

// Event sets controls and signals on the state reached at tick At, before
// the next tick is computed.
type Event struct {
	At       int64                         `yaml:"at"`
	Controls map[string]map[string]float64 `yaml:"controls,omitempty"`
	Signals  map[string]float64            `yaml:"signals,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": machine property or signal value
	// - "grant": one grant at one tick
	// - "conservation": grants never exceed availability
	// - "deterministic": a second run reaches the same digest
	// - "error": the run fails with Code
	Type string `yaml:"type"`

	// Machine and Property select a final state value. An empty Machine
	// with a Property selects a signal.
	Machine  string `yaml:"machine,omitempty"`
	Property string `yaml:"property,omitempty"`

	// Requester, Source and Tick select a grant. Property narrows it.
	Requester string `yaml:"requester,omitempty"`
	Source    string `yaml:"source,omitempty"`
	Tick      int64  `yaml:"tick,omitempty"`

	// Expect is the exact value, compared within Tolerance.
	Expect    *float64 `yaml:"expect,omitempty"`
	Tolerance float64  `yaml:"tolerance,omitempty"`

	// Min and Max bound the value inclusively.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Code is the expected wiring error code (used by error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertGrant         = "grant"
	AssertConservation  = "conservation"
	AssertDeterministic = "deterministic"
	AssertError         = "error"
)

// LoadScenario reads and parses a scenario YAML file. The tuning path is
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Tuning != "" && !filepath.IsAbs(s.Tuning) {
		s.Tuning = filepath.Join(filepath.Dir(path), s.Tuning)
	}
	if s.Tuning != "" {
		if _, err := os.Stat(s.Tuning); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: tuning file not found: %s", path, s.Tuning)
		}
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, e := range s.Events {
		if e.At < 0 || e.At >= s.Ticks {
			return fmt.Errorf("events[%d]: at %d is outside the run [0, %d)", i, e.At, s.Ticks)
		}
		if i > 0 && e.At < s.Events[i-1].At {
			return fmt.Errorf("events[%d]: events must be in tick order", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Property == "" {
			return fmt.Errorf("assertions[%d]: property is required for final_state", index)
		}
		return validateExpectation(index, a)
	case AssertGrant:
		if a.Requester == "" || a.Source == "" {
			return fmt.Errorf("assertions[%d]: requester and source are required for grant", index)
		}
		if a.Tick <= 0 {
			return fmt.Errorf("assertions[%d]: tick must be positive for grant", index)
		}
		return validateExpectation(index, a)
	case AssertConservation, AssertDeterministic:
		return nil
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
		return nil
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
}

func validateExpectation(index int, a *Assertion) error {
	if a.Expect == nil && a.Min == nil && a.Max == nil {
		return fmt.Errorf("assertions[%d]: expect, min or max is required for %s", index, a.Type)
	}
	if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
		return fmt.Errorf("assertions[%d]: min %v exceeds max %v", index, *a.Min, *a.Max)
	}
	return nil
}
