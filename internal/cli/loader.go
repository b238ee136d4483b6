package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/machines"
	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/store"
)

// Error codes for CLI JSON output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeCompile     = "E010" // Tuning table does not compile
	ErrCodeMissing     = "E011" // Tuning table lacks a value a machine needs
	ErrCodeUnknownProg = "E012" // Program name not registered
	ErrCodeWiring      = "E020" // Program wiring rejected
)

// LoadError represents a failure to load a tuning table or build a program.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadResult is a compiled tuning table and the program built from it.
type LoadResult struct {
	Table   *compiler.Table
	Program *sim.Program
}

// LoadProgram compiles the tuning table at tuningPath and builds the named
// program from it. An empty tuningPath selects the embedded BE13 table.
func LoadProgram(program, tuningPath string) (*LoadResult, error) {
	var (
		table *compiler.Table
		err   error
	)
	if tuningPath == "" {
		table, err = compiler.Default()
	} else {
		if _, statErr := os.Stat(tuningPath); os.IsNotExist(statErr) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("tuning file not found: %s", tuningPath)}
		}
		table, err = compiler.Load(tuningPath)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCompile, Message: err.Error(), Err: err}
	}

	build, ok := machines.Lookup(program)
	if !ok {
		return nil, &LoadError{
			Code:    ErrCodeUnknownProg,
			Message: fmt.Sprintf("unknown program %q (known: %s)", program, strings.Join(machines.Programs(), ", ")),
		}
	}
	p, err := build(table)
	if err != nil {
		return nil, &LoadError{Code: buildErrorCode(err), Message: err.Error(), Err: err}
	}
	return &LoadResult{Table: table, Program: p}, nil
}

func buildErrorCode(err error) string {
	switch {
	case compiler.IsMissingValueError(err):
		return ErrCodeMissing
	case sim.IsWiringError(err):
		return ErrCodeWiring
	default:
		return ErrCodeGeneric
	}
}

// loadErrorCode extracts the code from a *LoadError.
func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// ControlAssignment is one parsed --set flag.
type ControlAssignment struct {
	Machine  string
	Property string
	Value    float64
}

// ParseControls parses "machine.property=value" flags. Machine IDs may
// contain dots; the property is everything after the last one.
func ParseControls(flags []string) ([]ControlAssignment, error) {
	out := make([]ControlAssignment, 0, len(flags))
	for _, f := range flags {
		key, value, err := splitAssignment(f)
		if err != nil {
			return nil, err
		}
		dot := strings.LastIndex(key, ".")
		if dot <= 0 || dot == len(key)-1 {
			return nil, fmt.Errorf("invalid control %q: want machine.property=value", f)
		}
		out = append(out, ControlAssignment{Machine: key[:dot], Property: key[dot+1:], Value: value})
	}
	return out, nil
}

// ParseSignals parses "name=value" flags into a map. A later flag for the
// same name wins.
func ParseSignals(flags []string) (map[string]float64, error) {
	out := make(map[string]float64, len(flags))
	for _, f := range flags {
		name, value, err := splitAssignment(f)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func splitAssignment(s string) (string, float64, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", 0, fmt.Errorf("invalid assignment %q: want key=value", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid assignment %q: %w", s, err)
	}
	return key, v, nil
}

// applyOverrides sets controls then signals on state. Signals are applied
// in name order.
func applyOverrides(p *sim.Program, state *sim.State, controls []ControlAssignment, signals map[string]float64) (*sim.State, error) {
	var err error
	for _, c := range controls {
		state, err = p.SetControl(state, c.Machine, c.Property, c.Value)
		if err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		state = state.WithSignal(name, signals[name])
	}
	return state, nil
}

// openExisting opens a ledger that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
