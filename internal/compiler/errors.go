package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}

// MissingKind says which level of a tuning lookup failed.
type MissingKind int

const (
	MissingSection MissingKind = iota
	MissingMachine
	MissingProperty
)

// MissingValueError is returned when a machine asks for a tuning value the
// table does not define.
type MissingValueError struct {
	Missing  MissingKind
	Section  string
	Machine  string
	Property string
}

func (e *MissingValueError) Error() string {
	switch e.Missing {
	case MissingSection:
		return fmt.Sprintf("no section of type %q in tuning table", e.Section)
	case MissingMachine:
		return fmt.Sprintf("no %s entry for machine %s", e.Section, e.Machine)
	default:
		return fmt.Sprintf("property %s is not defined for machine %s in %s", e.Property, e.Machine, e.Section)
	}
}

// IsMissingValueError reports whether err is or wraps a *MissingValueError.
func IsMissingValueError(err error) bool {
	var me *MissingValueError
	return errors.As(err, &me)
}
