package sim

import (
	"errors"
	"fmt"
)

// WiringError reports a program that cannot be executed as written.
//
// Wiring errors include:
//   - Unknown source: a request names a component that is not registered
//   - Undeclared output: a request names a property the source does not declare
//   - Missing output: the source's state has no value for a declared output
//   - Invalid output: the source produced NaN or an infinity
//   - Invalid request: empty source/property or a NaN cap
//   - Invalid program: duplicate IDs, duplicate outputs, bad control ranges
//   - Invalid state: a state that does not match the program
//   - Unknown control / control out of range: a rejected operator setting
//
// Wiring errors abort the tick; no partial state is returned.
type WiringError struct {
	// Code identifies the error category.
	Code WiringErrorCode

	// Message is a human-readable description.
	Message string

	// Tick is the tick being computed, or zero outside a tick.
	Tick int64

	// Requester, Source and Property locate the offending request.
	Requester string
	Source    string
	Property  string
}

// WiringErrorCode categorizes wiring errors.
type WiringErrorCode string

const (
	ErrCodeUnknownSource     WiringErrorCode = "UNKNOWN_SOURCE"
	ErrCodeUndeclaredOutput  WiringErrorCode = "UNDECLARED_OUTPUT"
	ErrCodeMissingOutput     WiringErrorCode = "MISSING_OUTPUT"
	ErrCodeInvalidOutput     WiringErrorCode = "INVALID_OUTPUT"
	ErrCodeInvalidRequest    WiringErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidProgram    WiringErrorCode = "INVALID_PROGRAM"
	ErrCodeInvalidState      WiringErrorCode = "INVALID_STATE"
	ErrCodeUnknownControl    WiringErrorCode = "UNKNOWN_CONTROL"
	ErrCodeControlOutOfRange WiringErrorCode = "CONTROL_OUT_OF_RANGE"
)

// Error implements the error interface.
func (e *WiringError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Requester != "" || e.Source != "" {
		msg += fmt.Sprintf(" (requester=%s, source=%s, property=%s)", e.Requester, e.Source, e.Property)
	}
	if e.Tick > 0 {
		msg += fmt.Sprintf(" at tick %d", e.Tick)
	}
	return msg
}

// IsWiringError reports whether err is or wraps a *WiringError.
func IsWiringError(err error) bool {
	var we *WiringError
	return errors.As(err, &we)
}

// ErrorCode extracts the wiring error code from err, or "" if err is not a
// wiring error.
func ErrorCode(err error) WiringErrorCode {
	var we *WiringError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

func requestError(code WiringErrorCode, tick int64, requester string, r Request, format string, args ...any) *WiringError {
	return &WiringError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Tick:      tick,
		Requester: requester,
		Source:    r.Source,
		Property:  r.Property,
	}
}

func programError(format string, args ...any) *WiringError {
	return &WiringError{
		Code:    ErrCodeInvalidProgram,
		Message: fmt.Sprintf(format, args...),
	}
}

func stateError(format string, args ...any) *WiringError {
	return &WiringError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf(format, args...),
	}
}

func controlError(code WiringErrorCode, machine, property, format string, args ...any) *WiringError {
	return &WiringError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Source:   machine,
		Property: property,
	}
}
