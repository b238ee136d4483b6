package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/store"
)

// conservationSlack absorbs float rounding when summing grants.
const conservationSlack = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Tick     int64  // Tick the failure refers to, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Tick > 0 {
		fmt.Fprintf(&buf, " at tick %d", e.Tick)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluate checks every assertion and returns failure messages in
// assertion order.
func (h *Harness) evaluate(ctx context.Context, result *Result) []string {
	var msgs []string
	expectsError := false

	for i, a := range h.scenario.Assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(result.Final, a)
		case AssertGrant:
			err = h.assertGrant(ctx, a)
		case AssertConservation:
			err = h.assertConservation(ctx)
		case AssertDeterministic:
			err = h.assertDeterministic(ctx, result)
		case AssertError:
			expectsError = true
			err = assertError(result.RunErr, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	if result.RunErr != nil && !expectsError {
		msgs = append(msgs, fmt.Sprintf("run failed: %v", result.RunErr))
	}
	return msgs
}

// assertFinalState checks one machine property, or a signal when no
// machine is named.
func assertFinalState(final *sim.State, a Assertion) error {
	if final == nil {
		return &AssertionError{Type: AssertFinalState, Expected: "a final state", Actual: "none"}
	}

	var (
		actual float64
		label  string
	)
	if a.Machine == "" {
		actual = final.Signals.Get(a.Property)
		label = "signal " + a.Property
	} else {
		values, ok := final.Machine(a.Machine)
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("machine %q", a.Machine),
				Actual:   "not in state",
			}
		}
		v, ok := values[a.Property]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %s.%s", a.Machine, a.Property),
				Actual:   "not in state",
			}
		}
		actual = v
		label = a.Machine + "." + a.Property
	}

	if msg, ok := checkValue(actual, a); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s", label, msg),
			Actual:   fmt.Sprintf("%s = %v", label, actual),
			Tick:     final.Tick,
		}
	}
	return nil
}

// assertGrant checks the total granted to a requester from a source at
// one tick. Several requests of the same pair add up.
func (h *Harness) assertGrant(ctx context.Context, a Assertion) error {
	grants, err := h.store.ReadGrants(ctx, h.runID, store.GrantFilter{
		FromTick:  a.Tick,
		ToTick:    a.Tick,
		Source:    a.Source,
		Requester: a.Requester,
	})
	if err != nil {
		return err
	}

	found := false
	total := 0.0
	for _, g := range grants {
		if a.Property != "" && g.Property != a.Property {
			continue
		}
		found = true
		total += g.Granted
	}
	label := fmt.Sprintf("grant %s <- %s", a.Requester, a.Source)
	if a.Property != "" {
		label += "." + a.Property
	}
	if !found {
		return &AssertionError{Type: AssertGrant, Expected: label, Actual: "no such grant", Tick: a.Tick}
	}
	if msg, ok := checkValue(total, a); !ok {
		return &AssertionError{
			Type:     AssertGrant,
			Expected: fmt.Sprintf("%s %s", label, msg),
			Actual:   fmt.Sprintf("granted %v", total),
			Tick:     a.Tick,
		}
	}
	return nil
}

// assertConservation checks every recorded tick: per source property,
// grants are non-negative and their sum never exceeds what was available
// to the first request.
func (h *Harness) assertConservation(ctx context.Context) error {
	grants, err := h.store.ReadGrants(ctx, h.runID, store.GrantFilter{})
	if err != nil {
		return err
	}

	type key struct {
		tick             int64
		source, property string
	}
	granted := make(map[key]float64)
	initial := make(map[key]float64)
	var order []key

	for _, g := range grants {
		if g.Granted < 0 {
			return &AssertionError{
				Type:     AssertConservation,
				Expected: "non-negative grants",
				Actual:   fmt.Sprintf("%s <- %s.%s granted %v", g.Requester, g.Source, g.Property, g.Granted),
				Tick:     g.Tick,
			}
		}
		k := key{g.Tick, g.Source, g.Property}
		if _, seen := initial[k]; !seen {
			initial[k] = g.Available
			order = append(order, k)
		}
		granted[k] += g.Granted
	}

	for _, k := range order {
		if granted[k] > initial[k]+conservationSlack {
			return &AssertionError{
				Type:     AssertConservation,
				Expected: fmt.Sprintf("%s.%s grants at most %v", k.source, k.property, initial[k]),
				Actual:   fmt.Sprintf("granted %v", granted[k]),
				Tick:     k.tick,
			}
		}
	}
	return nil
}

// assertDeterministic reruns the scenario without recording and compares
// final digests.
func (h *Harness) assertDeterministic(ctx context.Context, result *Result) error {
	again, err := h.execute(ctx, false)
	if (err == nil) != (result.RunErr == nil) {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: fmt.Sprintf("rerun error %v", result.RunErr),
			Actual:   fmt.Sprintf("rerun error %v", err),
		}
	}
	if again == nil || result.Final == nil {
		return nil
	}
	digest, err := again.Digest()
	if err != nil {
		return err
	}
	if digest != result.Digest {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: "digest " + result.Digest,
			Actual:   "digest " + digest,
			Tick:     again.Tick,
		}
	}
	return nil
}

func assertError(runErr error, a Assertion) error {
	if runErr == nil {
		return &AssertionError{Type: AssertError, Expected: "error " + a.Code, Actual: "run succeeded"}
	}
	if code := sim.ErrorCode(runErr); string(code) != a.Code {
		return &AssertionError{
			Type:     AssertError,
			Expected: "error " + a.Code,
			Actual:   fmt.Sprintf("error %q: %v", code, runErr),
		}
	}
	return nil
}

// checkValue reports whether v meets the assertion's expect, min and max.
// The message describes the expectation.
func checkValue(v float64, a Assertion) (string, bool) {
	var parts []string
	ok := true
	if a.Expect != nil {
		parts = append(parts, fmt.Sprintf("= %v +/- %v", *a.Expect, a.Tolerance))
		if math.IsNaN(v) || math.Abs(v-*a.Expect) > a.Tolerance {
			ok = false
		}
	}
	if a.Min != nil {
		parts = append(parts, fmt.Sprintf(">= %v", *a.Min))
		if !(v >= *a.Min) {
			ok = false
		}
	}
	if a.Max != nil {
		parts = append(parts, fmt.Sprintf("<= %v", *a.Max))
		if !(v <= *a.Max) {
			ok = false
		}
	}
	return strings.Join(parts, " and "), ok
}
