package sim_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/testutil"
)

func TestWiringErrors(t *testing.T) {
	tests := []struct {
		name     string
		request  sim.Request
		wantCode sim.WiringErrorCode
	}{
		{"unknown source", sim.Request{Source: "ghost", Property: "energy"}, sim.ErrCodeUnknownSource},
		{"undeclared output", sim.Request{Source: "src", Property: "heat"}, sim.ErrCodeUndeclaredOutput},
		{"empty property", sim.Request{Source: "src"}, sim.ErrCodeInvalidRequest},
		{"NaN cap", sim.Request{Source: "src", Property: "energy", Max: sim.Cap(math.NaN())}, sim.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.MustProgram("wiring",
				&testutil.Producer{Name: "src", Property: "energy", Amount: 10},
				&testutil.Consumer{Name: "sink", Requests: []sim.Request{tt.request}},
			)
			s := testutil.MustInitialState(p)

			next, report, err := p.Advance(s)
			require.Error(t, err)
			assert.Nil(t, next)
			assert.Nil(t, report)
			assert.True(t, sim.IsWiringError(err))
			assert.Equal(t, tt.wantCode, sim.ErrorCode(err))

			var we *sim.WiringError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, "sink", we.Requester)
			assert.Equal(t, int64(1), we.Tick)
		})
	}
}

func TestWiringErrorMessageNamesParties(t *testing.T) {
	p := testutil.MustProgram("message",
		&testutil.Producer{Name: "src", Property: "energy", Amount: 10},
		&testutil.Consumer{Name: "sink", Requests: []sim.Request{{Source: "src", Property: "heat"}}},
	)
	_, _, err := p.Advance(testutil.MustInitialState(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNDECLARED_OUTPUT")
	assert.Contains(t, err.Error(), "requester=sink")
	assert.Contains(t, err.Error(), "source=src")
	assert.Contains(t, err.Error(), "property=heat")
}

func TestMissingOutputDetectedNextTick(t *testing.T) {
	// The source drops its declared output after the first update.
	p := testutil.MustProgram("missing",
		&testutil.Func{Name: "src", Outs: []string{"energy"}, Init: sim.Values{"energy": 5},
			Up: func(*sim.Step) sim.Values { return sim.Values{} }},
		&testutil.Consumer{Name: "sink", Requests: []sim.Request{{Source: "src", Property: "energy"}}},
	)
	s := testutil.MustInitialState(p)

	s, _, err := p.Advance(s)
	require.NoError(t, err)

	_, _, err = p.Advance(s)
	require.Error(t, err)
	assert.Equal(t, sim.ErrCodeMissingOutput, sim.ErrorCode(err))
}

func TestInvalidOutputDetected(t *testing.T) {
	p := testutil.MustProgram("nan",
		&testutil.Func{Name: "src", Outs: []string{"energy"}, Init: sim.Values{"energy": 5},
			Up: func(*sim.Step) sim.Values { return sim.Values{"energy": math.NaN()} }},
		&testutil.Consumer{Name: "sink", Requests: []sim.Request{{Source: "src", Property: "energy"}}},
	)
	s, _, err := p.Advance(testutil.MustInitialState(p))
	require.NoError(t, err)

	_, _, err = p.Advance(s)
	assert.Equal(t, sim.ErrCodeInvalidOutput, sim.ErrorCode(err))
}

func TestWiringErrorDoesNotTouchPreviousState(t *testing.T) {
	p := testutil.MustProgram("no-partial",
		&testutil.Producer{Name: "src", Property: "energy", Amount: 10},
		&testutil.Consumer{Name: "ok", Requests: []sim.Request{{Source: "src", Property: "energy"}}},
		&testutil.Consumer{Name: "bad", Requests: []sim.Request{{Source: "nowhere", Property: "energy"}}},
	)
	s := testutil.MustInitialState(p)
	before, err := s.Digest()
	require.NoError(t, err)

	_, _, err = p.Advance(s)
	require.Error(t, err)

	after, err := s.Digest()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateReturningNilIsInvalidState(t *testing.T) {
	p := testutil.MustProgram("nil-state",
		&testutil.Func{Name: "broken", Init: sim.Values{}, Up: func(*sim.Step) sim.Values { return nil }},
	)
	_, _, err := p.Advance(testutil.MustInitialState(p))
	assert.Equal(t, sim.ErrCodeInvalidState, sim.ErrorCode(err))
}

func TestErrorCodeOnForeignError(t *testing.T) {
	assert.Equal(t, sim.WiringErrorCode(""), sim.ErrorCode(fmt.Errorf("plain")))
	assert.False(t, sim.IsWiringError(nil))
}

func TestWrappedWiringError(t *testing.T) {
	err := fmt.Errorf("tick 3: %w", &sim.WiringError{Code: sim.ErrCodeUnknownSource, Message: "x"})
	assert.True(t, sim.IsWiringError(err))
	assert.Equal(t, sim.ErrCodeUnknownSource, sim.ErrorCode(err))
}
