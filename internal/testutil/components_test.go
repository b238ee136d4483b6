package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickflow/internal/sim"
)

func TestFixedRunIDGenerator(t *testing.T) {
	gen := NewFixedRunIDGenerator("")
	assert.Equal(t, FixedRunID, gen.Generate())
	assert.Equal(t, FixedRunID, gen.Generate())

	custom := NewFixedRunIDGenerator("run-x")
	assert.Equal(t, "run-x", custom.Generate())
}

func TestTankKeepsLevelWhenUntouched(t *testing.T) {
	p := MustProgram("tank", &Tank{Name: "tank", Property: "water", Level: 40})
	s := MustInitialState(p)

	for i := 0; i < 5; i++ {
		var err error
		s, err = sim.Advance(p, s)
		require.NoError(t, err)
	}
	assert.Equal(t, 40.0, s.Value("tank", "water"))
}

func TestFuncDefaultsKeepState(t *testing.T) {
	f := &Func{Name: "f", Init: sim.Values{"x": 3}}
	p := MustProgram("func", f)
	s := MustInitialState(p)

	next, err := sim.Advance(p, s)
	require.NoError(t, err)
	assert.Equal(t, 3.0, next.Value("f", "x"))
}
