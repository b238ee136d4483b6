package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/testutil"
)

// valve is a minimal controllable component.
type valve struct{}

func (valve) ID() string                    { return "valve" }
func (valve) Outputs() []string             { return nil }
func (valve) InitialState() sim.Values      { return sim.Values{"opening": 0} }
func (valve) Update(s *sim.Step) sim.Values { return s.Prev }
func (valve) Controls() map[string]sim.Range {
	return map[string]sim.Range{"opening": {Min: 0, Max: 1}}
}

func TestNewProgramValidation(t *testing.T) {
	tests := []struct {
		name       string
		components []sim.Component
	}{
		{"duplicate ID", []sim.Component{
			&testutil.Producer{Name: "x", Property: "a"},
			&testutil.Producer{Name: "x", Property: "b"},
		}},
		{"empty ID", []sim.Component{&testutil.Producer{Name: "", Property: "a"}}},
		{"duplicate output", []sim.Component{&testutil.Func{Name: "f", Outs: []string{"a", "a"}}}},
		{"empty output", []sim.Component{&testutil.Func{Name: "f", Outs: []string{""}}}},
		{"nil component", []sim.Component{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.NewProgram("bad", tt.components...)
			require.Error(t, err)
			assert.Equal(t, sim.ErrCodeInvalidProgram, sim.ErrorCode(err))
		})
	}
}

func TestNewProgramCopiesComponents(t *testing.T) {
	comps := []sim.Component{
		&testutil.Producer{Name: "a", Property: "x"},
		&testutil.Producer{Name: "b", Property: "x"},
	}
	p, err := sim.NewProgram("copy", comps...)
	require.NoError(t, err)

	comps[0] = &testutil.Producer{Name: "z", Property: "x"}
	assert.Equal(t, []string{"a", "b"}, p.IDs())
}

func TestCreateInitialStateRequiresDeclaredOutputs(t *testing.T) {
	p := testutil.MustProgram("missing-init",
		&testutil.Func{Name: "f", Outs: []string{"energy"}, Init: sim.Values{}},
	)
	_, err := sim.CreateInitialState(p)
	require.Error(t, err)
	assert.Equal(t, sim.ErrCodeInvalidProgram, sim.ErrorCode(err))
}

func TestCreateInitialStateOneEntryPerComponent(t *testing.T) {
	p := testutil.MustProgram("init",
		&testutil.Producer{Name: "a", Property: "x", Amount: 1},
		&testutil.Consumer{Name: "b"},
	)
	s, err := sim.CreateInitialState(p)
	require.NoError(t, err)

	assert.Equal(t, int64(0), s.Tick)
	assert.Len(t, s.Machines, 2)
	assert.Equal(t, 1.0, s.Value("a", "x"))
	assert.Equal(t, 0, s.Signals.Len())
}

func TestProgramLookup(t *testing.T) {
	p := testutil.MustProgram("lookup", &testutil.Producer{Name: "a", Property: "x"}, valve{})

	c, ok := p.Component("a")
	require.True(t, ok)
	assert.Equal(t, "a", c.ID())

	_, ok = p.Component("nope")
	assert.False(t, ok)

	assert.True(t, p.Declares("a", "x"))
	assert.False(t, p.Declares("a", "y"))
	assert.Equal(t, []string{"x"}, p.Outputs("a"))
	assert.Equal(t, sim.Range{Min: 0, Max: 1}, p.Controls("valve")["opening"])
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "lookup", p.Name())
}

func TestSetControl(t *testing.T) {
	p := testutil.MustProgram("controls", valve{})
	s := testutil.MustInitialState(p)

	next, err := p.SetControl(s, "valve", "opening", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, next.Value("valve", "opening"))
	assert.Equal(t, 0.0, s.Value("valve", "opening"), "original state untouched")

	_, err = p.SetControl(s, "valve", "opening", 2)
	assert.Equal(t, sim.ErrCodeControlOutOfRange, sim.ErrorCode(err))

	_, err = p.SetControl(s, "valve", "pressure", 0)
	assert.Equal(t, sim.ErrCodeUnknownControl, sim.ErrorCode(err))

	_, err = p.SetControl(s, "pump", "opening", 0)
	assert.Equal(t, sim.ErrCodeUnknownControl, sim.ErrorCode(err))
}

func TestProgramHashTracksShape(t *testing.T) {
	a := testutil.MustProgram("p", &testutil.Producer{Name: "a", Property: "x"}, &testutil.Producer{Name: "b", Property: "x"})
	b := testutil.MustProgram("p", &testutil.Producer{Name: "a", Property: "x"}, &testutil.Producer{Name: "b", Property: "x"})
	c := testutil.MustProgram("p", &testutil.Producer{Name: "b", Property: "x"}, &testutil.Producer{Name: "a", Property: "x"})

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	hc, err := c.Hash()
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc, "registration order is part of the program")
}

func TestValidateCatchesWiringBeforeRunning(t *testing.T) {
	p := testutil.MustProgram("validate",
		&testutil.Consumer{Name: "sink", Requests: []sim.Request{{Source: "ghost", Property: "x"}}},
	)
	s := testutil.MustInitialState(p)
	assert.Equal(t, sim.ErrCodeUnknownSource, sim.ErrorCode(p.Validate(s)))
}

func TestAdvanceRejectsForeignState(t *testing.T) {
	p := testutil.MustProgram("a", &testutil.Producer{Name: "a", Property: "x"})
	other := testutil.MustProgram("b", &testutil.Producer{Name: "b", Property: "x"})

	_, _, err := p.Advance(testutil.MustInitialState(other))
	assert.Equal(t, sim.ErrCodeInvalidState, sim.ErrorCode(err))

	_, _, err = p.Advance(nil)
	assert.Equal(t, sim.ErrCodeInvalidState, sim.ErrorCode(err))
}
