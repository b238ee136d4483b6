package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
name: minimal
description: "Minimal scenario"
program: be13
ticks: 1
assertions:
  - type: conservation
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: full
description: "Every field"
program: be13
ticks: 20
run_id: run-fixed
controls:
  storage-matter: { releasedMatterPerTick: 10 }
signals:
  lockdown: 1
events:
  - at: 5
    signals: { lockdown: 0 }
  - at: 10
    controls:
      storage-matter: { releasedMatterPerTick: 0 }
assertions:
  - type: final_state
    machine: storage-matter
    property: matter
    expect: 5
    tolerance: 0.5
  - type: grant
    requester: reactor
    source: storage-matter
    tick: 3
    min: 0
  - type: error
    code: UNKNOWN_SOURCE
`))
	require.NoError(t, err)

	assert.Equal(t, "full", s.Name)
	assert.Equal(t, "be13", s.Program)
	assert.Equal(t, int64(20), s.Ticks)
	assert.Equal(t, "run-fixed", s.RunID)
	assert.Equal(t, 10.0, s.Controls["storage-matter"]["releasedMatterPerTick"])
	assert.Equal(t, 1.0, s.Signals["lockdown"])
	require.Len(t, s.Events, 2)
	assert.Equal(t, int64(10), s.Events[1].At)
	require.Len(t, s.Assertions, 3)
	require.NotNil(t, s.Assertions[0].Expect)
	assert.Equal(t, 5.0, *s.Assertions[0].Expect)
	assert.Equal(t, 0.5, s.Assertions[0].Tolerance)
	assert.Nil(t, s.Assertions[1].Expect)
	require.NotNil(t, s.Assertions[1].Min)
	assert.Equal(t, "UNKNOWN_SOURCE", s.Assertions[2].Code)
}

func TestParseScenarioRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", minimalYAML + "assertion: []\n", "field assertion not found"},
		{"missing name", "description: d\nprogram: p\nassertions: [{type: conservation}]", "name is required"},
		{"missing description", "name: n\nprogram: p\nassertions: [{type: conservation}]", "description is required"},
		{"missing program", "name: n\ndescription: d\nassertions: [{type: conservation}]", "program is required"},
		{"negative ticks", "name: n\ndescription: d\nprogram: p\nticks: -1\nassertions: [{type: conservation}]", "ticks must be non-negative"},
		{"no assertions", "name: n\ndescription: d\nprogram: p", "assertions list is required"},
		{"unknown assertion", "name: n\ndescription: d\nprogram: p\nassertions: [{type: vibes}]", `unknown assertion type "vibes"`},
		{"final_state without property", "name: n\ndescription: d\nprogram: p\nassertions: [{type: final_state, expect: 1}]", "property is required"},
		{"final_state without expectation", "name: n\ndescription: d\nprogram: p\nassertions: [{type: final_state, property: x}]", "expect, min or max is required"},
		{"min above max", "name: n\ndescription: d\nprogram: p\nassertions: [{type: final_state, property: x, min: 2, max: 1}]", "min 2 exceeds max 1"},
		{"negative tolerance", "name: n\ndescription: d\nprogram: p\nassertions: [{type: final_state, property: x, expect: 1, tolerance: -1}]", "tolerance must be non-negative"},
		{"grant without source", "name: n\ndescription: d\nprogram: p\nassertions: [{type: grant, requester: r, tick: 1, expect: 1}]", "requester and source are required"},
		{"grant without tick", "name: n\ndescription: d\nprogram: p\nassertions: [{type: grant, requester: r, source: s, expect: 1}]", "tick must be positive"},
		{"error without code", "name: n\ndescription: d\nprogram: p\nassertions: [{type: error}]", "code is required"},
		{"event past end", "name: n\ndescription: d\nprogram: p\nticks: 5\nevents: [{at: 5}]\nassertions: [{type: conservation}]", "outside the run"},
		{"events out of order", "name: n\ndescription: d\nprogram: p\nticks: 5\nevents: [{at: 3}, {at: 1}]\nassertions: [{type: conservation}]", "tick order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioResolvesTuning(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tunings"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tunings", "t.cue"), []byte("config: {}"), 0o644))

	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"tuning: tunings/t.cue\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tunings", "t.cue"), s.Tuning)
}

func TestLoadScenarioMissingTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"tuning: nope.cue\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tuning file not found")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTestdataScenariosLoad(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}
}
