package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableCompiles(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	v, err := table.ConfigValue("reactor", "maxOperatingTemperature")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, v)

	v, err = table.ConfigValue("pump-b", "maxProduction")
	require.NoError(t, err)
	assert.Equal(t, 3600.0, v)

	v, err = table.InitialValue("pump-c", "enabled")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "pump-c overrides the default")

	v, err = table.InitialValue("pump-a", "enabled")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = table.ConfigValue("power-capacitor", "generatorThreshold")
	require.NoError(t, err)
	assert.Equal(t, 0.1, v)
}

func TestCompileCUE(t *testing.T) {
	src := []byte(`
		config: tank: {
			capacity: 100
			leak:     0.5
		}
		initial: tank: level: 20
	`)

	table, err := CompileCUE("tank.cue", src)
	require.NoError(t, err)
	assert.Equal(t, "tank.cue", table.Source)
	assert.Equal(t, map[string]map[string]float64{"tank": {"capacity": 100, "leak": 0.5}}, table.Config)
	assert.Equal(t, map[string]map[string]float64{"tank": {"level": 20}}, table.Initial)
}

func TestCompileCUERejectsNonNumbers(t *testing.T) {
	_, err := CompileCUE("bad.cue", []byte(`config: tank: capacity: "lots"`))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
}

func TestCompileCUERejectsUnknownSection(t *testing.T) {
	_, err := CompileCUE("bad.cue", []byte(`limits: tank: capacity: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limits")
}

func TestCompileCUERejectsIncompleteValues(t *testing.T) {
	_, err := CompileCUE("bad.cue", []byte(`config: tank: capacity: number`))
	require.Error(t, err)
}

func TestCompileCUESyntaxError(t *testing.T) {
	_, err := CompileCUE("bad.cue", []byte(`config: {`))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid(), "syntax errors carry a position")
	assert.Contains(t, err.Error(), "bad.cue")
}

func TestCompileJSON(t *testing.T) {
	src := []byte(`{"config": {"tank": {"capacity": 100}}, "initial": {"tank": {"level": 2.5}}}`)

	table, err := CompileJSON("tank.json", src)
	require.NoError(t, err)

	v, err := table.InitialValue("tank", "level")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}

func TestCompileJSONSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not json", `{config`},
		{"unknown section", `{"limits": {}}`},
		{"string value", `{"config": {"tank": {"capacity": "big"}}}`},
		{"machine not object", `{"config": {"tank": 3}}`},
		{"top level array", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileJSON("bad.json", []byte(tt.src))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "json", ce.Field)
		})
	}
}

func TestCUEAndJSONHashEqually(t *testing.T) {
	fromCUE, err := CompileCUE("t.cue", []byte(`config: a: x: 1.5
initial: a: y: 2`))
	require.NoError(t, err)
	fromJSON, err := CompileJSON("t.json", []byte(`{"initial": {"a": {"y": 2}}, "config": {"a": {"x": 1.5}}}`))
	require.NoError(t, err)

	h1, err := fromCUE.Hash()
	require.NoError(t, err)
	h2, err := fromJSON.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	fromJSON.Config["a"]["x"] = 1.25
	h3, err := fromJSON.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestCanonicalRecompiles(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	data, err := table.Canonical()
	require.NoError(t, err)
	again, err := CompileJSON("stored", data)
	require.NoError(t, err)

	assert.Equal(t, table.Config, again.Config)
	assert.Equal(t, table.Initial, again.Initial)
	h1, _ := table.Hash()
	h2, _ := again.Hash()
	assert.Equal(t, h1, h2)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	cuePath := filepath.Join(dir, "t.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(`config: a: x: 1`), 0o644))
	table, err := Load(cuePath)
	require.NoError(t, err)
	assert.Equal(t, cuePath, table.Source)

	jsonPath := filepath.Join(dir, "t.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"config": {"a": {"x": 1}}}`), 0o644))
	_, err = Load(jsonPath)
	require.NoError(t, err)

	yamlPath := filepath.Join(dir, "t.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`config: {}`), 0o644))
	_, err = Load(yamlPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported tuning format")

	_, err = Load(filepath.Join(dir, "missing.cue"))
	require.Error(t, err)
}

func TestMissingValueMessages(t *testing.T) {
	table := &Table{Config: map[string]map[string]float64{"tank": {"capacity": 1}}}

	_, err := table.InitialValue("tank", "level")
	assert.EqualError(t, err, `no section of type "initial" in tuning table`)

	_, err = table.ConfigValue("pump", "rate")
	assert.EqualError(t, err, "no config entry for machine pump")

	_, err = table.ConfigValue("tank", "leak")
	assert.EqualError(t, err, "property leak is not defined for machine tank in config")
	assert.True(t, IsMissingValueError(err))
}

func TestReaderKeepsFirstError(t *testing.T) {
	table := &Table{
		Config:  map[string]map[string]float64{"tank": {"capacity": 10}},
		Initial: map[string]map[string]float64{"tank": {"level": 4}},
	}

	r := table.Reader("tank")
	assert.Equal(t, 10.0, r.Value("capacity"))
	assert.Equal(t, 4.0, r.Initial("level"))
	require.NoError(t, r.Err())

	assert.Equal(t, 0.0, r.Value("leak"))
	assert.Equal(t, 0.0, r.Initial("pressure"))

	var me *MissingValueError
	require.ErrorAs(t, r.Err(), &me)
	assert.Equal(t, "leak", me.Property)
	assert.Equal(t, MissingProperty, me.Missing)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "config.tank.capacity", Message: "not a number"}
	assert.Equal(t, "config.tank.capacity: not a number", err.Error())
}
