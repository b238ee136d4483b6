package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	files, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)

	single, err := FindScenarios(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "notes.txt")}, single)
}

func TestFindScenariosMissing(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "gone"))
	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Error(), "does not exist")
}
