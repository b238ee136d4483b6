package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals the data payload of a JSON CLIResponse into v and
// returns the response status.
func decodeData(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), out)
	}
	return resp.Status
}

func jsonUnmarshal(out string, v any) error {
	return json.Unmarshal([]byte(out), v)
}

// recordRun runs the default program into a fresh ledger and returns the
// ledger path and the run result.
func recordRun(t *testing.T, ticks string, extra ...string) (string, RunResult) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "ledger.db")
	args := append([]string{"run", "--db", db, "--ticks", ticks, "--format", "json"}, extra...)
	out, err := execute(t, args...)
	require.NoError(t, err, out)

	var result RunResult
	require.Equal(t, "ok", decodeData(t, out, &result))
	return db, result
}
