package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickflow/internal/compiler"
	"github.com/roach88/tickflow/internal/machines"
	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	All      bool
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID          string `json:"run_id"`
	Program        string `json:"program"`
	Ticks          int    `json:"ticks"`
	Deterministic  bool   `json:"deterministic"`
	DivergedAt     int64  `json:"diverged_at,omitempty"`
	RecordedDigest string `json:"recorded_digest,omitempty"`
	ReplayedDigest string `json:"replayed_digest,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute recorded runs and verify determinism",
		Long: `Recompute a recorded run from its start state and compare every tick
digest with the ledger.

The program is rebuilt from the recorded program name and tuning table.
Replay stops at the first tick whose digest differs.

Exit codes:
  0 - All replayed runs are deterministic
  1 - A tick digest diverged
  2 - Command error (database not found, unknown run, program changed)

Examples:
  tickflow replay --db ./ledger.db
  tickflow replay --db ./ledger.db --run 0190a6e2-...
  tickflow replay --db ./ledger.db --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay this run (default: latest)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "replay every recorded run")
	cmd.MarkFlagsMutuallyExclusive("run", "all")

	return cmd
}

// buildRegistered builds a registered program by name.
func buildRegistered(name string, t *compiler.Table) (*sim.Program, error) {
	build, ok := machines.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown program %q", name)
	}
	return build(t)
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runIDs, err := replayTargets(cmd, st, opts)
	if err != nil {
		return err
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}
	for _, id := range runIDs {
		run, err := st.ReadRun(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", id), err)
		}
		rr, err := st.Replay(ctx, id, buildRegistered)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}

		runResult := ReplayRunResult{
			RunID:         id,
			Program:       run.Program,
			Ticks:         rr.Ticks,
			Deterministic: rr.Matched(),
		}
		if d := rr.Divergence; d != nil {
			runResult.DivergedAt = d.Tick
			runResult.RecordedDigest = d.Recorded
			runResult.ReplayedDigest = d.Replayed
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, runResult)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayTargets resolves which runs to replay.
func replayTargets(cmd *cobra.Command, st *store.Store, opts *ReplayOptions) ([]string, error) {
	ctx := cmd.Context()
	switch {
	case opts.RunID != "":
		return []string{opts.RunID}, nil
	case opts.All:
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		ids := make([]string, len(runs))
		for i, r := range runs {
			ids[i] = r.ID
		}
		return ids, nil
	default:
		run, err := st.LatestRun(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to find latest run", err)
		}
		return []string{run.ID}, nil
	}
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "OK"
		if !run.Deterministic {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, run.RunID, run.Program)
		fmt.Fprintf(w, "  Ticks replayed: %d\n", run.Ticks)
		if !run.Deterministic {
			fmt.Fprintf(w, "  Diverged at tick %d\n", run.DivergedAt)
			if verbose {
				fmt.Fprintf(w, "  recorded: %s\n", run.RecordedDigest)
				fmt.Fprintf(w, "  replayed: %s\n", run.ReplayedDigest)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "OK All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "FAIL Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
