package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tickflow/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RunID     string // optional - defaults to the latest run
	FromTick  int64
	ToTick    int64
	Source    string
	Requester string
	Signals   bool
}

// TraceGrant is one resolved request in the trace.
type TraceGrant struct {
	Tick      int64    `json:"tick"`
	Seq       int      `json:"seq"`
	Requester string   `json:"requester"`
	Source    string   `json:"source"`
	Property  string   `json:"property"`
	Target    string   `json:"target"`
	Priority  int      `json:"priority"`
	Requested *float64 `json:"requested,omitempty"`
	Available float64  `json:"available"`
	Granted   float64  `json:"granted"`
}

// TraceSignalWrite is one signal write in the trace.
type TraceSignalWrite struct {
	Tick    int64   `json:"tick"`
	Seq     int     `json:"seq"`
	Machine string  `json:"machine"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Grants       int     `json:"grants"`
	TotalGranted float64 `json:"total_granted"`
	Shortfalls   int     `json:"shortfalls"`
	SignalWrites int     `json:"signal_writes"`
	LatestTick   int64   `json:"latest_tick"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID        string             `json:"run_id"`
	Program      string             `json:"program"`
	Grants       []TraceGrant       `json:"grants"`
	SignalWrites []TraceSignalWrite `json:"signal_writes"`
	Stats        TraceStats         `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the grants and signal writes of a recorded run",
		Long: `Show what each machine asked for and received, tick by tick.

Grants are listed in resolution order: by tick, then in the order the
resolver processed them. A grant below the requested amount is a shortfall.

The output includes:
- Grants: requester, source, property, requested, available and granted amounts
- Signal writes: which machine set which signal
- Stats: summary counts for the selected window

Examples:
  tickflow trace --db ./ledger.db
  tickflow trace --db ./ledger.db --from 10 --to 20 --source storage-matter
  tickflow trace --db ./ledger.db --run 0190a6e2-... --requester reactor --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to trace (default: latest)")
	cmd.Flags().Int64Var(&opts.FromTick, "from", 0, "first tick to include")
	cmd.Flags().Int64Var(&opts.ToTick, "to", 0, "last tick to include (0: no limit)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "only grants from this machine")
	cmd.Flags().StringVar(&opts.Requester, "requester", "", "only grants to this machine")
	cmd.Flags().BoolVar(&opts.Signals, "signals", true, "include signal writes")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	if opts.FromTick < 0 || opts.ToTick < 0 {
		return NewExitError(ExitCommandError, "--from and --to must not be negative")
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, "run not found")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	latest, err := st.LatestTick(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read latest tick", err)
	}

	grants, err := st.ReadGrants(ctx, run.ID, store.GrantFilter{
		FromTick:  opts.FromTick,
		ToTick:    opts.ToTick,
		Source:    opts.Source,
		Requester: opts.Requester,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read grants", err)
	}

	result := TraceResult{
		RunID:        run.ID,
		Program:      run.Program,
		Grants:       make([]TraceGrant, 0, len(grants)),
		SignalWrites: []TraceSignalWrite{},
		Stats:        TraceStats{LatestTick: latest},
	}
	for _, g := range grants {
		result.Grants = append(result.Grants, TraceGrant{
			Tick:      g.Tick,
			Seq:       g.Seq,
			Requester: g.Requester,
			Source:    g.Source,
			Property:  g.Property,
			Target:    g.Target,
			Priority:  g.Priority,
			Requested: g.Requested,
			Available: g.Available,
			Granted:   g.Granted,
		})
		result.Stats.TotalGranted += g.Granted
		if g.Requested != nil && g.Granted < *g.Requested {
			result.Stats.Shortfalls++
		}
	}
	result.Stats.Grants = len(result.Grants)

	if opts.Signals {
		writes, err := st.ReadSignalWrites(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read signal writes", err)
		}
		for _, w := range writes {
			if !inWindow(w.Tick, opts.FromTick, opts.ToTick) {
				continue
			}
			result.SignalWrites = append(result.SignalWrites, TraceSignalWrite{
				Tick:    w.Tick,
				Seq:     w.Seq,
				Machine: w.Machine,
				Name:    w.Name,
				Value:   w.Value,
			})
		}
	}
	result.Stats.SignalWrites = len(result.SignalWrites)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// inWindow reports whether tick lies in [from, to]; to zero is unbounded.
func inWindow(tick, from, to int64) bool {
	if tick < from {
		return false
	}
	return to == 0 || tick <= to
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s (%s)\n", result.RunID, result.Program)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Grants ===")
	if len(result.Grants) == 0 {
		fmt.Fprintln(w, "  (no grants)")
	}
	for _, g := range result.Grants {
		formatGrant(w, g, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Signal Writes ===")
	if len(result.SignalWrites) == 0 {
		fmt.Fprintln(w, "  (no signal writes)")
	}
	for _, sw := range result.SignalWrites {
		fmt.Fprintf(w, "  [%d.%d] %s %s = %s\n", sw.Tick, sw.Seq, sw.Machine, sw.Name, formatAmount(sw.Value))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Grants:        %d\n", result.Stats.Grants)
	fmt.Fprintf(w, "  Total Granted: %s\n", formatAmount(result.Stats.TotalGranted))
	fmt.Fprintf(w, "  Shortfalls:    %d\n", result.Stats.Shortfalls)
	fmt.Fprintf(w, "  Signal Writes: %d\n", result.Stats.SignalWrites)
	fmt.Fprintf(w, "  Latest Tick:   %d\n", result.Stats.LatestTick)

	return nil
}

// formatGrant formats a single grant for text output.
func formatGrant(w io.Writer, g TraceGrant, verbose bool) {
	property := g.Property
	if g.Target != g.Property {
		property = g.Property + " as " + g.Target
	}
	requested := "all"
	if g.Requested != nil {
		requested = formatAmount(*g.Requested)
	}
	fmt.Fprintf(w, "  [%d.%d] %s <- %s %s: %s of %s\n",
		g.Tick, g.Seq, g.Requester, g.Source, property, formatAmount(g.Granted), requested)
	if verbose {
		fmt.Fprintf(w, "         available %s, priority %d\n", formatAmount(g.Available), g.Priority)
	}
}

// formatAmount prints a quantity without trailing zeros.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
