package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/tickflow/internal/machines"
	"github.com/roach88/tickflow/internal/observability"
	"github.com/roach88/tickflow/internal/sim"
	"github.com/roach88/tickflow/internal/snapshot"
	"github.com/roach88/tickflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Program     string
	Tuning      string
	Ticks       int64
	MaxTicks    int64
	Controls    []string
	Signals     []string
	MetricsAddr string
	SnapshotOut string
	Resume      string
	TraceStdout bool

	// RunIDGenerator allows overriding run IDs (for testing).
	// If nil, defaults to sim.UUIDv7Generator.
	RunIDGenerator sim.RunIDGenerator
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID    string `json:"run_id"`
	Program  string `json:"program"`
	FromTick int64  `json:"from_tick"`
	Tick     int64  `json:"tick"`
	Digest   string `json:"digest"`
	Snapshot string `json:"snapshot,omitempty"`
	Stopped  bool   `json:"stopped,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a program and record every tick",
		Long: `Run a program for a number of ticks, recording each tick's state digest,
grants and signal writes to a SQLite ledger.

The run starts from the program's initial state, or from a snapshot with
--resume. Controls (--set machine.property=value) and signals
(--signal name=value) are applied to the start state.

Exit codes:
  0 - Run completed (or was interrupted cleanly)
  1 - Run aborted by a wiring error
  2 - Command error (bad flags, unreadable files, database errors)

Examples:
  tickflow run --db ./ledger.db --ticks 100
  tickflow run --db ./ledger.db --tuning ./be13.cue --set storage-matter.releasedMatterPerTick=120
  tickflow run --db ./ledger.db --signal lockdown=1 --snapshot-out ./snap.zst
  tickflow run --db ./ledger.db --resume ./snap.zst --ticks 50 --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Program, "program", machines.BE13Name, "program to run")
	cmd.Flags().StringVar(&opts.Tuning, "tuning", "", "tuning table (.cue or .json); defaults to the embedded BE13 table")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 10, "number of ticks to compute")
	cmd.Flags().Int64Var(&opts.MaxTicks, "max-ticks", sim.DefaultMaxTicks, "refuse runs longer than this (0 disables)")
	cmd.Flags().StringArrayVar(&opts.Controls, "set", nil, "set a control: machine.property=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Signals, "signal", nil, "set a signal: name=value (repeatable)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().StringVar(&opts.SnapshotOut, "snapshot-out", "", "write the final state to this snapshot file")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "start from this snapshot instead of the initial state")
	cmd.Flags().BoolVar(&opts.TraceStdout, "trace-stdout", false, "export one span per tick to stdout")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	if opts.Ticks < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--ticks must not be negative, got %d", opts.Ticks))
	}
	controls, err := ParseControls(opts.Controls)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}
	signals, err := ParseSignals(opts.Signals)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --signal", err)
	}

	loaded, err := LoadProgram(opts.Program, opts.Tuning)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}
	program := loaded.Program

	start, err := startState(program, opts.Resume)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare start state", err)
	}
	start, err = applyOverrides(program, start, controls, signals)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to apply overrides", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current tick", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if mode, err := st.Pragma(ctx, "journal_mode"); err == nil {
		slog.Debug("database ready", "journal_mode", mode)
	}

	gen := opts.RunIDGenerator
	if gen == nil {
		gen = sim.UUIDv7Generator{}
	}
	run, err := store.NewRun(gen.Generate(), program, loaded.Table, start)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to describe run", err)
	}
	run, err = st.CreateRun(ctx, run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	collector, err := observability.NewTickCollector(prometheus.NewRegistry())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, collector.Handler())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	tracer, shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled: opts.TraceStdout,
		Writer:  cmd.OutOrStdout(),
		Program: program.Name(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialise tracing", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown)

	runner := sim.NewRunner(program,
		sim.WithMaxTicks(opts.MaxTicks),
		sim.WithObserver(store.NewRecorder(st, run.ID)),
		sim.WithObserver(collector),
		sim.WithTracer(tracer),
	)

	slog.Info("run recorded", "run_id", run.ID, "seq", run.Seq, "program", program.Name())
	final, runErr := runner.Run(ctx, start, opts.Ticks)
	stopped := runErr != nil && errors.Is(runErr, context.Canceled)

	result := RunResult{
		RunID:    run.ID,
		Program:  program.Name(),
		FromTick: start.Tick,
		Stopped:  stopped,
	}
	if final != nil {
		result.Tick = final.Tick
		if result.Digest, err = final.Digest(); err != nil {
			return WrapExitError(ExitCommandError, "failed to digest final state", err)
		}
		if opts.SnapshotOut != "" {
			if err := writeSnapshot(opts.SnapshotOut, program.Name(), run.ID, final); err != nil {
				return WrapExitError(ExitCommandError, "failed to write snapshot", err)
			}
			result.Snapshot = opts.SnapshotOut
		}
	}

	if runErr != nil && !stopped {
		return WrapExitError(ExitFailure, fmt.Sprintf("run %s aborted at tick %d", run.ID, result.Tick+1), runErr)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	if stopped {
		fmt.Fprintf(w, "Run %s stopped at tick %d\n", result.RunID, result.Tick)
	} else {
		fmt.Fprintf(w, "Run %s: %s ticks %d..%d\n", result.RunID, result.Program, result.FromTick, result.Tick)
	}
	fmt.Fprintf(w, "  digest: %s\n", result.Digest)
	if result.Snapshot != "" {
		fmt.Fprintf(w, "  snapshot: %s\n", result.Snapshot)
	}
	return nil
}

// startState returns the program's initial state, or the state stored in
// the snapshot at resume.
func startState(p *sim.Program, resume string) (*sim.State, error) {
	if resume == "" {
		return sim.CreateInitialState(p)
	}
	snap, err := snapshot.Read(resume)
	if err != nil {
		return nil, err
	}
	if snap.Header.Program != p.Name() {
		return nil, fmt.Errorf("snapshot %s is of program %q, not %q", resume, snap.Header.Program, p.Name())
	}
	if err := p.Validate(snap.State); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", resume, err)
	}
	slog.Info("resuming from snapshot", "path", resume, "tick", snap.Header.Tick, "run_id", snap.Header.RunID)
	return snap.State, nil
}

func writeSnapshot(path, program, runID string, state *sim.State) error {
	snap, err := snapshot.New(program, runID, state)
	if err != nil {
		return err
	}
	if err := snapshot.Write(path, snap); err != nil {
		return err
	}
	slog.Info("snapshot written", "path", path, "tick", state.Tick)
	return nil
}

// serveMetrics serves h at /metrics on addr until the returned stop
// function is called.
func serveMetrics(addr string, h http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown", "error", err)
		}
	}, nil
}
