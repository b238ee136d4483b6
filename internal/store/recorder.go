package store

import (
	"context"

	"github.com/roach88/tickflow/internal/sim"
)

// Recorder writes every tick of a run to the ledger.
//
// Implements sim.TickObserver.
type Recorder struct {
	store *Store
	runID string
}

// NewRecorder records ticks into runID, which must already exist.
func NewRecorder(s *Store, runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// ObserveTick implements sim.TickObserver.
func (r *Recorder) ObserveTick(ctx context.Context, next *sim.State, report *sim.TickReport) error {
	return r.store.WriteTick(ctx, r.runID, next, report)
}
