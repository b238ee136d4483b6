package harness

import (
	"github.com/roach88/tickflow/internal/sim"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// RunID is the ledger run the scenario was recorded as.
	RunID string `json:"run_id"`

	// Final is the state reached. It is the last good state when the run
	// failed.
	Final *sim.State `json:"final,omitempty"`

	// Digest is the digest of Final.
	Digest string `json:"digest,omitempty"`

	// RunErr is the error that stopped the run, if any.
	RunErr error `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
