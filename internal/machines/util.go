package machines

import (
	"fmt"

	"github.com/roach88/tickflow/internal/compiler"
)

// HourToTick converts per-hour tuning rates into per-tick rates.
const HourToTick = 3600

func clamp(v, lo, hi float64) float64 {
	return max(min(v, hi), lo)
}

// normalizeRange maps v from [lo, hi] onto [0, 1] without clamping.
// A degenerate range is a step at lo.
func normalizeRange(v, lo, hi float64) float64 {
	if hi == lo {
		if v < lo {
			return 0
		}
		return 1
	}
	return (v - lo) / (hi - lo)
}

// ratio returns got/want. Nothing wanted counts as fully satisfied.
func ratio(got, want float64) float64 {
	if want <= 0 {
		return 1
	}
	return got / want
}

// flag turns a control value into a boolean.
func flag(v float64) bool {
	return v != 0
}

// readErr wraps a tuning lookup failure with the machine that asked.
func readErr(id string, r *compiler.Reader) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("machine %s: %w", id, err)
	}
	return nil
}
