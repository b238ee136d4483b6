package sim

// Weighted splitting defaults.
const (
	// MaxSplitRounds bounds the fixed-point iteration. Whatever is left
	// after the last round is reported as unused.
	MaxSplitRounds = 10

	// DefaultMinGrant is the smallest share handed to a consumer in a round.
	DefaultMinGrant = 1.0
)

// Share is one consumer in a weighted split.
type Share struct {
	Name     string
	Weight   float64
	Filled   float64
	Capacity float64
}

func (s Share) full(filled float64) bool {
	return filled >= s.Capacity
}

// SplitOptions tunes Split. Zero values select the defaults.
type SplitOptions struct {
	MaxRounds int
	MinGrant  float64
}

// SplitResult is the outcome of Split.
type SplitResult struct {
	// Filled holds each share's fill level after the split, index-aligned
	// with the input shares.
	Filled []float64

	// Unused is the amount nobody could take.
	Unused float64

	// Rounds is the number of rounds that handed out anything.
	Rounds int
}

// Split distributes amount over shares in proportion to their weights
// without overfilling any of them.
//
// Each round computes, for every share that is not full and has a positive
// weight, max(amountAtRoundStart * weight / activeWeight, MinGrant), clipped
// to the share's free capacity and to what is left. Shares are served in
// slice order. The loop stops when the amount is exhausted, every share is
// full, no active share has weight, or MaxRounds is reached.
func Split(amount float64, shares []Share, opts SplitOptions) SplitResult {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = MaxSplitRounds
	}
	if opts.MinGrant <= 0 {
		opts.MinGrant = DefaultMinGrant
	}

	filled := make([]float64, len(shares))
	for i, s := range shares {
		filled[i] = s.Filled
	}

	remaining := amount
	rounds := 0
	for remaining > 0 && rounds < opts.MaxRounds {
		activeWeight := 0.0
		anyOpen := false
		for i, s := range shares {
			if s.full(filled[i]) {
				continue
			}
			anyOpen = true
			if s.Weight > 0 {
				activeWeight += s.Weight
			}
		}
		if !anyOpen || activeWeight <= 0 {
			break
		}

		rounds++
		start := remaining
		for i, s := range shares {
			if s.full(filled[i]) || s.Weight <= 0 {
				continue
			}
			grant := max(start*(s.Weight/activeWeight), opts.MinGrant)
			grant = min(grant, s.Capacity-filled[i], remaining)
			filled[i] += grant
			remaining -= grant
		}
	}

	return SplitResult{
		Filled: filled,
		Unused: remaining,
		Rounds: rounds,
	}
}
