package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tickflow/internal/sim"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		shares     []sim.Share
		opts       sim.SplitOptions
		wantFilled []float64
		wantUnused float64
		wantRounds int
	}{
		{
			name:   "even split",
			amount: 250,
			shares: []sim.Share{
				{Name: "a", Weight: 1, Capacity: 100},
				{Name: "b", Weight: 1, Capacity: 100},
				{Name: "c", Weight: 1, Capacity: 100},
			},
			wantFilled: []float64{250.0 / 3, 250.0 / 3, 250.0 / 3},
		},
		{
			name:   "overflow is unused",
			amount: 400,
			shares: []sim.Share{
				{Name: "a", Weight: 1, Capacity: 100},
				{Name: "b", Weight: 1, Capacity: 100},
				{Name: "c", Weight: 1, Capacity: 100},
			},
			wantFilled: []float64{100, 100, 100},
			wantUnused: 100,
			wantRounds: 1,
		},
		{
			name:   "weighted",
			amount: 100,
			shares: []sim.Share{
				{Name: "a", Weight: 3, Capacity: 100},
				{Name: "b", Weight: 1, Capacity: 100},
			},
			wantFilled: []float64{75, 25},
			wantRounds: 1,
		},
		{
			name:   "full share leaves room for the rest",
			amount: 120,
			shares: []sim.Share{
				{Name: "a", Weight: 3, Capacity: 50},
				{Name: "b", Weight: 1, Capacity: 100},
			},
			wantFilled: []float64{50, 70},
			wantRounds: 2,
		},
		{
			name:   "already filled",
			amount: 10,
			shares: []sim.Share{
				{Name: "a", Weight: 1, Filled: 95, Capacity: 100},
				{Name: "b", Weight: 1, Filled: 100, Capacity: 100},
			},
			wantFilled: []float64{100, 100},
			wantUnused: 5,
			wantRounds: 1,
		},
		{
			name:   "zero weights take nothing",
			amount: 10,
			shares: []sim.Share{
				{Name: "a", Weight: 0, Capacity: 100},
				{Name: "b", Weight: 0, Capacity: 100},
			},
			wantFilled: []float64{0, 0},
			wantUnused: 10,
		},
		{
			name:   "min grant served in order",
			amount: 2,
			shares: []sim.Share{
				{Name: "a", Weight: 1, Capacity: 10},
				{Name: "b", Weight: 1, Capacity: 10},
				{Name: "c", Weight: 1, Capacity: 10},
				{Name: "d", Weight: 1, Capacity: 10},
			},
			wantFilled: []float64{1, 1, 0, 0},
			wantRounds: 1,
		},
		{
			name:   "round limit",
			amount: 120,
			shares: []sim.Share{
				{Name: "a", Weight: 3, Capacity: 50},
				{Name: "b", Weight: 1, Capacity: 100},
			},
			opts:       sim.SplitOptions{MaxRounds: 1},
			wantFilled: []float64{50, 30},
			wantUnused: 40,
			wantRounds: 1,
		},
		{
			name:       "nothing to split",
			amount:     0,
			shares:     []sim.Share{{Name: "a", Weight: 1, Capacity: 10}},
			wantFilled: []float64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sim.Split(tt.amount, tt.shares, tt.opts)

			assert.InDeltaSlice(t, tt.wantFilled, got.Filled, 1e-9)
			assert.InDelta(t, tt.wantUnused, got.Unused, 1e-9)
			if tt.wantRounds > 0 {
				assert.Equal(t, tt.wantRounds, got.Rounds)
			}
		})
	}
}

func TestSplitConservesAmount(t *testing.T) {
	shares := []sim.Share{
		{Name: "a", Weight: 0.2, Capacity: 7},
		{Name: "b", Weight: 0.5, Filled: 3, Capacity: 40},
		{Name: "c", Weight: 0.3, Capacity: 12.5},
	}
	amount := 53.0

	got := sim.Split(amount, shares, sim.SplitOptions{})

	handed := 0.0
	for i, s := range shares {
		assert.LessOrEqual(t, got.Filled[i], s.Capacity+1e-9)
		handed += got.Filled[i] - s.Filled
	}
	assert.InDelta(t, amount, handed+got.Unused, 1e-9)
	assert.LessOrEqual(t, got.Rounds, sim.MaxSplitRounds)
}

func TestSplitDoesNotModifyShares(t *testing.T) {
	shares := []sim.Share{{Name: "a", Weight: 1, Filled: 1, Capacity: 10}}
	sim.Split(5, shares, sim.SplitOptions{})
	assert.Equal(t, 1.0, shares[0].Filled)
}
