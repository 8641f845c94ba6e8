package signal

import (
	"math"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// Column name of the position series in an exported frame
const ColPosition = "position"

// Generate maps z to one position per index. Initial state is Flat and
// position[t] depends only on position[t-1] and z[t].
func Generate(z []float64, p Params) ([]Position, error) {
	if err := p.Validate(); err != nil {
		return nil, errs.Stage("Signal", "invalid thresholds", err)
	}
	if p.Policy == "" {
		p.Policy = PolicyStateful
	}
	if p.Missing == "" {
		p.Missing = MissingHold
	}

	positions := make([]Position, len(z))
	prev := Flat
	for t, score := range z {
		prev = Next(prev, score, p)
		positions[t] = prev
	}
	return positions, nil
}

// Next is a single transition of the state machine
func Next(prev Position, z float64, p Params) Position {
	if stats.IsUndefined(z) {
		if p.Missing == MissingFlat {
			return Flat
		}
		return prev
	}

	if p.Policy == PolicyVectorized {
		switch {
		case z > p.ZEntry:
			return Short
		case z < -p.ZEntry:
			return Long
		default:
			return Flat
		}
	}

	switch prev {
	case Flat:
		switch {
		case z > p.ZEntry:
			return Short
		case z < -p.ZEntry:
			return Long
		}
		return Flat
	default:
		if math.Abs(z) < p.ZExit {
			return Flat
		}
		return prev
	}
}

// Floats converts positions for frame export and return computation
func Floats(positions []Position) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = p.Float()
	}
	return out
}

// FromFloats restores positions persisted as numbers
func FromFloats(values []float64) ([]Position, error) {
	out := make([]Position, len(values))
	for i, v := range values {
		p, err := FromFloat(v)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Transitions counts the indices at which the position changes
func Transitions(positions []Position) int {
	n := 0
	prev := Flat
	for _, p := range positions {
		if p != prev {
			n++
		}
		prev = p
	}
	return n
}
