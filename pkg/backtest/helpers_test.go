package backtest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/market"
)

var testStart = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = testStart.AddDate(0, 0, i)
	}
	return out
}

func alignedFromPrices(t *testing.T, pa, pb []float64) *market.AlignedSeries {
	t.Helper()
	points := make([]market.PricePoint, len(pa))
	for i := range pa {
		points[i] = market.PricePoint{Date: testStart.AddDate(0, 0, i), PriceA: pa[i], PriceB: pb[i]}
	}
	aligned, err := market.FromPoints("GC=F", "SI=F", points)
	require.NoError(t, err)
	return aligned
}

// cointegratedPair builds gold ≈ 70·silver + mean-reverting noise
func cointegratedPair(t *testing.T, n int, seed int64) *market.AlignedSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pa := make([]float64, n)
	pb := make([]float64, n)
	silver, noise := 25.0, 0.0
	for i := 0; i < n; i++ {
		silver += 0.2 * rng.NormFloat64()
		if silver < 5 {
			silver = 5
		}
		noise = 0.6*noise + 8*rng.NormFloat64()
		pb[i] = silver
		pa[i] = 70*silver + 100 + noise
	}
	return alignedFromPrices(t, pa, pb)
}

func rate(v float64) *float64 {
	return &v
}
