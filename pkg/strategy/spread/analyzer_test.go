package spread

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

func makeAligned(t *testing.T, n int, priceA, priceB func(i int) float64) *market.AlignedSeries {
	t.Helper()
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	points := make([]market.PricePoint, n)
	for i := 0; i < n; i++ {
		points[i] = market.PricePoint{
			Date:   start.AddDate(0, 0, i),
			PriceA: priceA(i),
			PriceB: priceB(i),
		}
	}
	aligned, err := market.FromPoints("GC=F", "SI=F", points)
	require.NoError(t, err)
	return aligned
}

func wave(i int) float64 {
	return 1800 + 40*math.Sin(float64(i)/7.3+0.3) + 0.5*float64(i)
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func TestCompute_PriceDifferential(t *testing.T) {
	aligned := makeAligned(t, 120, wave, func(i int) float64 { return 20 + 0.01*float64(i) })
	cfg := Config{Type: PriceDifferential, HedgeRatio: 50, HedgeMethod: HedgeFixed, Window: 30}

	s, err := Compute(aligned, cfg)
	require.NoError(t, err)
	require.Equal(t, aligned.Len(), s.Len())

	assert.InDelta(t, wave(10)-50*(20+0.1), s.Spread[10], 1e-9)
	assert.Equal(t, 50.0, s.HedgeRatio)

	for i := 0; i < 29; i++ {
		assert.True(t, math.IsNaN(s.Mean[i]), "mean[%d]", i)
		assert.True(t, math.IsNaN(s.ZScore[i]), "z[%d]", i)
	}
	for i := 29; i < s.Len(); i++ {
		assert.False(t, math.IsNaN(s.ZScore[i]), "z[%d]", i)
	}

	window := s.Spread[90:120]
	assert.InDelta(t, stats.Mean(window), s.Mean[119], 1e-9)
	assert.InDelta(t, stats.SampleStdDev(window), s.Std[119], 1e-9)
	assert.InDelta(t, (s.Spread[119]-s.Mean[119])/s.Std[119], s.ZScore[119], 1e-9)
}

func TestCompute_ReturnDifferential(t *testing.T) {
	aligned := makeAligned(t, 80, wave, func(i int) float64 { return 22 + math.Cos(float64(i)/7) })

	s, err := Compute(aligned, Config{Type: ReturnDifferential, HedgeMethod: HedgeFixed, Window: 20})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(s.Spread[0]))
	assert.True(t, math.IsNaN(s.HedgeRatio))
	assert.InDelta(t, aligned.ReturnA[5]-aligned.ReturnB[5], s.Spread[5], 1e-15)

	// spread[0] is undefined, so the first full window ends at index 20
	assert.True(t, math.IsNaN(s.ZScore[19]))
	assert.False(t, math.IsNaN(s.ZScore[20]))
}

func TestCompute_ZScoreUndefinedBeforeWindow(t *testing.T) {
	aligned := makeAligned(t, 60, wave, func(i int) float64 { return 30 })

	for _, w := range []int{2, 5, 17, 30} {
		s, err := Compute(aligned, Config{Type: PriceDifferential, HedgeRatio: 1, HedgeMethod: HedgeFixed, Window: w})
		require.NoError(t, err)
		for i := 0; i < w-1; i++ {
			assert.True(t, math.IsNaN(s.ZScore[i]), "window %d z[%d]", w, i)
		}
		for i := w - 1; i < s.Len(); i++ {
			assert.False(t, math.IsNaN(s.ZScore[i]), "window %d z[%d]", w, i)
		}
	}
}

func TestCompute_ConstantSpread(t *testing.T) {
	aligned := makeAligned(t, 60,
		func(i int) float64 { return 100 + float64(i) },
		func(i int) float64 { return 60 + float64(i) })

	s, err := Compute(aligned, Config{Type: PriceDifferential, HedgeRatio: 1, HedgeMethod: HedgeFixed, Window: 10})
	require.NoError(t, err)

	for i, z := range s.ZScore {
		assert.True(t, math.IsNaN(z), "z[%d] should be undefined on zero variance", i)
	}
	assert.Equal(t, 0.0, s.Std[30])
}

func TestCompute_OLSHedgeRatio(t *testing.T) {
	priceB := func(i int) float64 { return 20 + 3*math.Sin(float64(i)/5) }
	aligned := makeAligned(t, 100, func(i int) float64 { return 5 + 2*priceB(i) }, priceB)

	s, err := Compute(aligned, Config{Type: PriceDifferential, HedgeMethod: HedgeOLS, Window: 10})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s.HedgeRatio, 1e-9)
	assert.InDelta(t, 5.0, s.Spread[50], 1e-9)
}

func TestEstimateHedgeRatio_ConstantPriceB(t *testing.T) {
	aligned := makeAligned(t, 40, wave, constant(25))
	_, err := EstimateHedgeRatio(aligned)
	assert.ErrorIs(t, err, errs.ErrDivideByZero)
}

func TestCompute_InvalidConfig(t *testing.T) {
	aligned := makeAligned(t, 40, wave, constant(25))

	tests := []struct {
		name string
		cfg  Config
	}{
		{"window too small", Config{Type: ReturnDifferential, HedgeMethod: HedgeFixed, Window: 1}},
		{"unknown type", Config{Type: "ratio", HedgeMethod: HedgeFixed, Window: 10}},
		{"unknown hedge method", Config{Type: PriceDifferential, HedgeMethod: "kalman", Window: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(aligned, tt.cfg)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestCompute_WindowLongerThanSeries(t *testing.T) {
	aligned := makeAligned(t, 10, wave, constant(25))
	_, err := Compute(aligned, Config{Type: ReturnDifferential, HedgeMethod: HedgeFixed, Window: 30})
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestSeries_AddToAndLast(t *testing.T) {
	aligned := makeAligned(t, 50, wave, func(i int) float64 { return 25 + 0.1*float64(i%7) })
	s, err := Compute(aligned, DefaultConfig())
	require.NoError(t, err)

	f, err := s.AddTo(aligned.Frame())
	require.NoError(t, err)
	assert.Equal(t, []string{
		market.ColPriceA, market.ColPriceB, market.ColReturnA, market.ColReturnB,
		ColSpread, ColMean, ColStd, ColZScore,
	}, f.Names())

	last := s.Last()
	assert.Equal(t, s.ZScore[49], last.ZScore)
	assert.Equal(t, s.Spread[49], last.CurrentSpread)
}
