package coint

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
)

func ar1(n int, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = phi*x[i-1] + rng.NormFloat64()
	}
	return x
}

func randomWalk(n int, start float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	x[0] = start
	for i := 1; i < n; i++ {
		x[i] = x[i-1] + rng.NormFloat64()
	}
	return x
}

func explosive(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := range x {
		x[i] = 100*math.Pow(1.01, float64(i)) + rng.NormFloat64()
	}
	return x
}

func TestMackinnonP(t *testing.T) {
	assert.InDelta(t, 0.05, mackinnonP(-2.86154, 1), 0.005)
	assert.InDelta(t, 0.05, mackinnonP(-3.33613, 2), 0.005)
	assert.Equal(t, 1.0, mackinnonP(3, 1))
	assert.Equal(t, 0.0, mackinnonP(-20, 1))
	assert.True(t, math.IsNaN(mackinnonP(math.NaN(), 1)))

	// continuous across the small/large p boundary
	below := mackinnonP(tauStarC[0]-1e-9, 1)
	above := mackinnonP(tauStarC[0]+1e-9, 1)
	assert.InDelta(t, below, above, 0.005)
}

func TestMackinnonCrit(t *testing.T) {
	cv := mackinnonCrit(1, 1_000_000)
	assert.InDelta(t, -3.43035, cv.OnePct, 1e-4)
	assert.InDelta(t, -2.86154, cv.FivePct, 1e-4)
	assert.InDelta(t, -2.56677, cv.TenPct, 1e-4)

	small := mackinnonCrit(2, 100)
	assert.Less(t, small.OnePct, small.FivePct)
	assert.Less(t, small.FivePct, small.TenPct)
}

func TestADF_Stationary(t *testing.T) {
	res, err := ADF(ar1(500, 0.3, 7), DefaultADFOptions())
	require.NoError(t, err)

	assert.Less(t, res.Statistic, res.CriticalValues.OnePct)
	assert.Less(t, res.PValue, SignificanceLevel)
	assert.GreaterOrEqual(t, res.UsedLag, 0)
	assert.Greater(t, res.NObs, 400)
}

func TestADF_Explosive(t *testing.T) {
	res, err := ADF(explosive(300, 13), DefaultADFOptions())
	require.NoError(t, err)
	assert.Greater(t, res.PValue, SignificanceLevel)
}

func TestADF_FixedLag(t *testing.T) {
	res, err := ADF(ar1(200, 0.5, 3), ADFOptions{MaxLag: 2, FixedLag: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UsedLag)
	assert.Equal(t, 200-1-2, res.NObs)
}

func TestADF_DropsLeadingNaN(t *testing.T) {
	x := ar1(100, 0.2, 11)
	for i := 0; i < 30; i++ {
		x[i] = math.NaN()
	}
	res, err := ADF(x, DefaultADFOptions())
	require.NoError(t, err)
	assert.Less(t, res.NObs, 70)
}

func TestADF_InsufficientData(t *testing.T) {
	x := make([]float64, 40)
	for i := range x {
		x[i] = math.NaN()
	}
	copy(x[25:], ar1(15, 0.2, 1))

	_, err := ADF(x, DefaultADFOptions())
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestEngleGranger_Cointegrated(t *testing.T) {
	n := 500
	x := randomWalk(n, 50, 21)
	noise := ar1(n, 0.4, 22)
	y := make([]float64, n)
	for i := range y {
		y[i] = 10 + 2*x[i] + noise[i]
	}

	report, err := EngleGranger(y, x, DefaultADFOptions())
	require.NoError(t, err)

	assert.Equal(t, MethodEngleGranger, report.Method)
	assert.InDelta(t, 2.0, report.HedgeRatio, 0.05)
	assert.Equal(t, Cointegrated, report.Verdict)
	assert.Less(t, report.PValue, SignificanceLevel)
	assert.False(t, math.IsInf(report.HalfLife, 1))
}

func TestEngleGranger_Collinear(t *testing.T) {
	x := randomWalk(100, 30, 5)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 3*x[i] + 1
	}

	report, err := EngleGranger(y, x, DefaultADFOptions())
	require.NoError(t, err)
	assert.True(t, math.IsInf(report.Statistic, -1))
	assert.NotEmpty(t, report.Note)
}

func alignedFrom(t *testing.T, a, b []float64) *market.AlignedSeries {
	t.Helper()
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	points := make([]market.PricePoint, len(a))
	for i := range a {
		points[i] = market.PricePoint{Date: start.AddDate(0, 0, i), PriceA: a[i], PriceB: b[i]}
	}
	aligned, err := market.FromPoints("A", "B", points)
	require.NoError(t, err)
	return aligned
}

func TestValidate_ADFOnSpread(t *testing.T) {
	spread := ar1(300, 0.3, 99)
	spread[0] = math.NaN()
	a := randomWalk(300, 100, 1)
	aligned := alignedFrom(t, a, a)

	report, err := Validate(aligned, spread, MethodADF)
	require.NoError(t, err)
	assert.Equal(t, MethodADF, report.Method)
	assert.Equal(t, Cointegrated, report.Verdict)
	assert.True(t, math.IsNaN(report.HedgeRatio))
}

func TestValidate_NegativelyAutocorrelatedSpreadHasShortHalfLife(t *testing.T) {
	spread := ar1(400, -0.3, 17)
	a := randomWalk(400, 100, 3)
	aligned := alignedFrom(t, a, a)

	report, err := Validate(aligned, spread, MethodADF)
	require.NoError(t, err)
	assert.Equal(t, Cointegrated, report.Verdict)
	assert.False(t, math.IsInf(report.HalfLife, 1))
	assert.Less(t, report.HalfLife, 1.0)
}

func TestValidate_ConstantSpreadIsAdvisory(t *testing.T) {
	spread := make([]float64, 60)
	for i := range spread {
		spread[i] = 2.0
	}
	a := randomWalk(60, 100, 2)
	aligned := alignedFrom(t, a, a)

	report, err := Validate(aligned, spread, MethodADF)
	require.NoError(t, err, "degenerate spread is reported, not raised")
	assert.Equal(t, NotCointegrated, report.Verdict)
	assert.NotEmpty(t, report.Note)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("engle_granger")
	require.NoError(t, err)
	assert.Equal(t, MethodEngleGranger, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodADF, m)

	_, err = ParseMethod("johansen")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
