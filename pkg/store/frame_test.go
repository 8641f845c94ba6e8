package store

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

func testDates(n int) []time.Time {
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestWriteFrame_Format(t *testing.T) {
	frame := stats.NewFrame(testDates(3)).
		MustWith("spread", []float64{math.NaN(), 0.1, -2.5e-9}).
		MustWith("position", []float64{0, 1, -1})

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, frame))
	assert.Equal(t,
		"date,spread,position\n"+
			"2022-03-01,,0\n"+
			"2022-03-02,0.1,1\n"+
			"2022-03-03,-2.5e-09,-1\n",
		buf.String())
}

func TestFrame_RoundTripIsExact(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	n := 200
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = rng.NormFloat64() * math.Pow(10, float64(rng.Intn(20)-10))
		b[i] = rng.Float64()
		if i%13 == 0 {
			b[i] = math.NaN()
		}
	}
	b[5] = math.Inf(1)
	frame := stats.NewFrame(testDates(n)).MustWith("a", a).MustWith("b", b)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, frame))
	loaded, err := ReadFrame(&buf)
	require.NoError(t, err)

	assert.Equal(t, frame.Names(), loaded.Names())
	assert.Equal(t, frame.Dates(), loaded.Dates())
	gotA, _ := loaded.Get("a")
	assert.Equal(t, a, gotA)
	gotB, _ := loaded.Get("b")
	for i := range b {
		if math.IsNaN(b[i]) {
			assert.True(t, math.IsNaN(gotB[i]), "row %d", i)
			continue
		}
		assert.Equal(t, b[i], gotB[i], "row %d", i)
	}
}

func TestReadFrame_Errors(t *testing.T) {
	_, err := ReadFrame(strings.NewReader(""))
	assert.ErrorIs(t, err, errs.ErrEmptyInput)

	_, err = ReadFrame(strings.NewReader("day,x\n2022-01-01,1\n"))
	assert.Error(t, err)

	_, err = ReadFrame(strings.NewReader("date,x\n01/02/2022,1\n"))
	assert.Error(t, err)

	_, err = ReadFrame(strings.NewReader("date,x\n2022-01-01,abc\n"))
	assert.Error(t, err)

	frame, err := ReadFrame(strings.NewReader("date,x\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Len())
}

func cointegratedPair(t *testing.T, n int) *market.AlignedSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(29))
	points := make([]market.PricePoint, n)
	silver, noise := 24.0, 0.0
	for i, d := range testDates(n) {
		silver += 0.2 * rng.NormFloat64()
		noise = 0.5*noise + 6*rng.NormFloat64()
		points[i] = market.PricePoint{Date: d, PriceA: 72*silver + 150 + noise, PriceB: silver}
	}
	aligned, err := market.FromPoints("GC=F", "SI=F", points)
	require.NoError(t, err)
	return aligned
}

func TestFrame_ReplayAfterReload(t *testing.T) {
	config := backtest.DefaultConfig()
	config.Strategy.Spread = "price_differential"
	config.Strategy.HedgeRatioMethod = "ols"
	config.Analysis.AllowZeroRiskFree = true

	result, err := backtest.NewRunner(config, nil).Run(context.Background(), cointegratedPair(t, 250))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "frames", "run.csv")
	require.NoError(t, SaveFrame(path, result.Frame))
	loaded, err := LoadFrame(path)
	require.NoError(t, err)

	replayed, perf, err := backtest.Replay(loaded, result.Params.Signal, config.AnalysisParams())
	require.NoError(t, err)

	assert.Equal(t, result.Path.Positions, replayed.Positions)
	assert.Equal(t, result.Path.CumulativeReturn, replayed.CumulativeReturn)
	assert.Equal(t, result.Performance.CumulativeReturn, perf.CumulativeReturn)
	assert.Equal(t, result.Performance.MaxDrawdown, perf.MaxDrawdown)
	assert.Equal(t, result.Performance.Trades, perf.Trades)

	aligned, err := AlignedFromFrame(loaded, "GC=F", "SI=F")
	require.NoError(t, err)
	again, err := backtest.NewRunner(config, nil).Run(context.Background(), aligned)
	require.NoError(t, err)
	assert.Equal(t, result.Path.CumulativeReturn, again.Path.CumulativeReturn)
}

func TestAlignedFromFrame_MissingPrices(t *testing.T) {
	frame := stats.NewFrame(testDates(2)).MustWith("z_score", []float64{0, 1})
	_, err := AlignedFromFrame(frame, "A", "B")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
