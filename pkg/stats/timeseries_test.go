package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{name: "Simple average", data: []float64{1, 2, 3, 4, 5}, expected: 3.0},
		{name: "Single value", data: []float64{5.5}, expected: 5.5},
		{name: "Negative values", data: []float64{-2, -4, -6}, expected: -4.0},
		{name: "NaN ignored", data: []float64{math.NaN(), 2, 4}, expected: 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Mean(tt.data), 1e-10)
		})
	}

	assert.True(t, math.IsNaN(Mean(nil)), "empty input is undefined")
}

func TestSampleVariance(t *testing.T) {
	// 总体方差 4，样本方差 32/7
	assert.InDelta(t, 32.0/7.0, SampleVariance([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-10)
	assert.InDelta(t, 0.0, SampleVariance([]float64{5, 5, 5, 5}), 1e-10)
	assert.True(t, math.IsNaN(SampleVariance([]float64{1})))
	assert.InDelta(t, math.Sqrt(32.0/7.0), SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-10)
}

func TestRollingStats(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	mean, std := RollingStats(data, 3)

	require.Len(t, mean, len(data))
	for i := 0; i < 2; i++ {
		assert.True(t, math.IsNaN(mean[i]), "mean[%d] should be undefined", i)
		assert.True(t, math.IsNaN(std[i]), "std[%d] should be undefined", i)
	}
	for i := 2; i < len(data); i++ {
		assert.InDelta(t, data[i]-1, mean[i], 1e-12)
		assert.InDelta(t, 1.0, std[i], 1e-12)
	}
}

func TestRollingStats_NaNInWindow(t *testing.T) {
	data := []float64{math.NaN(), 1, 2, 3}
	mean, _ := RollingStats(data, 3)

	assert.True(t, math.IsNaN(mean[2]), "window containing NaN is undefined")
	assert.InDelta(t, 2.0, mean[3], 1e-12)
}

func TestZScore(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		mean     float64
		std      float64
		expected float64
	}{
		{name: "Positive z-score", value: 15.0, mean: 10.0, std: 2.5, expected: 2.0},
		{name: "Negative z-score", value: 5.0, mean: 10.0, std: 2.5, expected: -2.0},
		{name: "Zero z-score", value: 10.0, mean: 10.0, std: 2.5, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ZScore(tt.value, tt.mean, tt.std), 1e-10)
		})
	}

	assert.True(t, math.IsNaN(ZScore(10, 10, 0)), "zero std is undefined, not zero")
	assert.True(t, math.IsNaN(ZScore(10, 10, math.NaN())))
}

func TestPctChangeAndDiff(t *testing.T) {
	pct := PctChange([]float64{100, 110, 99})
	assert.True(t, math.IsNaN(pct[0]))
	assert.InDelta(t, 0.10, pct[1], 1e-12)
	assert.InDelta(t, -0.10, pct[2], 1e-12)

	diff := Diff([]float64{1, 4, 2})
	assert.True(t, math.IsNaN(diff[0]))
	assert.Equal(t, []float64{3, -2}, diff[1:])

	zeroBase := PctChange([]float64{0, 1})
	assert.True(t, math.IsNaN(zeroBase[1]))
}

func TestCorrelation(t *testing.T) {
	assert.InDelta(t, 1.0, Correlation([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}), 1e-10)
	assert.InDelta(t, -1.0, Correlation([]float64{1, 2, 3, 4, 5}, []float64{10, 8, 6, 4, 2}), 1e-10)
	assert.True(t, math.IsNaN(Correlation([]float64{1, 1, 1}, []float64{1, 2, 3})))
}

func TestBeta(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		y        []float64
		expected float64
	}{
		{name: "Beta = 2.0", x: []float64{2, 4, 6, 8, 10}, y: []float64{1, 2, 3, 4, 5}, expected: 2.0},
		{name: "Beta = 0.5", x: []float64{1, 2, 3, 4, 5}, y: []float64{2, 4, 6, 8, 10}, expected: 0.5},
		{name: "Gold/silver scale ratio", x: []float64{1600, 1680, 1760}, y: []float64{20, 21, 22}, expected: 80.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Beta(tt.x, tt.y), 1e-10)
		})
	}
}

func TestLinearRegression(t *testing.T) {
	slope, intercept := LinearRegression([]float64{1, 2, 3, 4}, []float64{3, 5, 7, 9})
	assert.InDelta(t, 2.0, slope, 1e-10)
	assert.InDelta(t, 1.0, intercept, 1e-10)

	slope, intercept = LinearRegression([]float64{2, 2, 2}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, slope)
	assert.InDelta(t, 2.0, intercept, 1e-10)
}

func TestHalfLife(t *testing.T) {
	// y_t = 0.5 * y_{t-1} => λ = -0.5, half-life = ln2/ln2 = 1
	series := []float64{64, 32, 16, 8, 4, 2, 1}
	assert.InDelta(t, 1.0, HalfLife(series), 1e-9)

	trending := []float64{1, 2, 4, 8, 16, 32}
	assert.True(t, math.IsInf(HalfLife(trending), 1))
}

func TestHalfLife_NegativeAutocorrelation(t *testing.T) {
	// y_t = -0.5 * y_{t-1} => λ = -1.5, |φ| = 0.5, half-life = 1
	alternating := []float64{64, -32, 16, -8, 4, -2, 1}
	assert.InDelta(t, 1.0, HalfLife(alternating), 1e-9)

	// φ = -0.25 reverts within a single period
	fast := []float64{256, -64, 16, -4, 1, -0.25}
	hl := HalfLife(fast)
	assert.InDelta(t, 0.5, hl, 1e-9)
	assert.Less(t, hl, 1.0)

	// φ = 0: the first step removes the whole deviation
	assert.Equal(t, 0.0, HalfLife([]float64{5, 0, 0, 0}))

	// φ = -2 oscillates with growing amplitude
	assert.True(t, math.IsInf(HalfLife([]float64{1, -2, 4, -8, 16, -32}), 1))
}

func BenchmarkRollingStats(b *testing.B) {
	data := make([]float64, 1000)
	for i := range data {
		data[i] = math.Sin(float64(i) / 10)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RollingStats(data, 30)
	}
}
