package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func raw(symbol string, start, n int, price func(i int) float64) RawSeries {
	s := RawSeries{Symbol: symbol}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, RawPoint{Date: day(start + i), Price: price(start + i)})
	}
	return s
}

func TestAlign_InnerJoinAndSort(t *testing.T) {
	a := raw("GC=F", 0, 20, func(i int) float64 { return 2000 + float64(i) })
	b := raw("SI=F", 5, 20, func(i int) float64 { return 25 + 0.1*float64(i) })

	// reverse b to check sorting
	for i, j := 0, len(b.Points)-1; i < j; i, j = i+1, j-1 {
		b.Points[i], b.Points[j] = b.Points[j], b.Points[i]
	}

	aligned, err := Align(a, b, 5)
	require.NoError(t, err)

	assert.Equal(t, 15, aligned.Len(), "days 5..19 overlap")
	dates := aligned.Dates()
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i].After(dates[i-1]), "dates strictly increasing")
	}
	assert.Equal(t, day(5), dates[0])
	assert.Equal(t, 2005.0, aligned.Points[0].PriceA)
	assert.InDelta(t, 25.5, aligned.Points[0].PriceB, 1e-12)
}

func TestAlign_Returns(t *testing.T) {
	a := raw("A", 0, 6, func(i int) float64 { return 100 * math.Pow(1.1, float64(i)) })
	b := raw("B", 0, 6, func(i int) float64 { return 50 })

	aligned, err := Align(a, b, 2)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(aligned.ReturnA[0]))
	assert.True(t, math.IsNaN(aligned.ReturnB[0]))
	for i := 1; i < aligned.Len(); i++ {
		assert.InDelta(t, 0.1, aligned.ReturnA[i], 1e-12)
		assert.InDelta(t, 0.0, aligned.ReturnB[i], 1e-12)
	}
}

func TestAlign_DropsMissingPrices(t *testing.T) {
	a := raw("A", 0, 10, func(i int) float64 {
		if i == 3 {
			return math.NaN()
		}
		return 10
	})
	b := raw("B", 0, 10, func(i int) float64 {
		if i == 7 {
			return 0
		}
		return 5
	})

	aligned, err := Align(a, b, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, aligned.Len())
	for _, p := range aligned.Points {
		assert.NotEqual(t, day(3), p.Date)
		assert.NotEqual(t, day(7), p.Date)
	}
}

func TestAlign_IntradayTimestampsCollapseToDay(t *testing.T) {
	a := raw("A", 0, 5, func(i int) float64 { return 10 })
	b := raw("B", 0, 5, func(i int) float64 { return 5 })
	for i := range b.Points {
		b.Points[i].Date = b.Points[i].Date.Add(17 * time.Hour)
	}

	aligned, err := Align(a, b, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, aligned.Len())
}

func TestAlign_EmptyIntersection(t *testing.T) {
	a := raw("A", 0, 10, func(i int) float64 { return 10 })
	b := raw("B", 100, 10, func(i int) float64 { return 5 })

	_, err := Align(a, b, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrEmptyInput)

	var stageErr *errs.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "Aligner", stageErr.Stage)
}

func TestAlign_InsufficientData(t *testing.T) {
	a := raw("A", 0, 31, func(i int) float64 { return 10 })
	b := raw("B", 0, 31, func(i int) float64 { return 5 })

	_, err := Align(a, b, 30)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	_, err = Align(a, b, 29)
	assert.NoError(t, err, "window+2 rows is enough")
}

func TestFromPoints(t *testing.T) {
	points := []PricePoint{
		{Date: day(0), PriceA: 10, PriceB: 5},
		{Date: day(1), PriceA: 11, PriceB: 5},
	}
	aligned, err := FromPoints("A", "B", points)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, aligned.ReturnA[1], 1e-12)

	_, err = FromPoints("A", "B", []PricePoint{points[1], points[0]})
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = FromPoints("A", "B", nil)
	assert.ErrorIs(t, err, errs.ErrEmptyInput)
}

func TestAlignedSeries_Frame(t *testing.T) {
	a := raw("A", 0, 4, func(i int) float64 { return 10 + float64(i) })
	b := raw("B", 0, 4, func(i int) float64 { return 5 })
	aligned, err := Align(a, b, 2)
	require.NoError(t, err)

	f := aligned.Frame()
	assert.Equal(t, []string{ColPriceA, ColPriceB, ColReturnA, ColReturnB}, f.Names())
	pa, ok := f.Get(ColPriceA)
	require.True(t, ok)
	assert.Equal(t, []float64{10, 11, 12, 13}, pa)
}
