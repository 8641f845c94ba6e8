// Package market aligns two raw price series on a common trading-day index
package market

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

const stageName = "Aligner"

// Column names used when an aligned series is exported as a frame
const (
	ColPriceA  = "price_a"
	ColPriceB  = "price_b"
	ColReturnA = "return_a"
	ColReturnB = "return_b"
)

// RawPoint is a single daily close as delivered by a data provider.
// Price may be NaN when the provider flags a gap.
type RawPoint struct {
	Date  time.Time
	Price float64
}

// RawSeries is a provider series for one instrument, in any order
type RawSeries struct {
	Symbol string
	Points []RawPoint
}

// PricePoint is one aligned trading day
type PricePoint struct {
	Date   time.Time
	PriceA float64
	PriceB float64
}

// AlignedSeries holds inner-joined prices ordered by date plus simple returns.
// ReturnA[0] and ReturnB[0] are NaN.
type AlignedSeries struct {
	SymbolA string
	SymbolB string
	Points  []PricePoint
	ReturnA []float64
	ReturnB []float64
}

// Day truncates t to its calendar date in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Align inner-joins a and b on date, drops rows with a missing or
// non-positive price, sorts ascending and computes per-asset returns.
// window is the rolling window the caller will use downstream; at least
// window+2 aligned rows are required.
func Align(a, b RawSeries, window int) (*AlignedSeries, error) {
	left := index(a)
	right := index(b)

	points := make([]PricePoint, 0, len(left))
	for day, pa := range left {
		pb, ok := right[day]
		if !ok {
			continue
		}
		points = append(points, PricePoint{Date: day, PriceA: pa, PriceB: pb})
	}

	if len(points) == 0 {
		return nil, errs.Stage(stageName, fmt.Sprintf("no overlapping dates between %s and %s", a.Symbol, b.Symbol), errs.ErrEmptyInput)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	if need := window + 2; len(points) < need {
		return nil, errs.Stage(stageName,
			fmt.Sprintf("%d aligned rows, need at least %d for window %d", len(points), need, window),
			errs.ErrInsufficientData)
	}

	return build(a.Symbol, b.Symbol, points), nil
}

// FromPoints rebuilds an aligned series from already aligned rows, such as
// rows reloaded from a persisted frame. Dates must be strictly increasing.
func FromPoints(symbolA, symbolB string, points []PricePoint) (*AlignedSeries, error) {
	if len(points) == 0 {
		return nil, errs.Stage(stageName, "no rows", errs.ErrEmptyInput)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return nil, errs.Stage(stageName,
				fmt.Sprintf("dates not strictly increasing at row %d (%s)", i, points[i].Date.Format("2006-01-02")),
				errs.ErrConfiguration)
		}
	}

	cp := make([]PricePoint, len(points))
	copy(cp, points)
	return build(symbolA, symbolB, cp), nil
}

// index keeps the last valid price per calendar day
func index(s RawSeries) map[time.Time]float64 {
	out := make(map[time.Time]float64, len(s.Points))
	for _, p := range s.Points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			continue
		}
		out[Day(p.Date)] = p.Price
	}
	return out
}

func build(symbolA, symbolB string, points []PricePoint) *AlignedSeries {
	aligned := &AlignedSeries{
		SymbolA: symbolA,
		SymbolB: symbolB,
		Points:  points,
	}
	aligned.ReturnA = stats.PctChange(aligned.PricesA())
	aligned.ReturnB = stats.PctChange(aligned.PricesB())
	return aligned
}

// Len returns the number of aligned rows
func (s *AlignedSeries) Len() int {
	return len(s.Points)
}

// Dates returns the date index
func (s *AlignedSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// PricesA returns the closes of the first instrument
func (s *AlignedSeries) PricesA() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.PriceA
	}
	return prices
}

// PricesB returns the closes of the second instrument
func (s *AlignedSeries) PricesB() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.PriceB
	}
	return prices
}

// Frame exports prices and returns as named columns
func (s *AlignedSeries) Frame() *stats.Frame {
	return stats.NewFrame(s.Dates()).
		MustWith(ColPriceA, s.PricesA()).
		MustWith(ColPriceB, s.PricesB()).
		MustWith(ColReturnA, s.ReturnA).
		MustWith(ColReturnB, s.ReturnB)
}
