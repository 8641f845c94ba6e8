// Package provider supplies raw daily closes and the risk-free rate to the
// backtest. Sources are Yahoo-style CSV files and a ClickHouse table.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pairs-arb-backtest/pkg/market"
)

// PriceProvider returns the daily closes of one instrument in [start, end].
// A zero start is unbounded.
type PriceProvider interface {
	Closes(ctx context.Context, symbol string, start, end time.Time) (market.RawSeries, error)
}

// LoadPair fetches both instruments and aligns them
func LoadPair(ctx context.Context, p PriceProvider, symbolA, symbolB string, start, end time.Time, window int, log *logrus.Entry) (*market.AlignedSeries, error) {
	a, err := p.Closes(ctx, symbolA, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", symbolA, err)
	}
	b, err := p.Closes(ctx, symbolB, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", symbolB, err)
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"symbol_a": symbolA,
			"rows_a":   len(a.Points),
			"symbol_b": symbolB,
			"rows_b":   len(b.Points),
		}).Info("Loaded daily closes")
	}
	return market.Align(a, b, window)
}

func inRange(d, start, end time.Time) bool {
	if !start.IsZero() && d.Before(market.Day(start)) {
		return false
	}
	if !end.IsZero() && d.After(market.Day(end)) {
		return false
	}
	return true
}
