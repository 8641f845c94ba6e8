package backtest

import (
	"time"

	"github.com/yourusername/pairs-arb-backtest/pkg/coint"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/signal"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/spread"
)

// Column names of the derived series in an exported frame
const (
	ColSpreadReturn     = "spread_return"
	ColStrategyReturn   = "strategy_return"
	ColCumulativeReturn = "cumulative_return"
	ColPortfolioValue   = "portfolio_value"
	ColCash             = "cash"
	ColHoldingsA        = "holdings_a"
	ColHoldingsB        = "holdings_b"
)

// ReturnPath holds period strategy returns and the compounding curve.
// StrategyReturn[t] is undefined where the spread return is undefined and
// at t=0; CumulativeReturn[0] is 0.
type ReturnPath struct {
	Dates            []time.Time
	Positions        []signal.Position
	SpreadReturn     []float64
	StrategyReturn   []float64
	CumulativeReturn []float64
	// RuinIndex is the first index where equity reached zero, -1 if never
	RuinIndex int
}

// Len returns the number of periods
func (p *ReturnPath) Len() int {
	return len(p.StrategyReturn)
}

// Equity returns 1 + cumulative return
func (p *ReturnPath) Equity() []float64 {
	eq := make([]float64, len(p.CumulativeReturn))
	for i, c := range p.CumulativeReturn {
		eq[i] = 1 + c
	}
	return eq
}

// Trade is a change of target position on a given day
type Trade struct {
	Index  int
	Date   time.Time
	From   signal.Position
	To     signal.Position
	ZScore float64
	PriceA float64
	PriceB float64
}

// Trades lists every position change in order
func Trades(dates []time.Time, positions []signal.Position, z []float64, pa, pb []float64) []Trade {
	var trades []Trade
	prev := signal.Flat
	for i, p := range positions {
		if p == prev {
			continue
		}
		tr := Trade{Index: i, Date: dates[i], From: prev, To: p, ZScore: stats.NaN()}
		if i < len(z) {
			tr.ZScore = z[i]
		}
		if i < len(pa) && i < len(pb) {
			tr.PriceA, tr.PriceB = pa[i], pb[i]
		}
		trades = append(trades, tr)
		prev = p
	}
	return trades
}

// PerformanceReport is computed once per run and never partially filled
type PerformanceReport struct {
	CumulativeReturn     float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	MaxDrawdown          float64

	SortinoRatio        float64
	CalmarRatio         float64
	MaxDrawdownDuration int // periods spent below a prior equity peak
	DaysHeld            int
	RiskFreeRate        float64
	Trades              int
	Exposure            float64 // share of periods with an open position
}

// Result is the outcome of one pipeline run
type Result struct {
	RunID     string
	SymbolA   string
	SymbolB   string
	StartDate time.Time
	EndDate   time.Time
	Params    RunParams

	Coint       *coint.Report
	Spread      *spread.Series
	Positions   []signal.Position
	Path        *ReturnPath
	Portfolio   *Portfolio
	Performance *PerformanceReport
	Trades      []Trade
	Frame       *stats.Frame

	Duration time.Duration
}

// RunParams is the parameter set a run was executed with
type RunParams struct {
	Spread      spread.Config
	Signal      signal.Params
	ReturnBasis ReturnBasis
}
