package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/signal"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/spread"
)

const returnsStage = "Returns"

// ReturnBasis selects how a price-differential spread is turned into a
// period return. A return-differential spread is already a return and is
// used as is.
type ReturnBasis string

const (
	// BasisPctChange uses (spread[t]-spread[t-1])/spread[t-1]
	BasisPctChange ReturnBasis = "pct_change"
	// BasisNotional uses (spread[t]-spread[t-1])/(price_a[t-1]+|h|·price_b[t-1]),
	// the P&L of one spread unit over the gross notional of both legs
	BasisNotional ReturnBasis = "notional"
)

// ParseReturnBasis maps a configuration name to a ReturnBasis
func ParseReturnBasis(name string) (ReturnBasis, error) {
	switch ReturnBasis(name) {
	case BasisPctChange, BasisNotional:
		return ReturnBasis(name), nil
	case "":
		return BasisPctChange, nil
	default:
		return "", errs.Configf("unknown return basis %q (must be pct_change or notional)", name)
	}
}

// SpreadReturns computes the per-period spread return. Index 0 is undefined.
func SpreadReturns(s *spread.Series, aligned *market.AlignedSeries, basis ReturnBasis) ([]float64, error) {
	if s.Len() != aligned.Len() {
		return nil, errs.Stage(returnsStage,
			fmt.Sprintf("spread has %d rows, aligned series %d", s.Len(), aligned.Len()),
			errs.ErrConfiguration)
	}

	if s.Type == spread.ReturnDifferential {
		out := make([]float64, s.Len())
		copy(out, s.Spread)
		if len(out) > 0 {
			out[0] = stats.NaN()
		}
		return out, nil
	}

	switch basis {
	case BasisNotional:
		pa, pb := aligned.PricesA(), aligned.PricesB()
		h := math.Abs(s.HedgeRatio)
		out := make([]float64, s.Len())
		for t := range out {
			out[t] = stats.NaN()
			if t == 0 {
				continue
			}
			notional := pa[t-1] + h*pb[t-1]
			if notional <= 0 {
				continue
			}
			out[t] = (s.Spread[t] - s.Spread[t-1]) / notional
		}
		return out, nil
	case BasisPctChange, "":
		return stats.PctChange(s.Spread), nil
	default:
		return nil, errs.Stage(returnsStage, "invalid return basis", errs.Configf("unknown return basis %q", basis))
	}
}

// Accumulate computes strategy returns and the compounding curve for the
// given positions over the spread.
func Accumulate(positions []signal.Position, s *spread.Series, aligned *market.AlignedSeries, basis ReturnBasis) (*ReturnPath, error) {
	spreadReturns, err := SpreadReturns(s, aligned, basis)
	if err != nil {
		return nil, err
	}
	return Compound(aligned.Dates(), positions, spreadReturns)
}

// Compound applies strategy_return[t] = position[t-1]·spread_return[t], with
// position[-1] = FLAT, and compounds the defined returns into cumret. An
// undefined return leaves equity unchanged. Equity is floored at zero: once
// the strategy is wiped out it stays at -100%.
func Compound(dates []time.Time, positions []signal.Position, spreadReturns []float64) (*ReturnPath, error) {
	n := len(spreadReturns)
	if len(positions) != n || len(dates) != n {
		return nil, errs.Stage(returnsStage,
			fmt.Sprintf("%d positions, %d spread returns, %d dates", len(positions), n, len(dates)),
			errs.ErrConfiguration)
	}
	if n == 0 {
		return nil, errs.Stage(returnsStage, "no periods", errs.ErrEmptyInput)
	}

	strat := make([]float64, n)
	prev := signal.Flat
	for t := 0; t < n; t++ {
		strat[t] = stats.NaN()
		if t > 0 && !stats.IsUndefined(spreadReturns[t]) {
			strat[t] = prev.Float() * spreadReturns[t]
		}
		prev = positions[t]
	}

	path := &ReturnPath{
		Dates:        append([]time.Time(nil), dates...),
		Positions:    append([]signal.Position(nil), positions...),
		SpreadReturn: append([]float64(nil), spreadReturns...),
	}
	path.StrategyReturn, path.CumulativeReturn, path.RuinIndex = compound(strat)
	return path, nil
}

// compound turns period returns into a cumulative curve, zeroing returns
// after ruin so the path stays consistent with the curve.
func compound(returns []float64) (rets, cum []float64, ruin int) {
	rets = append([]float64(nil), returns...)
	cum = make([]float64, len(rets))
	ruin = -1
	equity := 1.0
	for t, r := range rets {
		switch {
		case ruin >= 0:
			if !stats.IsUndefined(r) {
				rets[t] = 0
			}
		case stats.IsUndefined(r):
		case 1+r <= 0:
			equity = 0
			ruin = t
			rets[t] = -1
		default:
			equity *= 1 + r
		}
		cum[t] = equity - 1
	}
	return rets, cum, ruin
}

// SimulationParams configures the unit-based portfolio simulation
type SimulationParams struct {
	InitialCash float64
	UnitsA      float64
	UnitsB      float64
}

// Validate requires positive cash and non-negative unit sizes
func (p SimulationParams) Validate() error {
	if !(p.InitialCash > 0) {
		return errs.Configf("initial_cash must be > 0, got %v", p.InitialCash)
	}
	if p.UnitsA < 0 || p.UnitsB < 0 || (p.UnitsA == 0 && p.UnitsB == 0) {
		return errs.Configf("units_a and units_b must be >= 0 and not both zero, got %v/%v", p.UnitsA, p.UnitsB)
	}
	return nil
}

// Portfolio is the day-by-day state of the unit simulation
type Portfolio struct {
	Dates     []time.Time
	Cash      []float64
	HoldingsA []float64
	HoldingsB []float64
	Value     []float64
	Path      *ReturnPath
}

// Simulate trades fixed unit sizes at each day's close so that holdings
// match the target position: LONG holds +UnitsA of A and -UnitsB of B,
// SHORT the mirror, FLAT nothing. Cash may go negative; no margin or
// borrowing limits are modeled.
func Simulate(positions []signal.Position, aligned *market.AlignedSeries, p SimulationParams) (*Portfolio, error) {
	if err := p.Validate(); err != nil {
		return nil, errs.Stage(returnsStage, "invalid simulation parameters", err)
	}
	n := aligned.Len()
	if len(positions) != n {
		return nil, errs.Stage(returnsStage,
			fmt.Sprintf("%d positions for %d aligned rows", len(positions), n),
			errs.ErrConfiguration)
	}
	if n == 0 {
		return nil, errs.Stage(returnsStage, "no aligned rows", errs.ErrEmptyInput)
	}

	unitsA := decimal.NewFromFloat(p.UnitsA)
	unitsB := decimal.NewFromFloat(p.UnitsB)
	cash := decimal.NewFromFloat(p.InitialCash)
	holdA, holdB := decimal.Zero, decimal.Zero

	pf := &Portfolio{
		Dates:     aligned.Dates(),
		Cash:      make([]float64, n),
		HoldingsA: make([]float64, n),
		HoldingsB: make([]float64, n),
		Value:     make([]float64, n),
	}

	for t, pt := range aligned.Points {
		priceA := decimal.NewFromFloat(pt.PriceA)
		priceB := decimal.NewFromFloat(pt.PriceB)

		sign := decimal.NewFromInt(int64(positions[t]))
		targetA := unitsA.Mul(sign)
		targetB := unitsB.Mul(sign).Neg()

		// buying costs cash, selling adds it
		cash = cash.Sub(targetA.Sub(holdA).Mul(priceA))
		cash = cash.Sub(targetB.Sub(holdB).Mul(priceB))
		holdA, holdB = targetA, targetB

		value := cash.Add(holdA.Mul(priceA)).Add(holdB.Mul(priceB))
		pf.Cash[t] = cash.InexactFloat64()
		pf.HoldingsA[t] = holdA.InexactFloat64()
		pf.HoldingsB[t] = holdB.InexactFloat64()
		pf.Value[t] = value.InexactFloat64()
	}

	returns := make([]float64, n)
	for t := range returns {
		returns[t] = stats.NaN()
		if t > 0 && pf.Value[t-1] > 0 {
			returns[t] = pf.Value[t]/pf.Value[t-1] - 1
		}
	}

	strat, cum, ruin := compound(returns)
	pf.Path = &ReturnPath{
		Dates:            pf.Dates,
		Positions:        append([]signal.Position(nil), positions...),
		SpreadReturn:     make([]float64, n),
		StrategyReturn:   strat,
		CumulativeReturn: cum,
		RuinIndex:        ruin,
	}
	for t := range pf.Path.SpreadReturn {
		pf.Path.SpreadReturn[t] = stats.NaN()
	}
	return pf, nil
}
