package backtest

import (
	"math"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/signal"
)

const analyzerStage = "Analyzer"

// DefaultAnnualization is the number of trading days per year
const DefaultAnnualization = 252

// AnalysisParams configures the performance analyzer
type AnalysisParams struct {
	Annualization int
	// RiskFreeRate is the annual rate as a decimal; nil means the provider
	// had no rate
	RiskFreeRate *float64
	// AllowZeroRiskFree substitutes 0 for a missing rate instead of failing
	AllowZeroRiskFree bool
}

// riskFree resolves the rate to use
func (p AnalysisParams) riskFree() (float64, error) {
	if p.RiskFreeRate != nil {
		if stats.IsUndefined(*p.RiskFreeRate) {
			return 0, errs.Configf("risk-free rate is not a number")
		}
		return *p.RiskFreeRate, nil
	}
	if p.AllowZeroRiskFree {
		return 0, nil
	}
	return 0, errs.Configf("risk-free rate is missing (set analysis.risk_free_rate, RISK_FREE_RATE, or allow_zero_risk_free)")
}

// Analyze computes the performance report of a return path
func Analyze(path *ReturnPath, p AnalysisParams) (*PerformanceReport, error) {
	if path == nil || path.Len() == 0 {
		return nil, errs.Stage(analyzerStage, "empty return path", errs.ErrEmptyInput)
	}
	annualization := p.Annualization
	if annualization == 0 {
		annualization = DefaultAnnualization
	}
	if annualization < 0 {
		return nil, errs.Stage(analyzerStage, "invalid annualization", errs.Configf("annualization must be > 0, got %d", annualization))
	}
	rf, err := p.riskFree()
	if err != nil {
		return nil, errs.Stage(analyzerStage, "risk-free rate", err)
	}

	returns := stats.DropNaN(path.StrategyReturn)
	daysHeld := len(returns)
	if daysHeld == 0 {
		return nil, errs.Stage(analyzerStage, "no defined strategy returns (days_held = 0)", errs.ErrDivideByZero)
	}

	af := float64(annualization)
	report := &PerformanceReport{
		CumulativeReturn: path.CumulativeReturn[path.Len()-1],
		DaysHeld:         daysHeld,
		RiskFreeRate:     rf,
	}

	// 几何年化
	report.AnnualizedReturn = math.Pow(1+report.CumulativeReturn, af/float64(daysHeld)) - 1
	report.AnnualizedVolatility = stats.SampleStdDev(returns) * math.Sqrt(af)
	report.SharpeRatio = ratio(report.AnnualizedReturn-rf, report.AnnualizedVolatility)

	report.SortinoRatio = ratio(report.AnnualizedReturn-rf, downsideDeviation(returns)*math.Sqrt(af))

	report.MaxDrawdown, report.MaxDrawdownDuration = maxDrawdown(path.Equity())
	if report.MaxDrawdown < 0 {
		report.CalmarRatio = report.AnnualizedReturn / -report.MaxDrawdown
	} else {
		report.CalmarRatio = math.NaN()
	}

	report.Trades = signal.Transitions(path.Positions)
	report.Exposure = exposure(path.Positions)
	return report, nil
}

// ratio is undefined when the denominator is undefined or zero
func ratio(num, den float64) float64 {
	if stats.IsUndefined(num) || stats.IsUndefined(den) || den < 1e-12 {
		return math.NaN()
	}
	return num / den
}

// downsideDeviation is sqrt(mean(min(r,0)^2)) over all returns
func downsideDeviation(returns []float64) float64 {
	var sum float64
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

// maxDrawdown returns the worst (equity - peak)/peak of the compounding
// equity curve and the longest run of periods spent below a prior peak.
// Equity starts at 1 and never goes negative, so the result is in [-1, 0].
func maxDrawdown(equity []float64) (float64, int) {
	peak := math.Inf(-1)
	worst := 0.0
	longest, current := 0, 0
	for _, e := range equity {
		if stats.IsUndefined(e) {
			continue
		}
		if e >= peak {
			peak = e
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
		if peak > 0 {
			if dd := (e - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst, longest
}

func exposure(positions []signal.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	open := 0
	for _, p := range positions {
		if p != signal.Flat {
			open++
		}
	}
	return float64(open) / float64(len(positions))
}
