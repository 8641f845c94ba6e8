package backtest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pairs-arb-backtest/pkg/coint"
	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/signal"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/spread"
)

// Runner executes the pipeline
// Aligner -> {Validator, Spread} -> Signal -> Returns -> Analyzer
// over an already aligned pair.
type Runner struct {
	config *Config
	log    *logrus.Entry
}

// NewRunner creates a runner; a nil logger discards output
func NewRunner(config *Config, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Runner{
		config: config,
		log:    logger.WithField("component", "Backtest"),
	}
}

type runOptions struct {
	skipCoint bool
	quiet     bool
}

// Run runs the complete backtest with the configured parameters
func (r *Runner) Run(ctx context.Context, aligned *market.AlignedSeries) (*Result, error) {
	params, err := r.config.RunParams()
	if err != nil {
		return nil, errs.Stage("Backtest", "invalid strategy parameters", err)
	}
	return r.run(ctx, aligned, params, runOptions{})
}

// RunWithParams runs the pipeline with an explicit parameter set
func (r *Runner) RunWithParams(ctx context.Context, aligned *market.AlignedSeries, params RunParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, errs.Stage("Backtest", "invalid strategy parameters", err)
	}
	return r.run(ctx, aligned, params, runOptions{})
}

func (r *Runner) run(ctx context.Context, aligned *market.AlignedSeries, params RunParams, opts runOptions) (*Result, error) {
	start := time.Now()
	logf := r.log.Infof
	if opts.quiet {
		logf = r.log.Debugf
	}

	if aligned == nil || aligned.Len() == 0 {
		return nil, errs.Stage("Aligner", "no aligned rows", errs.ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     uuid.New().String(),
		SymbolA:   aligned.SymbolA,
		SymbolB:   aligned.SymbolB,
		StartDate: aligned.Points[0].Date,
		EndDate:   aligned.Points[aligned.Len()-1].Date,
		Params:    params,
	}
	logf("[1/5] Computing %s spread (window=%d) over %d rows %s..%s",
		params.Spread.Type, params.Spread.Window, aligned.Len(),
		result.StartDate.Format(DateLayout), result.EndDate.Format(DateLayout))

	spreadSeries, err := spread.Compute(aligned, params.Spread)
	if err != nil {
		return nil, err
	}
	result.Spread = spreadSeries

	if !opts.skipCoint {
		method := r.config.CointMethod()
		logf("[2/5] Testing cointegration (%s)", method)
		report, err := coint.Validate(aligned, spreadSeries.Spread, method)
		if err != nil {
			return nil, err
		}
		result.Coint = report
		entry := r.log.WithFields(logrus.Fields{
			"statistic": report.Statistic,
			"p_value":   report.PValue,
			"verdict":   report.Verdict,
		})
		if report.Verdict == coint.Cointegrated {
			entry.Info("Cointegration test passed")
		} else {
			entry.Warn("Series do not look cointegrated, continuing with backtest")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logf("[3/5] Generating positions (z_entry=%.2f z_exit=%.2f policy=%s missing=%s)",
		params.Signal.ZEntry, params.Signal.ZExit, params.Signal.Policy, params.Signal.Missing)
	positions, err := signal.Generate(spreadSeries.ZScore, params.Signal)
	if err != nil {
		return nil, err
	}
	result.Positions = positions
	result.Trades = Trades(aligned.Dates(), positions, spreadSeries.ZScore, aligned.PricesA(), aligned.PricesB())

	logf("[4/5] Accumulating returns (basis=%s)", params.ReturnBasis)
	path, err := Accumulate(positions, spreadSeries, aligned, params.ReturnBasis)
	if err != nil {
		return nil, err
	}
	result.Path = path
	if path.RuinIndex >= 0 {
		r.log.WithField("date", path.Dates[path.RuinIndex].Format(DateLayout)).
			Warn("Strategy equity reached zero")
	}

	if r.config.Simulation.Enabled {
		pf, err := Simulate(positions, aligned, r.config.SimulationParams())
		if err != nil {
			return nil, err
		}
		result.Portfolio = pf
	}

	logf("[5/5] Analyzing performance")
	perf, err := Analyze(path, r.config.AnalysisParams())
	if err != nil {
		return nil, err
	}
	result.Performance = perf

	frame, err := buildFrame(aligned, spreadSeries, path, result.Portfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to build frame: %w", err)
	}
	result.Frame = frame
	result.Duration = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"run_id":       result.RunID,
		"cum_return":   perf.CumulativeReturn,
		"sharpe":       perf.SharpeRatio,
		"max_drawdown": perf.MaxDrawdown,
		"trades":       perf.Trades,
	}).Debug("Backtest completed")

	return result, nil
}

type column struct {
	name   string
	values []float64
}

// buildFrame collects every derived series on the aligned date index
func buildFrame(aligned *market.AlignedSeries, s *spread.Series, path *ReturnPath, pf *Portfolio) (*stats.Frame, error) {
	frame, err := s.AddTo(aligned.Frame())
	if err != nil {
		return nil, err
	}

	cols := []column{
		{signal.ColPosition, signal.Floats(path.Positions)},
		{ColSpreadReturn, path.SpreadReturn},
		{ColStrategyReturn, path.StrategyReturn},
		{ColCumulativeReturn, path.CumulativeReturn},
	}
	if pf != nil {
		cols = append(cols,
			column{ColCash, pf.Cash},
			column{ColHoldingsA, pf.HoldingsA},
			column{ColHoldingsB, pf.HoldingsB},
			column{ColPortfolioValue, pf.Value},
		)
	}
	for _, c := range cols {
		if frame, err = frame.With(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// Replay recomputes positions, returns and performance from a persisted
// frame. It needs the z_score and spread_return columns.
func Replay(frame *stats.Frame, sig signal.Params, analysis AnalysisParams) (*ReturnPath, *PerformanceReport, error) {
	z, ok := frame.Get(spread.ColZScore)
	if !ok {
		return nil, nil, errs.Stage("Replay", "frame has no z_score column", errs.ErrConfiguration)
	}
	spreadReturns, ok := frame.Get(ColSpreadReturn)
	if !ok {
		return nil, nil, errs.Stage("Replay", "frame has no spread_return column", errs.ErrConfiguration)
	}

	positions, err := signal.Generate(z, sig)
	if err != nil {
		return nil, nil, err
	}
	if stored, ok := frame.Get(signal.ColPosition); ok {
		persisted, err := signal.FromFloats(stored)
		if err != nil {
			return nil, nil, errs.Stage("Replay", "invalid position column", err)
		}
		for i := range persisted {
			if persisted[i] != positions[i] {
				return nil, nil, errs.Stage("Replay",
					fmt.Sprintf("persisted position %s differs from regenerated %s at row %d", persisted[i], positions[i], i),
					errs.ErrConfiguration)
			}
		}
	}

	path, err := Compound(frame.Dates(), positions, spreadReturns)
	if err != nil {
		return nil, nil, err
	}
	perf, err := Analyze(path, analysis)
	if err != nil {
		return nil, nil, err
	}
	return path, perf, nil
}
