package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
)

// OptimizationGoal defines the optimization objective
type OptimizationGoal string

const (
	GoalSharpeRatio OptimizationGoal = "sharpe"
	GoalReturn      OptimizationGoal = "return"
	GoalCalmarRatio OptimizationGoal = "calmar"
)

// ParseGoal maps a configuration name to a goal
func ParseGoal(name string) (OptimizationGoal, error) {
	switch OptimizationGoal(name) {
	case GoalSharpeRatio, GoalReturn, GoalCalmarRatio:
		return OptimizationGoal(name), nil
	case "":
		return GoalSharpeRatio, nil
	default:
		return "", errs.Configf("unknown optimization goal %q (must be sharpe, return, or calmar)", name)
	}
}

// OptimizationResult stores the result of a single parameter combination
type OptimizationResult struct {
	Parameters Parameters         `yaml:"parameters"`
	Metrics    *PerformanceReport `yaml:"-"`
	Score      float64            `yaml:"score"`
	Rank       int                `yaml:"rank"`
}

// Parameters is one grid point
type Parameters struct {
	Window int     `yaml:"window"`
	ZEntry float64 `yaml:"z_entry"`
	ZExit  float64 `yaml:"z_exit"`
}

func (p Parameters) String() string {
	return fmt.Sprintf("window=%d z_entry=%.2f z_exit=%.2f", p.Window, p.ZEntry, p.ZExit)
}

// ParameterOptimizer performs parameter optimization using grid search.
// Runs share only the read-only aligned series.
type ParameterOptimizer struct {
	config     *Config
	runner     *Runner
	goal       OptimizationGoal
	maxWorkers int
	log        *logrus.Entry
}

// NewOptimizer creates a grid search over the optimization section of config
func NewOptimizer(config *Config, logger *logrus.Logger) *ParameterOptimizer {
	runner := NewRunner(config, logger)
	opt := &ParameterOptimizer{
		config: config,
		runner: runner,
		goal:   OptimizationGoal(config.Optimization.Goal),
		log:    runner.log.WithField("component", "Optimizer"),
	}
	opt.SetMaxWorkers(config.Optimization.Workers)
	return opt
}

// SetOptimizationGoal sets the optimization objective; GridSearch rejects unknown goals
func (opt *ParameterOptimizer) SetOptimizationGoal(goal OptimizationGoal) {
	opt.goal = goal
}

// SetMaxWorkers sets the maximum number of parallel workers
func (opt *ParameterOptimizer) SetMaxWorkers(workers int) {
	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}
	opt.maxWorkers = workers
}

// Combinations lists the valid grid points; pairs with z_exit >= z_entry are skipped
func (opt *ParameterOptimizer) Combinations() []Parameters {
	o := opt.config.Optimization
	combos := make([]Parameters, 0, len(o.Windows)*len(o.ZEntries)*len(o.ZExits))
	for _, w := range o.Windows {
		for _, entry := range o.ZEntries {
			for _, exit := range o.ZExits {
				if w < 2 || entry <= 0 || exit < 0 || exit >= entry {
					continue
				}
				combos = append(combos, Parameters{Window: w, ZEntry: entry, ZExit: exit})
			}
		}
	}
	return combos
}

// GridSearch runs every combination and returns results ranked by score.
// Combinations that fail, for example because the window is longer than the
// data, are logged and left out.
func (opt *ParameterOptimizer) GridSearch(ctx context.Context, aligned *market.AlignedSeries) ([]*OptimizationResult, error) {
	goal, err := ParseGoal(string(opt.goal))
	if err != nil {
		return nil, err
	}
	opt.goal = goal

	base, err := opt.config.RunParams()
	if err != nil {
		return nil, err
	}

	combinations := opt.Combinations()
	total := len(combinations)
	opt.log.Infof("Starting grid search: goal=%s workers=%d combinations=%d", opt.goal, opt.maxWorkers, total)
	if total == 0 {
		return nil, errs.Configf("no valid parameter combinations to test")
	}

	results := make([]*OptimizationResult, 0, total)
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, opt.maxWorkers)
	startTime := time.Now()

	for i, combo := range combinations {
		wg.Add(1)
		go func(idx int, p Parameters) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			params := base
			params.Spread.Window = p.Window
			params.Signal.ZEntry = p.ZEntry
			params.Signal.ZExit = p.ZExit

			res, err := opt.runner.run(ctx, aligned, params, runOptions{skipCoint: true, quiet: true})
			if err != nil {
				opt.log.Warnf("Combination %d/%d (%s) failed: %v", idx+1, total, p, err)
				return
			}

			result := &OptimizationResult{
				Parameters: p,
				Metrics:    res.Performance,
				Score:      opt.score(res.Performance),
			}

			mu.Lock()
			results = append(results, result)
			done := len(results)
			mu.Unlock()
			opt.log.Debugf("Progress: %d/%d - %s score=%.4f", done, total, p, result.Score)
		}(i, combo)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opt.log.Infof("Grid search completed in %v: %d/%d successful", time.Since(startTime), len(results), total)

	rankResults(results)

	for i := 0; i < 5 && i < len(results); i++ {
		r := results[i]
		opt.log.Infof("  #%d: score=%.4f sharpe=%.2f cum=%.2f%% %s",
			r.Rank, r.Score, r.Metrics.SharpeRatio, r.Metrics.CumulativeReturn*100, r.Parameters)
	}
	return results, nil
}

// rankResults sorts by descending score; undefined scores rank last and ties
// fall back to grid order
func rankResults(results []*OptimizationResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Score, results[j].Score
		aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
		if aNaN != bNaN {
			return bNaN
		}
		if !aNaN && a != b {
			return a > b
		}
		pi, pj := results[i].Parameters, results[j].Parameters
		if pi.Window != pj.Window {
			return pi.Window < pj.Window
		}
		if pi.ZEntry != pj.ZEntry {
			return pi.ZEntry < pj.ZEntry
		}
		return pi.ZExit < pj.ZExit
	})
	for i, r := range results {
		r.Rank = i + 1
	}
}

// score calculates the optimization score
func (opt *ParameterOptimizer) score(m *PerformanceReport) float64 {
	switch opt.goal {
	case GoalReturn:
		return m.CumulativeReturn
	case GoalCalmarRatio:
		return m.CalmarRatio
	default:
		return m.SharpeRatio
	}
}

// GetBestResult returns the best optimization result
func GetBestResult(results []*OptimizationResult) *OptimizationResult {
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// GetTopNResults returns the top N results
func GetTopNResults(results []*OptimizationResult, n int) []*OptimizationResult {
	if n < 0 {
		n = 0
	}
	if n > len(results) {
		n = len(results)
	}
	return results[:n]
}
