package archive

import (
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// BacktestRun is one archived pipeline run
type BacktestRun struct {
	gorm.Model
	RunID        string `gorm:"uniqueIndex;size:36"`
	SymbolA      string `gorm:"size:32;index:idx_pair"`
	SymbolB      string `gorm:"size:32;index:idx_pair"`
	StartDate    time.Time
	EndDate      time.Time
	Spread       string `gorm:"size:32"`
	HedgeRatio   *float64
	ReturnBasis  string `gorm:"size:16"`
	Window       int
	ZEntry       float64
	ZExit        float64
	Policy       string `gorm:"size:16"`
	Missing      string `gorm:"size:16"`
	CointMethod  string `gorm:"size:16"`
	CointPValue  *float64
	CointVerdict string     `gorm:"size:32"`
	Metrics      RunMetrics `gorm:"foreignKey:BacktestRunID"`
	Trades       []RunTrade `gorm:"foreignKey:BacktestRunID"`
	DurationMs   int64
}

// RunMetrics holds the performance report. Undefined ratios are NULL.
type RunMetrics struct {
	gorm.Model
	BacktestRunID        uint `gorm:"uniqueIndex"`
	CumulativeReturn     *float64
	AnnualizedReturn     *float64
	AnnualizedVolatility *float64
	SharpeRatio          *float64
	SortinoRatio         *float64
	CalmarRatio          *float64
	MaxDrawdown          *float64
	MaxDrawdownDuration  int
	DaysHeld             int
	RiskFreeRate         float64
	Trades               int
	Exposure             float64
}

// RunTrade is one position change
type RunTrade struct {
	gorm.Model
	BacktestRunID uint `gorm:"index"`
	Date          time.Time
	FromPosition  int
	ToPosition    int
	ZScore        *float64
	PriceA        float64
	PriceB        float64
}

// OptimalParamsRecord is an exported grid-search winner
type OptimalParamsRecord struct {
	gorm.Model
	SymbolA          string `gorm:"size:32;index:idx_params_pair"`
	SymbolB          string `gorm:"size:32;index:idx_params_pair"`
	GeneratedAt      time.Time
	DataPeriod       string `gorm:"size:64"`
	OptimizationGoal string `gorm:"size:16"`
	Spread           string `gorm:"size:32"`
	Policy           string `gorm:"size:16"`
	Window           int
	ZEntry           float64
	ZExit            float64
	SharpeRatio      *float64
	CumulativeReturn *float64
	MaxDrawdown      *float64
}

func nullable(v float64) *float64 {
	if stats.IsUndefined(v) {
		return nil
	}
	return &v
}

// NewRunRecord maps a result onto archive rows
func NewRunRecord(r *backtest.Result) *BacktestRun {
	p := r.Params
	rec := &BacktestRun{
		RunID:       r.RunID,
		SymbolA:     r.SymbolA,
		SymbolB:     r.SymbolB,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Spread:      string(p.Spread.Type),
		ReturnBasis: string(p.ReturnBasis),
		Window:      p.Spread.Window,
		ZEntry:      p.Signal.ZEntry,
		ZExit:       p.Signal.ZExit,
		Policy:      string(p.Signal.Policy),
		Missing:     string(p.Signal.Missing),
		DurationMs:  r.Duration.Milliseconds(),
	}
	if r.Spread != nil {
		rec.HedgeRatio = nullable(r.Spread.HedgeRatio)
	}
	if c := r.Coint; c != nil {
		rec.CointMethod = string(c.Method)
		rec.CointPValue = nullable(c.PValue)
		rec.CointVerdict = string(c.Verdict)
	}
	if m := r.Performance; m != nil {
		rec.Metrics = RunMetrics{
			CumulativeReturn:     nullable(m.CumulativeReturn),
			AnnualizedReturn:     nullable(m.AnnualizedReturn),
			AnnualizedVolatility: nullable(m.AnnualizedVolatility),
			SharpeRatio:          nullable(m.SharpeRatio),
			SortinoRatio:         nullable(m.SortinoRatio),
			CalmarRatio:          nullable(m.CalmarRatio),
			MaxDrawdown:          nullable(m.MaxDrawdown),
			MaxDrawdownDuration:  m.MaxDrawdownDuration,
			DaysHeld:             m.DaysHeld,
			RiskFreeRate:         m.RiskFreeRate,
			Trades:               m.Trades,
			Exposure:             m.Exposure,
		}
	}
	for _, t := range r.Trades {
		rec.Trades = append(rec.Trades, RunTrade{
			Date:         t.Date,
			FromPosition: int(t.From),
			ToPosition:   int(t.To),
			ZScore:       nullable(t.ZScore),
			PriceA:       t.PriceA,
			PriceB:       t.PriceB,
		})
	}
	return rec
}

// NewOptimalParamsRecord maps exported parameters onto a row
func NewOptimalParamsRecord(p *backtest.OptimalParams) *OptimalParamsRecord {
	rec := &OptimalParamsRecord{
		GeneratedAt:      p.GeneratedAt,
		DataPeriod:       p.DataPeriod,
		OptimizationGoal: p.OptimizationGoal,
		Spread:           p.Strategy.Spread,
		Policy:           p.Strategy.Policy,
		Window:           p.Parameters.Window,
		ZEntry:           p.Parameters.ZEntry,
		ZExit:            p.Parameters.ZExit,
		SharpeRatio:      nullable(p.Performance.SharpeRatio),
		CumulativeReturn: nullable(p.Performance.CumulativeReturn),
		MaxDrawdown:      nullable(p.Performance.MaxDrawdown),
	}
	if len(p.Strategy.Symbols) == 2 {
		rec.SymbolA, rec.SymbolB = p.Strategy.Symbols[0], p.Strategy.Symbols[1]
	}
	return rec
}
