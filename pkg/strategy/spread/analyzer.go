package spread

import (
	"fmt"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

const stageName = "Spread"

// Compute 计算 spread、滚动均值/标准差与 z-score
// 不修改 aligned，返回新的序列
func Compute(aligned *market.AlignedSeries, cfg Config) (*Series, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Stage(stageName, "invalid parameters", err)
	}
	if aligned == nil || aligned.Len() == 0 {
		return nil, errs.Stage(stageName, "no aligned rows", errs.ErrEmptyInput)
	}
	if aligned.Len() < cfg.Window {
		return nil, errs.Stage(stageName,
			fmt.Sprintf("%d rows for window %d", aligned.Len(), cfg.Window),
			errs.ErrInsufficientData)
	}

	priceA := aligned.PricesA()
	priceB := aligned.PricesB()

	result := &Series{
		Type:        cfg.Type,
		Window:      cfg.Window,
		HedgeRatio:  cfg.HedgeRatio,
		Correlation: stats.Correlation(priceA, priceB),
	}

	switch cfg.Type {
	case PriceDifferential:
		if cfg.HedgeMethod == HedgeOLS {
			ratio, err := EstimateHedgeRatio(aligned)
			if err != nil {
				return nil, err
			}
			result.HedgeRatio = ratio
		}
		result.Spread = make([]float64, len(priceA))
		for i := range priceA {
			result.Spread[i] = priceA[i] - result.HedgeRatio*priceB[i]
		}
	default:
		// 收益率差 spread 不使用对冲比率
		result.HedgeRatio = stats.NaN()
		result.Spread = make([]float64, len(aligned.ReturnA))
		for i := range aligned.ReturnA {
			result.Spread[i] = aligned.ReturnA[i] - aligned.ReturnB[i]
		}
	}

	result.Mean, result.Std = stats.RollingStats(result.Spread, cfg.Window)
	result.ZScore = make([]float64, len(result.Spread))
	for i := range result.Spread {
		result.ZScore[i] = stats.ZScore(result.Spread[i], result.Mean[i], result.Std[i])
	}
	return result, nil
}

// EstimateHedgeRatio 用全样本回归 price_a = α + β·price_b 估计 β
func EstimateHedgeRatio(aligned *market.AlignedSeries) (float64, error) {
	priceB := aligned.PricesB()
	if v := stats.SampleVariance(priceB); stats.IsUndefined(v) || v < 1e-12 {
		return 0, errs.Stage(stageName, "price_b has no variation, hedge ratio undefined", errs.ErrDivideByZero)
	}
	return stats.Beta(aligned.PricesA(), priceB), nil
}

// Len 返回序列长度
func (s *Series) Len() int {
	return len(s.Spread)
}

// Last 返回最后一个交易日的统计快照
func (s *Series) Last() SpreadStats {
	if s.Len() == 0 {
		return SpreadStats{}
	}
	i := s.Len() - 1
	return SpreadStats{
		CurrentSpread: s.Spread[i],
		Mean:          s.Mean[i],
		Std:           s.Std[i],
		ZScore:        s.ZScore[i],
		Correlation:   s.Correlation,
		HedgeRatio:    s.HedgeRatio,
	}
}

// AddTo 把 spread 各列加入 frame，返回新的 frame
func (s *Series) AddTo(f *stats.Frame) (*stats.Frame, error) {
	cols := []struct {
		name   string
		values []float64
	}{
		{ColSpread, s.Spread},
		{ColMean, s.Mean},
		{ColStd, s.Std},
		{ColZScore, s.ZScore},
	}
	var err error
	for _, c := range cols {
		if f, err = f.With(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return f, nil
}
