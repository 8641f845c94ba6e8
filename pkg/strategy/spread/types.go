// Package spread computes the spread between two aligned instruments and its
// rolling z-score
package spread

import (
	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
)

// SpreadType 定义 spread 计算类型
type SpreadType string

const (
	// ReturnDifferential 收益率差 spread: return_a - return_b
	// 构造上近似平稳，t=0 未定义
	ReturnDifferential SpreadType = "return_differential"

	// PriceDifferential 价差 spread: price_a - hedgeRatio * price_b
	// 平稳性需要协整检验支持
	PriceDifferential SpreadType = "price_differential"
)

// ParseSpreadType 解析配置中的 spread 类型名
func ParseSpreadType(name string) (SpreadType, error) {
	switch SpreadType(name) {
	case ReturnDifferential, PriceDifferential:
		return SpreadType(name), nil
	case "":
		return ReturnDifferential, nil
	default:
		return "", errs.Configf("unknown spread type %q (must be return_differential or price_differential)", name)
	}
}

// HedgeMethod 对冲比率的确定方式
type HedgeMethod string

const (
	// HedgeFixed 使用配置给定的比率
	HedgeFixed HedgeMethod = "fixed"
	// HedgeOLS 使用 price_a 对 price_b 的全样本回归系数
	HedgeOLS HedgeMethod = "ols"
)

// ParseHedgeMethod 解析对冲比率方式
func ParseHedgeMethod(name string) (HedgeMethod, error) {
	switch HedgeMethod(name) {
	case HedgeFixed, HedgeOLS:
		return HedgeMethod(name), nil
	case "":
		return HedgeFixed, nil
	default:
		return "", errs.Configf("unknown hedge ratio method %q (must be fixed or ols)", name)
	}
}

// DefaultWindow 默认滚动窗口（交易日）
const DefaultWindow = 30

// Frame 列名
const (
	ColSpread = "spread"
	ColMean   = "spread_mean"
	ColStd    = "spread_std"
	ColZScore = "z_score"
)

// Config spread 计算参数
type Config struct {
	Type        SpreadType
	HedgeRatio  float64 // 仅 PriceDifferential + HedgeFixed 使用
	HedgeMethod HedgeMethod
	Window      int
}

// DefaultConfig 收益率差 spread，30 日窗口
func DefaultConfig() Config {
	return Config{
		Type:        ReturnDifferential,
		HedgeRatio:  1.0,
		HedgeMethod: HedgeFixed,
		Window:      DefaultWindow,
	}
}

// Validate 检查参数
func (c Config) Validate() error {
	if _, err := ParseSpreadType(string(c.Type)); err != nil {
		return err
	}
	if _, err := ParseHedgeMethod(string(c.HedgeMethod)); err != nil {
		return err
	}
	if c.Window < 2 {
		return errs.Configf("window must be >= 2, got %d", c.Window)
	}
	return nil
}

// SpreadStats spread 在最后一个交易日的统计快照
type SpreadStats struct {
	CurrentSpread float64 // 当前 spread 值
	Mean          float64 // Spread 均值
	Std           float64 // Spread 标准差
	ZScore        float64 // Z-Score
	Correlation   float64 // 价格相关系数
	HedgeRatio    float64 // 对冲比率（Beta）
}

// Series 与 AlignedSeries 一一对应的 spread 序列
// Mean/Std 前 Window-1 项未定义；ZScore 在 Std 未定义或为零处为 NaN
type Series struct {
	Type        SpreadType
	HedgeRatio  float64
	Window      int
	Correlation float64

	Spread []float64
	Mean   []float64
	Std    []float64
	ZScore []float64
}
