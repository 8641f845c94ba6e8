// Package stats provides statistical functions and time series analysis tools
package stats

import (
	"math"
)

// epsilon 低于此值的标准差视为零
const epsilon = 1e-12

// NaN 表示未定义的值
func NaN() float64 {
	return math.NaN()
}

// IsUndefined 判断值是否未定义（NaN 或 Inf）
func IsUndefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// DropNaN 返回去掉未定义值后的副本
func DropNaN(data []float64) []float64 {
	result := make([]float64, 0, len(data))
	for _, v := range data {
		if !IsUndefined(v) {
			result = append(result, v)
		}
	}
	return result
}

// CountValid 统计已定义值的数量
func CountValid(data []float64) int {
	n := 0
	for _, v := range data {
		if !IsUndefined(v) {
			n++
		}
	}
	return n
}

// Mean 计算均值，忽略 NaN；没有有效值时返回 NaN
func Mean(data []float64) float64 {
	var sum float64
	n := 0
	for _, val := range data {
		if IsUndefined(val) {
			continue
		}
		sum += val
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SampleVariance 计算样本方差（分母 n-1），忽略 NaN
func SampleVariance(data []float64) float64 {
	mean := Mean(data)
	var variance float64
	n := 0
	for _, val := range data {
		if IsUndefined(val) {
			continue
		}
		diff := val - mean
		variance += diff * diff
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return variance / float64(n-1)
}

// SampleStdDev 计算样本标准差
func SampleStdDev(data []float64) float64 {
	return math.Sqrt(SampleVariance(data))
}

// RollingStats 计算滚动均值与样本标准差
// 窗口以 t 结尾（含 t），需要 window 个有效观测值，否则为 NaN
func RollingStats(data []float64, window int) (mean, std []float64) {
	n := len(data)
	mean = make([]float64, n)
	std = make([]float64, n)
	for i := range data {
		mean[i] = math.NaN()
		std[i] = math.NaN()
		if window <= 0 || i < window-1 {
			continue
		}

		recent := data[i-window+1 : i+1]
		if CountValid(recent) < window {
			continue
		}
		mean[i] = Mean(recent)
		if window >= 2 {
			std[i] = SampleStdDev(recent)
		}
	}
	return mean, std
}

// ZScore 计算 Z-Score
// z = (x - μ) / σ，σ 未定义或为零时返回 NaN
func ZScore(value, mean, std float64) float64 {
	if IsUndefined(value) || IsUndefined(mean) || IsUndefined(std) || std < epsilon {
		return math.NaN()
	}
	return (value - mean) / std
}

// PctChange 计算环比变化率，t=0 或前值为零时为 NaN
func PctChange(data []float64) []float64 {
	result := make([]float64, len(data))
	for i := range data {
		result[i] = math.NaN()
		if i == 0 || data[i-1] == 0 {
			continue
		}
		result[i] = data[i]/data[i-1] - 1
	}
	return result
}

// Diff 计算一阶差分，t=0 为 NaN
func Diff(data []float64) []float64 {
	result := make([]float64, len(data))
	for i := range data {
		result[i] = math.NaN()
		if i == 0 {
			continue
		}
		result[i] = data[i] - data[i-1]
	}
	return result
}

// Correlation 计算 Pearson 相关系数
// r = Σ[(xi - x̄)(yi - ȳ)] / sqrt[Σ(xi - x̄)² * Σ(yi - ȳ)²]
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return math.NaN()
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var numerator, varX, varY float64
	for i := range x {
		diffX := x[i] - meanX
		diffY := y[i] - meanY
		numerator += diffX * diffY
		varX += diffX * diffX
		varY += diffY * diffY
	}

	denominator := math.Sqrt(varX * varY)
	if denominator < epsilon {
		return math.NaN()
	}

	return numerator / denominator
}

// Beta 计算 Beta 系数（用于对冲比率）
// β = Cov(X,Y) / Var(Y)
// 其中 X 是依赖变量，Y 是自变量
func Beta(x, y []float64) float64 {
	slope, _ := LinearRegression(y, x)
	return slope
}

// LinearRegression 计算线性回归 y = slope * x + intercept
// 返回斜率和截距
func LinearRegression(x, y []float64) (slope, intercept float64) {
	if len(x) != len(y) || len(x) == 0 {
		return math.NaN(), math.NaN()
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var numerator, denominator float64
	for i := range x {
		diffX := x[i] - meanX
		numerator += diffX * (y[i] - meanY)
		denominator += diffX * diffX
	}

	if denominator < epsilon {
		return 0, meanY
	}

	slope = numerator / denominator
	intercept = meanY - slope*meanX

	return slope, intercept
}

// HalfLife 计算均值回归半衰期
// AR(1): Δy_t = λ * y_{t-1} + ε_t，φ = 1 + λ，半衰期 = -ln(2) / ln|φ|
// -1 < φ < 0 为振荡式回归，半衰期小于一个周期；φ = 0 时为 0
// 无均值回归（λ >= 0 或 |φ| >= 1）时返回 +Inf
func HalfLife(series []float64) float64 {
	data := DropNaN(series)
	n := len(data)
	if n < 3 {
		return math.Inf(1)
	}

	delta := make([]float64, n-1)
	lagged := make([]float64, n-1)
	for i := 1; i < n; i++ {
		delta[i-1] = data[i] - data[i-1]
		lagged[i-1] = data[i-1]
	}

	lambda, _ := LinearRegression(lagged, delta)
	if IsUndefined(lambda) || lambda >= 0 {
		return math.Inf(1)
	}
	phi := math.Abs(1 + lambda)
	if phi >= 1 {
		return math.Inf(1)
	}
	if phi < epsilon {
		return 0
	}

	halfLife := -math.Log(2) / math.Log(phi)
	if halfLife < 0 || IsUndefined(halfLife) {
		return math.Inf(1)
	}
	return halfLife
}
