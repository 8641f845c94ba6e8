// Package coint tests whether a spread is stationary or a price pair is cointegrated
package coint

import (
	"errors"
	"fmt"
	"math"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// MinObservations is the smallest number of valid points a unit-root test accepts
const MinObservations = 20

// ADFOptions controls lag selection for the augmented Dickey-Fuller regression
type ADFOptions struct {
	// MaxLag is the largest number of lagged differences; < 0 picks
	// 12*(nobs/100)^(1/4).
	MaxLag int
	// FixedLag disables AIC selection and uses MaxLag directly
	FixedLag bool
}

// DefaultADFOptions uses the Schwert maximum lag with AIC selection
func DefaultADFOptions() ADFOptions {
	return ADFOptions{MaxLag: -1}
}

// ADFResult is the outcome of an augmented Dickey-Fuller test
type ADFResult struct {
	Statistic      float64
	PValue         float64
	UsedLag        int
	NObs           int // observations in the final regression
	CriticalValues CriticalValues
}

// ADF runs the augmented Dickey-Fuller test with a constant on x.
// Undefined values are dropped first.
func ADF(x []float64, opts ADFOptions) (*ADFResult, error) {
	stat, lag, nobs, err := adfStatistic(stats.DropNaN(x), opts, true)
	if err != nil {
		return nil, err
	}
	return &ADFResult{
		Statistic:      stat,
		PValue:         mackinnonP(stat, 1),
		UsedLag:        lag,
		NObs:           nobs,
		CriticalValues: mackinnonCrit(1, nobs),
	}, nil
}

// adfStatistic returns the t-statistic of the lagged level coefficient in
// Δx_t = [α] + γ x_{t-1} + Σ β_i Δx_{t-i} + ε_t
func adfStatistic(x []float64, opts ADFOptions, constant bool) (float64, int, int, error) {
	n := len(x)
	if n < MinObservations {
		return 0, 0, 0, errs.Stage("Coint",
			fmt.Sprintf("%d valid observations, need at least %d", n, MinObservations),
			errs.ErrInsufficientData)
	}

	ntrend := 0
	if constant {
		ntrend = 1
	}

	maxLag := opts.MaxLag
	if maxLag < 0 {
		maxLag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if limit := n/2 - ntrend - 1; maxLag > limit {
		maxLag = limit
	}
	if maxLag < 0 {
		return 0, 0, 0, errs.Stage("Coint", "sample too short for any lag", errs.ErrInsufficientData)
	}

	lag := maxLag
	if !opts.FixedLag {
		best := math.Inf(1)
		for l := 0; l <= maxLag; l++ {
			res, err := adfRegression(x, l, maxLag, constant)
			if err != nil {
				return 0, 0, 0, err
			}
			if aic := res.AIC(); aic < best {
				best = aic
				lag = l
			}
		}
	}

	res, err := adfRegression(x, lag, lag, constant)
	if err != nil {
		return 0, 0, 0, err
	}
	return res.TStat(ntrend), lag, res.NObs, nil
}

// adfRegression fits the ADF regression with lag lagged differences, using
// difference rows from start onwards so that models with different lags can
// share a sample.
func adfRegression(x []float64, lag, start int, constant bool) (*stats.OLSResult, error) {
	rows := len(x) - 1 - start
	y := make([]float64, rows)
	design := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		t := start + r
		y[r] = x[t+1] - x[t]

		row := make([]float64, 0, lag+2)
		if constant {
			row = append(row, 1)
		}
		row = append(row, x[t])
		for j := 1; j <= lag; j++ {
			row = append(row, x[t-j+1]-x[t-j])
		}
		design[r] = row
	}

	res, err := stats.OLS(y, design)
	if errors.Is(err, stats.ErrSingularDesign) {
		return nil, errs.Stage("Coint", "series has no variation", errs.ErrDivideByZero)
	}
	return res, err
}
