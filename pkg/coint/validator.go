package coint

import (
	"errors"
	"fmt"
	"math"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// SignificanceLevel is the p-value below which a pair is judged cointegrated
const SignificanceLevel = 0.05

// Method selects the statistical test
type Method string

const (
	// MethodADF tests the computed spread for a unit root
	MethodADF Method = "adf"
	// MethodEngleGranger regresses price_a on price_b and tests the residuals
	MethodEngleGranger Method = "engle_granger"
)

// ParseMethod maps a configuration name to a Method
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case MethodADF, MethodEngleGranger:
		return Method(name), nil
	case "":
		return MethodADF, nil
	default:
		return "", errs.Configf("unknown cointegration method %q (must be adf or engle_granger)", name)
	}
}

// Verdict is the advisory outcome of the test
type Verdict string

const (
	Cointegrated    Verdict = "COINTEGRATED"
	NotCointegrated Verdict = "NOT_COINTEGRATED"
)

// Report is the advisory result handed to the operator. It never blocks a backtest.
type Report struct {
	Method         Method         `json:"method"`
	Statistic      float64        `json:"statistic"`
	PValue         float64        `json:"p_value"`
	CriticalValues CriticalValues `json:"critical_values"`
	UsedLag        int            `json:"used_lag"`
	NObs           int            `json:"nobs"`
	HedgeRatio     float64        `json:"hedge_ratio"` // Engle-Granger only, NaN otherwise
	HalfLife       float64        `json:"half_life"`   // periods, +Inf when not mean reverting
	Verdict        Verdict        `json:"verdict"`
	Note           string         `json:"note,omitempty"`
}

// EngleGranger runs the two-step test: y = α + βx + u, then an ADF without
// constant on u. P-values and critical values use the two-variable tables.
func EngleGranger(y, x []float64, opts ADFOptions) (*Report, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("engle-granger: %d and %d observations", len(y), len(x))
	}

	yy := make([]float64, 0, len(y))
	design := make([][]float64, 0, len(x))
	for i := range y {
		if stats.IsUndefined(y[i]) || stats.IsUndefined(x[i]) {
			continue
		}
		yy = append(yy, y[i])
		design = append(design, []float64{1, x[i]})
	}
	if len(yy) < MinObservations {
		return nil, errs.Stage("Coint",
			fmt.Sprintf("%d valid observations, need at least %d", len(yy), MinObservations),
			errs.ErrInsufficientData)
	}

	reg, err := stats.OLS(yy, design)
	if err != nil {
		if errors.Is(err, stats.ErrSingularDesign) {
			return degenerate(MethodEngleGranger, len(yy), "price_b has no variation"), nil
		}
		return nil, err
	}

	report := &Report{
		Method:         MethodEngleGranger,
		HedgeRatio:     reg.Coef[1],
		HalfLife:       stats.HalfLife(reg.Resid),
		CriticalValues: mackinnonCrit(2, len(yy)-1),
		NObs:           len(yy),
	}

	if reg.SSR < 1e-20*float64(len(yy)) {
		// perfectly collinear prices: residual is identically zero
		report.Statistic = math.Inf(-1)
		report.PValue = 0
		report.Note = "prices are perfectly collinear; test is not reliable"
		report.Verdict = verdictFor(report.PValue)
		return report, nil
	}

	stat, lag, _, err := adfStatistic(reg.Resid, opts, false)
	if err != nil {
		return nil, err
	}
	report.Statistic = stat
	report.UsedLag = lag
	report.PValue = mackinnonP(stat, 2)
	report.Verdict = verdictFor(report.PValue)
	return report, nil
}

// Validate runs the selected test. ADF tests spread (leading undefined values
// are dropped); Engle-Granger tests the aligned prices directly.
func Validate(aligned *market.AlignedSeries, spread []float64, method Method) (*Report, error) {
	switch method {
	case MethodEngleGranger:
		return EngleGranger(aligned.PricesA(), aligned.PricesB(), DefaultADFOptions())
	case MethodADF, "":
		res, err := ADF(spread, DefaultADFOptions())
		if err != nil {
			if errors.Is(err, errs.ErrDivideByZero) {
				return degenerate(MethodADF, stats.CountValid(spread), "spread has no variation"), nil
			}
			return nil, err
		}
		return &Report{
			Method:         MethodADF,
			Statistic:      res.Statistic,
			PValue:         res.PValue,
			CriticalValues: res.CriticalValues,
			UsedLag:        res.UsedLag,
			NObs:           res.NObs,
			HedgeRatio:     math.NaN(),
			HalfLife:       stats.HalfLife(spread),
			Verdict:        verdictFor(res.PValue),
		}, nil
	default:
		return nil, errs.Configf("unknown cointegration method %q", method)
	}
}

func degenerate(method Method, nobs int, note string) *Report {
	return &Report{
		Method:     method,
		Statistic:  math.NaN(),
		PValue:     math.NaN(),
		NObs:       nobs,
		HedgeRatio: math.NaN(),
		HalfLife:   math.Inf(1),
		Verdict:    NotCointegrated,
		Note:       note,
	}
}

func verdictFor(p float64) Verdict {
	if p < SignificanceLevel {
		return Cointegrated
	}
	return NotCointegrated
}
