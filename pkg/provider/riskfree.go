package provider

import (
	"os"
	"strconv"
	"strings"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
)

// RiskFreeRateEnv names the environment variable holding the annual rate
const RiskFreeRateEnv = "RISK_FREE_RATE"

// RiskFreeRate resolves the annual risk-free rate. A configured value wins;
// otherwise RISK_FREE_RATE is read as a decimal ("0.042") or a percentage
// ("4.2%"). Nil means no rate is available.
func RiskFreeRate(configured *float64) (*float64, error) {
	if configured != nil {
		return configured, nil
	}
	raw, ok := os.LookupEnv(RiskFreeRateEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return ParseRate(raw)
}

// ParseRate parses "0.042" or "4.2%"
func ParseRate(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errs.Configf("invalid risk-free rate %q", raw)
	}
	if percent {
		v /= 100
	}
	if v <= -1 || v >= 1 {
		return nil, errs.Configf("risk-free rate %q out of range, expected a decimal such as 0.042", raw)
	}
	return &v, nil
}
