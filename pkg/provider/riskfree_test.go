package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
)

func TestRiskFreeRate(t *testing.T) {
	configured := 0.03
	t.Setenv(RiskFreeRateEnv, "0.05")

	rate, err := RiskFreeRate(&configured)
	require.NoError(t, err)
	assert.Equal(t, 0.03, *rate, "configured value wins")

	rate, err = RiskFreeRate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.05, *rate)

	t.Setenv(RiskFreeRateEnv, "")
	rate, err = RiskFreeRate(nil)
	require.NoError(t, err)
	assert.Nil(t, rate, "missing rate stays missing")
}

func TestParseRate(t *testing.T) {
	rate, err := ParseRate(" 4.2% ")
	require.NoError(t, err)
	assert.InDelta(t, 0.042, *rate, 1e-12)

	for _, bad := range []string{"abc", "4.2", "-150%"} {
		_, err := ParseRate(bad)
		assert.ErrorIs(t, err, errs.ErrConfiguration, bad)
	}
}
