package publish

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
)

type fakeConn struct {
	subject   string
	data      []byte
	flushed   bool
	closed    bool
	publishFn func() error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.publishFn != nil {
		if err := c.publishFn(); err != nil {
			return err
		}
	}
	c.subject, c.data = subject, data
	return nil
}

func (c *fakeConn) Flush() error { c.flushed = true; return nil }
func (c *fakeConn) Close()       { c.closed = true }

func runResult(t *testing.T) *backtest.Result {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	points := make([]market.PricePoint, 150)
	silver := 23.0
	for i := range points {
		silver += 0.15 * rng.NormFloat64()
		points[i] = market.PricePoint{
			Date:   start.AddDate(0, 0, i),
			PriceA: 80*silver + 5*rng.NormFloat64(),
			PriceB: silver,
		}
	}
	aligned, err := market.FromPoints("GC=F", "SI=F", points)
	require.NoError(t, err)

	config := backtest.DefaultConfig()
	config.Analysis.AllowZeroRiskFree = true
	result, err := backtest.NewRunner(config, nil).Run(context.Background(), aligned)
	require.NoError(t, err)
	return result
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "pairs.backtest.result.GCF_SIF", Subject("pairs.backtest.result", "GC=F", "SI=F"))
	assert.Equal(t, "r.XAUUSD_XAGUSD", Subject("r", "XAU/USD", "XAG.USD"))
}

func TestPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	result := runResult(t)

	p := New(conn, "pairs.backtest.result", nil)
	require.NoError(t, p.Publish(result))
	assert.Equal(t, "pairs.backtest.result.GCF_SIF", conn.subject)
	assert.True(t, conn.flushed)

	decoded, err := Decode(conn.data)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, decoded["run_id"])
	assert.Equal(t, "return_differential", decoded["spread"])
	assert.NotContains(t, decoded, "series")

	perf := decoded["performance"].(map[string]interface{})
	assert.Equal(t, float64(result.Performance.Trades), perf["trades"])

	p.Close()
	assert.True(t, conn.closed)
}

func TestPublisher_WithSeries(t *testing.T) {
	conn := &fakeConn{}
	result := runResult(t)

	require.NoError(t, New(conn, "r", nil).WithSeries(true).Publish(result))
	decoded, err := Decode(conn.data)
	require.NoError(t, err)

	dates := decoded["dates"].([]interface{})
	assert.Len(t, dates, result.Frame.Len())
	assert.Equal(t, "2023-06-01", dates[0])

	series := decoded["series"].(map[string]interface{})
	z := series["z_score"].([]interface{})
	require.Len(t, z, result.Frame.Len())
	assert.Nil(t, z[0], "undefined z-score is null")
	assert.Equal(t, result.Spread.ZScore[len(z)-1], z[len(z)-1])
}

func TestPublisher_PublishError(t *testing.T) {
	boom := errors.New("no responders")
	conn := &fakeConn{publishFn: func() error { return boom }}
	err := New(conn, "r", nil).Publish(runResult(t))
	assert.ErrorIs(t, err, boom)
	assert.False(t, conn.flushed)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
