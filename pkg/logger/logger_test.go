package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 4, 2, 9, 15, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "Series do not look cointegrated",
		Data:    logrus.Fields{"component": "Backtest", "p_value": 0.31, "method": "adf"},
	}
	out, err := NewPlainFormatter().Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "WARN  2024-04-02 09:15:00 [Backtest] Series do not look cointegrated method=adf p_value=0.31\n", string(out))
}

func TestNewWithOutput_Levels(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "warn", "text")
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	t.Setenv(LevelEnv, "debug")
	log, err = NewWithOutput(&buf, "warn", "text")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNewWithOutput_JSON(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "info", "json")
	require.NoError(t, err)

	log.WithField("component", "Optimizer").Info("Grid search completed")
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Optimizer", doc["component"])
	assert.Equal(t, "Grid search completed", doc["msg"])
}

func TestNewWithOutput_Invalid(t *testing.T) {
	t.Setenv(LevelEnv, "")
	_, err := NewWithOutput(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = NewWithOutput(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
