package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for key := range defaults {
		t.Setenv(envName(key), "")
	}
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
}

func envName(key string) string { return strings.ToUpper(key) }

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Assets)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 20, cfg.ShortMAWindow)
	assert.Equal(t, 50, cfg.LongMAWindow)
	assert.InDelta(t, 0.6, cfg.MinConfidence, 1e-12)

	eng := cfg.Engine()
	assert.Equal(t, 48*time.Hour, eng.Lookback)
	assert.Equal(t, 14, eng.Windows.RSI)
	assert.InDelta(t, 2.0, eng.Sentiment.AuthorityWeight, 1e-12)
	assert.InDelta(t, 0.4, eng.Weights.Sentiment, 1e-12)

	pos := cfg.Position()
	assert.InDelta(t, 0.05, pos.StopLossPct, 1e-12)
	assert.InDelta(t, 0.1, pos.TakeProfitPct, 1e-12)
	assert.Equal(t, 2*time.Second, cfg.AssetDelay())
	assert.Equal(t, 15*time.Minute, cfg.AnalysisTTL())
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("ASSETS", "btc, sol ,eth")
	t.Setenv("STOP_LOSS_PCT", "0.08")
	t.Setenv("AUTHORITY_ACCOUNTS", "VitalikButerin,saylor")
	t.Setenv("AGENT_AUTOSTART", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://example", cfg.DatabaseURL)
	assert.Equal(t, []string{"BTC", "SOL", "ETH"}, cfg.Assets)
	assert.InDelta(t, 0.08, cfg.StopLossPct, 1e-12)
	assert.Equal(t, []string{"VitalikButerin", "saylor"}, cfg.AuthorityAccounts)
	assert.False(t, cfg.AgentAutostart)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := "assets:\n  - ada\n  - dot\nrsi_window: 21\nlog_encoding: console\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RSI_WINDOW", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ADA", "DOT"}, cfg.Assets)
	assert.Equal(t, "console", cfg.LogEncoding)
	assert.Equal(t, 10, cfg.RSIWindow, "environment overrides the file")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsInconsistentWindows(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHORT_MA_WINDOW", "60")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cases := map[string]string{
		"MAX_ALLOCATION":     "1.5",
		"RSI_OVERSOLD":       "80",
		"SENTIMENT_NEGATIVE": "0.5",
		"MACD_FAST":          "30",
		"LOG_LEVEL":          "loud",
		"CANDLE_INTERVAL":    "2h",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
