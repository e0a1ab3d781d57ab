package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Ethereum.RpcURL = "https://eth.example.com"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "verbose"
	cfg.Trading.MinProfitPct = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "bogus"`)
	assert.Contains(t, msg, `unknown log_level "verbose"`)
	assert.Contains(t, msg, "min_profit_pct")
	assert.Contains(t, msg, "redis: addr")
}

func TestValidateRequiresKeysForLiveTrading(t *testing.T) {
	cfg := Defaults()
	cfg.Ethereum.RpcURL = "https://eth.example.com"
	cfg.Mode = "trade"
	cfg.Trading.DryRun = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solana: either private_key or encrypted_key_path")
	assert.Contains(t, err.Error(), "binance: api_key and api_secret")

	// Dry-run relaxes the key requirements.
	cfg.Trading.DryRun = true
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "trade"
log_level = "debug"

[trading]
min_profit_pct = 2.5
trade_size_usd = 500.0
max_trade_size_usd = 2000.0

[monitoring]
interval = "10s"
stale_threshold = "45s"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trade", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2.5, cfg.Trading.MinProfitPct)
	assert.Equal(t, 500.0, cfg.Trading.TradeSizeUSD)
	assert.Equal(t, 10*time.Second, cfg.Monitoring.Interval.Duration)
	assert.Equal(t, 45*time.Second, cfg.Monitoring.StaleThreshold.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "monitor"`), 0o644))

	t.Setenv("CHAINARB_MODE", "full")
	t.Setenv("CHAINARB_TRADING_TRADE_SIZE_USD", "250")
	t.Setenv("CHAINARB_MONITORING_INTERVAL", "2s")
	t.Setenv("CHAINARB_TRADING_DRY_RUN", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 250.0, cfg.Trading.TradeSizeUSD)
	assert.Equal(t, 2*time.Second, cfg.Monitoring.Interval.Duration)
	assert.False(t, cfg.Trading.DryRun)
}
