package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sol", cfg.Chain)
	assert.Equal(t, NativeMint, cfg.BaseAsset)
	assert.Equal(t, 1.5, cfg.SafetyMarginMultiplier)
	assert.Equal(t, 20*time.Second, cfg.CycleLockTTL)
	assert.Equal(t, 24*time.Hour, cfg.AssetLeaseTTL)
	assert.Equal(t, 3*time.Second, cfg.BuyInterval)
	assert.Equal(t, 10*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 2*time.Second, cfg.SkimRetryDelay)
	assert.Equal(t, time.Duration(0), cfg.PendingTimeout)
	assert.Equal(t, PriceBand{Down: -5, Up: 20}, cfg.PriceBand1m)
	assert.Equal(t, PriceBand{Down: -30, Up: 80}, cfg.PriceBand1h)
	assert.Equal(t, []float64{30, 50, 100, 120}, cfg.StagedThresholdsPct)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
trade_amount: 0.5
lock_backend: memory
price_band_5m:
  down: -15
  up: 60
pending_timeout_seconds: 600
telegram:
  bot_token: abc
  chat_ids: ["1", "2"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.TradeAmount)
	assert.Equal(t, LockBackendMemory, cfg.LockBackend)
	assert.Equal(t, PriceBand{Down: -15, Up: 60}, cfg.PriceBand5m)
	assert.Equal(t, 10*time.Minute, cfg.PendingTimeout)
	assert.Equal(t, []string{"1", "2"}, cfg.Telegram.ChatIDs)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MEMETRADER_WALLET_PRIVATE_KEY", "secret")
	t.Setenv("MEMETRADER_SLIPPAGE_BPS", "250")
	t.Setenv("MEMETRADER_TELEGRAM_CHAT_IDS", "10, 20")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.WalletPrivateKey)
	assert.Equal(t, 250, cfg.SlippageBps)
	assert.Equal(t, []string{"10", "20"}, cfg.Telegram.ChatIDs)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad trade amount", "trade_amount: 0"},
		{"bad slippage", "slippage_bps: 20000"},
		{"safety margin below one", "safety_margin_multiplier: 0.5"},
		{"skim pct over 100", "skim_transfer_pct: 150"},
		{"unknown lock backend", "lock_backend: etcd"},
		{"postgres lock without url", "lock_backend: postgres"},
		{"unknown oracle", "status_oracle: magic"},
		{"unknown exit policy", "exit_policy: yolo"},
		{"bad rpc url", "rpc_url: ftp://node"},
		{"negative pending timeout", "pending_timeout_seconds: -1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
