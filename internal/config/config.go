// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PriceBand excludes a candidate whose price change is at or beyond either edge.
type PriceBand struct {
	Down float64 `mapstructure:"down"`
	Up   float64 `mapstructure:"up"`
}

// TelegramConfig holds bot credentials for the telegram channel.
type TelegramConfig struct {
	BotToken string   `mapstructure:"bot_token"`
	ChatIDs  []string `mapstructure:"chat_ids"`
	APIURL   string   `mapstructure:"api_url"`
}

// NSQConfig holds the nsqd producer settings.
type NSQConfig struct {
	Addr  string `mapstructure:"addr"`
	Topic string `mapstructure:"topic"`
}

// LogConfig mirrors logger.Config so it can be loaded from the same file.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Debug      bool   `mapstructure:"debug"`
}

// Config holds application settings loaded from config file and environment.
type Config struct {
	Chain            string `mapstructure:"chain"`
	RPCURL           string `mapstructure:"rpc_url"`
	GMGNAPIURL       string `mapstructure:"gmgn_api_url"`
	GMGNRateLimit    int    `mapstructure:"gmgn_rate_limit"`
	WalletPrivateKey string `mapstructure:"wallet_private_key"`
	SkimRecipient    string `mapstructure:"skim_recipient"`
	BaseAsset        string `mapstructure:"base_asset"`
	BaseDecimals     uint8  `mapstructure:"base_decimals"`

	// Buy side
	TradeAmount            float64   `mapstructure:"trade_amount"`
	SlippageBps            int       `mapstructure:"slippage_bps"`
	PriorityFee            float64   `mapstructure:"priority_fee"`
	SafetyMarginMultiplier float64   `mapstructure:"safety_margin_multiplier"`
	TimeWindow             string    `mapstructure:"time_window"`
	CandidateLimit         int       `mapstructure:"candidate_limit"`
	MaxMarketCap           float64   `mapstructure:"max_market_cap"`
	MinHolderCount         int       `mapstructure:"min_holder_count"`
	MinAge                 string    `mapstructure:"min_age"`
	PriceBand1m            PriceBand `mapstructure:"price_band_1m"`
	PriceBand5m            PriceBand `mapstructure:"price_band_5m"`
	PriceBand1h            PriceBand `mapstructure:"price_band_1h"`

	// Sell side
	ExitPolicy             string    `mapstructure:"exit_policy"`
	ProfitTakeThresholdPct float64   `mapstructure:"profit_take_threshold_pct"`
	StagedThresholdsPct    []float64 `mapstructure:"staged_thresholds_pct"`
	MinPositionUSD         float64   `mapstructure:"min_position_usd"`

	// Skim transfer
	SkimTransferPct  float64       `mapstructure:"skim_transfer_pct"`
	SkimMaxRetries   int           `mapstructure:"skim_max_retries"`
	SkimRetryDelay   time.Duration `mapstructure:"-"`
	SkimRetryDelayMS int           `mapstructure:"skim_retry_delay_ms"`
	SkimPriorityFee  float64       `mapstructure:"skim_priority_fee"`
	SkimComputeUnits uint32        `mapstructure:"skim_compute_units"`

	// Locks and retention
	CycleLockTTL          time.Duration `mapstructure:"-"`
	CycleLockTTLSeconds   int           `mapstructure:"cycle_lock_ttl_seconds"`
	AssetLeaseTTL         time.Duration `mapstructure:"-"`
	AssetLeaseTTLSeconds  int           `mapstructure:"asset_lease_ttl_seconds"`
	RetentionDays         int           `mapstructure:"retention_days"`
	PendingTimeout        time.Duration `mapstructure:"-"`
	PendingTimeoutSeconds int           `mapstructure:"pending_timeout_seconds"`

	// Scheduling
	BuyInterval         time.Duration `mapstructure:"-"`
	BuyIntervalMS       int           `mapstructure:"buy_interval_ms"`
	SellInterval        time.Duration `mapstructure:"-"`
	SellIntervalMS      int           `mapstructure:"sell_interval_ms"`
	ReconcileInterval   time.Duration `mapstructure:"-"`
	ReconcileIntervalMS int           `mapstructure:"reconcile_interval_ms"`
	CleanupInterval     time.Duration `mapstructure:"-"`
	CleanupIntervalMS   int           `mapstructure:"cleanup_interval_ms"`

	// Backends
	LockBackend   string         `mapstructure:"lock_backend"`
	StatusOracle  string         `mapstructure:"status_oracle"`
	RedisAddr     string         `mapstructure:"redis_addr"`
	RedisPassword string         `mapstructure:"redis_password"`
	RedisDB       int            `mapstructure:"redis_db"`
	PostgresURL   string         `mapstructure:"postgres_url"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
	NSQ           NSQConfig      `mapstructure:"nsq"`
	MetricsAddr   string         `mapstructure:"metrics_addr"`
	Log           LogConfig      `mapstructure:"log"`
}

const (
	// NativeMint is the wrapped SOL mint used as base currency by swap routers.
	NativeMint = "So11111111111111111111111111111111111111112"

	LockBackendRedis    = "redis"
	LockBackendPostgres = "postgres"
	LockBackendMemory   = "memory"

	OracleGMGN = "gmgn"
	OracleRPC  = "rpc"

	ExitPolicyFull   = "full"
	ExitPolicyStaged = "staged"

	envPrefix = "MEMETRADER"
)

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"chain":                     "sol",
		"rpc_url":                   "https://api.mainnet-beta.solana.com",
		"gmgn_api_url":              "https://gmgn.ai",
		"gmgn_rate_limit":           5,
		"base_asset":                NativeMint,
		"base_decimals":             9,
		"trade_amount":              0.01,
		"slippage_bps":              1000,
		"priority_fee":              0.00005,
		"safety_margin_multiplier":  1.5,
		"time_window":               "1m",
		"candidate_limit":           20,
		"max_market_cap":            500000,
		"min_holder_count":          300,
		"min_age":                   "48h",
		"price_band_1m.down":        -5,
		"price_band_1m.up":          20,
		"price_band_5m.down":        -10,
		"price_band_5m.up":          40,
		"price_band_1h.down":        -30,
		"price_band_1h.up":          80,
		"exit_policy":               ExitPolicyFull,
		"profit_take_threshold_pct": 30,
		"staged_thresholds_pct":     []float64{30, 50, 100, 120},
		"min_position_usd":          0,
		"skim_transfer_pct":         10,
		"skim_max_retries":          3,
		"skim_retry_delay_ms":       2000,
		"skim_priority_fee":         0,
		"skim_compute_units":        0,
		"cycle_lock_ttl_seconds":    20,
		"asset_lease_ttl_seconds":   24 * 60 * 60,
		"retention_days":            2,
		"pending_timeout_seconds":   0,
		"buy_interval_ms":           3000,
		"sell_interval_ms":          5000,
		"reconcile_interval_ms":     10000,
		"cleanup_interval_ms":       10 * 60 * 1000,
		"lock_backend":              LockBackendRedis,
		"status_oracle":             OracleGMGN,
		"redis_addr":                "localhost:6379",
		"redis_db":                  1,
		"telegram.api_url":          "https://api.telegram.org",
		"metrics_addr":              ":9090",
		"log.file":                  "memetrader.log",
		"log.max_size":              100,
		"log.max_age":               7,
		"log.max_backups":           3,
		"log.compress":              true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load reads configuration from path (json, yaml or toml by extension), overlays
// MEMETRADER_* environment variables and validates the result. An empty path
// loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	// AutomaticEnv only resolves keys viper already knows; secrets usually
	// have no file entry, so read them explicitly.
	if key := v.GetString("wallet_private_key"); key != "" {
		cfg.WalletPrivateKey = key
	}
	if ids := v.GetString("telegram.chat_ids"); ids != "" && len(cfg.Telegram.ChatIDs) == 0 {
		cfg.Telegram.ChatIDs = splitList(ids)
	}

	cfg.applyDurations()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDurations() {
	c.SkimRetryDelay = time.Duration(c.SkimRetryDelayMS) * time.Millisecond
	c.CycleLockTTL = time.Duration(c.CycleLockTTLSeconds) * time.Second
	c.AssetLeaseTTL = time.Duration(c.AssetLeaseTTLSeconds) * time.Second
	c.PendingTimeout = time.Duration(c.PendingTimeoutSeconds) * time.Second
	c.BuyInterval = time.Duration(c.BuyIntervalMS) * time.Millisecond
	c.SellInterval = time.Duration(c.SellIntervalMS) * time.Millisecond
	c.ReconcileInterval = time.Duration(c.ReconcileIntervalMS) * time.Millisecond
	c.CleanupInterval = time.Duration(c.CleanupIntervalMS) * time.Millisecond
}

func (c *Config) validate() error {
	if err := validateURL(c.RPCURL, "http"); err != nil {
		return fmt.Errorf("rpc_url: %w", err)
	}
	if err := validateURL(c.GMGNAPIURL, "http"); err != nil {
		return fmt.Errorf("gmgn_api_url: %w", err)
	}
	if err := c.validateNumeric(); err != nil {
		return err
	}

	switch c.LockBackend {
	case LockBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required for redis lock backend")
		}
	case LockBackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("postgres_url is required for postgres lock backend")
		}
	case LockBackendMemory:
	default:
		return fmt.Errorf("unknown lock_backend %q", c.LockBackend)
	}

	switch c.StatusOracle {
	case OracleGMGN, OracleRPC:
	default:
		return fmt.Errorf("unknown status_oracle %q", c.StatusOracle)
	}

	switch c.ExitPolicy {
	case ExitPolicyFull:
	case ExitPolicyStaged:
		if len(c.StagedThresholdsPct) == 0 {
			return errors.New("staged_thresholds_pct must not be empty for staged exit policy")
		}
	default:
		return fmt.Errorf("unknown exit_policy %q", c.ExitPolicy)
	}
	return nil
}

func (c *Config) validateNumeric() error {
	if c.TradeAmount <= 0 {
		return errors.New("invalid trade_amount")
	}
	if c.PriorityFee < 0 {
		return errors.New("invalid priority_fee")
	}
	if c.SlippageBps <= 0 || c.SlippageBps > 10000 {
		return errors.New("invalid slippage_bps")
	}
	if c.SafetyMarginMultiplier < 1 {
		return errors.New("safety_margin_multiplier must be >= 1")
	}
	if c.CandidateLimit <= 0 {
		return errors.New("invalid candidate_limit")
	}
	if c.SkimTransferPct < 0 || c.SkimTransferPct > 100 {
		return errors.New("skim_transfer_pct must be within [0, 100]")
	}
	if c.SkimMaxRetries <= 0 {
		return errors.New("invalid skim_max_retries")
	}
	if c.CycleLockTTLSeconds <= 0 {
		return errors.New("invalid cycle_lock_ttl_seconds")
	}
	if c.AssetLeaseTTLSeconds <= 0 {
		return errors.New("invalid asset_lease_ttl_seconds")
	}
	if c.RetentionDays <= 0 {
		return errors.New("invalid retention_days")
	}
	if c.PendingTimeoutSeconds < 0 {
		return errors.New("invalid pending_timeout_seconds")
	}
	for name, ms := range map[string]int{
		"buy_interval_ms":       c.BuyIntervalMS,
		"sell_interval_ms":      c.SellIntervalMS,
		"reconcile_interval_ms": c.ReconcileIntervalMS,
		"cleanup_interval_ms":   c.CleanupIntervalMS,
	} {
		if ms <= 0 {
			return fmt.Errorf("invalid %s", name)
		}
	}
	return nil
}

func validateURL(rawURL, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
