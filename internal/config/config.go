// Package config defines all configuration for the options/futures
// trading runtime. Config is loaded from a YAML file (default:
// configs/config.yaml) with sensitive fields overridable via OPT_*
// environment variables. The YAML-config-struct shape is grounded on
// the teacher's cmd/trading-bots/main.go TradingBotsConfig (loaded via
// gopkg.in/yaml.v3); spf13/viper itself is an out-of-pack adoption for
// the env-var override layer the teacher's own internal/config/config.go
// does with plain os.Getenv (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun      bool              `mapstructure:"dry_run"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Hedging     HedgingConfig     `mapstructure:"hedging"`
	Scalp       ScalpConfig       `mapstructure:"scalp"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// GatewayConfig holds exchange connectivity: REST/WS endpoints, auth,
// and whether to run against the in-memory backtest gateway instead of
// the live one. Generalized from the teacher's ExchangeConfig
// (api_url/rate_limit/api_key/api_secret per exchange) to a single
// API-key REST+WS shape (the live client sends APIKey as an X-API-Key
// header), since this domain has no on-chain signing leg.
type GatewayConfig struct {
	Mode            string        `mapstructure:"mode"` // "live" or "backtest"
	BaseURL         string        `mapstructure:"base_url"`
	FeedURL         string        `mapstructure:"feed_url"`
	APIKey          string        `mapstructure:"api_key"`
	APISecret       string        `mapstructure:"api_secret"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	BacktestBalance float64       `mapstructure:"backtest_balance"`
}

// StrategyConfig tunes the indicator pipeline and signal cadence.
//
//   - EMAFast/EMASlow/MACDSignal: period lengths per spec.md's literal
//     12/26/9 values (overriding the Python reference's demo-tuned
//     5/20 defaults — see DESIGN.md Open Question #4).
//   - BarCapacity: rolling bar history retained per instrument.
//   - StaleInstrumentTimeout: ExecuteOpen rejects signals on an
//     instrument that hasn't updated within this window.
type StrategyConfig struct {
	EMAFast                int           `mapstructure:"ema_fast"`
	EMASlow                int           `mapstructure:"ema_slow"`
	MACDSignal             int           `mapstructure:"macd_signal"`
	BarCapacity            int           `mapstructure:"bar_capacity"`
	StaleInstrumentTimeout time.Duration `mapstructure:"stale_instrument_timeout"`
	Symbols                []string      `mapstructure:"symbols"`
}

// RiskConfig sets position sizing and portfolio Greeks limits that
// trigger the kill switch. Generalized from the teacher's
// BotRiskManager per-bot risk limits to per-contract volume limits
// plus portfolio Greeks thresholds, per spec.md §4.E.
type RiskConfig struct {
	MaxGlobalOpenVolume   int           `mapstructure:"max_global_open_volume"`
	MaxContractOpenVolume int           `mapstructure:"max_contract_open_volume"`
	MaxDeltaExposure      float64       `mapstructure:"max_delta_exposure"`
	MaxGammaExposure      float64       `mapstructure:"max_gamma_exposure"`
	MaxVegaExposure       float64       `mapstructure:"max_vega_exposure"`
	CooldownAfterKill     time.Duration `mapstructure:"cooldown_after_kill"`
}

// ExecutionConfig tunes the smart order executor and advanced order
// scheduler (iceberg/TWAP/VWAP splitting), per spec.md §4.D.
type ExecutionConfig struct {
	OrderTimeout     time.Duration `mapstructure:"order_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	TickSize         float64       `mapstructure:"tick_size"`
	AdaptivePriceBps int           `mapstructure:"adaptive_price_bps"`
}

// HedgingConfig tunes the delta-hedging and gamma-scalping engines.
type HedgingConfig struct {
	DeltaBand        float64       `mapstructure:"delta_band"`
	HedgeInterval    time.Duration `mapstructure:"hedge_interval"`
	HedgeInstrument  string        `mapstructure:"hedge_instrument"`
}

// ScalpConfig tunes the gamma-scalping engine independently of the
// delta-hedging engine, since a book can run one, both, or neither.
type ScalpConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	GammaThreshold   float64 `mapstructure:"gamma_threshold"`
	ScalpBandPct     float64 `mapstructure:"scalp_band_pct"`
}

// PersistenceConfig sets where runtime state, monitoring, and history
// are stored, per spec.md §4.F.
type PersistenceConfig struct {
	StatePath             string        `mapstructure:"state_path"`
	StateCompress         bool          `mapstructure:"state_compress"`
	AutosaveInterval       time.Duration `mapstructure:"autosave_interval"`
	MonitorDSN            string        `mapstructure:"monitor_dsn"`
	MonitorVariant        string        `mapstructure:"monitor_variant"`
	HistoryDSN            string        `mapstructure:"history_dsn"`
}

// NotifierConfig points at the webhook sink for domain-event alerts.
type NotifierConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	WebhookURL  string        `mapstructure:"webhook_url"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: OPT_API_KEY, OPT_API_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("OPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("OPT_API_KEY"); key != "" {
		cfg.Gateway.APIKey = key
	}
	if secret := os.Getenv("OPT_API_SECRET"); secret != "" {
		cfg.Gateway.APISecret = secret
	}
	if os.Getenv("OPT_DRY_RUN") == "true" || os.Getenv("OPT_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	switch c.Gateway.Mode {
	case "live", "backtest":
	default:
		return fmt.Errorf("gateway.mode must be one of: live, backtest")
	}
	if c.Gateway.Mode == "live" && c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required in live mode")
	}
	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols must list at least one instrument")
	}
	if c.Strategy.EMAFast <= 0 || c.Strategy.EMASlow <= 0 {
		return fmt.Errorf("strategy.ema_fast and strategy.ema_slow must be > 0")
	}
	if c.Risk.MaxGlobalOpenVolume <= 0 {
		return fmt.Errorf("risk.max_global_open_volume must be > 0")
	}
	if c.Risk.MaxContractOpenVolume <= 0 {
		return fmt.Errorf("risk.max_contract_open_volume must be > 0")
	}
	if c.Persistence.StatePath == "" {
		return fmt.Errorf("persistence.state_path is required")
	}
	return nil
}
