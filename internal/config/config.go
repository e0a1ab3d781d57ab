// Package config defines the top-level configuration for the chainarb bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CHAINARB_* environment
// variables. It is constructed once at process start and passed explicitly
// to every component that needs it; nothing reads ambient global state.
type Config struct {
	Solana     SolanaConfig     `toml:"solana"`
	Ethereum   EthereumConfig   `toml:"ethereum"`
	Binance    BinanceConfig    `toml:"binance"`
	Trading    TradingConfig    `toml:"trading"`
	Monitoring MonitoringConfig `toml:"monitoring"`
	Retry      RetryConfig      `toml:"retry"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SolanaConfig holds Solana RPC, wallet, and Jupiter parameters.
type SolanaConfig struct {
	RpcURL              string `toml:"rpc_url"`
	WalletAddress       string `toml:"wallet_address"`
	PrivateKey          string `toml:"private_key"`
	EncryptedKeyPath    string `toml:"encrypted_key_path"`
	KeyPassword         string `toml:"key_password"`
	TokenMint           string `toml:"token_mint"`
	QuoteMint           string `toml:"quote_mint"`
	TokenDecimals       int    `toml:"token_decimals"`
	QuoteDecimals       int    `toml:"quote_decimals"`
	PriorityFeeLamports int64  `toml:"priority_fee_lamports"`
	JupiterURL          string `toml:"jupiter_url"`
}

// EthereumConfig holds Ethereum RPC and Uniswap parameters.
type EthereumConfig struct {
	RpcURL       string `toml:"rpc_url"`
	TokenAddress string `toml:"token_address"`
	UniswapPool  string `toml:"uniswap_pool"`
	// Token0Decimals/Token1Decimals describe the pool's tokens; InvertPrice
	// flips the quote when the monitored asset is token1.
	Token0Decimals  int    `toml:"token0_decimals"`
	Token1Decimals  int    `toml:"token1_decimals"`
	InvertPrice     bool   `toml:"invert_price"`
	MaxGasPriceGwei int64  `toml:"max_gas_price_gwei"`
	SwapGasLimit    uint64 `toml:"swap_gas_limit"`
}

// BinanceConfig holds the custodial exchange API parameters.
type BinanceConfig struct {
	BaseURL   string  `toml:"base_url"`
	ApiKey    string  `toml:"api_key"`
	ApiSecret string  `toml:"api_secret"`
	Pair      string  `toml:"pair"`
	FeeBps    float64 `toml:"fee_bps"`
}

// TradingConfig holds the decision-pipeline thresholds.
type TradingConfig struct {
	MinProfitPct    float64 `toml:"min_profit_pct"`
	TradeSizeUSD    float64 `toml:"trade_size_usd"`
	MaxTradeSizeUSD float64 `toml:"max_trade_size_usd"`
	MaxSlippagePct  float64 `toml:"max_slippage_pct"`
	// MinNetMarginPct rejects trades whose net profit after costs is below
	// this share of gross profit, protecting against residual slippage.
	MinNetMarginPct float64 `toml:"min_net_margin_pct"`
	MinBalance      float64 `toml:"min_balance"`
	AutoExecute     bool    `toml:"auto_execute"`
	DryRun          bool    `toml:"dry_run"`
}

// MonitoringConfig holds the price-acquisition loop parameters.
type MonitoringConfig struct {
	Interval         duration `toml:"interval"`
	StaleThreshold   duration `toml:"stale_threshold"`
	PriceMin         float64  `toml:"price_min"`
	PriceMax         float64  `toml:"price_max"`
	PriceHistorySize int      `toml:"price_history_size"`
	BalanceInterval  duration `toml:"balance_interval"`
}

// RetryConfig holds the venue-call retry policy.
type RetryConfig struct {
	Attempts  int      `toml:"attempts"`
	BaseDelay duration `toml:"base_delay"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// trade-history store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the trade
// history archiver.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds the operator HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RpcURL:              "https://api.mainnet-beta.solana.com",
			QuoteMint:           "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC
			TokenDecimals:       8,
			QuoteDecimals:       6,
			PriorityFeeLamports: 5000,
			JupiterURL:          "https://quote-api.jup.ag/v6",
		},
		Ethereum: EthereumConfig{
			// USDC/WETH pool layout: token0 USDC (6), token1 WETH (18),
			// price inverted to quote WETH in USDC.
			Token0Decimals:  6,
			Token1Decimals:  18,
			InvertPrice:     true,
			MaxGasPriceGwei: 100,
			SwapGasLimit:    140_000,
		},
		Binance: BinanceConfig{
			BaseURL: "https://api.binance.com",
			Pair:    "ETHUSDT",
			FeeBps:  10,
		},
		Trading: TradingConfig{
			MinProfitPct:    1.5,
			TradeSizeUSD:    1000,
			MaxTradeSizeUSD: 1000,
			MaxSlippagePct:  0.5,
			MinNetMarginPct: 20,
			MinBalance:      0.01,
			AutoExecute:     false,
			DryRun:          true,
		},
		Monitoring: MonitoringConfig{
			Interval:         duration{5 * time.Second},
			StaleThreshold:   duration{30 * time.Second},
			PriceMin:         0.000001,
			PriceMax:         1_000_000,
			PriceHistorySize: 100,
			BalanceInterval:  duration{time.Minute},
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: duration{time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "chainarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "chainarb-data",
			ForcePathStyle:  true,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_detected", "trade_complete", "trade_failed", "paused", "agent_error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"trade":   true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, trade, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venue endpoints.
	if c.Solana.RpcURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if c.Solana.JupiterURL == "" {
		errs = append(errs, "solana: jupiter_url must not be empty")
	}
	if c.Ethereum.RpcURL == "" {
		errs = append(errs, "ethereum: rpc_url must not be empty")
	}
	if c.Binance.BaseURL == "" {
		errs = append(errs, "binance: base_url must not be empty")
	}
	if c.Binance.Pair == "" {
		errs = append(errs, "binance: pair must not be empty")
	}

	// Keys are only required when trades can actually settle.
	tradesLive := (c.Mode == "trade" || c.Mode == "full") && !c.Trading.DryRun
	if tradesLive {
		if c.Solana.PrivateKey == "" && c.Solana.EncryptedKeyPath == "" {
			errs = append(errs, "solana: either private_key or encrypted_key_path must be set for live trading")
		}
		if c.Solana.EncryptedKeyPath != "" && c.Solana.KeyPassword == "" {
			errs = append(errs, "solana: key_password is required when encrypted_key_path is set")
		}
		if c.Solana.TokenMint == "" {
			errs = append(errs, "solana: token_mint is required for live trading")
		}
		if c.Binance.ApiKey == "" || c.Binance.ApiSecret == "" {
			errs = append(errs, "binance: api_key and api_secret are required for live trading")
		}
	}

	// Trading thresholds.
	if c.Trading.MinProfitPct <= 0 {
		errs = append(errs, "trading: min_profit_pct must be > 0")
	}
	if c.Trading.TradeSizeUSD <= 0 {
		errs = append(errs, "trading: trade_size_usd must be > 0")
	}
	if c.Trading.MaxTradeSizeUSD < c.Trading.TradeSizeUSD {
		errs = append(errs, "trading: max_trade_size_usd must not be below trade_size_usd")
	}
	if c.Trading.MinNetMarginPct < 0 || c.Trading.MinNetMarginPct >= 100 {
		errs = append(errs, fmt.Sprintf("trading: min_net_margin_pct must be in [0, 100), got %v", c.Trading.MinNetMarginPct))
	}

	// Monitoring.
	if c.Monitoring.Interval.Duration <= 0 {
		errs = append(errs, "monitoring: interval must be > 0")
	}
	if c.Monitoring.StaleThreshold.Duration <= 0 {
		errs = append(errs, "monitoring: stale_threshold must be > 0")
	}
	if c.Monitoring.PriceMin <= 0 || c.Monitoring.PriceMax <= c.Monitoring.PriceMin {
		errs = append(errs, "monitoring: price bounds must satisfy 0 < price_min < price_max")
	}

	// Retry.
	if c.Retry.Attempts < 1 {
		errs = append(errs, "retry: attempts must be >= 1")
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres (when enabled).
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3 (when enabled).
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server.
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
