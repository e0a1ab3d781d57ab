package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CHAINARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CHAINARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setStr(&cfg.Solana.RpcURL, "CHAINARB_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WalletAddress, "CHAINARB_SOLANA_WALLET_ADDRESS")
	setStr(&cfg.Solana.PrivateKey, "CHAINARB_SOLANA_PRIVATE_KEY")
	setStr(&cfg.Solana.EncryptedKeyPath, "CHAINARB_SOLANA_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Solana.KeyPassword, "CHAINARB_SOLANA_KEY_PASSWORD")
	setStr(&cfg.Solana.TokenMint, "CHAINARB_SOLANA_TOKEN_MINT")
	setStr(&cfg.Solana.QuoteMint, "CHAINARB_SOLANA_QUOTE_MINT")
	setInt64(&cfg.Solana.PriorityFeeLamports, "CHAINARB_SOLANA_PRIORITY_FEE_LAMPORTS")
	setStr(&cfg.Solana.JupiterURL, "CHAINARB_SOLANA_JUPITER_URL")

	// ── Ethereum ──
	setStr(&cfg.Ethereum.RpcURL, "CHAINARB_ETHEREUM_RPC_URL")
	setStr(&cfg.Ethereum.TokenAddress, "CHAINARB_ETHEREUM_TOKEN_ADDRESS")
	setStr(&cfg.Ethereum.UniswapPool, "CHAINARB_ETHEREUM_UNISWAP_POOL")
	setInt64(&cfg.Ethereum.MaxGasPriceGwei, "CHAINARB_ETHEREUM_MAX_GAS_PRICE_GWEI")

	// ── Binance ──
	setStr(&cfg.Binance.BaseURL, "CHAINARB_BINANCE_BASE_URL")
	setStr(&cfg.Binance.ApiKey, "CHAINARB_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "CHAINARB_BINANCE_API_SECRET")
	setStr(&cfg.Binance.Pair, "CHAINARB_BINANCE_PAIR")
	setFloat64(&cfg.Binance.FeeBps, "CHAINARB_BINANCE_FEE_BPS")

	// ── Trading ──
	setFloat64(&cfg.Trading.MinProfitPct, "CHAINARB_TRADING_MIN_PROFIT_PCT")
	setFloat64(&cfg.Trading.TradeSizeUSD, "CHAINARB_TRADING_TRADE_SIZE_USD")
	setFloat64(&cfg.Trading.MaxTradeSizeUSD, "CHAINARB_TRADING_MAX_TRADE_SIZE_USD")
	setFloat64(&cfg.Trading.MaxSlippagePct, "CHAINARB_TRADING_MAX_SLIPPAGE_PCT")
	setFloat64(&cfg.Trading.MinNetMarginPct, "CHAINARB_TRADING_MIN_NET_MARGIN_PCT")
	setFloat64(&cfg.Trading.MinBalance, "CHAINARB_TRADING_MIN_BALANCE")
	setBool(&cfg.Trading.AutoExecute, "CHAINARB_TRADING_AUTO_EXECUTE")
	setBool(&cfg.Trading.DryRun, "CHAINARB_TRADING_DRY_RUN")

	// ── Monitoring ──
	setDuration(&cfg.Monitoring.Interval, "CHAINARB_MONITORING_INTERVAL")
	setDuration(&cfg.Monitoring.StaleThreshold, "CHAINARB_MONITORING_STALE_THRESHOLD")
	setFloat64(&cfg.Monitoring.PriceMin, "CHAINARB_MONITORING_PRICE_MIN")
	setFloat64(&cfg.Monitoring.PriceMax, "CHAINARB_MONITORING_PRICE_MAX")
	setInt(&cfg.Monitoring.PriceHistorySize, "CHAINARB_MONITORING_PRICE_HISTORY_SIZE")
	setDuration(&cfg.Monitoring.BalanceInterval, "CHAINARB_MONITORING_BALANCE_INTERVAL")

	// ── Retry ──
	setInt(&cfg.Retry.Attempts, "CHAINARB_RETRY_ATTEMPTS")
	setDuration(&cfg.Retry.BaseDelay, "CHAINARB_RETRY_BASE_DELAY")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CHAINARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CHAINARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CHAINARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CHAINARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CHAINARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CHAINARB_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CHAINARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CHAINARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CHAINARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CHAINARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CHAINARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CHAINARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CHAINARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CHAINARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CHAINARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CHAINARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CHAINARB_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CHAINARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CHAINARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CHAINARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "CHAINARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CHAINARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CHAINARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CHAINARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CHAINARB_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "CHAINARB_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CHAINARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CHAINARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CHAINARB_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CHAINARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CHAINARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CHAINARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CHAINARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CHAINARB_MODE")
	setStr(&cfg.LogLevel, "CHAINARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
