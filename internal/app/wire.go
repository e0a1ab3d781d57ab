package app

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/chainarb/internal/blob/s3"
	"github.com/alanyoungcy/chainarb/internal/cache/redis"
	"github.com/alanyoungcy/chainarb/internal/config"
	"github.com/alanyoungcy/chainarb/internal/crypto"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/notify"
	"github.com/alanyoungcy/chainarb/internal/store/postgres"
	"github.com/alanyoungcy/chainarb/internal/venue/binance"
	"github.com/alanyoungcy/chainarb/internal/venue/coingecko"
	"github.com/alanyoungcy/chainarb/internal/venue/ethereum"
	"github.com/alanyoungcy/chainarb/internal/venue/solana"
)

// coingeckoBaseURL and coingeckoCoinID pin the buy-side fallback source; the
// monitored asset is ETH bridged to Solana, so the reference price is ETH/USD.
const (
	coingeckoBaseURL = "https://api.coingecko.com/api/v3"
	coingeckoCoinID  = "ethereum"
)

// Dependencies bundles every boundary collaborator the modes wire agents
// from. Optional entries (TradeStore, BlobWriter) stay nil when their config
// section is disabled.
type Dependencies struct {
	// Caches and distributed plumbing, all on the shared redis client.
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Durable storage, optional by config.
	TradeStore domain.TradeStore
	BlobWriter domain.BlobWriter

	// Venues.
	Solana    *solana.Client
	Ethereum  *ethereum.Client
	Binance   *binance.Client
	Coingecko *coingecko.Client

	// Notifications.
	Notifier *notify.Notifier
}

// liveTrading reports whether real orders can leave the process.
func liveTrading(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Mode)
	return (mode == "trade" || mode == "full") && !cfg.Trading.DryRun
}

// Wire constructs the concrete dependencies from config and returns them
// with a cleanup function releasing the connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Redis backs the price cache, the venue rate limiter, and the mirror's
	// signal bus. It is required in every mode.
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// Postgres persists trade results when enabled.
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// S3 receives archived trade history when enabled.
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// The wallet key is only resolved when real orders can leave the
	// process; monitor mode and dry runs never touch key material.
	var walletKey ed25519.PrivateKey
	if liveTrading(cfg) {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Solana.PrivateKey,
			EncryptedKeyPath: cfg.Solana.EncryptedKeyPath,
			KeyPassword:      cfg.Solana.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		if len(raw) == ed25519.SeedSize {
			walletKey = ed25519.NewKeyFromSeed(raw)
		} else {
			walletKey = ed25519.PrivateKey(raw)
		}
	}

	deps.Solana = solana.New(solana.Config{
		RpcURL:              cfg.Solana.RpcURL,
		JupiterURL:          cfg.Solana.JupiterURL,
		WalletAddress:       cfg.Solana.WalletAddress,
		PrivateKey:          walletKey,
		TokenMint:           cfg.Solana.TokenMint,
		QuoteMint:           cfg.Solana.QuoteMint,
		TokenDecimals:       cfg.Solana.TokenDecimals,
		QuoteDecimals:       cfg.Solana.QuoteDecimals,
		PriorityFeeLamports: cfg.Solana.PriorityFeeLamports,
		DryRun:              cfg.Trading.DryRun,
	})

	deps.Ethereum, err = ethereum.New(ethereum.Config{
		RpcURL:          cfg.Ethereum.RpcURL,
		UniswapPool:     cfg.Ethereum.UniswapPool,
		Token0Decimals:  cfg.Ethereum.Token0Decimals,
		Token1Decimals:  cfg.Ethereum.Token1Decimals,
		Invert:          cfg.Ethereum.InvertPrice,
		MaxGasPriceGwei: cfg.Ethereum.MaxGasPriceGwei,
		SwapGasLimit:    cfg.Ethereum.SwapGasLimit,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ethereum: %w", err)
	}

	deps.Binance = binance.New(binance.Config{
		BaseURL:   cfg.Binance.BaseURL,
		ApiKey:    cfg.Binance.ApiKey,
		ApiSecret: cfg.Binance.ApiSecret,
		FeeBps:    cfg.Binance.FeeBps,
		DryRun:    cfg.Trading.DryRun,
	})

	deps.Coingecko = coingecko.New(coingeckoBaseURL, coingeckoCoinID, domain.ChainSolana)

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, deps.RateLimiter, logger)

	return deps, cleanup, nil
}
