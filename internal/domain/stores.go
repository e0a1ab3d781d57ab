package domain

import (
	"context"
	"time"
)

// TradeStore persists completed trade results. The in-memory history remains
// canonical for the process lifetime; the store is the durable copy.
type TradeStore interface {
	Insert(ctx context.Context, result TradeResult) error
	List(ctx context.Context, limit int) ([]TradeResult, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeResult, error)
}

// PriceCache provides fast access to the latest quote per chain for
// consumers outside the decision path.
type PriceCache interface {
	SetQuote(ctx context.Context, quote PriceQuote) error
	GetQuote(ctx context.Context, chain Chain) (PriceQuote, error)
}

// RateLimiter provides distributed rate limiting for public venue APIs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// StreamMessage is a single entry from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus carries mirrored domain events to out-of-process consumers
// (dashboard, ops tooling) as raw JSON payloads.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// BlobWriter stores a payload under a key in object storage.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}
