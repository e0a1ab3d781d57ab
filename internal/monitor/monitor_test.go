package monitor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/retry"
)

type stubSource struct {
	name  string
	price float64
	proxy bool
	err   error
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Quote(ctx context.Context) (domain.PriceQuote, error) {
	s.calls.Add(1)
	if s.err != nil {
		return domain.PriceQuote{}, s.err
	}
	return domain.PriceQuote{Price: s.price, Venue: s.name, Proxy: s.proxy}, nil
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func (l *stubLimiter) Wait(ctx context.Context, key string) error { return nil }

func baseConfig(primary domain.PriceSource, fallbacks ...domain.PriceSource) Config {
	return Config{
		Name:        "SOLANA_MONITOR",
		Chain:       domain.ChainSolana,
		Role:        domain.RoleBuy,
		Primary:     primary,
		Fallbacks:   fallbacks,
		Interval:    time.Second,
		PriceMin:    0.000001,
		PriceMax:    1_000_000,
		HistorySize: 10,
		Retry:       retry.Config{Attempts: 1, BaseDelay: time.Millisecond},
	}
}

func receivePriceUpdate(t *testing.T, ch <-chan domain.Event) domain.PriceUpdate {
	t.Helper()
	select {
	case ev := <-ch:
		pu, ok := ev.(domain.PriceUpdate)
		require.True(t, ok)
		return pu
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for price update")
		return domain.PriceUpdate{}
	}
}

func TestPollPublishesPrimaryQuote(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	primary := &stubSource{name: "jupiter", price: 150.25}
	fallback := &stubSource{name: "coingecko", price: 151}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := New(baseConfig(primary, fallback), b, nil, nil, domain.ClockFunc(func() time.Time { return now }), slog.Default())

	m.poll(context.Background())

	pu := receivePriceUpdate(t, ch)
	assert.Equal(t, 150.25, pu.Quote.Price)
	assert.Equal(t, domain.ChainSolana, pu.Quote.Chain)
	assert.Equal(t, "jupiter", pu.Quote.Venue)
	assert.Equal(t, now, pu.Quote.SourcedAt)
	assert.Equal(t, "SOLANA_MONITOR", pu.Source)
	assert.Equal(t, int32(0), fallback.calls.Load(), "fallback must not be queried when the primary succeeds")
}

func TestPollFallsBackWhenPrimaryFails(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	primary := &stubSource{name: "jupiter", err: errors.New("rpc down")}
	fallback := &stubSource{name: "coingecko", price: 149.9}
	m := New(baseConfig(primary, fallback), b, nil, nil, nil, slog.Default())

	m.poll(context.Background())

	pu := receivePriceUpdate(t, ch)
	assert.Equal(t, 149.9, pu.Quote.Price)
	assert.Equal(t, "coingecko", pu.Quote.Venue)
	assert.Equal(t, int32(1), fallback.calls.Load())
}

func TestDirectionalSelectionAmongFallbacks(t *testing.T) {
	primary := &stubSource{name: "jupiter", err: errors.New("rpc down")}
	cheap := &stubSource{name: "coingecko", price: 100}
	rich := &stubSource{name: "binance", price: 105, proxy: true}

	for _, tc := range []struct {
		role domain.MonitorRole
		want float64
	}{
		{domain.RoleBuy, 100},
		{domain.RoleSell, 105},
	} {
		b := bus.New(slog.Default())
		ch, cancel := b.Subscribe(domain.TopicPriceUpdate)

		cfg := baseConfig(primary, cheap, rich)
		cfg.Role = tc.role
		m := New(cfg, b, nil, nil, nil, slog.Default())
		m.poll(context.Background())

		pu := receivePriceUpdate(t, ch)
		assert.Equal(t, tc.want, pu.Quote.Price, "role %s", tc.role)

		cancel()
		b.Close()
	}
}

func TestInvalidQuoteTreatedAsSourceFailure(t *testing.T) {
	for _, price := range []float64{math.NaN(), math.Inf(1), -3, 0, 2_000_000} {
		b := bus.New(slog.Default())
		ch, cancel := b.Subscribe(domain.TopicPriceUpdate)

		primary := &stubSource{name: "jupiter", price: price}
		fallback := &stubSource{name: "coingecko", price: 150}
		m := New(baseConfig(primary, fallback), b, nil, nil, nil, slog.Default())
		m.poll(context.Background())

		pu := receivePriceUpdate(t, ch)
		assert.Equal(t, "coingecko", pu.Quote.Venue)

		cancel()
		b.Close()
	}
}

func TestNoPublishWhenEverySourceFails(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	primary := &stubSource{name: "jupiter", err: errors.New("down")}
	fallback := &stubSource{name: "coingecko", err: errors.New("down too")}
	m := New(baseConfig(primary, fallback), b, nil, nil, nil, slog.Default())

	m.poll(context.Background())

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	_, ok := m.LastQuote()
	assert.False(t, ok)
}

func TestExhaustedSourcePublishesAgentError(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicAgentError)
	defer cancel()

	primary := &stubSource{name: "jupiter", err: errors.New("rpc down")}
	cfg := baseConfig(primary)
	cfg.Retry = retry.Config{Attempts: 2, BaseDelay: time.Millisecond}
	m := New(cfg, b, nil, nil, nil, slog.Default())

	m.poll(context.Background())

	select {
	case ev := <-ch:
		ae, isAgentErr := ev.(domain.AgentError)
		require.True(t, isAgentErr)
		assert.Equal(t, "SOLANA_MONITOR", ae.Agent)
		assert.Equal(t, "source:jupiter", ae.Context)
		assert.False(t, ae.Critical, "a failed poll must not mark the monitor failed")
		assert.Contains(t, ae.Err, "rpc down")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for agent error")
	}
	assert.Equal(t, int32(2), primary.calls.Load())
}

func TestSourcedAtMonotonic(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	times := []time.Time{
		time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC), // clock stepped back
	}
	var idx int
	clock := domain.ClockFunc(func() time.Time {
		ts := times[idx]
		if idx < len(times)-1 {
			idx++
		}
		return ts
	})

	primary := &stubSource{name: "jupiter", price: 150}
	m := New(baseConfig(primary), b, nil, nil, clock, slog.Default())

	m.poll(context.Background())
	first := receivePriceUpdate(t, ch)
	m.poll(context.Background())
	second := receivePriceUpdate(t, ch)

	assert.False(t, second.Quote.SourcedAt.Before(first.Quote.SourcedAt))
}

func TestHistoryBounded(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()

	primary := &stubSource{name: "jupiter", price: 150}
	cfg := baseConfig(primary)
	cfg.HistorySize = 3
	m := New(cfg, b, nil, nil, nil, slog.Default())

	for i := 0; i < 5; i++ {
		primary.price = 150 + float64(i)
		m.poll(context.Background())
	}

	hist := m.History()
	require.Len(t, hist, 3)
	assert.Equal(t, 152.0, hist[0].Price)
	assert.Equal(t, 154.0, hist[2].Price)
}

func TestRateLimiterBlocksFallback(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	primary := &stubSource{name: "jupiter", err: errors.New("down")}
	fallback := &stubSource{name: "coingecko", price: 150}
	limiter := &stubLimiter{allow: false}
	m := New(baseConfig(primary, fallback), b, nil, limiter, nil, slog.Default())

	m.poll(context.Background())

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(0), fallback.calls.Load())
	assert.Equal(t, []string{"venue:coingecko"}, limiter.keys)
}

func TestLimiterErrorFailsOpen(t *testing.T) {
	b := bus.New(slog.Default())
	defer b.Close()
	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	primary := &stubSource{name: "jupiter", err: errors.New("down")}
	fallback := &stubSource{name: "coingecko", price: 150}
	limiter := &stubLimiter{allow: false, err: errors.New("redis gone")}
	m := New(baseConfig(primary, fallback), b, nil, limiter, nil, slog.Default())

	m.poll(context.Background())

	pu := receivePriceUpdate(t, ch)
	assert.Equal(t, "coingecko", pu.Quote.Venue)
}
