// Package monitor implements the price monitor agents. Each monitor owns one
// chain, polls a primary source with fallbacks, validates what it gets, and
// publishes the winning quote on the bus.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/retry"
)

// Fallback rate limiting defaults for public APIs without keys.
const (
	defaultFallbackRateLimit  = 30
	defaultFallbackRateWindow = time.Minute
)

// Config parameterises one Monitor instance.
type Config struct {
	// Name is the agent name, e.g. "SOLANA_MONITOR".
	Name  string
	Chain domain.Chain
	// Role decides which quote wins when several sources succeed in the
	// same tick: the buy side takes the lowest price, the sell side the
	// highest.
	Role     domain.MonitorRole
	Primary  domain.PriceSource
	// Fallbacks are tried in order, one attempt each, only after the
	// primary's retry budget is exhausted.
	Fallbacks []domain.PriceSource
	Interval  time.Duration
	PriceMin  float64
	PriceMax  float64
	// HistorySize bounds the in-memory quote history.
	HistorySize int
	Retry       retry.Config
	// FallbackRateLimit/Window throttle calls to public fallback APIs.
	// Zero values take the package defaults.
	FallbackRateLimit  int
	FallbackRateWindow time.Duration
}

// Monitor polls price sources for a single chain and publishes validated
// quotes. It implements domain.Agent.
type Monitor struct {
	cfg     Config
	bus     *bus.EventBus
	cache   domain.PriceCache  // optional
	limiter domain.RateLimiter // optional
	clock   domain.Clock
	logger  *slog.Logger

	running atomic.Bool

	mu            sync.Mutex
	history       []domain.PriceQuote
	lastSourcedAt time.Time
}

var _ domain.Agent = (*Monitor)(nil)

// New creates a Monitor. cache and limiter may be nil; the monitor then skips
// cache writes and fallback throttling respectively.
func New(cfg Config, b *bus.EventBus, cache domain.PriceCache, limiter domain.RateLimiter, clock domain.Clock, logger *slog.Logger) *Monitor {
	if cfg.FallbackRateLimit <= 0 {
		cfg.FallbackRateLimit = defaultFallbackRateLimit
	}
	if cfg.FallbackRateWindow <= 0 {
		cfg.FallbackRateWindow = defaultFallbackRateWindow
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Monitor{
		cfg:     cfg,
		bus:     b,
		cache:   cache,
		limiter: limiter,
		clock:   clock,
		logger: logger.With(
			slog.String("component", "price_monitor"),
			slog.String("agent", cfg.Name),
			slog.String("chain", string(cfg.Chain)),
		),
	}
}

// Name implements domain.Agent.
func (m *Monitor) Name() string { return m.cfg.Name }

// Running implements domain.Agent.
func (m *Monitor) Running() bool { return m.running.Load() }

// Run polls immediately and then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	m.logger.Info("price monitor started",
		slog.String("role", string(m.cfg.Role)),
		slog.Duration("interval", m.cfg.Interval),
	)

	m.poll(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("price monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll queries the primary and, failing that, the fallback chain, then
// publishes the directional winner among the valid quotes of this tick.
func (m *Monitor) poll(ctx context.Context) {
	quotes := m.gather(ctx)
	if len(quotes) == 0 {
		m.logger.Error("no price this tick, every source failed",
			slog.Int("sources", 1+len(m.cfg.Fallbacks)),
		)
		return
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if m.cfg.Role == domain.RoleBuy && q.Price < best.Price {
			best = q
		}
		if m.cfg.Role == domain.RoleSell && q.Price > best.Price {
			best = q
		}
	}

	best.Chain = m.cfg.Chain
	best.SourcedAt = m.stamp()
	m.record(best)

	m.bus.Publish(domain.PriceUpdate{Quote: best, Source: m.cfg.Name})

	if m.cache != nil {
		if err := m.cache.SetQuote(ctx, best); err != nil {
			m.logger.Warn("price cache write failed", slog.String("error", err.Error()))
		}
	}

	m.logger.Debug("price published",
		slog.Float64("price", best.Price),
		slog.String("venue", best.Venue),
		slog.Bool("proxy", best.Proxy),
	)
}

// gather returns the valid quotes obtained this tick. The primary gets the
// full retry budget and, when it yields a valid quote, settles the tick on
// its own. Only after the primary is exhausted is the fallback chain walked,
// one attempt per source.
func (m *Monitor) gather(ctx context.Context) []domain.PriceQuote {
	quote, err := retry.Do(ctx, m.cfg.Retry, func(ctx context.Context) (domain.PriceQuote, error) {
		return m.cfg.Primary.Quote(ctx)
	})
	if err != nil {
		m.reportSourceFailure(m.cfg.Primary.Name(), err)
	} else if verr := m.validate(quote); verr != nil {
		m.logger.Warn("discarding invalid quote",
			slog.String("source", m.cfg.Primary.Name()),
			slog.Float64("price", quote.Price),
			slog.String("error", verr.Error()),
		)
	} else {
		return []domain.PriceQuote{quote}
	}

	var quotes []domain.PriceQuote
	for _, src := range m.cfg.Fallbacks {
		if !m.allowFallback(ctx, src.Name()) {
			continue
		}
		quote, err := src.Quote(ctx)
		if err != nil {
			m.reportSourceFailure(src.Name(), err)
			continue
		}
		if verr := m.validate(quote); verr != nil {
			m.logger.Warn("discarding invalid quote",
				slog.String("source", src.Name()),
				slog.Float64("price", quote.Price),
				slog.String("error", verr.Error()),
			)
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes
}

// allowFallback consults the shared rate limiter for a public source. Limiter
// errors fail open so a redis outage cannot blind the monitor.
func (m *Monitor) allowFallback(ctx context.Context, source string) bool {
	if m.limiter == nil {
		return true
	}
	allowed, err := m.limiter.Allow(ctx, "venue:"+source, m.cfg.FallbackRateLimit, m.cfg.FallbackRateWindow)
	if err != nil {
		m.logger.Warn("rate limiter check failed",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return true
	}
	if !allowed {
		m.logger.Warn("fallback source rate limited", slog.String("source", source))
	}
	return allowed
}

// validate rejects quotes that are not finite, not positive, or outside the
// configured sanity bounds.
func (m *Monitor) validate(q domain.PriceQuote) error {
	switch {
	case math.IsNaN(q.Price) || math.IsInf(q.Price, 0):
		return domain.ErrInvalidQuote
	case q.Price <= 0:
		return domain.ErrInvalidQuote
	case q.Price < m.cfg.PriceMin || q.Price > m.cfg.PriceMax:
		return domain.ErrInvalidQuote
	}
	return nil
}

// reportSourceFailure logs an exhausted source and surfaces it as a
// non-critical agent:error so downstream observers see monitor-side
// failures, not just the process log.
func (m *Monitor) reportSourceFailure(source string, err error) {
	attrs := []any{
		slog.String("source", source),
		slog.String("kind", classify(err)),
		slog.String("error", err.Error()),
	}
	if isNetworkError(err) {
		m.logger.Warn("price source failed", attrs...)
	} else {
		m.logger.Error("price source failed", attrs...)
	}

	m.bus.Publish(domain.AgentError{
		Agent:    m.cfg.Name,
		Err:      err.Error(),
		Context:  "source:" + source,
		Critical: false,
		At:       m.clock.Now(),
	})
}

// stamp returns the publish timestamp, kept monotonically non-decreasing per
// monitor even if the clock steps backwards.
func (m *Monitor) stamp() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if now.Before(m.lastSourcedAt) {
		now = m.lastSourcedAt
	}
	m.lastSourcedAt = now
	return now
}

func (m *Monitor) record(q domain.PriceQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, q)
	if len(m.history) > m.cfg.HistorySize && m.cfg.HistorySize > 0 {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}
}

// History returns a copy of the bounded quote history, oldest first.
func (m *Monitor) History() []domain.PriceQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PriceQuote, len(m.history))
	copy(out, m.history)
	return out
}

// LastQuote returns the most recently published quote, if any.
func (m *Monitor) LastQuote() (domain.PriceQuote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return domain.PriceQuote{}, false
	}
	return m.history[len(m.history)-1], true
}
