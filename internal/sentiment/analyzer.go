// Package sentiment publishes a synthetic market sentiment score for the
// dashboard. The score is a bounded random walk with occasional spikes;
// nothing in the trading path consumes it.
package sentiment

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

const agentName = "SENTIMENT_ANALYZER"

const (
	defaultInterval = 30 * time.Second
	stepSize        = 0.08
	spikeChance     = 0.05
	spikeSize       = 0.5
)

// Analyzer is the synthetic sentiment agent.
type Analyzer struct {
	interval time.Duration
	bus      *bus.EventBus
	clock    domain.Clock
	logger   *slog.Logger
	rng      *rand.Rand

	running atomic.Bool
	score   float64
}

var _ domain.Agent = (*Analyzer)(nil)

// New creates an Analyzer publishing every interval. A zero interval uses
// the default; a nil clock uses the system clock.
func New(interval time.Duration, b *bus.EventBus, clock domain.Clock, logger *slog.Logger) *Analyzer {
	if interval <= 0 {
		interval = defaultInterval
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Analyzer{
		interval: interval,
		bus:      b,
		clock:    clock,
		logger:   logger.With("component", agentName),
		rng:      rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Name implements domain.Agent.
func (a *Analyzer) Name() string { return agentName }

// Running implements domain.Agent.
func (a *Analyzer) Running() bool { return a.running.Load() }

// Run publishes one score immediately, then on every interval tick.
func (a *Analyzer) Run(ctx context.Context) error {
	a.running.Store(true)
	defer a.running.Store(false)

	a.logger.Info("sentiment analyzer started", "interval", a.interval.String())

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.publish()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("sentiment analyzer stopped")
			return ctx.Err()
		case <-ticker.C:
			a.publish()
		}
	}
}

func (a *Analyzer) publish() {
	a.score = a.step(a.score)
	a.bus.Publish(domain.SentimentUpdate{
		Score:  a.score,
		Label:  label(a.score),
		At:     a.clock.Now(),
		Source: agentName,
	})
	a.logger.Debug("sentiment published", "score", a.score, "label", label(a.score))
}

// step advances the random walk and clamps the result to [-1, 1].
func (a *Analyzer) step(score float64) float64 {
	score += (a.rng.Float64()*2 - 1) * stepSize
	if a.rng.Float64() < spikeChance {
		score += (a.rng.Float64()*2 - 1) * spikeSize
	}
	return clamp(score, -1, 1)
}

func label(score float64) string {
	switch {
	case score >= 0.3:
		return "bullish"
	case score <= -0.3:
		return "bearish"
	default:
		return "neutral"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
