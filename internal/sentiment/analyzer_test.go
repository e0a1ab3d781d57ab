package sentiment

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *bus.EventBus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	b := bus.New(logger)
	t.Cleanup(b.Close)
	clock := domain.ClockFunc(func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	})
	return New(0, b, clock, logger), b
}

func TestStepStaysBounded(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	score := 0.0
	for i := 0; i < 10000; i++ {
		score = a.step(score)
		require.GreaterOrEqual(t, score, -1.0)
		require.LessOrEqual(t, score, 1.0)
	}
}

func TestPublishEmitsSentimentUpdate(t *testing.T) {
	a, b := newTestAnalyzer(t)

	ch, cancel := b.Subscribe(domain.TopicSentimentUpdate)
	defer cancel()

	a.publish()

	select {
	case ev := <-ch:
		upd, ok := ev.(domain.SentimentUpdate)
		require.True(t, ok)
		assert.Equal(t, agentName, upd.Source)
		assert.Equal(t, label(upd.Score), upd.Label)
		assert.False(t, upd.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no sentiment event published")
	}
}

func TestLabelThresholds(t *testing.T) {
	assert.Equal(t, "bullish", label(0.3))
	assert.Equal(t, "bearish", label(-0.3))
	assert.Equal(t, "neutral", label(0.29))
	assert.Equal(t, "neutral", label(-0.29))
	assert.Equal(t, "neutral", label(0))
}
