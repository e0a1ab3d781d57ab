package bus

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(domain.PriceUpdate{
			Quote: domain.PriceQuote{Price: float64(i), Chain: domain.ChainSolana},
		})
	}

	for i := 1; i <= 5; i++ {
		select {
		case ev := <-ch:
			pu, ok := ev.(domain.PriceUpdate)
			require.True(t, ok)
			assert.Equal(t, float64(i), pu.Quote.Price)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestPublishOnlyReachesMatchingTopic(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	prices, cancelP := b.Subscribe(domain.TopicPriceUpdate)
	defer cancelP()
	trades, cancelT := b.Subscribe(domain.TopicTradeComplete)
	defer cancelT()

	b.Publish(domain.PriceUpdate{Quote: domain.PriceQuote{Price: 1}})

	select {
	case <-prices:
	case <-time.After(time.Second):
		t.Fatal("price subscriber did not receive event")
	}

	select {
	case ev := <-trades:
		t.Fatalf("trade subscriber received unexpected event %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	b.Publish(domain.PriceUpdate{Quote: domain.PriceQuote{Price: 1}})

	ch, cancel := b.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	select {
	case ev := <-ch:
		t.Fatalf("late subscriber received replayed event %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	// Slow subscriber: never drained, buffer fills up.
	_, cancelSlow := b.Subscribe(domain.TopicPriceUpdate)
	defer cancelSlow()
	fast, cancelFast := b.Subscribe(domain.TopicPriceUpdate)
	defer cancelFast()

	total := subscriberBuffer + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			b.Publish(domain.PriceUpdate{Quote: domain.PriceQuote{Price: float64(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}

	// The fast subscriber still received the first buffered events in order.
	received := 0
	for received < subscriberBuffer {
		select {
		case ev := <-fast:
			pu := ev.(domain.PriceUpdate)
			assert.Equal(t, float64(received), pu.Quote.Price)
			received++
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber stalled after %d events", received)
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	ch, cancel := b.Subscribe(domain.TopicAgentError)
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")

	// Publishing after cancel must not panic.
	b.Publish(domain.AgentError{Agent: "x", Err: "boom"})
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New(testLogger())
	ch, _ := b.Subscribe(domain.TopicPriceUpdate)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)

	b.Publish(domain.PriceUpdate{}) // no-op, no panic
}
