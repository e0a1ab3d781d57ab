// Package bus provides the in-process typed event bus connecting the agents.
// Each subscription is its own buffered channel, so delivery is in publish
// order per topic per subscriber, and a slow or failing consumer can never
// wedge another: when a subscriber's buffer is full the delivery is dropped
// and logged rather than blocking the publisher.
package bus

import (
	"log/slog"
	"sync"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// subscriberBuffer is the per-subscription channel capacity.
const subscriberBuffer = 128

type subscriber struct {
	ch chan domain.Event
	id int
}

// EventBus fans typed events out to topic subscribers. The zero value is not
// usable; construct with New.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[domain.Topic][]*subscriber
	nextID int
	closed bool
	logger *slog.Logger
}

// New creates an EventBus.
func New(logger *slog.Logger) *EventBus {
	return &EventBus{
		subs:   make(map[domain.Topic][]*subscriber),
		logger: logger.With(slog.String("component", "event_bus")),
	}
}

// Subscribe registers a new subscription for topic and returns the channel
// events arrive on plus a cancel function that removes the subscription and
// closes the channel. Subscribers joining late never receive past events.
func (b *EventBus) Subscribe(topic domain.Topic) (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch: make(chan domain.Event, subscriberBuffer),
		id: b.nextID,
	}
	b.nextID++
	b.subs[topic] = append(b.subs[topic], sub)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == sub.id {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				close(s.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}

// Publish delivers ev to every current subscriber of its topic, in
// subscription order, and returns. Delivery to a full subscriber buffer is
// dropped with a warning; other subscribers are unaffected.
func (b *EventBus) Publish(ev domain.Event) {
	topic := ev.EventTopic()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				slog.String("topic", string(topic)),
			)
		}
	}
}

// Close closes every subscription channel. Publish after Close is a no-op.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, list := range b.subs {
		for _, sub := range list {
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
}
