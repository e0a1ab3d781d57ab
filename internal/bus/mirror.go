package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// channelFor maps in-process topics to the redis pub/sub channels the
// dashboard hub subscribes to.
var channelFor = map[domain.Topic]string{
	domain.TopicPriceUpdate:     "arb:prices",
	domain.TopicOpportunity:     "arb:opportunities",
	domain.TopicSkipped:         "arb:opportunities",
	domain.TopicTradeComplete:   "arb:trades",
	domain.TopicAgentError:      "arb:agents",
	domain.TopicBalanceUpdate:   "arb:balances",
	domain.TopicSentimentUpdate: "arb:sentiment",
}

// MirrorChannels lists the external channels the mirror publishes on.
var MirrorChannels = []string{
	"arb:prices", "arb:opportunities", "arb:trades",
	"arb:agents", "arb:balances", "arb:sentiment",
}

// TradeStream is the durable stream trade completions are appended to, in
// addition to the arb:trades pub/sub channel.
const TradeStream = "stream:trades"

// envelope is the JSON shape mirrored events take on the wire.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// Mirror is an agent that republishes every in-process event as a JSON
// envelope on the redis signal bus, so external observers (the dashboard
// websocket hub, ops tooling) consume the event stream without access to
// process memory. Observers are strictly passive.
type Mirror struct {
	bus     *EventBus
	signals domain.SignalBus
	logger  *slog.Logger
	running atomic.Bool
}

// NewMirror creates a Mirror bridging the in-process bus to signals.
func NewMirror(b *EventBus, signals domain.SignalBus, logger *slog.Logger) *Mirror {
	return &Mirror{
		bus:     b,
		signals: signals,
		logger:  logger.With(slog.String("component", "event_mirror")),
	}
}

// Name implements domain.Agent.
func (m *Mirror) Name() string { return "EVENT_MIRROR" }

// Running implements domain.Agent.
func (m *Mirror) Running() bool { return m.running.Load() }

// Run subscribes to every topic and forwards events until ctx is cancelled.
// Trade completions are additionally appended to a durable stream so a
// restarted dashboard can backfill recent trades.
func (m *Mirror) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	events, cancel := subscribeAll(m.bus)
	defer cancel()

	m.logger.Info("event mirror started")
	defer m.logger.Info("event mirror stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.forward(ctx, ev)
		}
	}
}

// subscribeAll merges subscriptions to every topic into a single channel.
func subscribeAll(b *EventBus) (<-chan domain.Event, func()) {
	out := make(chan domain.Event, subscriberBuffer)
	cancels := make([]func(), 0, len(domain.Topics))
	done := make(chan struct{})

	for _, topic := range domain.Topics {
		ch, cancel := b.Subscribe(topic)
		cancels = append(cancels, cancel)
		go func(ch <-chan domain.Event) {
			for ev := range ch {
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}(ch)
	}

	return out, func() {
		close(done)
		for _, c := range cancels {
			c()
		}
	}
}

func (m *Mirror) forward(ctx context.Context, ev domain.Event) {
	topic := ev.EventTopic()
	channel, ok := channelFor[topic]
	if !ok {
		return
	}

	data, err := json.Marshal(envelope{
		Type:    string(topic),
		Payload: ev,
		At:      time.Now().UTC(),
	})
	if err != nil {
		m.logger.Warn("mirror: marshal event failed",
			slog.String("topic", string(topic)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := m.signals.Publish(ctx, channel, data); err != nil {
		m.logger.Warn("mirror: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}

	if topic == domain.TopicTradeComplete {
		if err := m.signals.StreamAppend(ctx, TradeStream, data); err != nil {
			m.logger.Warn("mirror: stream append failed",
				slog.String("error", err.Error()),
			)
		}
	}
}
