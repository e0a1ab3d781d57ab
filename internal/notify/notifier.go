// Package notify delivers operator alerts over Telegram and Discord. The
// Relay agent turns bus events into notifications; the Notifier fans them
// out to every configured channel, filtered by event name.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to all senders. Only events named in the allowed set
// pass Notify; an empty set allows everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	limiter domain.RateLimiter // optional, paces each messenger API
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders, filtered to events.
// limiter may be nil; senders are then not paced.
func NewNotifier(senders []Sender, events []string, limiter domain.RateLimiter, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		limiter: limiter,
		logger:  logger.With("component", "notifier"),
	}
}

// HasSenders reports whether any delivery channel is configured.
func (n *Notifier) HasSenders() bool {
	return len(n.senders) > 0
}

// Notify delivers to all senders when the event name passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.Debug("event filtered out", "event", event)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every channel. One failing sender does not block the
// rest; failures are combined into a single error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		// Messenger APIs throttle aggressively; honour the shared budget
		// before each delivery.
		if n.limiter != nil {
			if err := n.limiter.Wait(ctx, "notify:"+s.Name()); err != nil {
				n.logger.Error("sender rate limit wait failed", "sender", s.Name(), "error", err)
				errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
				continue
			}
		}
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed", "sender", s.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.Debug("notification sent", "sender", s.Name(), "title", title)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
