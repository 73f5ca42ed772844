// Package notify pushes signal lifecycle alerts to operator channels.
// Activations, expiries, and engine errors are fanned out to every
// configured sender (Telegram, Discord), filtered by the event types the
// operator subscribed to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event identifies what happened in the signal lifecycle.
type Event string

const (
	// EventSignalActivated fires when a candidate is promoted to ACTIVE.
	EventSignalActivated Event = "signal_activated"
	// EventSignalExpired fires when an active signal runs out of TTL.
	EventSignalExpired Event = "signal_expired"
	// EventError fires on engine-level failures worth waking someone for.
	EventError Event = "error"
)

// Sender delivers one alert over a single channel. Senders receive the event
// so they can style the message (color, badge) by lifecycle stage.
type Sender interface {
	Send(ctx context.Context, event Event, title, message string) error
	Name() string
}

// Notifier fans alerts out to the configured senders, dropping events the
// operator did not subscribe to.
type Notifier struct {
	senders []Sender
	allowed map[Event]bool // empty means every event passes
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. events is the operator's subscription list
// from config ("signal_activated", "signal_expired", "error"); an empty list
// subscribes to everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]bool, len(events))
	for _, e := range events {
		allowed[Event(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers one alert to every sender. A failing sender never blocks
// the others; failures are joined into the returned error. Unsubscribed
// events are dropped silently.
func (n *Notifier) Notify(ctx context.Context, event Event, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.DebugContext(ctx, "event not subscribed", slog.String("event", string(event)))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, event, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("event", string(event)),
		)
	}
	return errors.Join(errs...)
}
