// Package notify delivers ledger notifications to external sinks. Delivery is
// best effort: failures are logged and counted, never returned to the caller
// of a ledger operation.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/metrics"
)

// Notifier delivers one notification
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Func adapts a function to a Notifier
type Func func(ctx context.Context, n domain.Notification) error

// Notify calls f
func (f Func) Notify(ctx context.Context, n domain.Notification) error {
	return f(ctx, n)
}

// Sink is a named notifier
type Sink struct {
	Name     string
	Notifier Notifier
}

// Multi fans a notification out to every sink
type Multi struct {
	sinks   []Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewMulti creates a fan-out notifier. Nil notifiers are skipped.
func NewMulti(m *metrics.Metrics, logger *slog.Logger, sinks ...Sink) *Multi {
	multi := &Multi{metrics: m, logger: logger}
	for _, s := range sinks {
		if s.Notifier != nil {
			multi.sinks = append(multi.sinks, s)
		}
	}
	return multi
}

// Len returns the number of configured sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Notify delivers to every sink and joins their errors
func (m *Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notifier.Notify(ctx, n); err != nil {
			m.metrics.NotificationFailures.WithLabelValues(s.Name).Inc()
			m.logger.Warn("notification failed",
				"sink", s.Name,
				"type", n.Type,
				"event_id", n.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
