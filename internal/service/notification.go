package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/port/notifier"
)

const sendTimeout = 5 * time.Second

// Dispatcher fans an operator event out to every registered notifier.
// Delivery is best effort: a failing channel is logged and skipped, it
// never blocks the pipeline or the other channels.
type Dispatcher struct {
	notifiers []notifier.Notifier
	log       *slog.Logger
}

func NewDispatcher(log *slog.Logger, notifiers ...notifier.Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		log:       log.With("service", "dispatcher"),
	}
}

// Dispatch stamps the expiry hint and pushes the event to all channels
// concurrently. It returns once every send has completed or timed out.
func (d *Dispatcher) Dispatch(ctx context.Context, e notifier.Event) {
	if e.ExpirySeconds == 0 {
		e.ExpirySeconds = expiryHint(e.Priority)
	}

	done := make(chan struct{}, len(d.notifiers))
	for _, n := range d.notifiers {
		go func(n notifier.Notifier) {
			defer func() { done <- struct{}{} }()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()
			if err := n.Send(sctx, e); err != nil {
				d.log.Warn("notification delivery failed",
					"notifier", n.Name(), "kind", e.Kind, "error", err)
			}
		}(n)
	}
	for range d.notifiers {
		<-done
	}
}

// expiryHint maps priority to an auto-dismiss hint: critical events
// stay on screen until acted on, chatter fades quickly.
func expiryHint(p escalation.Priority) int {
	switch p {
	case escalation.PriorityUrgent, escalation.PriorityHigh:
		return 0
	case escalation.PriorityMedium:
		return 300
	default:
		return 60
	}
}
