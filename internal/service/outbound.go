package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/port/transport"
	"github.com/uptalk/switchboard/internal/resilience"
)

// ErrOutboundThrottled is returned when a conversation exceeds its
// outbound send budget for the current window.
var ErrOutboundThrottled = fmt.Errorf("outbound send rate exceeded")

// Outbound delivers replies to clients over the channel a conversation
// arrived on. Each transport sits behind its own circuit breaker so a
// flapping WhatsApp API cannot take web delivery down with it.
type Outbound struct {
	senders  map[conversation.Channel]transport.Sender
	breakers map[conversation.Channel]*resilience.Breaker
	limiter  *RateLimiter
	log      *slog.Logger
}

func NewOutbound(cfg config.Config, log *slog.Logger, senders ...transport.Sender) *Outbound {
	o := &Outbound{
		senders:  make(map[conversation.Channel]transport.Sender, len(senders)),
		breakers: make(map[conversation.Channel]*resilience.Breaker, len(senders)),
		limiter:  NewRateLimiter(cfg.Rate.OutboundPerWindow, cfg.Rate.Window),
		log:      log.With("service", "outbound"),
	}
	for _, s := range senders {
		o.senders[s.Channel()] = s
		o.breakers[s.Channel()] = resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	}
	return o
}

// Deliver sends body to the conversation's client. Throttled sends and
// open circuits return errors the caller can distinguish from transport
// failures.
func (o *Outbound) Deliver(ctx context.Context, conv *conversation.Conversation, body string) error {
	sender, ok := o.senders[conv.Channel]
	if !ok {
		return fmt.Errorf("no sender registered for channel %s", conv.Channel)
	}
	if !o.limiter.Admit("out:" + conv.ID) {
		o.log.Warn("outbound throttled", "conversation_id", conv.ID, "channel", conv.Channel)
		return ErrOutboundThrottled
	}

	breaker := o.breakers[conv.Channel]
	err := breaker.Execute(func() error {
		return sender.Send(ctx, conv.ClientID, body)
	})
	if err != nil {
		o.log.Warn("delivery failed",
			"conversation_id", conv.ID,
			"channel", conv.Channel,
			"circuit", breaker.State().String(),
			"error", err,
		)
		return fmt.Errorf("deliver via %s: %w", conv.Channel, err)
	}
	return nil
}

// StartSweep forwards to the outbound window limiter's sweeper.
func (o *Outbound) StartSweep(interval time.Duration) func() {
	return o.limiter.StartSweep(interval)
}
