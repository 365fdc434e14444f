package ws

import (
	"context"

	"github.com/uptalk/switchboard/internal/port/notifier"
)

// Notifier pushes operator events through the hub to every connected
// dashboard client.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier { return &Notifier{hub: hub} }

func (n *Notifier) Name() string { return "ws" }

func (n *Notifier) Send(ctx context.Context, e notifier.Event) error {
	n.hub.BroadcastEvent(ctx, e.Kind, e)
	return nil
}
