package ws

import (
	"context"

	"github.com/uptalk/switchboard/internal/domain/conversation"
)

// Sender delivers automated and agent replies to web chat clients over
// the hub. Web clients subscribe filtered by their own client id.
type Sender struct {
	hub *Hub
}

func NewSender(hub *Hub) *Sender { return &Sender{hub: hub} }

func (s *Sender) Channel() conversation.Channel { return conversation.ChannelWeb }

func (s *Sender) Send(ctx context.Context, to, body string) error {
	s.hub.BroadcastEvent(ctx, "message.out", map[string]string{
		"client_id": to,
		"body":      body,
	})
	return nil
}
