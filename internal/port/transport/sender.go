// Package transport defines the outbound message delivery port.
package transport

import (
	"context"

	"github.com/uptalk/switchboard/internal/domain/conversation"
)

// Sender delivers an outbound message to a client over one channel.
// Implementations exist per transport (WhatsApp Cloud API, web socket).
type Sender interface {
	// Channel returns the channel this sender serves.
	Channel() conversation.Channel

	// Send delivers body to the recipient address (phone number for
	// whatsapp, conversation id for web).
	Send(ctx context.Context, to, body string) error
}
