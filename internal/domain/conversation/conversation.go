// Package conversation defines the Conversation, Message and Context
// domain entities.
package conversation

import (
	"fmt"
	"time"

	"github.com/uptalk/switchboard/internal/domain"
)

// Channel identifies the transport a conversation arrived on.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelWeb || c == ChannelWhatsApp
}

// Status represents the current state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusEscalated Status = "escalated"
	StatusClosed    Status = "closed"
)

// Transition validates a conversation status change. Closed is terminal.
func Transition(from, to Status) error {
	if from == to {
		return nil
	}
	switch from {
	case StatusActive:
		if to == StatusEscalated || to == StatusClosed {
			return nil
		}
	case StatusEscalated:
		if to == StatusActive || to == StatusClosed {
			return nil
		}
	case StatusClosed:
		// no way back
	}
	return fmt.Errorf("%w: illegal conversation transition %s -> %s", domain.ErrConflict, from, to)
}

// Sender identifies who authored a message.
type Sender string

const (
	SenderClient    Sender = "client"
	SenderAutomated Sender = "automated"
	SenderHuman     Sender = "human"
)

// Conversation represents a chat thread between a client and the service
// on a single channel. While a takeover session is active, AgentID holds
// the controlling agent; it is a back-reference only, the session owns
// its own lifecycle.
type Conversation struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	Channel      Channel   `json:"channel"`
	Status       Status    `json:"status"`
	AgentID      string    `json:"agent_id,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single immutable message within a conversation, ordered
// by CreatedAt.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Sender         Sender         `json:"sender"`
	Content        string         `json:"content"`
	MediaRef       string         `json:"media_ref,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// InboundRequest is the normalized shape every channel adapter produces
// before a message enters the pipeline.
type InboundRequest struct {
	Content  string         `json:"content"`
	ClientID string         `json:"client_id"`
	Channel  Channel        `json:"channel"`
	MediaRef string         `json:"media_ref,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
