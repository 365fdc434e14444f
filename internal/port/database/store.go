// Package database defines the durable store port (interface).
package database

import (
	"context"

	"github.com/uptalk/switchboard/internal/domain/client"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
)

// Store is the port interface for durable persistence. Implemented by
// the postgres adapter; services depend only on this interface.
type Store interface {
	// Conversations
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	FindActiveConversation(ctx context.Context, clientID string, channel conversation.Channel) (*conversation.Conversation, error)
	CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error)
	UpdateConversationStatus(ctx context.Context, id string, status conversation.Status, agentID string) error
	TouchConversation(ctx context.Context, id string) error

	// Messages
	CreateMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error)

	// Contexts
	GetContext(ctx context.Context, conversationID string) (*conversation.Context, error)
	SaveContext(ctx context.Context, c *conversation.Context) error

	// Escalations
	SaveEscalation(ctx context.Context, e *escalation.Escalation) error
	ListEscalations(ctx context.Context, f escalation.Filters, limit int) ([]escalation.Escalation, error)

	// Clients
	GetClient(ctx context.Context, id string) (*client.Client, error)
}
