package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
)

func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, client_id, channel, status, agent_id, last_activity, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ClientID, &c.Channel, &c.Status, &c.AgentID, &c.LastActivity, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

// FindActiveConversation returns the newest non-closed conversation for a
// client on a channel, or ErrNotFound.
func (s *Store) FindActiveConversation(ctx context.Context, clientID string, channel conversation.Channel) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, client_id, channel, status, agent_id, last_activity, created_at, updated_at
		 FROM conversations
		 WHERE client_id = $1 AND channel = $2 AND status <> 'closed'
		 ORDER BY last_activity DESC LIMIT 1`,
		clientID, channel,
	).Scan(&c.ID, &c.ClientID, &c.Channel, &c.Status, &c.AgentID, &c.LastActivity, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find conversation for %s/%s: %w", clientID, channel, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find conversation for %s/%s: %w", clientID, channel, err)
	}
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	var created conversation.Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (client_id, channel, status)
		 VALUES ($1, $2, 'active')
		 RETURNING id, client_id, channel, status, agent_id, last_activity, created_at, updated_at`,
		c.ClientID, c.Channel,
	).Scan(&created.ID, &created.ClientID, &created.Channel, &created.Status,
		&created.AgentID, &created.LastActivity, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &created, nil
}

func (s *Store) UpdateConversationStatus(ctx context.Context, id string, status conversation.Status, agentID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, agent_id = $3, updated_at = NOW() WHERE id = $1`,
		id, status, agentID)
	if err != nil {
		return fmt.Errorf("update conversation %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update conversation %s status: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) TouchConversation(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET last_activity = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", id, err)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error) {
	var created conversation.Message
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender, content, media_ref, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, conversation_id, sender, content, media_ref, metadata, created_at`,
		m.ConversationID, m.Sender, m.Content, m.MediaRef, m.Metadata,
	).Scan(&created.ID, &created.ConversationID, &created.Sender, &created.Content,
		&created.MediaRef, &created.Metadata, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	// Keep the parent conversation's activity clock in step
	_, _ = s.pool.Exec(ctx,
		`UPDATE conversations SET last_activity = NOW(), updated_at = NOW() WHERE id = $1`,
		m.ConversationID)
	return &created, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender, content, media_ref, metadata, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var result []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content,
			&m.MediaRef, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
