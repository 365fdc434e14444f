package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
)

// GetContext loads the durable copy of a conversation context.
func (s *Store) GetContext(ctx context.Context, conversationID string) (*conversation.Context, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT context FROM conversation_contexts WHERE conversation_id = $1`,
		conversationID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get context %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get context %s: %w", conversationID, err)
	}

	var c conversation.Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode context %s: %w", conversationID, err)
	}
	c.ConversationID = conversationID
	return &c, nil
}

// SaveContext upserts the durable copy of a conversation context.
func (s *Store) SaveContext(ctx context.Context, c *conversation.Context) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context %s: %w", c.ConversationID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_contexts (conversation_id, context, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (conversation_id)
		 DO UPDATE SET context = EXCLUDED.context, updated_at = NOW()`,
		c.ConversationID, raw)
	if err != nil {
		return fmt.Errorf("save context %s: %w", c.ConversationID, err)
	}
	return nil
}
