package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/client"
)

func (s *Store) GetClient(ctx context.Context, id string) (*client.Client, error) {
	var c client.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, phone, email, loyalty_tier, allergies, prior_complaints, created_at
		 FROM clients WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyTier, &c.Allergies, &c.PriorComplaints, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get client %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get client %s: %w", id, err)
	}
	return &c, nil
}
