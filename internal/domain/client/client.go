// Package client defines the client profile consumed by the escalation
// evaluator. Client CRUD lives outside the core; this is the read-only
// surface the pipeline needs.
package client

import "time"

// LoyaltyTier buckets clients by history with the business.
type LoyaltyTier string

const (
	TierNew     LoyaltyTier = "new"
	TierRegular LoyaltyTier = "regular"
	TierVIP     LoyaltyTier = "vip"
)

// Client is the profile the evaluator folds into its behaviour signals.
type Client struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone,omitempty"`
	Email           string      `json:"email,omitempty"`
	LoyaltyTier     LoyaltyTier `json:"loyalty_tier"`
	Allergies       []string    `json:"allergies,omitempty"`
	PriorComplaints int         `json:"prior_complaints"`
	CreatedAt       time.Time   `json:"created_at"`
}
