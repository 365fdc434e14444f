// Package takeover defines the human takeover session entity and its
// state machine.
package takeover

import (
	"fmt"
	"time"

	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
)

// Status represents the state of an agent's manual control over a
// conversation.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// Transition validates a session status change. Ended is terminal;
// active and paused toggle freely.
func Transition(from, to Status) error {
	switch {
	case from == StatusActive && (to == StatusPaused || to == StatusEnded):
		return nil
	case from == StatusPaused && (to == StatusActive || to == StatusEnded):
		return nil
	}
	return fmt.Errorf("%w: illegal takeover transition %s -> %s", domain.ErrConflict, from, to)
}

// Session records an agent's manual control of a conversation. There is
// at most one session per conversation at a time; a superseded session
// must be ended or transferred explicitly, never overwritten.
type Session struct {
	ConversationID  string                `json:"conversation_id"`
	AgentID         string                `json:"agent_id"`
	EscalationID    string                `json:"escalation_id,omitempty"`
	Status          Status                `json:"status"`
	StartedAt       time.Time             `json:"started_at"`
	EndedAt         *time.Time            `json:"ended_at,omitempty"`
	Resolution      string                `json:"resolution,omitempty"`
	ContextSnapshot *conversation.Context `json:"context_snapshot,omitempty"`
}
