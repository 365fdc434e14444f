// Package notifier defines the operator notification port and event
// payload.
package notifier

import (
	"context"

	"github.com/uptalk/switchboard/internal/domain/escalation"
)

// Event kinds pushed to operator clients.
const (
	EventEscalationCreated = "escalation.created"
	EventEscalationStatus  = "escalation.status"
	EventTakeoverStarted   = "takeover.started"
	EventTakeoverEnded     = "takeover.ended"
	EventSystemAlert       = "system.alert"
)

// Event is the payload sent through a Notifier. ExpirySeconds is a hint
// the operator UI may use to auto-dismiss low-priority events; zero
// means no auto-expiry.
type Event struct {
	Kind           string              `json:"kind"`
	Priority       escalation.Priority `json:"priority"`
	ConversationID string              `json:"conversation_id,omitempty"`
	EscalationID   string              `json:"escalation_id,omitempty"`
	AgentID        string              `json:"agent_id,omitempty"`
	Title          string              `json:"title"`
	Body           string              `json:"body,omitempty"`
	ExpirySeconds  int                 `json:"expiry_seconds,omitempty"`
}

// Notifier is the port interface for delivering operator events.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "ws", "nats").
	Name() string

	// Send delivers an event. At-least-once to connected clients,
	// best effort overall.
	Send(ctx context.Context, e Event) error
}
