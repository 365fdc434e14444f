// Package escalation defines the Escalation domain entity and its
// lifecycle state machine.
package escalation

import (
	"fmt"
	"time"

	"github.com/uptalk/switchboard/internal/domain"
)

// Reason explains why a conversation was escalated to a human agent.
type Reason string

const (
	ReasonLowConfidence   Reason = "low-confidence"
	ReasonRepeatedFailure Reason = "repeated-failure"
	ReasonComplaint       Reason = "complaint"
	ReasonComplexRequest  Reason = "complex-request"
	ReasonTechnicalIssue  Reason = "technical-issue"
	ReasonPaymentIssue    Reason = "payment-issue"
	ReasonClientRequest   Reason = "explicit-client-request"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonLowConfidence, ReasonRepeatedFailure, ReasonComplaint,
		ReasonComplexRequest, ReasonTechnicalIssue, ReasonPaymentIssue,
		ReasonClientRequest:
		return true
	}
	return false
}

// Priority orders escalations for agent pickup.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank maps a priority to a sortable weight (urgent highest).
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return p.Rank() > 0 }

// Status represents the lifecycle state of an escalation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAssigned Status = "assigned"
	StatusResolved Status = "resolved"
)

// Transition validates a status change. Resolution is terminal:
// pending -> assigned, pending -> resolved and assigned -> resolved are
// the only legal moves.
func Transition(from, to Status) error {
	switch {
	case from == StatusPending && to == StatusAssigned:
		return nil
	case from == StatusPending && to == StatusResolved:
		return nil
	case from == StatusAssigned && to == StatusResolved:
		return nil
	}
	return fmt.Errorf("%w: illegal escalation transition %s -> %s", domain.ErrConflict, from, to)
}

// Escalation is a tracked request to move a conversation from automated
// handling to a human agent. It references its conversation by id only.
type Escalation struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	ConversationID    string     `json:"conversation_id"`
	ClientID          string     `json:"client_id"`
	Reason            Reason     `json:"reason"`
	Priority          Priority   `json:"priority"`
	Status            Status     `json:"status"`
	AssignedAgentID   string     `json:"assigned_agent_id,omitempty"`
	Summary           string     `json:"summary"`
	Notes             string     `json:"notes,omitempty"`
	ResolvedBy        string     `json:"resolved_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolutionMinutes float64    `json:"resolution_minutes,omitempty"`
}

// Clone returns a deep copy safe to hand outside a lock.
func (e *Escalation) Clone() *Escalation {
	out := *e
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

// CreateRequest holds the fields needed to open a new escalation.
type CreateRequest struct {
	ConversationID string   `json:"conversation_id"`
	ClientID       string   `json:"client_id"`
	Reason         Reason   `json:"reason"`
	Priority       Priority `json:"priority"`
	Summary        string   `json:"summary"`
	TargetAgentID  string   `json:"target_agent_id,omitempty"`
}

// Filters narrows GetActive listings.
type Filters struct {
	Priority Priority `json:"priority,omitempty"`
	Reason   Reason   `json:"reason,omitempty"`
	Status   Status   `json:"status,omitempty"`
	AgentID  string   `json:"agent_id,omitempty"`
}
