package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/port/database"
	"github.com/uptalk/switchboard/internal/port/notifier"
)

// Registry is the in-memory book of escalations agents work from. Every
// mutation is written through to durable storage; the map exists so the
// agent dashboard never waits on the database for its hot queries.
type Registry struct {
	mu         sync.RWMutex
	items      map[string]*escalation.Escalation
	byConv     map[string]string // conversation id -> open escalation id
	db         database.Store
	dispatcher *Dispatcher
	cfg        config.Escalation
	log        *slog.Logger

	now func() time.Time
}

func NewRegistry(db database.Store, dispatcher *Dispatcher, cfg config.Escalation, log *slog.Logger) *Registry {
	return &Registry{
		items:      make(map[string]*escalation.Escalation),
		byConv:     make(map[string]string),
		db:         db,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With("service", "registry"),
		now:        time.Now,
	}
}

// Create opens an escalation and marks its conversation escalated. When
// the request names a target agent the escalation starts out assigned
// to them, skipping the pending queue. A conversation can hold at most
// one open escalation; a second create returns the existing one.
func (r *Registry) Create(ctx context.Context, req escalation.CreateRequest) (*escalation.Escalation, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation id required", domain.ErrValidation)
	}
	if !req.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown reason %q", domain.ErrValidation, req.Reason)
	}
	if !req.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, req.Priority)
	}

	r.mu.Lock()
	if id, ok := r.byConv[req.ConversationID]; ok {
		existing := r.items[id]
		r.mu.Unlock()
		r.log.Info("escalation already open", "escalation_id", id, "conversation_id", req.ConversationID)
		return existing.Clone(), nil
	}

	now := r.now().UTC()
	esc := &escalation.Escalation{
		ID:             uuid.NewString(),
		Code:           escalationCode(now),
		ConversationID: req.ConversationID,
		ClientID:       req.ClientID,
		Reason:         req.Reason,
		Priority:       req.Priority,
		Status:         escalation.StatusPending,
		Summary:        req.Summary,
		CreatedAt:      now,
	}
	if req.TargetAgentID != "" {
		esc.Status = escalation.StatusAssigned
		esc.AssignedAgentID = req.TargetAgentID
	}
	r.items[esc.ID] = esc
	r.byConv[esc.ConversationID] = esc.ID
	r.mu.Unlock()

	if err := r.db.SaveEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("save escalation: %w", err)
	}
	if err := r.db.UpdateConversationStatus(ctx, esc.ConversationID, conversation.StatusEscalated, ""); err != nil {
		r.log.Error("mark conversation escalated", "conversation_id", esc.ConversationID, "error", err)
	}

	r.log.Info("escalation created",
		"escalation_id", esc.ID, "code", esc.Code,
		"conversation_id", esc.ConversationID,
		"reason", esc.Reason, "priority", esc.Priority)

	r.dispatcher.Dispatch(ctx, notifier.Event{
		Kind:           notifier.EventEscalationCreated,
		Priority:       esc.Priority,
		ConversationID: esc.ConversationID,
		EscalationID:   esc.ID,
		AgentID:        esc.AssignedAgentID,
		Title:          "Nueva escalación " + esc.Code,
		Body:           esc.Summary,
	})
	return esc.Clone(), nil
}

// Assign hands a pending escalation to an agent. Assigning an already
// assigned or resolved escalation is a conflict, not a reassignment.
func (r *Registry) Assign(ctx context.Context, id, agentID string) (*escalation.Escalation, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id required", domain.ErrValidation)
	}

	r.mu.Lock()
	esc, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("escalation %s: %w", id, domain.ErrNotFound)
	}
	if err := escalation.Transition(esc.Status, escalation.StatusAssigned); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	esc.Status = escalation.StatusAssigned
	esc.AssignedAgentID = agentID
	updated := esc.Clone()
	r.mu.Unlock()

	if err := r.db.SaveEscalation(ctx, updated); err != nil {
		return nil, fmt.Errorf("save escalation: %w", err)
	}
	if err := r.db.TouchConversation(ctx, updated.ConversationID); err != nil {
		r.log.Error("touch conversation on assign", "conversation_id", updated.ConversationID, "error", err)
	}
	r.log.Info("escalation assigned", "escalation_id", id, "agent_id", agentID)

	r.dispatcher.Dispatch(ctx, notifier.Event{
		Kind:           notifier.EventEscalationStatus,
		Priority:       updated.Priority,
		ConversationID: updated.ConversationID,
		EscalationID:   updated.ID,
		AgentID:        agentID,
		Title:          "Escalación " + updated.Code + " asignada",
	})
	return updated, nil
}

// Resolve closes an escalation from either pending or assigned,
// recording who resolved it and how long it stayed open. Resolved is
// terminal.
func (r *Registry) Resolve(ctx context.Context, id, agentID, notes string) (*escalation.Escalation, error) {
	r.mu.Lock()
	esc, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("escalation %s: %w", id, domain.ErrNotFound)
	}
	if err := escalation.Transition(esc.Status, escalation.StatusResolved); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	now := r.now().UTC()
	esc.Status = escalation.StatusResolved
	esc.Notes = notes
	esc.ResolvedBy = agentID
	esc.ResolvedAt = &now
	esc.ResolutionMinutes = now.Sub(esc.CreatedAt).Minutes()
	delete(r.byConv, esc.ConversationID)
	updated := esc.Clone()
	r.mu.Unlock()

	if err := r.db.SaveEscalation(ctx, updated); err != nil {
		return nil, fmt.Errorf("save escalation: %w", err)
	}
	r.log.Info("escalation resolved",
		"escalation_id", id, "resolved_by", agentID, "resolution_minutes", updated.ResolutionMinutes)

	r.dispatcher.Dispatch(ctx, notifier.Event{
		Kind:           notifier.EventEscalationStatus,
		Priority:       updated.Priority,
		ConversationID: updated.ConversationID,
		EscalationID:   updated.ID,
		AgentID:        agentID,
		Title:          "Escalación " + updated.Code + " resuelta",
	})
	return updated, nil
}

// ResolveByConversation resolves the open escalation of a conversation,
// if any. Used when an agent ends a takeover.
func (r *Registry) ResolveByConversation(ctx context.Context, conversationID, agentID, notes string) (*escalation.Escalation, error) {
	r.mu.RLock()
	id, ok := r.byConv[conversationID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("conversation %s has no open escalation: %w", conversationID, domain.ErrNotFound)
	}
	return r.Resolve(ctx, id, agentID, notes)
}

// Get returns a copy of one escalation.
func (r *Registry) Get(id string) (*escalation.Escalation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	esc, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("escalation %s: %w", id, domain.ErrNotFound)
	}
	return esc.Clone(), nil
}

// openFor returns the open escalation of a conversation, if any.
func (r *Registry) openFor(conversationID string) (*escalation.Escalation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConv[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s has no open escalation: %w", conversationID, domain.ErrNotFound)
	}
	return r.items[id].Clone(), nil
}

// setAgent rewrites the holder of an already assigned escalation. Used
// by takeover transfer, which moves ownership without a status change.
func (r *Registry) setAgent(id, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if esc, ok := r.items[id]; ok && esc.Status == escalation.StatusAssigned {
		esc.AssignedAgentID = agentID
	}
}

// GetActive lists open escalations for the agent queue, highest
// priority first and most recent first within the same priority.
func (r *Registry) GetActive(f escalation.Filters) []*escalation.Escalation {
	r.mu.RLock()
	out := make([]*escalation.Escalation, 0, len(r.items))
	for _, esc := range r.items {
		if esc.Status == escalation.StatusResolved {
			continue
		}
		if !matches(esc, f) {
			continue
		}
		out = append(out, esc.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri > rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// List returns escalations matching the filters, resolved included,
// newest first.
func (r *Registry) List(f escalation.Filters) []*escalation.Escalation {
	r.mu.RLock()
	out := make([]*escalation.Escalation, 0, len(r.items))
	for _, esc := range r.items {
		if matches(esc, f) {
			out = append(out, esc.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func matches(esc *escalation.Escalation, f escalation.Filters) bool {
	if f.Priority != "" && esc.Priority != f.Priority {
		return false
	}
	if f.Reason != "" && esc.Reason != f.Reason {
		return false
	}
	if f.Status != "" && esc.Status != f.Status {
		return false
	}
	if f.AgentID != "" && esc.AssignedAgentID != f.AgentID {
		return false
	}
	return true
}

// StartSweep evicts resolved escalations past the retention window from
// the in-memory book. Durable rows are kept for reporting. The returned
// func stops the loop.
func (r *Registry) StartSweep(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
	return cancel
}

func (r *Registry) sweep() {
	cutoff := r.now().UTC().Add(-r.cfg.ResolvedRetention)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, esc := range r.items {
		if esc.Status == escalation.StatusResolved && esc.ResolvedAt != nil && esc.ResolvedAt.Before(cutoff) {
			delete(r.items, id)
		}
	}
}

// escalationCode builds the short reference agents quote to each other,
// e.g. ESC-20260831-7F3A.
func escalationCode(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ESC-%s-%s", now.Format("20060102"), suffix)
}
