package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/domain/takeover"
	"github.com/uptalk/switchboard/internal/port/database"
	"github.com/uptalk/switchboard/internal/port/notifier"
)

// TakeoverManager tracks which conversations a human agent controls.
// While a session is active the automated pipeline stays out of the
// conversation; the agent speaks through SendAsAgent. Sessions live in
// memory keyed by conversation id, ended sessions linger for a grace
// period so the snapshot stays inspectable.
type TakeoverManager struct {
	mu       sync.RWMutex
	sessions map[string]*takeover.Session

	db         database.Store
	contexts   *ContextStore
	registry   *Registry
	outbound   *Outbound
	dispatcher *Dispatcher
	cfg        config.Takeover
	log        *slog.Logger

	now func() time.Time
}

func NewTakeoverManager(db database.Store, contexts *ContextStore, registry *Registry, outbound *Outbound, dispatcher *Dispatcher, cfg config.Takeover, log *slog.Logger) *TakeoverManager {
	return &TakeoverManager{
		sessions:   make(map[string]*takeover.Session),
		db:         db,
		contexts:   contexts,
		registry:   registry,
		outbound:   outbound,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With("service", "takeover"),
		now:        time.Now,
	}
}

// Controlling reports whether a human currently holds the conversation
// and automated processing must stay suppressed. Paused sessions hand
// the turn back to automation without ending the takeover.
func (m *TakeoverManager) Controlling(conversationID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[conversationID]
	return ok && s.Status == takeover.StatusActive
}

// Session returns a copy of the session for a conversation, ended
// sessions included while they are within the grace period.
func (m *TakeoverManager) Session(conversationID string) (*takeover.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[conversationID]
	if !ok {
		return nil, fmt.Errorf("takeover for conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	copied := *s
	return &copied, nil
}

// Start puts an agent in control of a conversation. Starting a session
// the same agent already holds is a no-op success; a second agent is
// rejected until the holder ends or transfers. The open escalation, if
// any, is assigned to the agent.
func (m *TakeoverManager) Start(ctx context.Context, conversationID, agentID string) (domain.Result, error) {
	if conversationID == "" || agentID == "" {
		return domain.Result{}, fmt.Errorf("%w: conversation id and agent id required", domain.ErrValidation)
	}
	if _, err := m.db.GetConversation(ctx, conversationID); err != nil {
		return domain.Result{}, fmt.Errorf("load conversation: %w", err)
	}

	m.mu.Lock()
	if s, ok := m.sessions[conversationID]; ok && s.Status != takeover.StatusEnded {
		holder := s.AgentID
		copied := *s
		m.mu.Unlock()
		if holder == agentID {
			return domain.OK("ya tienes el control de esta conversación", &copied), nil
		}
		return domain.Rejected("la conversación ya está atendida por el agente %s", holder), nil
	}

	snapshot, err := m.contexts.Get(ctx, conversationID)
	if err != nil {
		m.mu.Unlock()
		return domain.Result{}, fmt.Errorf("snapshot context: %w", err)
	}
	session := &takeover.Session{
		ConversationID:  conversationID,
		AgentID:         agentID,
		Status:          takeover.StatusActive,
		StartedAt:       m.now().UTC(),
		ContextSnapshot: snapshot,
	}
	m.sessions[conversationID] = session
	m.mu.Unlock()

	if esc, err := m.registry.openFor(conversationID); err == nil && esc.AssignedAgentID == "" {
		if assigned, err := m.registry.Assign(ctx, esc.ID, agentID); err == nil {
			m.setEscalation(conversationID, assigned.ID)
		}
	} else if err == nil {
		m.setEscalation(conversationID, esc.ID)
	}

	if err := m.db.UpdateConversationStatus(ctx, conversationID, conversation.StatusEscalated, agentID); err != nil {
		m.log.Error("update conversation on takeover", "conversation_id", conversationID, "error", err)
	}
	m.systemMessage(ctx, conversationID, fmt.Sprintf("El agente %s se ha unido a la conversación.", agentID))

	m.log.Info("takeover started", "conversation_id", conversationID, "agent_id", agentID)
	m.dispatcher.Dispatch(ctx, notifier.Event{
		Kind:           notifier.EventTakeoverStarted,
		ConversationID: conversationID,
		AgentID:        agentID,
		Title:          "Toma de control iniciada",
	})

	copied := *session
	return domain.OK("control de la conversación adquirido", &copied), nil
}

// SendAsAgent delivers a message from the holding agent to the client
// and records it with a human sender. Only the session holder may send.
func (m *TakeoverManager) SendAsAgent(ctx context.Context, conversationID, agentID, content string) (domain.Result, error) {
	if content == "" {
		return domain.Result{}, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}

	m.mu.RLock()
	s, ok := m.sessions[conversationID]
	var holder string
	var status takeover.Status
	if ok {
		holder, status = s.AgentID, s.Status
	}
	m.mu.RUnlock()

	switch {
	case !ok || status == takeover.StatusEnded:
		return domain.Rejected("no hay toma de control activa en esta conversación"), nil
	case holder != agentID:
		return domain.Rejected("la conversación pertenece al agente %s", holder), nil
	case status == takeover.StatusPaused:
		return domain.Rejected("la sesión está en pausa; reanúdala antes de escribir"), nil
	}

	conv, err := m.db.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("load conversation: %w", err)
	}
	if err := m.outbound.Deliver(ctx, conv, content); err != nil {
		return domain.Result{}, fmt.Errorf("send as agent: %w", err)
	}

	msg, err := m.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: conversationID,
		Sender:         conversation.SenderHuman,
		Content:        content,
		Metadata:       map[string]any{"agent_id": agentID},
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("record agent message: %w", err)
	}
	if _, err := m.contexts.Update(ctx, conversationID, conversation.ContextUpdate{
		AppendMessages: []conversation.ContextMessage{{
			Sender:    conversation.SenderHuman,
			Content:   content,
			Timestamp: m.now().UTC(),
		}},
	}); err != nil {
		m.log.Error("append agent message to context", "conversation_id", conversationID, "error", err)
	}
	return domain.OK("mensaje enviado", msg), nil
}

// Pause hands the conversation back to automation while keeping the
// session. The agent can resume without starting over.
func (m *TakeoverManager) Pause(ctx context.Context, conversationID, agentID string) (domain.Result, error) {
	res, err := m.flip(conversationID, agentID, takeover.StatusPaused)
	if err != nil || !res.Success {
		return res, err
	}
	if err := m.db.UpdateConversationStatus(ctx, conversationID, conversation.StatusActive, agentID); err != nil {
		m.log.Error("update conversation on pause", "conversation_id", conversationID, "error", err)
	}
	m.systemMessage(ctx, conversationID, "El agente ha pausado la conversación; el asistente vuelve a responder.")
	return res, nil
}

// Resume returns control to the paused session's agent.
func (m *TakeoverManager) Resume(ctx context.Context, conversationID, agentID string) (domain.Result, error) {
	res, err := m.flip(conversationID, agentID, takeover.StatusActive)
	if err != nil || !res.Success {
		return res, err
	}
	if err := m.db.UpdateConversationStatus(ctx, conversationID, conversation.StatusEscalated, agentID); err != nil {
		m.log.Error("update conversation on resume", "conversation_id", conversationID, "error", err)
	}
	m.systemMessage(ctx, conversationID, fmt.Sprintf("El agente %s ha retomado la conversación.", agentID))
	return res, nil
}

// End closes the session, resolves the linked escalation and returns
// the conversation to automated handling. The session record survives
// in memory for the configured grace period.
func (m *TakeoverManager) End(ctx context.Context, conversationID, agentID, resolution string) (domain.Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	if !ok || s.Status == takeover.StatusEnded {
		m.mu.Unlock()
		return domain.Rejected("no hay toma de control activa en esta conversación"), nil
	}
	if s.AgentID != agentID {
		holder := s.AgentID
		m.mu.Unlock()
		return domain.Rejected("la conversación pertenece al agente %s", holder), nil
	}
	if err := takeover.Transition(s.Status, takeover.StatusEnded); err != nil {
		m.mu.Unlock()
		return domain.Result{}, err
	}
	now := m.now().UTC()
	s.Status = takeover.StatusEnded
	s.EndedAt = &now
	s.Resolution = resolution
	copied := *s
	m.mu.Unlock()

	if _, err := m.registry.ResolveByConversation(ctx, conversationID, agentID, resolution); err != nil {
		m.log.Debug("no escalation to resolve on end", "conversation_id", conversationID, "error", err)
	}
	if err := m.db.UpdateConversationStatus(ctx, conversationID, conversation.StatusActive, ""); err != nil {
		m.log.Error("update conversation on end", "conversation_id", conversationID, "error", err)
	}
	m.systemMessage(ctx, conversationID, "El agente ha finalizado la conversación; el asistente vuelve a responder.")

	m.log.Info("takeover ended", "conversation_id", conversationID, "agent_id", agentID)
	m.dispatcher.Dispatch(ctx, notifier.Event{
		Kind:           notifier.EventTakeoverEnded,
		ConversationID: conversationID,
		AgentID:        agentID,
		Title:          "Toma de control finalizada",
	})
	return domain.OK("conversación devuelta al asistente", &copied), nil
}

// Transfer hands the session to another agent in place: same session,
// same snapshot, new holder. Only the current holder may transfer.
func (m *TakeoverManager) Transfer(ctx context.Context, conversationID, fromAgentID, toAgentID string) (domain.Result, error) {
	if toAgentID == "" {
		return domain.Result{}, fmt.Errorf("%w: target agent id required", domain.ErrValidation)
	}
	if toAgentID == fromAgentID {
		return domain.Rejected("la conversación ya pertenece al agente %s", fromAgentID), nil
	}

	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	if !ok || s.Status == takeover.StatusEnded {
		m.mu.Unlock()
		return domain.Rejected("no hay toma de control activa en esta conversación"), nil
	}
	if s.AgentID != fromAgentID {
		holder := s.AgentID
		m.mu.Unlock()
		return domain.Rejected("la conversación pertenece al agente %s", holder), nil
	}
	s.AgentID = toAgentID
	escID := s.EscalationID
	copied := *s
	m.mu.Unlock()

	if escID != "" {
		m.reassignEscalation(ctx, escID, toAgentID)
	}
	if err := m.db.UpdateConversationStatus(ctx, conversationID, conversation.StatusEscalated, toAgentID); err != nil {
		m.log.Error("update conversation on transfer", "conversation_id", conversationID, "error", err)
	}
	m.systemMessage(ctx, conversationID,
		fmt.Sprintf("La conversación ha pasado del agente %s al agente %s.", fromAgentID, toAgentID))

	m.log.Info("takeover transferred",
		"conversation_id", conversationID, "from", fromAgentID, "to", toAgentID)
	return domain.OK("conversación transferida", &copied), nil
}

// StartGC evicts ended sessions older than the grace period. The
// returned func stops the loop.
func (m *TakeoverManager) StartGC(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.gc()
			}
		}
	}()
	return cancel
}

func (m *TakeoverManager) gc() {
	cutoff := m.now().UTC().Add(-m.cfg.EndedGrace)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.Status == takeover.StatusEnded && s.EndedAt != nil && s.EndedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// flip toggles between active and paused for the holding agent.
func (m *TakeoverManager) flip(conversationID, agentID string, to takeover.Status) (domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[conversationID]
	if !ok || s.Status == takeover.StatusEnded {
		return domain.Rejected("no hay toma de control activa en esta conversación"), nil
	}
	if s.AgentID != agentID {
		return domain.Rejected("la conversación pertenece al agente %s", s.AgentID), nil
	}
	if s.Status == to {
		copied := *s
		return domain.OK("la sesión ya estaba en ese estado", &copied), nil
	}
	if err := takeover.Transition(s.Status, to); err != nil {
		return domain.Result{}, err
	}
	s.Status = to
	copied := *s
	return domain.OK("estado de la sesión actualizado", &copied), nil
}

func (m *TakeoverManager) setEscalation(conversationID, escalationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[conversationID]; ok {
		s.EscalationID = escalationID
	}
}

func (m *TakeoverManager) reassignEscalation(ctx context.Context, escalationID, agentID string) {
	esc, err := m.registry.Get(escalationID)
	if err != nil || esc.Status != escalation.StatusAssigned {
		return
	}
	// Direct store write: Assign only covers pending escalations.
	esc.AssignedAgentID = agentID
	if err := m.db.SaveEscalation(ctx, esc); err != nil {
		m.log.Error("reassign escalation", "escalation_id", escalationID, "error", err)
	}
	m.registry.setAgent(escalationID, agentID)
}

func (m *TakeoverManager) systemMessage(ctx context.Context, conversationID, text string) {
	_, err := m.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: conversationID,
		Sender:         conversation.SenderAutomated,
		Content:        text,
		Metadata:       map[string]any{"system": true},
	})
	if err != nil {
		m.log.Error("record system message", "conversation_id", conversationID, "error", err)
	}
}
