package http

import (
	"net/http"

	"github.com/uptalk/switchboard/internal/adapter/otel"
	"github.com/uptalk/switchboard/internal/domain/escalation"
)

// ListActiveEscalations returns the agent queue, optionally narrowed by
// priority/reason/status/agent query parameters.
func (h *Handlers) ListActiveEscalations(w http.ResponseWriter, r *http.Request) {
	f := filtersFromQuery(r)
	writeJSON(w, http.StatusOK, h.registry.GetActive(f))
}

// ListEscalations returns matching escalations including resolved ones.
func (h *Handlers) ListEscalations(w http.ResponseWriter, r *http.Request) {
	f := filtersFromQuery(r)
	writeJSON(w, http.StatusOK, h.registry.List(f))
}

func (h *Handlers) GetEscalation(w http.ResponseWriter, r *http.Request) {
	esc, err := h.registry.Get(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "escalation not found")
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

type createEscalationRequest struct {
	escalation.CreateRequest
}

// CreateEscalation opens a manual escalation, e.g. when an operator
// flags a conversation from the dashboard.
func (h *Handlers) CreateEscalation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createEscalationRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.ConversationID, "conversation_id") {
		return
	}
	if req.Reason == "" {
		req.Reason = escalation.ReasonClientRequest
	}
	if req.Priority == "" {
		req.Priority = escalation.PriorityMedium
	}

	ctx, span := otel.StartEscalationSpan(r.Context(), req.ConversationID, string(req.Reason))
	defer span.End()

	esc, err := h.registry.Create(ctx, req.CreateRequest)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	if h.metrics != nil {
		h.metrics.EscalationsCreated.Add(ctx, 1)
	}
	writeJSON(w, http.StatusCreated, esc)
}

type assignRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *Handlers) AssignEscalation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assignRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	esc, err := h.registry.Assign(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "escalation not found")
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

type resolveRequest struct {
	AgentID string `json:"agent_id"`
	Notes   string `json:"notes"`
}

func (h *Handlers) ResolveEscalation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	esc, err := h.registry.Resolve(r.Context(), urlParam(r, "id"), req.AgentID, req.Notes)
	if err != nil {
		writeDomainError(w, err, "escalation not found")
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func filtersFromQuery(r *http.Request) escalation.Filters {
	q := r.URL.Query()
	return escalation.Filters{
		Priority: escalation.Priority(q.Get("priority")),
		Reason:   escalation.Reason(q.Get("reason")),
		Status:   escalation.Status(q.Get("status")),
		AgentID:  q.Get("agent"),
	}
}
