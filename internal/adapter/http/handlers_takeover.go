package http

import (
	"net/http"
)

type takeoverRequest struct {
	AgentID string `json:"agent_id"`
}

// StartTakeover puts the requesting agent in control of a conversation.
func (h *Handlers) StartTakeover(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[takeoverRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	res, err := h.takeovers.Start(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	if res.Success && h.metrics != nil {
		h.metrics.TakeoversStarted.Add(r.Context(), 1)
	}
	writeResult(w, res, http.StatusConflict)
}

type agentMessageRequest struct {
	AgentID string `json:"agent_id"`
	Content string `json:"content"`
}

func (h *Handlers) SendAsAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agentMessageRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") || !requireField(w, req.Content, "content") {
		return
	}

	res, err := h.takeovers.SendAsAgent(r.Context(), urlParam(r, "id"), req.AgentID, req.Content)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeResult(w, res, http.StatusConflict)
}

func (h *Handlers) PauseTakeover(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[takeoverRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	res, err := h.takeovers.Pause(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeResult(w, res, http.StatusConflict)
}

func (h *Handlers) ResumeTakeover(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[takeoverRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	res, err := h.takeovers.Resume(r.Context(), urlParam(r, "id"), req.AgentID)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeResult(w, res, http.StatusConflict)
}

type endTakeoverRequest struct {
	AgentID    string `json:"agent_id"`
	Resolution string `json:"resolution"`
}

func (h *Handlers) EndTakeover(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[endTakeoverRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	res, err := h.takeovers.End(r.Context(), urlParam(r, "id"), req.AgentID, req.Resolution)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeResult(w, res, http.StatusConflict)
}

type transferRequest struct {
	FromAgentID string `json:"from_agent_id"`
	ToAgentID   string `json:"to_agent_id"`
}

func (h *Handlers) TransferTakeover(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[transferRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.FromAgentID, "from_agent_id") || !requireField(w, req.ToAgentID, "to_agent_id") {
		return
	}

	res, err := h.takeovers.Transfer(r.Context(), urlParam(r, "id"), req.FromAgentID, req.ToAgentID)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeResult(w, res, http.StatusConflict)
}

// GetTakeoverSession exposes the session record, snapshot included,
// while it exists (active, paused, or inside the ended grace window).
func (h *Handlers) GetTakeoverSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.takeovers.Session(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no takeover session for this conversation")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
