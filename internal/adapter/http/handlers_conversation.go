package http

import (
	"net/http"
	"strconv"
)

// GetConversation returns the conversation record.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.db.GetConversation(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListConversationMessages returns the transcript, oldest first.
func (h *Handlers) ListConversationMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	msgs, err := h.db.ListMessages(r.Context(), urlParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// GetConversationContext returns the live context an agent reviews
// before taking over: flow, pending booking, recent window, variables.
func (h *Handlers) GetConversationContext(w http.ResponseWriter, r *http.Request) {
	cctx, err := h.contexts.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, cctx)
}

// ClearConversationContext resets the context keeping user preferences.
func (h *Handlers) ClearConversationContext(w http.ResponseWriter, r *http.Request) {
	cctx, err := h.contexts.Clear(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, cctx)
}
