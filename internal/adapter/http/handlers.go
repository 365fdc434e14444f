package http

import (
	"context"
	"net/http"
	"time"

	"github.com/uptalk/switchboard/internal/adapter/otel"
	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/port/database"
	"github.com/uptalk/switchboard/internal/service"
)

const maxBodyBytes = 64 << 10

// Handlers bundles the services the API exposes.
type Handlers struct {
	router    *service.Router
	contexts  *service.ContextStore
	registry  *service.Registry
	takeovers *service.TakeoverManager
	db        database.Store
	metrics   *otel.Metrics
}

func NewHandlers(router *service.Router, contexts *service.ContextStore, registry *service.Registry, takeovers *service.TakeoverManager, db database.Store) *Handlers {
	return &Handlers{
		router:    router,
		contexts:  contexts,
		registry:  registry,
		takeovers: takeovers,
		db:        db,
	}
}

// WithMetrics attaches pipeline metric instruments. Optional; handlers
// work without them.
func (h *Handlers) WithMetrics(m *otel.Metrics) *Handlers {
	h.metrics = m
	return h
}

// Health is the liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleInboundMessage feeds one normalized inbound message into the
// pipeline. Web widgets post here directly; the WhatsApp webhook
// adapter normalizes into the same shape first.
func (h *Handlers) HandleInboundMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.InboundRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	ctx, span := otel.StartTurnSpan(r.Context(), "", req.ClientID, string(req.Channel))
	defer span.End()

	start := time.Now()
	res := h.router.ProcessMessage(ctx, req)
	h.recordTurn(ctx, res, time.Since(start))
	writeResult(w, res, statusForCode(res.Code))
}

func (h *Handlers) recordTurn(ctx context.Context, res domain.Result, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.TurnDuration.Record(ctx, elapsed.Seconds())
	if res.Code == domain.CodeThrottled {
		h.metrics.MessagesThrottled.Add(ctx, 1)
		return
	}
	h.metrics.MessagesProcessed.Add(ctx, 1)
	if out, ok := res.Data.(*service.TurnOutcome); ok && out.Escalated {
		h.metrics.EscalationsCreated.Add(ctx, 1)
	}
}

// statusForCode maps pipeline rejection codes onto HTTP status codes.
// Fallback outcomes stay 200: the client did receive a reply.
func statusForCode(code string) int {
	switch code {
	case domain.CodeThrottled:
		return http.StatusTooManyRequests
	case domain.CodeInvalid:
		return http.StatusBadRequest
	case domain.CodeFallback:
		return http.StatusOK
	default:
		return http.StatusConflict
	}
}
