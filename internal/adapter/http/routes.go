package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. The
// inbound message endpoint and health stay public; operator routes sit
// behind the bearer-token middleware.
func MountRoutes(r chi.Router, h *Handlers, wsHandler http.HandlerFunc, authCfg config.Auth) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Channel adapters post normalized inbound messages here.
		r.Post("/messages", h.HandleInboundMessage)

		// Operator surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg.Enabled, authCfg.TokenHash))

			r.Route("/escalations", func(r chi.Router) {
				r.Get("/", h.ListEscalations)
				r.Get("/active", h.ListActiveEscalations)
				r.Post("/", h.CreateEscalation)
				r.Get("/{id}", h.GetEscalation)
				r.Post("/{id}/assign", h.AssignEscalation)
				r.Post("/{id}/resolve", h.ResolveEscalation)
			})

			r.Route("/conversations/{id}", func(r chi.Router) {
				r.Get("/", h.GetConversation)
				r.Get("/messages", h.ListConversationMessages)
				r.Get("/context", h.GetConversationContext)
				r.Delete("/context", h.ClearConversationContext)

				r.Route("/takeover", func(r chi.Router) {
					r.Get("/", h.GetTakeoverSession)
					r.Post("/", h.StartTakeover)
					r.Post("/message", h.SendAsAgent)
					r.Post("/pause", h.PauseTakeover)
					r.Post("/resume", h.ResumeTakeover)
					r.Post("/end", h.EndTakeover)
					r.Post("/transfer", h.TransferTakeover)
				})
			})
		})
	})

	// Operator dashboard socket; token checked via ?token=.
	r.With(middleware.Auth(authCfg.Enabled, authCfg.TokenHash)).Get("/ws", wsHandler)
}
