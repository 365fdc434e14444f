// Package middleware provides HTTP middleware for the switchboard API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/uptalk/switchboard/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID stamps every request with an id for log correlation. An
// incoming X-Request-ID is trusted and passed through; otherwise a new
// one is generated. The id lands in the context and the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
