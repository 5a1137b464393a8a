package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// requireJoined rejects requests made before a participant has joined.
// The participant is added to the request context.
func (s *Server) requireJoined(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := s.session.State()
		if state.User == nil {
			slog.Debug("request without participant", "path", r.URL.Path)
			respondError(w, http.StatusUnauthorized, "not_joined", "join a contest first")
			return
		}

		ctx := ContextWithUser(r.Context(), state.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
