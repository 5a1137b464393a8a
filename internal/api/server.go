package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/contest-client/internal/config"
	"github.com/terra-clan/contest-client/internal/session"
	"github.com/terra-clan/contest-client/internal/storage"
	"github.com/terra-clan/contest-client/internal/templates"
)

const requestTimeout = 60 * time.Second

// HealthChecker reports whether the judge is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server is the local HTTP bridge between a UI and the contest session
type Server struct {
	config         config.BridgeConfig
	router         *chi.Mux
	session        *session.Controller
	judge          HealthChecker
	store          storage.Store
	templateLoader *templates.Loader
}

// NewServer creates a new bridge server
func NewServer(
	cfg config.BridgeConfig,
	sess *session.Controller,
	judge HealthChecker,
	store storage.Store,
	loader *templates.Loader,
) *Server {
	s := &Server{
		config:         cfg,
		session:        sess,
		judge:          judge,
		store:          store,
		templateLoader: loader,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived, so it stays out of the request timeout
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/languages", s.handleListLanguages)
			r.Post("/join", s.handleJoin)
			r.Get("/session", s.handleGetSession)

			// Everything below needs a participant
			r.Group(func(r chi.Router) {
				r.Use(s.requireJoined)

				r.Delete("/session", s.handleLeave)
				r.Put("/session/problem", s.handleSelectProblem)
				r.Put("/session/language", s.handleSetLanguage)

				r.Get("/problem", s.handleGetProblem)
				r.Get("/draft", s.handleGetDraft)
				r.Put("/draft", s.handleSaveDraft)

				r.Route("/submissions", func(r chi.Router) {
					r.Post("/", s.handleSubmit)
					r.Get("/current", s.handleGetSubmission)
					r.Delete("/current", s.handleDismissSubmission)
				})

				r.Route("/leaderboard", func(r chi.Router) {
					r.Get("/", s.handleGetLeaderboard)
					r.Post("/refresh", s.handleRefreshLeaderboard)
				})
			})
		})
	})

	s.router = r
}
