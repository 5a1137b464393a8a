package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/contest-client/internal/leaderboard"
	"github.com/terra-clan/contest-client/internal/models"
	"github.com/terra-clan/contest-client/internal/session"
	"github.com/terra-clan/contest-client/internal/tracker"
	"github.com/terra-clan/contest-client/pkg/client"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondSessionError maps an error from the session layer to a response
func respondSessionError(w http.ResponseWriter, err error, action string) {
	var validationErr *models.ValidationError
	var judgeErr *client.APIError

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.Is(err, session.ErrNotJoined):
		respondError(w, http.StatusUnauthorized, "not_joined", "join a contest first")
	case errors.Is(err, session.ErrNoProblem):
		respondError(w, http.StatusBadRequest, "no_problem", "select a problem first")
	case errors.Is(err, session.ErrNotConfirmed):
		respondError(w, http.StatusBadRequest, "not_confirmed", "submission was not confirmed")
	case errors.Is(err, session.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", "previous submission is still being judged")
	case errors.Is(err, tracker.ErrStopped):
		respondError(w, http.StatusConflict, "submission_cancelled", "submission was cancelled before it was sent")
	case errors.Is(err, leaderboard.ErrInactive):
		respondError(w, http.StatusConflict, "leaderboard_inactive", "leaderboard is not running")
	case errors.As(err, &judgeErr):
		slog.Warn("judge request failed", "action", action, "error", err)
		message := judgeErr.Message
		if message == "" {
			message = judgeErr.Error()
		}
		respondError(w, http.StatusBadGateway, "judge_error", message)
	default:
		slog.Error("request failed", "action", action, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.judge.Health(r.Context()); err != nil {
		slog.Warn("judge not reachable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "judge not reachable")
		return
	}

	if err := s.store.Ping(r.Context()); err != nil {
		slog.Warn("store not reachable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "local store not reachable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Language handlers

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	languages := s.templateLoader.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"languages": languages,
		"total":     len(languages),
	})
}
