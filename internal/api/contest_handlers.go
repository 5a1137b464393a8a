package api

import (
	"log/slog"
	"net/http"

	"github.com/terra-clan/contest-client/internal/models"
)

type submitRequest struct {
	Confirm bool `json:"confirm"`
}

// Submission handlers

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := s.session.Submit(r.Context(), func(models.SubmitRequest) bool {
		return req.Confirm
	})
	if err != nil {
		respondSessionError(w, err, "submit code")
		return
	}

	if user := UserFromContext(r.Context()); user != nil {
		slog.Info("code submitted", "user_id", user.ID, "submission_id", sub.ID, "status", sub.Status)
	}

	respondJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	view, ok := s.session.Submission()
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "no submission")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDismissSubmission(w http.ResponseWriter, r *http.Request) {
	s.session.DismissSubmission()

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "submission dismissed",
	})
}

// Leaderboard handlers

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.Leaderboard()
	if err != nil {
		respondSessionError(w, err, "load leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleRefreshLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RefreshLeaderboard(r.Context()); err != nil {
		respondSessionError(w, err, "refresh leaderboard")
		return
	}

	view, err := s.session.Leaderboard()
	if err != nil {
		respondSessionError(w, err, "load leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, view)
}
