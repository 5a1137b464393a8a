package api

import (
	"net/http"

	"github.com/terra-clan/contest-client/internal/models"
)

type joinRequest struct {
	ContestID int64  `json:"contestId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

type selectProblemRequest struct {
	ProblemID int64 `json:"problemId"`
}

type setLanguageRequest struct {
	Language string `json:"language"`
}

type draftRequest struct {
	Code string `json:"code"`
}

type draftResponse struct {
	ContestID int64           `json:"contestId"`
	ProblemID int64           `json:"problemId"`
	Language  models.Language `json:"language"`
	Code      string          `json:"code"`
}

// handleJoin joins a contest and enters it
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := s.session.Join(r.Context(), req.ContestID, req.Username, req.Email); err != nil {
		respondSessionError(w, err, "join contest")
		return
	}

	if _, err := s.session.Enter(r.Context()); err != nil {
		respondSessionError(w, err, "load contest")
		return
	}

	respondJSON(w, http.StatusCreated, s.session.State())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.session.Leave(r.Context())

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "left contest",
	})
}

func (s *Server) handleSelectProblem(w http.ResponseWriter, r *http.Request) {
	var req selectProblemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.session.SelectProblem(req.ProblemID); err != nil {
		respondSessionError(w, err, "select problem")
		return
	}

	respondJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req setLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	lang, ok := models.ParseLanguage(req.Language)
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "unsupported language: "+req.Language)
		return
	}

	if err := s.session.SetLanguage(lang); err != nil {
		respondSessionError(w, err, "set language")
		return
	}

	respondJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := s.session.Problem(r.Context())
	if err != nil {
		respondSessionError(w, err, "load problem")
		return
	}

	respondJSON(w, http.StatusOK, problem)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	code, err := s.session.Draft(r.Context())
	if err != nil {
		respondSessionError(w, err, "load draft")
		return
	}

	respondJSON(w, http.StatusOK, s.draftResponse(code))
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.session.SaveDraft(r.Context(), req.Code); err != nil {
		respondSessionError(w, err, "save draft")
		return
	}

	respondJSON(w, http.StatusOK, s.draftResponse(req.Code))
}

func (s *Server) draftResponse(code string) draftResponse {
	state := s.session.State()
	return draftResponse{
		ContestID: state.ContestID,
		ProblemID: state.ProblemID,
		Language:  state.Language,
		Code:      code,
	}
}
