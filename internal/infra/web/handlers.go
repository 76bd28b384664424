package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/logging"
	"github.com/caliothemes/iGPTsave-sub002/internal/usecase"
)

type videoGenerateRequest struct {
	ImageURL    string `json:"image_url"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Wait        *bool  `json:"wait,omitempty"` // default true: block until terminal
}

type imageRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt,omitempty"`
}

type checkoutCompleteRequest struct {
	PriceID string `json:"price_id"`
	Email   string `json:"email,omitempty"` // admin only; defaults to the session
}

type sessionRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// handleSessionMint issues a session for local testing; the route is mounted
// only in developer mode.
func (s *Server) handleSessionMint(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}
	user := model.SessionUser{ID: uuid.NewString(), Email: req.Email, Role: model.Role(req.Role)}
	tok, err := s.auth.Mint(w, user)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok, "email": req.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVideoGenerate(w http.ResponseWriter, r *http.Request) {
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	wait := req.Wait == nil || *req.Wait

	job, err := s.genUC.GenerateVideo(r.Context(), sessionFrom(r.Context()), usecase.VideoRequest{
		ImageURL:    req.ImageURL,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Duration:    req.Duration,
		Wait:        wait,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if job.Status == model.JobStatusPending {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"task_id": job.ExternalID,
			"status":  "PENDING",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_url":    job.OutputURL,
		"status":       "success",
		"credits_used": job.CostUnits,
	})
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "task_id is required")
		return
	}

	res, err := s.genUC.VideoStatus(r.Context(), taskID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	body := map[string]any{
		"status":    string(res.Status),
		"progress":  nil,
		"video_url": nil,
		"failure":   nil,
	}
	if res.HasProgress {
		body["progress"] = res.Progress
	}
	if res.OutputURL != "" {
		body["video_url"] = res.OutputURL
	}
	if res.FailureReason != "" {
		body["failure"] = res.FailureReason
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleImageEdit(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	job, err := s.genUC.EditImage(r.Context(), sessionFrom(r.Context()), usecase.ImageRequest{
		ImageURL: req.ImageURL,
		Prompt:   req.Prompt,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output_url": job.OutputURL,
		"status":     "success",
	})
}

func (s *Server) handleBackgroundRemove(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	job, err := s.genUC.RemoveBackground(r.Context(), sessionFrom(r.Context()), usecase.ImageRequest{ImageURL: req.ImageURL})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"image_url": job.OutputURL})
}

func (s *Server) handleBackgroundRemoveAI(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	job, err := s.genUC.RemoveBackgroundAI(r.Context(), sessionFrom(r.Context()), usecase.ImageRequest{ImageURL: req.ImageURL})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"image_url": job.OutputURL,
		"method":    "ai",
	})
}

func (s *Server) handleCheckoutComplete(w http.ResponseWriter, r *http.Request) {
	var req checkoutCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	user := sessionFrom(r.Context())
	email := user.Email
	if req.Email != "" && user.IsAdmin() {
		email = req.Email
	}

	acc, err := s.billUC.CompleteCheckout(r.Context(), email, req.PriceID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountBody(acc))
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	user := sessionFrom(r.Context())
	acc, err := s.ledger.Balance(r.Context(), user.Email)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountBody(acc))
}

func accountBody(acc *model.CreditAccount) map[string]any {
	return map[string]any{
		"email":      acc.Email,
		"plan":       string(acc.Plan),
		"free_units": acc.FreeUnits,
		"paid_units": acc.PaidUnits,
		"total":      acc.Total(),
		"unlimited":  acc.Unlimited,
	}
}

// writeDomainError maps domain errors onto the HTTP error contract. Upstream
// provider detail passes through verbatim so operators can diagnose from the
// response alone.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.With(r.Context(), s.log)

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_request", "missing or malformed fields")
	case errors.Is(err, domain.ErrInsufficientCredits):
		writeError(w, http.StatusBadRequest, "insufficient_credits", "not enough credits for this operation")
	case errors.Is(err, domain.ErrUnknownPrice):
		writeError(w, http.StatusBadRequest, "unknown_price", "unknown price identifier")
	case errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account_not_found", "no credit account for this user")
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrLockBusy):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
	case errors.Is(err, domain.ErrGenerationTimeout):
		writeError(w, http.StatusInternalServerError, "timeout", "generation did not complete in time")
	case errors.Is(err, domain.ErrJobFailed):
		writeError(w, http.StatusInternalServerError, "generation_failed", err.Error())
	default:
		if ue, ok := domain.AsUpstreamError(err); ok {
			log.Error().Int("upstream_status", ue.StatusCode).Str("provider", ue.Provider).Msg("upstream error")
			writeError(w, http.StatusInternalServerError, "upstream_error", ue.Error())
			return
		}
		log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
