package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
)

// ListAlerts retrieves alerts most recent first, optionally filtered by
// pet_id and state.
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	state := r.URL.Query().Get("state")
	if state != "" && !alerts.ValidState(state) {
		respondError(w, http.StatusBadRequest, "state must be one of: open, acknowledged, resolved")
		return
	}

	ctx := r.Context()
	result, err := h.alerts.List(ctx, alerts.Filter{
		PetID: r.URL.Query().Get("pet_id"),
		State: state,
		Limit: limit,
	})
	if err != nil {
		slog.Error("Failed to list alerts", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// TransitionAlertRequest represents a request to move an alert to a new state.
type TransitionAlertRequest struct {
	AlertID string `json:"alert_id"`
	State   string `json:"state"`
}

// TransitionAlert moves an alert through its lifecycle
// (open -> acknowledged -> resolved).
func (h *Handlers) TransitionAlert(w http.ResponseWriter, r *http.Request) {
	var req TransitionAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AlertID == "" {
		respondError(w, http.StatusBadRequest, "alert_id is required")
		return
	}
	if req.State == "" {
		respondError(w, http.StatusBadRequest, "state is required")
		return
	}

	ctx := r.Context()
	alert, err := h.alerts.Transition(ctx, req.AlertID, req.State)
	if err != nil {
		switch {
		case errors.Is(err, alerts.ErrNotFound):
			respondError(w, http.StatusNotFound, "Alert not found")
		case errors.Is(err, alerts.ErrInvalidTransition):
			respondError(w, http.StatusConflict, err.Error())
		default:
			slog.Error("Failed to transition alert", "error", err, "alert_id", req.AlertID)
			respondError(w, http.StatusInternalServerError, "Failed to transition alert")
		}
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// ListEvents retrieves recent telemetry events for the dashboard.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	events, err := h.db.ListEvents(ctx, limit)
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

// CreateReviewRequest represents a request to record a match review.
type CreateReviewRequest struct {
	CaseID         string  `json:"case_id"`
	CandidatePetID string  `json:"candidate_pet_id"`
	Decision       string  `json:"decision"`
	Band           string  `json:"band"`
	Score          float64 `json:"score"`
}

// CreateReview records a reviewer decision for a case candidate.
func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CaseID == "" {
		respondError(w, http.StatusBadRequest, "case_id is required")
		return
	}
	if req.CandidatePetID == "" {
		respondError(w, http.StatusBadRequest, "candidate_pet_id is required")
		return
	}

	validDecisions := map[string]bool{"match": true, "no_match": true, "unsure": true}
	if !validDecisions[req.Decision] {
		respondError(w, http.StatusBadRequest, "decision must be one of: match, no_match, unsure")
		return
	}

	review := &database.Review{
		ID:             uuid.NewString(),
		CaseID:         req.CaseID,
		CandidatePetID: req.CandidatePetID,
		Decision:       req.Decision,
		Band:           req.Band,
		Score:          req.Score,
	}

	ctx := r.Context()
	if err := h.db.InsertReview(ctx, review); err != nil {
		if errors.Is(err, database.ErrCaseNotFound) {
			respondError(w, http.StatusNotFound, "Case not found")
			return
		}
		slog.Error("Failed to record review", "error", err, "case_id", req.CaseID)
		respondError(w, http.StatusInternalServerError, "Failed to record review")
		return
	}

	respondJSON(w, http.StatusCreated, review)
}

// ListReviews retrieves all reviews recorded for a case.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	caseID, ok := requireQueryParam(w, r, "case_id")
	if !ok {
		return
	}

	ctx := r.Context()
	reviews, err := h.db.ListReviews(ctx, caseID)
	if err != nil {
		slog.Error("Failed to list reviews", "error", err, "case_id", caseID)
		respondError(w, http.StatusInternalServerError, "Failed to list reviews")
		return
	}

	respondJSON(w, http.StatusOK, reviews)
}
