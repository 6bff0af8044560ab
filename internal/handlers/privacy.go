package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"petwatch/internal/privacy"
)

// ExportCase returns the full privacy export for a case, with consent-driven
// redaction applied.
// GET /api/v1/privacy/export?case_id=...
func (h *Handlers) ExportCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := requireQueryParam(w, r, "case_id")
	if !ok {
		return
	}

	ctx := r.Context()
	export, err := h.privacy.Export(ctx, caseID)
	if err != nil {
		if errors.Is(err, privacy.ErrCaseNotFound) {
			respondError(w, http.StatusNotFound, "Case not found")
			return
		}
		slog.Error("Failed to export case", "error", err, "case_id", caseID)
		respondError(w, http.StatusInternalServerError, "Failed to export case")
		return
	}

	h.metrics.IncrementCustom("cases_exported")
	respondJSON(w, http.StatusOK, export)
}

// EraseCaseRequest represents a request to erase a case and its records.
type EraseCaseRequest struct {
	CaseID string `json:"case_id"`
}

// EraseCaseResponse reports whether any records were removed.
type EraseCaseResponse struct {
	CaseID  string `json:"case_id"`
	Deleted bool   `json:"deleted"`
}

// EraseCase removes a case and everything reachable from it in one
// transaction. Erasing an absent case is a no-op with deleted=false.
// POST /api/v1/privacy/erase
func (h *Handlers) EraseCase(w http.ResponseWriter, r *http.Request) {
	var req EraseCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CaseID == "" {
		respondError(w, http.StatusBadRequest, "case_id is required")
		return
	}

	ctx := r.Context()
	deleted, err := h.privacy.Erase(ctx, req.CaseID)
	if err != nil {
		slog.Error("Failed to erase case", "error", err, "case_id", req.CaseID)
		respondError(w, http.StatusInternalServerError, "Failed to erase case")
		return
	}

	if deleted {
		h.metrics.IncrementCustom("cases_erased")
		slog.Info("Case erased", "case_id", req.CaseID)
	}

	respondJSON(w, http.StatusOK, EraseCaseResponse{CaseID: req.CaseID, Deleted: deleted})
}
