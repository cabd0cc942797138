package handlers

import (
	"net/http"

	"github.com/recallapp/recall/internal/integrity"
)

// AuditHandler runs the embedding integrity auditor.
type AuditHandler struct {
	runner *integrity.Runner
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(runner *integrity.Runner) *AuditHandler {
	return &AuditHandler{runner: runner}
}

// Audit handles POST /audit. ?dry_run=true reports without deleting.
func (h *AuditHandler) Audit(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	report, err := h.runner.Run(r.Context(), dryRun)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "audit failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"removed":          report.Removed,
		"removed_count":    len(report.Removed),
		"affected_persons": report.AffectedPersons,
		"dry_run":          dryRun,
	})
}
