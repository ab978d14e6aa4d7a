package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// errorStats is the JSON shape for spec §6's
// GET /migration/job/{jobId}/errors/stats.
type errorStats struct {
	HasErrors          bool  `json:"hasErrors"`
	ErrorCount         int64 `json:"errorCount"`
	ErrorFileAvailable bool  `json:"errorFileAvailable"`
}

func (h *Handler[T]) handleErrorStats(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	count, err := h.store.CountErrors(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, errorStats{
		HasErrors:          count > 0,
		ErrorCount:         count,
		ErrorFileAvailable: count > 0,
	})
}

// handleErrorDownload streams the error spreadsheet for a job (spec §6's
// GET /migration/job/{jobId}/errors/download).
func (h *Handler[T]) handleErrorDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	f, err := h.orc.WriteErrorFile(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-errors.xlsx"`, jobID))
	if err := f.Write(w); err != nil {
		// Headers are already sent; nothing left to do but log server-side.
		slog.Error("httpapi: failed writing error spreadsheet", "job_id", jobID, "error", err)
	}
}
