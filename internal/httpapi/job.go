package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/levanminh/xlmigrate/internal/staging"
)

// jobStatus is the JSON shape returned by /status and by every
// single-phase endpoint once the phase finishes (spec §6).
type jobStatus struct {
	JobID         string     `json:"jobId"`
	Phase         string     `json:"phase"`
	TotalRows     int        `json:"totalRows"`
	ProcessedRows int        `json:"processedRows"`
	ErrorRows     int        `json:"errorRows"`
	ValidRows     int        `json:"validRows"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

func jobToStatus(j *staging.Job) jobStatus {
	return jobStatus{
		JobID:         j.JobID,
		Phase:         string(j.Phase),
		TotalRows:     j.TotalRows,
		ProcessedRows: j.ProcessedRows,
		ErrorRows:     j.ErrorRows,
		ValidRows:     j.ValidRows,
		LastError:     j.LastError,
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		FinishedAt:    j.FinishedAt,
	}
}

// handleStatus returns the current phase and counters for a job
// (spec §6's GET /migration/job/{jobId}/status).
func (h *Handler[T]) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, jobToStatus(job))
}

// handleValidate runs just the Validate phase (spec §6's
// POST /migration/job/{jobId}/validate).
func (h *Handler[T]) handleValidate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.orc.RunValidate(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCurrentStatus(w, r, jobID)
}

// handleApply runs just the Apply phase (spec §6's
// POST /migration/job/{jobId}/apply).
func (h *Handler[T]) handleApply(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.orc.RunApply(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCurrentStatus(w, r, jobID)
}

// handleReconcile runs just the Reconcile phase (spec §6's
// POST /migration/job/{jobId}/reconcile); re-invoking it after a
// RECONCILIATION_MISMATCH is the restart path named in spec's S6 scenario.
func (h *Handler[T]) handleReconcile(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.orc.RunReconcile(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCurrentStatus(w, r, jobID)
}

// handleCleanup removes staging rows for a job, optionally keeping the
// error partition for later download (spec §6's
// DELETE /migration/job/{jobId}/cleanup?keepErrors=bool).
func (h *Handler[T]) handleCleanup(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	keepErrors, _ := strconv.ParseBool(r.URL.Query().Get("keepErrors"))

	if err := h.store.DeleteByJob(r.Context(), jobID, keepErrors); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// historyEntry is the JSON shape for one recorded phase transition.
type historyEntry struct {
	Phase      string    `json:"phase"`
	Message    string    `json:"message,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// handleHistory returns every recorded phase transition for a job, oldest
// first.
func (h *Handler[T]) handleHistory(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	entries, err := h.store.History(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]historyEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntry{Phase: string(e.Phase), Message: e.Message, RecordedAt: e.RecordedAt}
	}
	writeJSON(w, out)
}

func (h *Handler[T]) writeCurrentStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, jobToStatus(job))
}
