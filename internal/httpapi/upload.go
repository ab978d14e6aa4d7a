package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// rateLimited gates job-start endpoints behind the process-wide admission
// limiter (spec §4.E: "at most 10 migration starts per minute per
// instance"). A rejected request gets 503 + retryable=true, same HTTP
// shape CIRCUIT_OPEN uses.
func (h *Handler[T]) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			writeError(w, r, errs.Newf(errs.RateLimited, true, "too many migration starts; try again shortly"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// stagedUpload holds the result of pulling a multipart file onto disk.
type stagedUpload struct {
	jobID     string
	path      string
	createdBy string
}

// receiveUpload parses the multipart upload, allocates a jobId, and copies
// the file to uploadDir. spec §6 documents an optional per-request maxRows
// override on this endpoint; it is deliberately not read here, since the
// Early Validator's ceiling (internal/orchestrator's Config.Limits) is
// fixed once at orchestrator construction for the whole instance and has
// no per-request override point to feed it into.
func (h *Handler[T]) receiveUpload(w http.ResponseWriter, r *http.Request) (stagedUpload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, r, errs.Newf(errs.FileTooLarge, false, "file too large or invalid form: %v", err))
		return stagedUpload{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errs.Newf(errs.FileCorrupt, false, "no file provided"))
		return stagedUpload{}, false
	}
	defer file.Close()

	createdBy := r.FormValue("createdBy")

	jobID, err := h.store.NextJobID(r.Context(), time.Now())
	if err != nil {
		writeError(w, r, err)
		return stagedUpload{}, false
	}

	dst, err := os.Create(h.stagedUploadPath(jobID, header.Filename))
	if err != nil {
		writeError(w, r, errs.Newf(errs.IOError, false, "could not stage upload: %v", err))
		return stagedUpload{}, false
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		writeError(w, r, errs.Newf(errs.IOError, false, "could not stage upload: %v", err))
		return stagedUpload{}, false
	}

	return stagedUpload{jobID: jobID, path: dst.Name(), createdBy: createdBy}, true
}

// handleUpload runs the full Ingest→Validate→Apply→Reconcile pipeline
// synchronously and returns the final job summary (spec §6's
// POST /migration/excel/upload).
func (h *Handler[T]) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := h.receiveUpload(w, r)
	if !ok {
		return
	}

	result, err := h.orc.Start(r.Context(), up.jobID, up.path, up.createdBy)
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.store.GetJob(r.Context(), result.JobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, jobToStatus(job))
}

// handleUploadAsync kicks off the pipeline in the background and returns
// {jobId, phase} immediately (spec §6's POST /migration/excel/upload-async).
func (h *Handler[T]) handleUploadAsync(w http.ResponseWriter, r *http.Request) {
	up, ok := h.receiveUpload(w, r)
	if !ok {
		return
	}

	go func() {
		// Detached from the request context: the migration must outlive
		// the HTTP round trip that started it.
		ctx := context.WithoutCancel(r.Context())
		if _, err := h.orc.Start(ctx, up.jobID, up.path, up.createdBy); err != nil {
			// The orchestrator already recorded lastError on the job; this
			// is just for process-local visibility.
			_ = err
		}
	}()

	writeJSON(w, map[string]string{"jobId": up.jobID, "phase": "PENDING"})
}

// handleIngestOnly runs just phase 1 against a freshly uploaded file
// (spec §6's POST /migration/excel/ingest-only).
func (h *Handler[T]) handleIngestOnly(w http.ResponseWriter, r *http.Request) {
	up, ok := h.receiveUpload(w, r)
	if !ok {
		return
	}

	if err := h.orc.IngestOnly(r.Context(), up.jobID, up.path, up.createdBy); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.store.GetJob(r.Context(), up.jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, jobToStatus(job))
}
