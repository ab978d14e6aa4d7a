package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// ErrorResponse is the uniform envelope spec §6 requires of every endpoint:
// {code, message, retryable}.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// statusForToken maps an error token to its HTTP status. CIRCUIT_OPEN and
// RATE_LIMITED are rejections, not failures (spec §7), and get 503, as does
// TRANSIENT_DB; JOB_NOT_FOUND gets 404; file errors and CONVERSION_ERROR get
// 400; PHASE_FAILED and RECONCILIATION_MISMATCH get 422; DUPLICATE_JOB_ID
// gets 409; any other token is an opaque server failure (500).
func statusForToken(token errs.Token) int {
	switch token {
	case errs.JobNotFound:
		return http.StatusNotFound
	case errs.CircuitOpen, errs.RateLimited, errs.TransientDB:
		return http.StatusServiceUnavailable
	case errs.FileTooLarge, errs.FileCorrupt, errs.IOError, errs.ConversionError:
		return http.StatusBadRequest
	case errs.ReconciliationMismatch, errs.PhaseFailed:
		return http.StatusUnprocessableEntity
	case errs.DuplicateJobID:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the full error server-side and writes the sanitized
// envelope to the client (teacher's respondError split, trimmed to
// JSON-only since this surface has no HTMX/HTML callers).
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	classified := errs.Classify(err)
	msg := errs.MapError(err)
	status := statusForToken(classified.Token)

	slog.Error("httpapi: request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:      msg.Code,
		Message:   msg.Message,
		Retryable: msg.Retryable,
	})
}

// writeJSON writes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: failed to encode response", "error", err)
	}
}
