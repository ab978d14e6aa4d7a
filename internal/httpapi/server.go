package httpapi

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/levanminh/xlmigrate/internal/orchestrator"
	"github.com/levanminh/xlmigrate/internal/ratelimit"
	"github.com/levanminh/xlmigrate/internal/staging"
)

// Handler wires one Orchestrator[T] into the HTTP surface described by
// spec §6. T is the application's row type, same as everywhere else in
// this module; the handler itself has no knowledge of T's fields.
type Handler[T any] struct {
	orc     *orchestrator.Orchestrator[T]
	store   *staging.Store
	limiter *ratelimit.Starter

	uploadDir      string
	maxUploadBytes int64
}

// Config configures the parts of Handler that are not the orchestrator or
// staging store themselves.
type Config struct {
	UploadDir      string // where uploaded workbooks are staged; "" uses os.TempDir()
	MaxUploadBytes int64  // request body ceiling; 0 defaults to 200MB
}

// NewHandler builds a Handler. limiter gates the two upload endpoints
// (spec §4.E's "at most 10 migration starts per minute per instance");
// its Start/Stop lifecycle is owned by the caller (cmd/server), not here.
func NewHandler[T any](orc *orchestrator.Orchestrator[T], store *staging.Store, limiter *ratelimit.Starter, cfg Config) *Handler[T] {
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 200 << 20
	}
	return &Handler[T]{
		orc:            orc,
		store:          store,
		limiter:        limiter,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Routes builds the chi router for the migration API (spec §6's endpoint
// table), with the same middleware shape as the teacher's web server:
// request id, real ip, structured logging, panic recovery, compression,
// a request timeout, and security headers.
func (h *Handler[T]) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(securityHeaders)

	r.Route("/migration", func(r chi.Router) {
		r.Route("/excel", func(r chi.Router) {
			r.With(h.rateLimited).Post("/upload", h.handleUpload)
			r.With(h.rateLimited).Post("/upload-async", h.handleUploadAsync)
			r.Post("/ingest-only", h.handleIngestOnly)
		})
		r.Route("/job/{jobID}", func(r chi.Router) {
			r.Get("/status", h.handleStatus)
			r.Get("/history", h.handleHistory)
			r.Post("/validate", h.handleValidate)
			r.Post("/apply", h.handleApply)
			r.Post("/reconcile", h.handleReconcile)
			r.Get("/errors/stats", h.handleErrorStats)
			r.Get("/errors/download", h.handleErrorDownload)
			r.Delete("/cleanup", h.handleCleanup)
		})
	})

	return r
}

// stagedUploadPath returns a destination path under uploadDir for an
// incoming workbook, namespaced by jobId so concurrent uploads never
// collide and a restarted ingest finds the same file again.
func (h *Handler[T]) stagedUploadPath(jobID, filename string) string {
	return filepath.Join(h.uploadDir, jobID+"-"+filepath.Base(filename))
}
