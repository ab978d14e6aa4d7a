// Package httpapi is the thin transport over the orchestrator (spec §6):
// a chi router exposing the upload, job-status, single-phase, error-file
// and cleanup endpoints. Handler is generic over the same row type T as
// orchestrator.Orchestrator[T]; the domain-specific row shape and its
// target tables are supplied by the caller at wiring time in cmd/server,
// same as the core's genericity over T everywhere else.
package httpapi
