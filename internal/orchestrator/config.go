package orchestrator

import (
	"time"

	"github.com/levanminh/xlmigrate/internal/xlsx"
)

// Config bundles the orchestrator's tunables (spec §5/§6).
type Config struct {
	MaxConcurrentSheets int           // independent Apply targets run in parallel, default 3
	PhaseTimeout        time.Duration // per-phase wall clock budget, default 30m
	IngestBatchSize     int           // rows per Ingest/Apply batch, default 5000
	Limits              xlsx.Limits   // Early Validator ceilings, default xlsx.DefaultLimits()
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSheets: 3,
		PhaseTimeout:        30 * time.Minute,
		IngestBatchSize:     5000,
		Limits:              xlsx.DefaultLimits(),
	}
}
