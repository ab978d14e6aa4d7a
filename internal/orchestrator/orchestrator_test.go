package orchestrator

import (
	"testing"

	"github.com/levanminh/xlmigrate/internal/staging"
)

func TestPhaseFromLastError_ParsesTaggedPrefix(t *testing.T) {
	tests := []struct {
		lastError string
		want      staging.Phase
	}{
		{"INGESTING: connection reset by peer", staging.PhaseIngesting},
		{"VALIDATING: cross-row check failed", staging.PhaseValidating},
		{"APPLYING: target x failed", staging.PhaseApplying},
		{"RECONCILING: count mismatch", staging.PhaseReconciling},
		{"", staging.PhasePending},
		{"some untagged message", staging.PhasePending},
	}
	for _, tt := range tests {
		if got := phaseFromLastError(tt.lastError); got != tt.want {
			t.Errorf("phaseFromLastError(%q) = %s, want %s", tt.lastError, got, tt.want)
		}
	}
}

func TestRestartResumesAfterLastSuccessfulPhase(t *testing.T) {
	// Mirrors spec's restart diagram: FAILED --restart--> {previous
	// successful phase + 1}. A job tagged as having failed during
	// VALIDATING last completed INGEST_COMPLETED, so restart resumes at
	// the Validate phase, not back at Ingest.
	failedDuring := phaseFromLastError("VALIDATING: duplicate key")
	resumeFrom := staging.PreviousPhase(failedDuring)
	if resumeFrom != staging.PhaseIngestCompleted {
		t.Errorf("resumeFrom = %s, want INGEST_COMPLETED", resumeFrom)
	}
}
