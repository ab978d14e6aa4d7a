package staging

import "testing"

func TestPhase_IsTerminal(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhasePending, false},
		{PhaseIngesting, false},
		{PhaseValidated, false},
		{PhaseApplying, false},
		{PhaseReconciling, false},
		{PhaseCompleted, true},
		{PhaseFailed, true},
	}
	for _, tt := range tests {
		if got := tt.phase.IsTerminal(); got != tt.want {
			t.Errorf("Phase(%s).IsTerminal() = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestPreviousPhase_WalksForwardOrderBackwards(t *testing.T) {
	tests := []struct {
		phase Phase
		want  Phase
	}{
		{PhaseIngesting, PhasePending},
		{PhaseValidating, PhaseIngestCompleted},
		{PhaseApplying, PhaseValidated},
		{PhaseReconciling, PhaseApplied},
		{PhaseCompleted, PhaseReconciling},
	}
	for _, tt := range tests {
		if got := PreviousPhase(tt.phase); got != tt.want {
			t.Errorf("PreviousPhase(%s) = %s, want %s", tt.phase, got, tt.want)
		}
	}
}

func TestPreviousPhase_PendingHasNoPredecessor(t *testing.T) {
	if got := PreviousPhase(PhasePending); got != PhasePending {
		t.Errorf("PreviousPhase(PENDING) = %s, want PENDING", got)
	}
}

func TestPreviousPhase_FailedIsNotInForwardOrder(t *testing.T) {
	// FAILED is reached from any running phase, not a position in the
	// forward sequence; restart logic must resolve the predecessor from
	// the phase the job failed OUT OF, never from FAILED itself.
	if got := PreviousPhase(PhaseFailed); got != PhasePending {
		t.Errorf("PreviousPhase(FAILED) = %s, want PENDING (unrecognized falls back to start)", got)
	}
}
