package errs

import (
	"errors"
	"testing"
)

func TestClassify_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantToken Token
		wantRetry bool
	}{
		{"deadlock", errors.New("ERROR: deadlock detected"), TransientDB, true},
		{"connection reset", errors.New("read: connection reset by peer"), TransientDB, true},
		{"bad zip", errors.New("zip: not a valid zip file"), FileCorrupt, false},
		{"malformed xml", errors.New("xml syntax error: unexpected EOF"), FileCorrupt, false},
		{"unrecognized", errors.New("something went sideways"), Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			if c.Token != tt.wantToken {
				t.Errorf("token = %s, want %s", c.Token, tt.wantToken)
			}
			if c.Retryable != tt.wantRetry {
				t.Errorf("retryable = %v, want %v", c.Retryable, tt.wantRetry)
			}
		})
	}
}

func TestClassify_PreservesExplicitClassification(t *testing.T) {
	original := New(CircuitOpen, true, errors.New("breaker open"))
	wrapped := errors.New("wrapping: " + original.Error())
	_ = wrapped // Classify only unwraps real error chains, not string-wrapped ones

	c := Classify(original)
	if c.Token != CircuitOpen {
		t.Errorf("token = %s, want %s", c.Token, CircuitOpen)
	}
}

func TestMapError_RetryableReflectsClassification(t *testing.T) {
	msg := MapError(errors.New("deadlock detected"))
	if !msg.Retryable {
		t.Error("expected deadlock error to be retryable")
	}
	if msg.Code != string(TransientDB) {
		t.Errorf("code = %s, want %s", msg.Code, TransientDB)
	}
}

func TestMapError_Nil(t *testing.T) {
	msg := MapError(nil)
	if msg.Code != "" {
		t.Errorf("expected empty message for nil error, got %+v", msg)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(errors.New("connection refused")) {
		t.Error("expected connection refused to be transient")
	}
	if IsTransient(errors.New("invalid input")) {
		t.Error("expected generic error to not be transient")
	}
}
