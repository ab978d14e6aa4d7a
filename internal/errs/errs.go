// Package errs classifies low-level errors (pgx, I/O, context deadlines) into
// the short tokens carried on staging rows and job records, and into the
// uniform HTTP error envelope.
//
// # Error Token Reference
//
// Fatal, job-failing tokens: FILE_TOO_LARGE, FILE_CORRUPT, IO_ERROR.
// Row-local tokens (never fail the job): REQUIRED_*, INVALID_*_FORMAT,
// INVALID_*_LENGTH, INVALID_DATE_LOGIC, CONVERSION_ERROR.
// Retry/circuit tokens: TRANSIENT_DB, PHASE_FAILED, CIRCUIT_OPEN, RATE_LIMITED.
// Reconciliation: RECONCILIATION_MISMATCH.
// Idempotency: DUPLICATE_JOB_ID.
package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Token is one of the short error codes defined by the migration spec.
type Token string

const (
	FileTooLarge          Token = "FILE_TOO_LARGE"
	FileCorrupt           Token = "FILE_CORRUPT"
	IOError               Token = "IO_ERROR"
	TransientDB           Token = "TRANSIENT_DB"
	PhaseFailed           Token = "PHASE_FAILED"
	CircuitOpen           Token = "CIRCUIT_OPEN"
	RateLimited           Token = "RATE_LIMITED"
	ReconciliationMismatch Token = "RECONCILIATION_MISMATCH"
	DuplicateJobID         Token = "DUPLICATE_JOB_ID"
	ConversionError        Token = "CONVERSION_ERROR"
	JobNotFound            Token = "JOB_NOT_FOUND"
	Unknown                Token = "ERR000"
)

// UserMessage is the uniform envelope returned to HTTP callers and attached
// to job-level failures: {code, message, retryable}.
type UserMessage struct {
	Code      string
	Message   string
	Retryable bool
}

// Classified is an error annotated with its token and retryability. Phase
// handlers and the executor construct these explicitly rather than relying
// purely on pattern-matching, but MapError exists for errors that cross a
// library boundary (pgx, os) without a Classified wrapper.
type Classified struct {
	Err       error
	Token     Token
	Retryable bool
}

func (c *Classified) Error() string { return c.Err.Error() }
func (c *Classified) Unwrap() error { return c.Err }

// New wraps err with an explicit token and retryability.
func New(token Token, retryable bool, err error) *Classified {
	return &Classified{Err: err, Token: token, Retryable: retryable}
}

// Newf builds a Classified from a formatted message, with no wrapped cause.
func Newf(token Token, retryable bool, format string, args ...any) *Classified {
	return &Classified{Err: fmt.Errorf(format, args...), Token: token, Retryable: retryable}
}

// errorPattern matches a lowercase substring of an error's message to a token.
// Patterns are matched in order; the first match wins, so more specific
// patterns must precede general ones.
type errorPattern struct {
	pattern   string
	token     Token
	retryable bool
}

var patterns = []errorPattern{
	{"deadlock", TransientDB, true},
	{"connection refused", TransientDB, true},
	{"connection reset", TransientDB, true},
	{"broken pipe", TransientDB, true},
	{"context deadline exceeded", TransientDB, true},
	{"i/o timeout", TransientDB, true},
	{"too many connections", TransientDB, true},
	{"zip: not a valid zip file", FileCorrupt, false},
	{"xml syntax error", FileCorrupt, false},
	{"no such file", IOError, false},
}

// Classify converts a raw error into a Classified error using the pattern
// table above. If err is already Classified (or wraps one), that
// classification is returned unchanged.
func Classify(err error) *Classified {
	if err == nil {
		return nil
	}
	var c *Classified
	if errors.As(err, &c) {
		return c
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(TransientDB, true, err)
	}

	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p.pattern) {
			return New(p.token, p.retryable, err)
		}
	}
	return New(Unknown, false, err)
}

// IsTransient reports whether err should be retried by the batch executor.
func IsTransient(err error) bool {
	return Classify(err).Retryable
}

// catalog maps each token to its default user-facing message and HTTP
// retryability, independent of the originating error's text.
var catalog = map[Token]UserMessage{
	FileTooLarge:           {Code: string(FileTooLarge), Message: "the file exceeds the configured row or cell limit", Retryable: false},
	FileCorrupt:            {Code: string(FileCorrupt), Message: "the file could not be parsed as a valid spreadsheet", Retryable: false},
	IOError:                {Code: string(IOError), Message: "the file could not be read", Retryable: false},
	TransientDB:            {Code: string(TransientDB), Message: "a transient database error occurred", Retryable: true},
	PhaseFailed:            {Code: string(PhaseFailed), Message: "the phase failed after exhausting retries", Retryable: false},
	CircuitOpen:            {Code: string(CircuitOpen), Message: "the batch sink is temporarily unavailable", Retryable: true},
	RateLimited:            {Code: string(RateLimited), Message: "too many migration starts; try again shortly", Retryable: true},
	ReconciliationMismatch: {Code: string(ReconciliationMismatch), Message: "reconciliation detected a row-count mismatch", Retryable: false},
	DuplicateJobID:         {Code: string(DuplicateJobID), Message: "a job with this id already exists", Retryable: false},
	JobNotFound:            {Code: string(JobNotFound), Message: "no job exists with this id", Retryable: false},
	ConversionError:        {Code: string(ConversionError), Message: "a cell value could not be converted", Retryable: false},
	Unknown:                {Code: string(Unknown), Message: "an unexpected error occurred", Retryable: false},
}

// MapError returns the user-facing envelope for err, classifying it first if
// it is not already a Classified error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	c := Classify(err)
	msg, ok := catalog[c.Token]
	if !ok {
		msg = catalog[Unknown]
	}
	msg.Retryable = c.Retryable
	return msg
}
