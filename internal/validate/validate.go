package validate

import "strings"

// Finding is a single rule failure: a stable error code and a
// human-readable message (spec §4.D's error taxonomy).
type Finding struct {
	Code    string
	Message string
}

// Rule inspects a row of type T and returns a Finding if it fails, or nil
// if it passes.
type Rule[T any] func(row T) *Finding

// Validator runs an ordered list of rules against every row, accumulating
// every failure rather than stopping at the first.
type Validator[T any] struct {
	rules []Rule[T]
}

// New builds a Validator from the given rules, run in order.
func New[T any](rules ...Rule[T]) *Validator[T] {
	return &Validator[T]{rules: rules}
}

// Result is the outcome of validating one row.
type Result struct {
	Valid   bool
	Codes   []string
	Message string
}

// Validate runs every rule against row and returns the combined result.
// A row with no findings is Valid; otherwise Codes holds every failing
// rule's code (for programmatic handling) and Message joins every
// failing rule's message with "; " (for the error spreadsheet / API).
func (v *Validator[T]) Validate(row T) Result {
	var codes []string
	var messages []string
	for _, rule := range v.rules {
		if f := rule(row); f != nil {
			codes = append(codes, f.Code)
			messages = append(messages, f.Message)
		}
	}
	if len(codes) == 0 {
		return Result{Valid: true}
	}
	return Result{
		Valid:   false,
		Codes:   codes,
		Message: strings.Join(messages, "; "),
	}
}

// CodeString joins a Result's codes the way they are persisted in
// staging_error.error_code: comma-separated.
func (r Result) CodeString() string {
	return strings.Join(r.Codes, ",")
}
