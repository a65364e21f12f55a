package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrAggregationFailure = errors.New("aggregation failure")
	ErrPublishConflict    = errors.New("publish conflict")
	ErrDuplicateRequest   = errors.New("duplicate request")
	ErrShuttingDown       = errors.New("service shutting down")
)

// Error kinds carried in outbound payloads and stage errors.
const (
	KindValidation         = "validation"
	KindSourceUnavailable  = "source_unavailable"
	KindRateLimited        = "rate_limited"
	KindInvalidSymbol      = "invalid_symbol"
	KindInvalidPrompt      = "invalid_prompt"
	KindAggregationFailure = "aggregation_failure"
	KindPublishConflict    = "publish_conflict"
	KindShutdown           = "shutdown"
	KindInternal           = "internal"
)

// SourceError wraps a failed collaborator call with its taxonomy kind.
type SourceError struct {
	Source string
	Kind   error
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Kind)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is matches the error kind. Rate limits and invalid symbols are also source unavailability.
func (e *SourceError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return target == ErrSourceUnavailable && (e.Kind == ErrRateLimited || e.Kind == ErrInvalidSymbol)
}

func Unavailable(source string, err error) error {
	return &SourceError{Source: source, Kind: ErrSourceUnavailable, Err: err}
}

func RateLimited(source string, err error) error {
	return &SourceError{Source: source, Kind: ErrRateLimited, Err: err}
}

func InvalidSymbol(source string, err error) error {
	return &SourceError{Source: source, Kind: ErrInvalidSymbol, Err: err}
}

func InvalidPrompt(source string, err error) error {
	return &SourceError{Source: source, Kind: ErrInvalidPrompt, Err: err}
}

// AsSourceError normalizes any collaborator failure into a SourceError.
func AsSourceError(source string, err error) error {
	if err == nil {
		return nil
	}
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return Unavailable(source, err)
}

// AggregationFailure marks the final summarization as failed after retries.
func AggregationFailure(attempts int, err error) error {
	return fmt.Errorf("%w after %d attempts: %w", ErrAggregationFailure, attempts, err)
}

// Classify maps an error to its payload kind and retryable flag.
func Classify(err error) (kind string, retryable bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrValidation):
		return KindValidation, false
	case errors.Is(err, ErrAggregationFailure):
		return KindAggregationFailure, true
	case errors.Is(err, ErrShuttingDown):
		return KindShutdown, true
	case errors.Is(err, ErrPublishConflict):
		return KindPublishConflict, false
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited, true
	case errors.Is(err, ErrInvalidSymbol):
		return KindInvalidSymbol, false
	case errors.Is(err, ErrInvalidPrompt):
		return KindInvalidPrompt, false
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, context.DeadlineExceeded):
		return KindSourceUnavailable, false
	default:
		return KindInternal, false
	}
}
