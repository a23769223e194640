package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds for the pipeline failure taxonomy
const (
	KindSourceUnavailable = "source_unavailable"
	KindSchemaMismatch    = "schema_mismatch"
	KindMalformedInput    = "malformed_input"
	KindScoringFailure    = "scoring_failure"
	KindValidationError   = "validation_error"
	KindBackupUnavailable = "backup_unavailable"
	KindPersistFailure    = "persist_failure"
	KindTimeout           = "timeout"
	KindCancelled         = "cancelled"
)

// PipelineError carries the failure kind so the orchestrator can decide
// between retrying a stage and failing the run.
type PipelineError struct {
	Kind      string
	Message   string
	Transient bool // persist failures only: transient ones are retryable
	Err       error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is matches any PipelineError of the same kind, so callers can test with
// errors.Is(err, &PipelineError{Kind: KindTimeout}).
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	return ok && t.Kind == e.Kind
}

func newErr(kind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

func ErrSourceUnavailable(message string, err error) *PipelineError {
	return newErr(KindSourceUnavailable, message, err)
}

func ErrSchemaMismatch(message string) *PipelineError {
	return newErr(KindSchemaMismatch, message, nil)
}

func ErrMalformedInput(message string, err error) *PipelineError {
	return newErr(KindMalformedInput, message, err)
}

func ErrScoringFailure(message string, err error) *PipelineError {
	return newErr(KindScoringFailure, message, err)
}

func ErrBackupUnavailable(message string, err error) *PipelineError {
	return newErr(KindBackupUnavailable, message, err)
}

func ErrPersistFailure(message string, err error, transient bool) *PipelineError {
	e := newErr(KindPersistFailure, message, err)
	e.Transient = transient
	return e
}

func ErrTimeout(stage string) *PipelineError {
	return newErr(KindTimeout, fmt.Sprintf("stage %s timed out", stage), context.DeadlineExceeded)
}

func ErrCancelled(stage string) *PipelineError {
	return newErr(KindCancelled, fmt.Sprintf("run cancelled at stage %s", stage), context.Canceled)
}

// Kind extracts the taxonomy kind from any error, mapping bare context
// errors onto timeout/cancelled. Unknown errors report an empty kind.
func Kind(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return ""
}

// IsRetryable reports whether a stage failure is worth another attempt.
// Source outages and timeouts are transient by definition; persist failures
// carry their own transient flag. Everything else fails the run outright.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindSourceUnavailable, KindTimeout:
			return true
		case KindPersistFailure:
			return pe.Transient
		default:
			return false
		}
	}
	return errors.Is(err, context.DeadlineExceeded)
}
