package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceDenied reports a run refused at the admission boundary.
	// The caller may retry; denied runs are never queued.
	ErrResourceDenied = errors.New("resource admission denied")

	// ErrNoCandidates reports a run whose generators produced nothing.
	ErrNoCandidates = errors.New("no candidates generated")

	// ErrValidationFailed reports a decision rejected by validation.
	ErrValidationFailed = errors.New("decision validation failed")

	// ErrShuttingDown reports a submission against a stopped coordinator.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)

// ValidationError carries the structured issue list of a rejected decision.
type ValidationError struct {
	PipelineID string
	Issues     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("decision validation failed for %s: %d issue(s)", e.PipelineID, len(e.Issues))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
