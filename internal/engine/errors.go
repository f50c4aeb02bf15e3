package engine

import (
	"errors"
	"fmt"
)

// ErrAlreadyComplete is returned when promoting a period that has
// already been approved.
var ErrAlreadyComplete = errors.New("period already complete")

// SourceUnavailableError means the document store could not be listed
// or read for a period. The batch records it and moves on.
type SourceUnavailableError struct {
	Period string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("period %s: source unavailable: %v", e.Period, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// AnalysisFailedError means summarization failed for a period after
// retries. The batch records it and moves on.
type AnalysisFailedError struct {
	Period string
	Err    error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("period %s: analysis failed: %v", e.Period, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error { return e.Err }

func failureKind(err error) string {
	var src *SourceUnavailableError
	if errors.As(err, &src) {
		return "source_unavailable"
	}
	var analysis *AnalysisFailedError
	if errors.As(err, &analysis) {
		return "analysis_failed"
	}
	return "internal"
}
