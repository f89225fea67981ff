package jobs

import "errors"

var (
	// ErrNotFound covers both an absent job and a job owned by another tenant;
	// callers cannot tell the two apart.
	ErrNotFound = errors.New("job not found")
	// ErrConflict means a conditional transition lost to a concurrent writer.
	ErrConflict = errors.New("job state conflict")
	// ErrValidation indicates a malformed submission.
	ErrValidation = errors.New("invalid submission")
	// ErrStoreUnavailable indicates the persistence dependency is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrQueueUnavailable indicates the dispatch queue rejected an enqueue.
	ErrQueueUnavailable = errors.New("dispatch queue unavailable")
	// ErrAnalyzerUnavailable indicates a transient analysis-engine failure.
	ErrAnalyzerUnavailable = errors.New("analysis engine unavailable")
	// ErrMaxRetries is the terminal failure reason once the retry ceiling is hit.
	ErrMaxRetries = errors.New("MaxRetriesExceeded")
)

// Retryable reports whether err should be surfaced to the dispatch queue as a
// negative acknowledgement so it redelivers with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrQueueUnavailable) ||
		errors.Is(err, ErrAnalyzerUnavailable)
}
