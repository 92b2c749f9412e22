package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations.
var (
	ErrInvalidQuality = errors.New("invalid quality")
	ErrNotFound       = errors.New("job not found")
	ErrNotReady       = errors.New("job not completed")
	ErrSessionClosed  = errors.New("session closed")
)

// SubmissionError is returned when the render service rejects a submission or
// cannot be reached. No local record exists for a failed submission.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollTransportError is a single failed status fetch. The tracker logs it and
// retries on the next tick.
type PollTransportError struct {
	JobID string
	Err   error
}

func (e *PollTransportError) Error() string {
	return fmt.Sprintf("poll job %s: %v", e.JobID, e.Err)
}

func (e *PollTransportError) Unwrap() error { return e.Err }
