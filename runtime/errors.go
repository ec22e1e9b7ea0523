package runtime

import (
	"errors"
	"fmt"
)

// ErrSubmissionInFlight is returned by Form.Submit while another submission
// of the same form has not reached a terminal state.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// SubmissionErrorKind classifies submission errors for outcome determination.
type SubmissionErrorKind int

const (
	// SubmissionErrorTransport indicates the request failed before a stream existed.
	SubmissionErrorTransport SubmissionErrorKind = iota
	// SubmissionErrorStream indicates a read failure or oversized frame mid-stream.
	SubmissionErrorStream
	// SubmissionErrorCanceled indicates context cancellation.
	SubmissionErrorCanceled
	// SubmissionErrorIncomplete indicates the stream ended without a terminal event.
	SubmissionErrorIncomplete
	// SubmissionErrorJob indicates the server reported the job as failed.
	SubmissionErrorJob
)

func (k SubmissionErrorKind) String() string {
	switch k {
	case SubmissionErrorTransport:
		return "transport"
	case SubmissionErrorStream:
		return "stream"
	case SubmissionErrorCanceled:
		return "canceled"
	case SubmissionErrorIncomplete:
		return "incomplete"
	case SubmissionErrorJob:
		return "job"
	default:
		return fmt.Sprintf("SubmissionErrorKind(%d)", int(k))
	}
}

// SubmissionError reports why a submission did not succeed.
type SubmissionError struct {
	Kind SubmissionErrorKind
	Err  error
}

func (e *SubmissionError) Error() string {
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func hasKind(err error, kind SubmissionErrorKind) bool {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Kind == kind
	}
	return false
}

// IsTransportError returns true if the submission request itself failed.
func IsTransportError(err error) bool {
	return hasKind(err, SubmissionErrorTransport)
}

// IsStreamError returns true if the stream failed mid-way.
func IsStreamError(err error) bool {
	return hasKind(err, SubmissionErrorStream)
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	return hasKind(err, SubmissionErrorCanceled)
}

// IsIncompleteError returns true if the stream ended without a terminal event.
func IsIncompleteError(err error) bool {
	return hasKind(err, SubmissionErrorIncomplete)
}

// IsJobError returns true if the server reported the job as failed.
func IsJobError(err error) bool {
	return hasKind(err, SubmissionErrorJob)
}
