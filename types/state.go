//nolint:revive // types is a common Go package naming convention
package types

// State is a state of the progress state machine.
type State string

// Job states. Idle is initial; Succeeded and Failed are terminal.
const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateStreaming  State = "streaming"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// IsTerminal returns true for Succeeded and Failed.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// InFlight returns true while a submission is active.
func (s State) InFlight() bool {
	return s == StateSubmitting || s == StateStreaming
}

// FailureReason classifies why a job reached the Failed state.
type FailureReason string

const (
	// FailureJobError means the server sent an error event.
	FailureJobError FailureReason = "job_error"
	// FailureTransport means the request failed or returned a non-success status.
	FailureTransport FailureReason = "transport"
	// FailureStreamFault means reading the response body failed mid-stream.
	FailureStreamFault FailureReason = "stream_fault"
	// FailureIncomplete means the stream ended without a terminal event.
	FailureIncomplete FailureReason = "incomplete"
	// FailureCanceled means the submission was aborted by the user or system.
	FailureCanceled FailureReason = "canceled"
)

// JobState is the running summary of one submission.
// Owned by the state machine; renderers receive copies.
type JobState struct {
	State   State   `json:"state" msgpack:"state"`
	Percent float64 `json:"percent" msgpack:"percent"`
	Status  string  `json:"status" msgpack:"status"`
	// DownloadURL is set once State is Succeeded.
	DownloadURL string `json:"download_url,omitempty" msgpack:"download_url,omitempty"`
	// FailureMessage and FailureReason are set once State is Failed.
	FailureMessage string        `json:"failure_message,omitempty" msgpack:"failure_message,omitempty"`
	FailureReason  FailureReason `json:"failure_reason,omitempty" msgpack:"failure_reason,omitempty"`
}
