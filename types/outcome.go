//nolint:revive // types is a common Go package naming convention
package types

// OutcomeStatus is the final classification of a submission.
type OutcomeStatus string

const (
	// OutcomeSucceeded indicates the job completed and produced a download reference.
	OutcomeSucceeded OutcomeStatus = "succeeded"
	// OutcomeJobError indicates the server reported an error event.
	OutcomeJobError OutcomeStatus = "job_error"
	// OutcomeTransportError indicates the request itself failed.
	OutcomeTransportError OutcomeStatus = "transport_error"
	// OutcomeStreamFault indicates the stream broke mid-read.
	OutcomeStreamFault OutcomeStatus = "stream_fault"
	// OutcomeIncomplete indicates the stream ended without a terminal event.
	OutcomeIncomplete OutcomeStatus = "incomplete"
	// OutcomeCanceled indicates the submission was aborted.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// Outcome is the final outcome of a submission.
type Outcome struct {
	Status  OutcomeStatus `json:"status" msgpack:"status"`
	Message string        `json:"message" msgpack:"message"`
	// DownloadURL is set for OutcomeSucceeded.
	DownloadURL string `json:"download_url,omitempty" msgpack:"download_url,omitempty"`
}

// Succeeded returns true if the outcome is a success.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Status == OutcomeSucceeded
}
