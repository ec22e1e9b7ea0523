package runtime

import (
	"errors"

	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/types"
)

// Exit codes for the CLI, one per outcome class.
const (
	ExitCodeSuccess      = 0 // job succeeded
	ExitCodeJobError     = 1 // server reported a job error
	ExitCodeFailure      = 2 // transport, stream fault or incomplete stream
	ExitCodeInvalidInput = 3 // validation failed, nothing was sent
	ExitCodeCanceled     = 4 // submission canceled
)

// DetermineOutcome resolves the final job state into an outcome.
//
// Mapping:
//   - succeeded: succeeded, with the download reference
//   - failed: by failure reason (job_error, transport_error, stream_fault,
//     incomplete, canceled)
//   - any non-terminal state: incomplete
func DetermineOutcome(state types.JobState) *types.Outcome {
	switch state.State {
	case types.StateSucceeded:
		return &types.Outcome{
			Status:      types.OutcomeSucceeded,
			Message:     "job completed successfully",
			DownloadURL: state.DownloadURL,
		}

	case types.StateFailed:
		outcome := &types.Outcome{Message: state.FailureMessage}
		switch state.FailureReason {
		case types.FailureJobError:
			outcome.Status = types.OutcomeJobError
		case types.FailureTransport:
			outcome.Status = types.OutcomeTransportError
		case types.FailureStreamFault:
			outcome.Status = types.OutcomeStreamFault
		case types.FailureCanceled:
			outcome.Status = types.OutcomeCanceled
		default:
			outcome.Status = types.OutcomeIncomplete
		}
		if outcome.Message == "" {
			outcome.Message = "job failed"
		}
		return outcome

	default:
		return &types.Outcome{
			Status:  types.OutcomeIncomplete,
			Message: "submission did not reach a terminal state",
		}
	}
}

// ExitCode maps an outcome to a process exit code.
func ExitCode(outcome *types.Outcome) int {
	if outcome == nil {
		return ExitCodeFailure
	}
	switch outcome.Status {
	case types.OutcomeSucceeded:
		return ExitCodeSuccess
	case types.OutcomeJobError:
		return ExitCodeJobError
	case types.OutcomeCanceled:
		return ExitCodeCanceled
	default:
		return ExitCodeFailure
	}
}

// ExitCodeForError maps an error returned before a submission started.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case submit.IsValidationError(err):
		return ExitCodeInvalidInput
	case IsCanceledError(err):
		return ExitCodeCanceled
	case IsJobError(err):
		return ExitCodeJobError
	case errors.Is(err, ErrSubmissionInFlight):
		return ExitCodeInvalidInput
	default:
		return ExitCodeFailure
	}
}
