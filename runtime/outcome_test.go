package runtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/types"
)

func TestDetermineOutcome(t *testing.T) {
	tests := []struct {
		name    string
		state   types.JobState
		status  types.OutcomeStatus
		message string
		ref     string
	}{
		{
			name:   "succeeded",
			state:  types.JobState{State: types.StateSucceeded, DownloadURL: "/d/a.zip", Percent: 100},
			status: types.OutcomeSucceeded, message: "job completed successfully", ref: "/d/a.zip",
		},
		{
			name:   "job error",
			state:  types.JobState{State: types.StateFailed, FailureReason: types.FailureJobError, FailureMessage: "No matching photos found"},
			status: types.OutcomeJobError, message: "No matching photos found",
		},
		{
			name:   "transport",
			state:  types.JobState{State: types.StateFailed, FailureReason: types.FailureTransport, FailureMessage: "server returned 500"},
			status: types.OutcomeTransportError, message: "server returned 500",
		},
		{
			name:   "stream fault",
			state:  types.JobState{State: types.StateFailed, FailureReason: types.FailureStreamFault, FailureMessage: "reset"},
			status: types.OutcomeStreamFault, message: "reset",
		},
		{
			name:   "incomplete",
			state:  types.JobState{State: types.StateFailed, FailureReason: types.FailureIncomplete, FailureMessage: "ended"},
			status: types.OutcomeIncomplete, message: "ended",
		},
		{
			name:   "canceled",
			state:  types.JobState{State: types.StateFailed, FailureReason: types.FailureCanceled, FailureMessage: "submission canceled"},
			status: types.OutcomeCanceled, message: "submission canceled",
		},
		{
			name:   "failed without message",
			state:  types.JobState{State: types.StateFailed, FailureReason: types.FailureJobError},
			status: types.OutcomeJobError, message: "job failed",
		},
		{
			name:   "still streaming",
			state:  types.JobState{State: types.StateStreaming, Percent: 50},
			status: types.OutcomeIncomplete, message: "submission did not reach a terminal state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineOutcome(tt.state)
			if got.Status != tt.status || got.Message != tt.message || got.DownloadURL != tt.ref {
				t.Errorf("DetermineOutcome = %+v, want {%s %q %q}", got, tt.status, tt.message, tt.ref)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := map[types.OutcomeStatus]int{
		types.OutcomeSucceeded:      ExitCodeSuccess,
		types.OutcomeJobError:       ExitCodeJobError,
		types.OutcomeTransportError: ExitCodeFailure,
		types.OutcomeStreamFault:    ExitCodeFailure,
		types.OutcomeIncomplete:     ExitCodeFailure,
		types.OutcomeCanceled:       ExitCodeCanceled,
	}
	for status, want := range tests {
		if got := ExitCode(&types.Outcome{Status: status}); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", status, got, want)
		}
	}
	if ExitCode(nil) != ExitCodeFailure {
		t.Error("nil outcome should map to failure")
	}
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitCodeSuccess},
		{&submit.ValidationError{Rule: submit.RuleFieldMissing, Message: "x"}, ExitCodeInvalidInput},
		{fmt.Errorf("wrapped: %w", &SubmissionError{Kind: SubmissionErrorCanceled, Err: errors.New("c")}), ExitCodeCanceled},
		{&SubmissionError{Kind: SubmissionErrorJob, Err: errors.New("j")}, ExitCodeJobError},
		{&SubmissionError{Kind: SubmissionErrorTransport, Err: errors.New("t")}, ExitCodeFailure},
		{ErrSubmissionInFlight, ExitCodeInvalidInput},
	}
	for _, tt := range tests {
		if got := ExitCodeForError(tt.err); got != tt.want {
			t.Errorf("ExitCodeForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSubmissionErrorHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", &SubmissionError{Kind: SubmissionErrorStream, Err: errors.New("reset")})
	if !IsStreamError(err) || IsTransportError(err) || IsCanceledError(err) || IsIncompleteError(err) || IsJobError(err) {
		t.Error("helpers misclassified a stream error")
	}
	if err.Error() != "outer: reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if SubmissionErrorIncomplete.String() != "incomplete" {
		t.Errorf("String() = %q", SubmissionErrorIncomplete.String())
	}
}
