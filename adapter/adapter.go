// Package adapter defines the completion notification boundary.
//
// Adapters publish job completion notifications to downstream systems.
// The runner owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/mwi/types"
)

// EventType is the event_type of every completion event.
const EventType = "job_completed"

// JobCompletedEvent is the payload published when a submission reaches a
// terminal state.
type JobCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "job_completed"
	SubmissionID    string `json:"submission_id"`
	Endpoint        string `json:"endpoint"`
	Outcome         string `json:"outcome"` // succeeded, job_error, etc.
	Message         string `json:"message,omitempty"`
	DownloadURL     string `json:"download_url,omitempty"`
	Timestamp       string `json:"timestamp"` // ISO 8601
	DurationMs      int64  `json:"duration_ms"`
	Frames          int64  `json:"frames"`
}

// NewJobCompletedEvent builds the completion event for an outcome.
func NewJobCompletedEvent(submissionID, endpoint string, outcome *types.Outcome, duration time.Duration, frames int64, now time.Time) *JobCompletedEvent {
	ev := &JobCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventType,
		SubmissionID:    submissionID,
		Endpoint:        endpoint,
		Timestamp:       now.UTC().Format(time.RFC3339),
		DurationMs:      duration.Milliseconds(),
		Frames:          frames,
	}
	if outcome != nil {
		ev.Outcome = string(outcome.Status)
		ev.Message = outcome.Message
		ev.DownloadURL = outcome.DownloadURL
	}
	return ev
}

// Adapter publishes job completion events to a downstream system.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *JobCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the wait before retry attempt i (i >= 1): 500ms, 1s, 2s, ...
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when the context ends or permanent reports the
// error as non-retriable. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, fn func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
