// Package types defines the core domain types shared by the submission pipeline:
// progress events decoded from the stream, job state, and final outcomes.
//
//nolint:revive // types is a common Go package naming convention
package types

// EventKind is the discriminator of a decoded progress event.
type EventKind string

// Event kinds, one per frame payload shape.
const (
	// EventKindProgress is a non-terminal progress update: {"progress": n, "status": "..."}.
	EventKindProgress EventKind = "progress"
	// EventKindError is a terminal failure reported by the server: {"error": "..."}.
	EventKindError EventKind = "error"
	// EventKindCompleted is terminal success: {"download_url": "..."}.
	EventKindCompleted EventKind = "completed"
)

// IsTerminal returns true if this event kind ends the job.
func (k EventKind) IsTerminal() bool {
	return k == EventKindError || k == EventKindCompleted
}

// Wire field names of the frame payload.
const (
	FieldProgress    = "progress"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldDownloadURL = "download_url"
)

// Event is a decoded progress event. Exactly one variant is populated,
// selected by Kind.
type Event struct {
	// Kind is the event discriminator.
	Kind EventKind
	// Progress is the completion percentage in [0, 100] (progress events).
	Progress float64
	// Status is the human-readable status line (progress, optionally completed).
	Status string
	// Message is the server-reported failure (error events).
	Message string
	// DownloadURL is the reference to the result archive (completed events).
	DownloadURL string
}
