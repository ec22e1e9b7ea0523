package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pithecene-io/mwi/job"
	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/types"
)

// FormConfig configures a Form.
type FormConfig struct {
	// Runner executes submissions (required).
	Runner *Runner
	// Constraints validate each submission before any network activity.
	Constraints submit.Constraints
	// Observer receives job notifications. Optional.
	Observer job.Observer
	// NewID generates submission IDs (default: random UUID).
	NewID func() string
	// OnStart is called with the submission ID after validation passes and
	// before the request is sent. Optional.
	OnStart func(submissionID string)
}

// Form is one submission surface: at most one submission in flight at a
// time, with a single job state machine reused across submissions.
type Form struct {
	config  FormConfig
	machine *job.Machine

	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc
}

// NewForm creates a form in the idle state.
func NewForm(cfg FormConfig) *Form {
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Form{
		config:  cfg,
		machine: job.NewMachine(cfg.Observer),
	}
}

// Submit resets the form to idle, validates the attachment and fields, then
// runs the submission to a terminal state. A rejected attempt leaves the form
// idle.
//
// Observers are never called while the form's lock is held, so they may call
// back into the form (InFlight, State).
//
// Errors:
//   - ErrSubmissionInFlight: another submission has not finished (nothing sent)
//   - *submit.ValidationError: the input was rejected (nothing sent)
//   - *SubmissionError: the submission ran and did not succeed (Result also returned)
func (f *Form) Submit(ctx context.Context, att *submit.Attachment, fields map[string]string) (*Result, error) {
	if !f.claim() {
		return nil, ErrSubmissionInFlight
	}
	defer f.release()

	if err := f.machine.Reset(); err != nil {
		return nil, err
	}

	payload, err := submit.Build(att, fields, f.config.Constraints)
	if err != nil {
		f.config.Runner.Collector().IncValidationRejection()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	id := f.config.NewID()
	if f.config.OnStart != nil {
		f.config.OnStart(id)
	}
	return f.config.Runner.Run(runCtx, id, payload, f.machine)
}

// claim marks the form in flight. It reports false if it already was.
func (f *Form) claim() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	f.inFlight = true
	return true
}

func (f *Form) release() {
	f.mu.Lock()
	f.inFlight = false
	f.cancel = nil
	f.mu.Unlock()
}

// Cancel aborts the in-flight submission, if any. The job fails with reason
// canceled and no further updates are delivered.
func (f *Form) Cancel() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset returns a finished form to idle. It fails while a submission is in flight.
func (f *Form) Reset() error {
	if !f.claim() {
		return ErrSubmissionInFlight
	}
	defer f.release()
	return f.machine.Reset()
}

// State returns a snapshot of the job state for renderers.
func (f *Form) State() types.JobState {
	return f.machine.Snapshot()
}

// InFlight reports whether a submission is running.
func (f *Form) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}
