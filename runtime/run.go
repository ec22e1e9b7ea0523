// Package runtime drives submissions end to end: one request, one progress
// stream, one job state machine.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/mwi/adapter"
	"github.com/pithecene-io/mwi/iox"
	"github.com/pithecene-io/mwi/job"
	"github.com/pithecene-io/mwi/log"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/transport"
	"github.com/pithecene-io/mwi/types"
)

// DefaultPublishTimeout bounds the completion publish after a terminal state.
const DefaultPublishTimeout = 10 * time.Second

// RunConfig configures a Runner.
type RunConfig struct {
	// Client is the transport client (required).
	Client *transport.Client
	// Logger receives submission logs. If nil, logs are discarded.
	Logger *log.Logger
	// Collector is the metrics collector.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// MaxFrameSize bounds a single pending frame; <= 0 selects the decoder default.
	MaxFrameSize int
	// Adapter publishes a completion event after each terminal state. Optional.
	Adapter adapter.Adapter
	// PublishTimeout bounds each publish (default 10s).
	PublishTimeout time.Duration
}

// Result represents the result of a submission.
type Result struct {
	// SubmissionID is the client-generated submission identifier.
	SubmissionID string
	// Outcome is the resolved outcome.
	Outcome *types.Outcome
	// Final is the terminal job state.
	Final types.JobState
	// Duration is the wall time from request to terminal state.
	Duration time.Duration
	// Stats are the stream counters. Zero when no stream was opened.
	Stats IngestionStats
}

// Runner runs submissions against one service.
type Runner struct {
	config RunConfig
	logger *log.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunConfig) (*Runner, error) {
	if cfg.Client == nil {
		return nil, errors.New("runner requires a transport client")
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Runner{config: cfg, logger: logger}, nil
}

// Collector returns the runner's metrics collector (may be nil).
func (r *Runner) Collector() *metrics.Collector {
	return r.config.Collector
}

// Run submits payload and consumes the stream until the machine is terminal.
// The machine must be idle. A Result is returned whenever the submission
// started, together with a *SubmissionError when it did not succeed.
//
// Execution flow:
//  1. idle -> submitting
//  2. POST the payload (transport failure -> failed, no stream)
//  3. Ingest the stream until a terminal event, EOF, fault or cancel
//  4. Determine outcome, record metrics, publish completion
func (r *Runner) Run(ctx context.Context, submissionID string, payload *submit.Payload, machine *job.Machine) (*Result, error) {
	if err := machine.Begin(); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := r.logger.WithSubmission(submissionID)
	collector := r.config.Collector
	collector.IncSubmissionStarted()

	fields := map[string]any{
		"file":   payload.Name(),
		"bytes":  payload.Size(),
		"fields": payload.FieldNames(),
	}
	if link, ok := payload.Field(submit.DriveLinkField); ok {
		fields["folder"] = submit.FolderID(link)
	}
	logger.Info("submitting", fields)

	result := &Result{SubmissionID: submissionID}
	runErr := r.execute(ctx, payload, machine, logger, result)

	result.Final = machine.Snapshot()
	result.Outcome = DetermineOutcome(result.Final)
	result.Duration = time.Since(start)
	r.record(result.Outcome)

	logger.Info("submission finished", map[string]any{
		"outcome":     result.Outcome.Status,
		"message":     result.Outcome.Message,
		"duration_ms": result.Duration.Milliseconds(),
		"frames":      result.Stats.Frames,
	})

	r.publish(ctx, logger, result)
	return result, runErr
}

func (r *Runner) execute(ctx context.Context, payload *submit.Payload, machine *job.Machine, logger *log.Logger, result *Result) error {
	stream, err := r.config.Client.Submit(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("submission canceled before response", nil)
			machine.Fail(types.FailureCanceled, canceledMessage)
			return &SubmissionError{Kind: SubmissionErrorCanceled, Err: ctx.Err()}
		}
		logger.Error("submission request failed", map[string]any{
			"error": err.Error(),
		})
		r.config.Collector.IncTransportError()
		machine.Fail(types.FailureTransport, err.Error())
		return &SubmissionError{Kind: SubmissionErrorTransport, Err: err}
	}
	defer iox.DiscardClose(stream)

	// Closing the body unblocks a pending Read when ctx is canceled.
	stop := context.AfterFunc(ctx, func() { iox.DiscardClose(stream) })
	defer stop()

	logger.Debug("stream opened", map[string]any{
		"content_type": stream.ContentType(),
	})

	engine := NewIngestionEngine(stream, r.config.MaxFrameSize, machine, logger, r.config.Collector)
	err = engine.Run(ctx)
	result.Stats = engine.Stats()
	return err
}

func (r *Runner) record(outcome *types.Outcome) {
	c := r.config.Collector
	switch outcome.Status {
	case types.OutcomeSucceeded:
		c.IncSubmissionSucceeded()
	case types.OutcomeCanceled:
		c.IncSubmissionCanceled()
	default:
		c.IncSubmissionFailed(string(outcome.Status))
	}
}

// publish sends the completion event. Best effort: failures are logged.
// It runs even when ctx is canceled so canceled submissions are reported.
func (r *Runner) publish(ctx context.Context, logger *log.Logger, result *Result) {
	if r.config.Adapter == nil {
		return
	}
	event := adapter.NewJobCompletedEvent(
		result.SubmissionID,
		r.config.Client.BaseURL(),
		result.Outcome,
		result.Duration,
		result.Stats.Frames,
		time.Now(),
	)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.PublishTimeout)
	defer cancel()

	if err := r.config.Adapter.Publish(pubCtx, event); err != nil {
		r.config.Collector.IncPublish(false)
		logger.Warn("completion publish failed (best effort)", map[string]any{
			"error": err.Error(),
		})
		return
	}
	r.config.Collector.IncPublish(true)
	logger.Debug("completion published", map[string]any{
		"outcome": event.Outcome,
	})
}

// String renders a one-line summary of the result.
func (r *Result) String() string {
	if r == nil || r.Outcome == nil {
		return "no result"
	}
	if r.Outcome.Succeeded() {
		return fmt.Sprintf("%s: %s", r.Outcome.Status, r.Outcome.DownloadURL)
	}
	return fmt.Sprintf("%s: %s", r.Outcome.Status, r.Outcome.Message)
}
