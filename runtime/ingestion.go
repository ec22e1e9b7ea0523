package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/mwi/event"
	"github.com/pithecene-io/mwi/job"
	"github.com/pithecene-io/mwi/log"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/sse"
	"github.com/pithecene-io/mwi/types"
)

// canceledMessage is the failure message of a canceled submission.
const canceledMessage = "submission canceled"

// incompleteMessage is the failure message of a stream that ended early.
const incompleteMessage = "stream ended before the job finished"

// ChunkSource yields the raw bytes of a progress stream.
// *transport.Stream implements it.
type ChunkSource interface {
	Read() ([]byte, error)
	BytesRead() int64
}

// IngestionStats reports what one stream carried.
type IngestionStats struct {
	BytesRead     int64
	Frames        int64
	Discarded     int64
	DecodeErrors  int64
	DiscardedTail int
}

// IngestionEngine consumes one progress stream and drives the machine.
//
// The loop is sequential: read a chunk, feed the decoder, then interpret and
// apply each completed frame in order. Cancellation is checked before every
// read and every frame, so no update is applied after cancel. The first
// terminal event ends ingestion; the rest of the stream is never read.
type IngestionEngine struct {
	source    ChunkSource
	decoder   *sse.Decoder
	machine   *job.Machine
	logger    *log.Logger
	collector *metrics.Collector
	stats     IngestionStats
}

// NewIngestionEngine creates an ingestion engine. The machine must be in the
// submitting state.
func NewIngestionEngine(
	source ChunkSource,
	maxFrame int,
	machine *job.Machine,
	logger *log.Logger,
	collector *metrics.Collector,
) *IngestionEngine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &IngestionEngine{
		source:    source,
		decoder:   sse.NewDecoder(maxFrame),
		machine:   machine,
		logger:    logger,
		collector: collector,
	}
}

// Run runs the ingestion loop until a terminal event, end of stream, fault
// or cancellation. The machine is terminal when Run returns.
// Returns:
//   - nil: the job succeeded
//   - *SubmissionError with Kind=SubmissionErrorJob: the server reported an error
//   - *SubmissionError with Kind=SubmissionErrorIncomplete: EOF without a terminal event
//   - *SubmissionError with Kind=SubmissionErrorStream: read fault or oversized frame
//   - *SubmissionError with Kind=SubmissionErrorCanceled: context canceled
func (e *IngestionEngine) Run(ctx context.Context) error {
	defer e.absorb()

	for {
		if ctx.Err() != nil {
			return e.cancel(ctx)
		}

		chunk, readErr := e.source.Read()
		if len(chunk) > 0 {
			frames, frameErr := e.decoder.Feed(chunk)
			for _, payload := range frames {
				if ctx.Err() != nil {
					return e.cancel(ctx)
				}
				if done, err := e.processFrame(payload); done {
					return err
				}
			}
			if frameErr != nil {
				return e.fault(fmt.Errorf("frame error: %w", frameErr))
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			e.stats.DiscardedTail = e.decoder.Finish()
			if e.stats.DiscardedTail > 0 {
				e.logger.Debug("discarding unterminated trailing frame", map[string]any{
					"bytes": e.stats.DiscardedTail,
				})
			}
			e.logger.Error("stream ended without terminal event", nil)
			e.machine.Fail(types.FailureIncomplete, incompleteMessage)
			return &SubmissionError{Kind: SubmissionErrorIncomplete, Err: errors.New(incompleteMessage)}
		}
		if ctx.Err() != nil || errors.Is(readErr, context.Canceled) {
			return e.cancel(ctx)
		}
		return e.fault(readErr)
	}
}

// processFrame interprets and applies one frame. done reports a terminal state.
func (e *IngestionEngine) processFrame(payload []byte) (done bool, err error) {
	e.machine.FrameReceived()

	ev, err := event.Interpret(payload)
	if err != nil {
		e.stats.DecodeErrors++
		e.collector.IncDecodeErrors()
		e.logger.Warn("frame decode error", map[string]any{
			"error": err.Error(),
			"bytes": len(payload),
		})
		return false, nil
	}

	if !e.machine.Apply(ev) {
		return false, nil
	}

	e.logger.Info("terminal event received", map[string]any{
		"kind": ev.Kind,
	})
	if ev.Kind == types.EventKindError {
		return true, &SubmissionError{Kind: SubmissionErrorJob, Err: errors.New(ev.Message)}
	}
	return true, nil
}

func (e *IngestionEngine) cancel(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	e.logger.Info("submission canceled", nil)
	e.machine.Fail(types.FailureCanceled, canceledMessage)
	return &SubmissionError{Kind: SubmissionErrorCanceled, Err: err}
}

func (e *IngestionEngine) fault(err error) error {
	e.logger.Error("stream fault", map[string]any{
		"error": err.Error(),
	})
	e.collector.IncStreamFault()
	e.machine.Fail(types.FailureStreamFault, err.Error())
	return &SubmissionError{Kind: SubmissionErrorStream, Err: err}
}

// absorb copies decoder counters into the stats and the collector.
func (e *IngestionEngine) absorb() {
	ds := e.decoder.Stats()
	e.stats.BytesRead = e.source.BytesRead()
	e.stats.Frames = ds.Frames
	e.stats.Discarded = ds.Discarded
	e.collector.AbsorbStreamStats(e.stats.BytesRead, ds.Frames, ds.Discarded, int64(e.stats.DiscardedTail))
}

// Stats returns the ingestion counters. Complete once Run has returned.
func (e *IngestionEngine) Stats() IngestionStats {
	return e.stats
}
