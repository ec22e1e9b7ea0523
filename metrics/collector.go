// Package metrics provides per-submission metrics collection.
//
// The Collector accumulates counters during a session of one or more
// submissions. It is a leaf package with no internal dependencies. Decoder
// counters are absorbed from sse.Stats when a stream ends rather than
// recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Submission lifecycle
	SubmissionsStarted   int64
	SubmissionsSucceeded int64
	SubmissionsFailed    int64
	SubmissionsCanceled  int64
	FailuresByReason     map[string]int64

	// Validation and transport
	ValidationRejections int64
	TransportErrors      int64
	StreamFaults         int64

	// Stream (decoder counters absorbed at stream end)
	BytesRead       int64
	FramesDecoded   int64
	FramesDiscarded int64
	TrailingBytes   int64
	DecodeErrors    int64

	// Outputs
	ArchiveSaves     int64
	ArchiveFailures  int64
	JournalRecords   int64
	PublishSuccesses int64
	PublishFailures  int64

	// Dimensions (informational, set at construction)
	Endpoint string
	Sink     string
}

// Collector accumulates metrics.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	submissionsStarted   int64
	submissionsSucceeded int64
	submissionsFailed    int64
	submissionsCanceled  int64
	failuresByReason     map[string]int64

	validationRejections int64
	transportErrors      int64
	streamFaults         int64

	bytesRead       int64
	framesDecoded   int64
	framesDiscarded int64
	trailingBytes   int64
	decodeErrors    int64

	archiveSaves     int64
	archiveFailures  int64
	journalRecords   int64
	publishSuccesses int64
	publishFailures  int64

	endpoint string
	sink     string
}

// NewCollector creates a Collector with dimension labels.
// sink names the archive backend ("file", "s3" or "" when none).
func NewCollector(endpoint, sink string) *Collector {
	return &Collector{
		failuresByReason: make(map[string]int64),
		endpoint:         endpoint,
		sink:             sink,
	}
}

// inc increments a counter field. Callers check for a nil receiver.
func (c *Collector) inc(p *int64) {
	c.mu.Lock()
	*p++
	c.mu.Unlock()
}

// --- Submission lifecycle ---

// IncSubmissionStarted records a submission that passed validation.
func (c *Collector) IncSubmissionStarted() {
	if c == nil {
		return
	}
	c.inc(&c.submissionsStarted)
}

// IncSubmissionSucceeded records a submission that ended in success.
func (c *Collector) IncSubmissionSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.submissionsSucceeded)
}

// IncSubmissionFailed records a failed submission by failure reason.
// Cancellation is counted separately via IncSubmissionCanceled.
func (c *Collector) IncSubmissionFailed(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.submissionsFailed++
	c.failuresByReason[reason]++
	c.mu.Unlock()
}

// IncSubmissionCanceled records a user-canceled submission.
func (c *Collector) IncSubmissionCanceled() {
	if c == nil {
		return
	}
	c.inc(&c.submissionsCanceled)
}

// --- Validation and transport ---

// IncValidationRejection records a submission rejected before any request.
func (c *Collector) IncValidationRejection() {
	if c == nil {
		return
	}
	c.inc(&c.validationRejections)
}

// IncTransportError records a failed submission request.
func (c *Collector) IncTransportError() {
	if c == nil {
		return
	}
	c.inc(&c.transportErrors)
}

// IncStreamFault records a mid-stream read failure or oversized frame.
func (c *Collector) IncStreamFault() {
	if c == nil {
		return
	}
	c.inc(&c.streamFaults)
}

// IncDecodeErrors records a frame payload that could not be interpreted.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// --- Stream ---

// AbsorbStreamStats adds the counters of one finished stream.
// Called once per submission after the stream ends.
func (c *Collector) AbsorbStreamStats(bytesRead, frames, discarded, trailing int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesRead += bytesRead
	c.framesDecoded += frames
	c.framesDiscarded += discarded
	c.trailingBytes += trailing
	c.mu.Unlock()
}

// --- Outputs ---

// IncArchiveSave records a result archive stored by the sink.
func (c *Collector) IncArchiveSave() {
	if c == nil {
		return
	}
	c.inc(&c.archiveSaves)
}

// IncArchiveFailure records a failed archive download or store.
func (c *Collector) IncArchiveFailure() {
	if c == nil {
		return
	}
	c.inc(&c.archiveFailures)
}

// IncJournalRecord records a journal record written.
func (c *Collector) IncJournalRecord() {
	if c == nil {
		return
	}
	c.inc(&c.journalRecords)
}

// IncPublish records a completion event publish attempt result.
func (c *Collector) IncPublish(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.inc(&c.publishSuccesses)
		return
	}
	c.inc(&c.publishFailures)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byReason := make(map[string]int64, len(c.failuresByReason))
	for k, v := range c.failuresByReason {
		byReason[k] = v
	}

	return Snapshot{
		SubmissionsStarted:   c.submissionsStarted,
		SubmissionsSucceeded: c.submissionsSucceeded,
		SubmissionsFailed:    c.submissionsFailed,
		SubmissionsCanceled:  c.submissionsCanceled,
		FailuresByReason:     byReason,

		ValidationRejections: c.validationRejections,
		TransportErrors:      c.transportErrors,
		StreamFaults:         c.streamFaults,

		BytesRead:       c.bytesRead,
		FramesDecoded:   c.framesDecoded,
		FramesDiscarded: c.framesDiscarded,
		TrailingBytes:   c.trailingBytes,
		DecodeErrors:    c.decodeErrors,

		ArchiveSaves:     c.archiveSaves,
		ArchiveFailures:  c.archiveFailures,
		JournalRecords:   c.journalRecords,
		PublishSuccesses: c.publishSuccesses,
		PublishFailures:  c.publishFailures,

		Endpoint: c.endpoint,
		Sink:     c.sink,
	}
}
