// Package journal records a submission's observable history to a file.
//
// A journal is a sequence of length-prefixed records: a 4-byte big-endian
// payload length followed by a msgpack-encoded Record. The writer is a job
// observer, so the journal holds exactly what renderers were told, in order.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/mwi/job"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/types"
)

// Record size constants.
const (
	// MaxRecordSize is the maximum record size (16 MiB), including length prefix.
	MaxRecordSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxRecordSize - 4 bytes).
	MaxPayloadSize = MaxRecordSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// RecordType discriminates journal records.
type RecordType string

const (
	// RecordTransition records a job state change (From, To).
	RecordTransition RecordType = "transition"
	// RecordUpdate records a progress notification (Percent, Status).
	RecordUpdate RecordType = "update"
	// RecordSuccess records the success notification (DownloadURL).
	RecordSuccess RecordType = "success"
	// RecordFailure records the failure notification (Message).
	RecordFailure RecordType = "failure"
	// RecordOutcome records the final outcome, written once after the
	// submission returns.
	RecordOutcome RecordType = "outcome"
)

// Record is one journal entry. Fields not relevant to Type are empty.
type Record struct {
	Type         RecordType  `msgpack:"type" json:"type"`
	Seq          int64       `msgpack:"seq" json:"seq"`
	Ts           time.Time   `msgpack:"ts" json:"ts"`
	SubmissionID string      `msgpack:"submission_id" json:"submission_id"`
	From         types.State `msgpack:"from,omitempty" json:"from,omitempty"`
	To           types.State `msgpack:"to,omitempty" json:"to,omitempty"`
	Percent      float64     `msgpack:"percent,omitempty" json:"percent,omitempty"`
	Status       string      `msgpack:"status,omitempty" json:"status,omitempty"`
	DownloadURL  string      `msgpack:"download_url,omitempty" json:"download_url,omitempty"`
	Message      string      `msgpack:"message,omitempty" json:"message,omitempty"`
	Outcome      string      `msgpack:"outcome,omitempty" json:"outcome,omitempty"`
}

// FrameErrorKind classifies record decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated record.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a record exceeding MaxRecordSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a record decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if err is a *FrameError.
func IsFrameError(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// Writer appends records for one submission. It implements job.Observer and
// job.TransitionObserver. Observer methods cannot return errors, so the first
// write error is kept and reported by Err and Flush; later records are dropped.
type Writer struct {
	mu           sync.Mutex
	w            *bufio.Writer
	submissionID string
	seq          int64
	now          func() time.Time
	collector    *metrics.Collector
	err          error
}

// NewWriter creates a journal writer.
func NewWriter(w io.Writer, submissionID string, collector *metrics.Collector) *Writer {
	return &Writer{
		w:            bufio.NewWriter(w),
		submissionID: submissionID,
		now:          time.Now,
		collector:    collector,
	}
}

// SetSubmissionID changes the submission ID stamped on later records.
func (w *Writer) SetSubmissionID(id string) {
	w.mu.Lock()
	w.submissionID = id
	w.mu.Unlock()
}

// Write appends a record, assigning Seq, Ts and SubmissionID.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}

	w.seq++
	rec.Seq = w.seq
	rec.Ts = w.now().UTC()
	rec.SubmissionID = w.submissionID

	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		w.err = fmt.Errorf("encode record: %w", err)
		return w.err
	}
	if len(payload) > MaxPayloadSize {
		w.err = fmt.Errorf("record of %d bytes exceeds maximum %d", len(payload), MaxPayloadSize)
		return w.err
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		w.err = fmt.Errorf("write record: %w", err)
		return w.err
	}
	if _, err := w.w.Write(payload); err != nil {
		w.err = fmt.Errorf("write record: %w", err)
		return w.err
	}
	w.collector.IncJournalRecord()
	return nil
}

// OnTransition implements job.TransitionObserver.
func (w *Writer) OnTransition(from, to types.State) {
	_ = w.Write(Record{Type: RecordTransition, From: from, To: to})
}

// OnUpdate implements job.Observer.
func (w *Writer) OnUpdate(percent float64, status string) {
	_ = w.Write(Record{Type: RecordUpdate, Percent: percent, Status: status})
}

// OnSuccess implements job.Observer.
func (w *Writer) OnSuccess(downloadURL string) {
	_ = w.Write(Record{Type: RecordSuccess, DownloadURL: downloadURL})
}

// OnFailure implements job.Observer.
func (w *Writer) OnFailure(message string) {
	_ = w.Write(Record{Type: RecordFailure, Message: message})
}

// WriteOutcome appends the resolved outcome of the submission.
func (w *Writer) WriteOutcome(o *types.Outcome) error {
	if o == nil {
		return errors.New("nil outcome")
	}
	return w.Write(Record{
		Type:        RecordOutcome,
		Outcome:     string(o.Status),
		Message:     o.Message,
		DownloadURL: o.DownloadURL,
	})
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = fmt.Errorf("flush journal: %w", err)
	}
	return w.err
}

var (
	_ job.Observer           = (*Writer)(nil)
	_ job.TransitionObserver = (*Writer)(nil)
)

// Reader decodes journal records from a stream.
type Reader struct {
	reader io.Reader
}

// NewReader creates a journal reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// Next reads a single record.
//
// Errors:
//   - io.EOF: the journal ended cleanly
//   - *FrameError with Kind=FrameErrorPartial: truncated record
//   - *FrameError with Kind=FrameErrorTooLarge: record exceeds limit
//   - *FrameError with Kind=FrameErrorDecode: payload is not a record
func (r *Reader) Next() (*Record, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode record",
			Err:  err,
		}
	}
	return &rec, nil
}

// ReadAll reads records until the end of the journal. On error it returns the
// records decoded so far together with the error.
func ReadAll(r io.Reader) ([]Record, error) {
	jr := NewReader(r)
	var out []Record
	for {
		rec, err := jr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, *rec)
	}
}
