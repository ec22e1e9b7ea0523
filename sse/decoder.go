// Package sse decodes the progress stream into frames.
//
// The stream is text: frames are separated by a blank line ("\n\n") and each
// meaningful frame starts with the "data: " prefix followed by a JSON payload.
// Decoding is incremental: Feed accepts arbitrary chunk boundaries and keeps
// the trailing partial frame until its delimiter arrives.
package sse

import (
	"bytes"
	"errors"
	"fmt"
)

// Framing constants.
const (
	// DefaultMaxFrameSize bounds a single pending frame (1 MiB).
	DefaultMaxFrameSize = 1024 * 1024
	// Delimiter separates frames.
	Delimiter = "\n\n"
	// DataPrefix starts every payload-carrying frame.
	DataPrefix = "data: "
)

var (
	delimiter  = []byte(Delimiter)
	dataPrefix = []byte(DataPrefix)
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorTooLarge indicates a pending frame exceeding the size bound.
	FrameErrorTooLarge FrameErrorKind = iota
)

// FrameError represents a frame decoding error. All frame errors are fatal
// for the stream: there is no resync past an oversized frame.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
}

func (e *FrameError) Error() string {
	return e.Msg
}

// IsFrameError returns true if err is a *FrameError.
func IsFrameError(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// Stats reports decoder counters.
type Stats struct {
	// Frames is the number of data frames emitted.
	Frames int64
	// Discarded is the number of complete frames dropped for lacking the data prefix.
	Discarded int64
	// Pending is the number of buffered bytes not yet terminated by a delimiter.
	Pending int
}

// Decoder splits an incremental byte stream into data frame payloads.
// Not safe for concurrent use.
type Decoder struct {
	buf       []byte
	scanned   int // bytes of buf already searched for a delimiter
	maxFrame  int
	frames    int64
	discarded int64
}

// NewDecoder creates a decoder. maxFrame <= 0 selects DefaultMaxFrameSize.
func NewDecoder(maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Decoder{maxFrame: maxFrame}
}

// Feed appends chunk to the buffer and returns every frame completed by it,
// in arrival order. Each returned slice is the payload after the data prefix
// and is owned by the caller.
//
// Errors:
//   - *FrameError with Kind=FrameErrorTooLarge: the pending frame exceeds the bound (fatal)
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	start := 0
	// A delimiter may straddle the previous chunk boundary.
	from := d.scanned - (len(delimiter) - 1)
	if from < 0 {
		from = 0
	}

	for {
		idx := bytes.Index(d.buf[from:], delimiter)
		if idx < 0 {
			break
		}
		end := from + idx
		if payload, ok := d.payload(d.buf[start:end]); ok {
			frames = append(frames, payload)
		}
		start = end + len(delimiter)
		from = start
	}

	// Compact: keep only the unterminated tail.
	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}
	d.scanned = len(d.buf)

	if len(d.buf) > d.maxFrame {
		return frames, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("pending frame of %d bytes exceeds maximum %d", len(d.buf), d.maxFrame),
		}
	}

	return frames, nil
}

// payload strips the data prefix, reporting false for frames without it.
func (d *Decoder) payload(frame []byte) ([]byte, bool) {
	if !bytes.HasPrefix(frame, dataPrefix) {
		d.discarded++
		return nil, false
	}
	d.frames++
	out := make([]byte, len(frame)-len(dataPrefix))
	copy(out, frame[len(dataPrefix):])
	return out, true
}

// Finish ends the stream. Any unterminated trailing data is discarded, never
// emitted, and its size is returned. The decoder is reset for reuse.
func (d *Decoder) Finish() int {
	n := len(d.buf)
	d.buf = d.buf[:0]
	d.scanned = 0
	return n
}

// Stats returns the decoder counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:    d.frames,
		Discarded: d.discarded,
		Pending:   len(d.buf),
	}
}
