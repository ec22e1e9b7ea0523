// Package event classifies decoded frame payloads into progress events.
//
// Classification precedence is fixed; an event matches exactly one kind:
//  1. an "error" field (non-null)            -> error (terminal failure)
//  2. a non-empty "download_url" string     -> completed (terminal success)
//  3. a numeric "progress" field            -> progress
//
// Payloads that are not JSON objects, or objects matching none of the
// shapes, yield a *DecodeError. Decode errors are never fatal to a stream.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pithecene-io/mwi/types"
)

// DefaultStatus is used for progress events without a status line.
const DefaultStatus = "Processing..."

// defaultErrorMessage is used when the server reports an empty error.
const defaultErrorMessage = "job failed"

// DecodeErrorKind classifies decode errors.
type DecodeErrorKind int

const (
	// DecodeErrorMalformed indicates the payload is not a JSON object.
	DecodeErrorMalformed DecodeErrorKind = iota
	// DecodeErrorUnrecognized indicates a JSON object with no known shape.
	DecodeErrorUnrecognized
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorMalformed:
		return "malformed"
	case DecodeErrorUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("DecodeErrorKind(%d)", int(k))
	}
}

// DecodeError reports a frame payload that could not be interpreted.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is a *DecodeError.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}

// Interpret parses a frame payload and classifies it.
func Interpret(body []byte) (types.Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return types.Event{}, &DecodeError{
			Kind: DecodeErrorMalformed,
			Msg:  "failed to decode frame payload",
			Err:  err,
		}
	}
	if fields == nil {
		// "null" unmarshals into a nil map without error.
		return types.Event{}, &DecodeError{Kind: DecodeErrorMalformed, Msg: "frame payload is null"}
	}

	if raw, ok := present(fields, types.FieldError); ok {
		return types.Event{Kind: types.EventKindError, Message: errorMessage(raw)}, nil
	}

	if raw, ok := present(fields, types.FieldDownloadURL); ok {
		var url string
		if err := json.Unmarshal(raw, &url); err == nil && url != "" {
			return types.Event{
				Kind:        types.EventKindCompleted,
				DownloadURL: url,
				Status:      stringField(fields, types.FieldStatus),
			}, nil
		}
	}

	if raw, ok := present(fields, types.FieldProgress); ok {
		var pct float64
		if err := json.Unmarshal(raw, &pct); err == nil {
			status := stringField(fields, types.FieldStatus)
			if status == "" {
				status = DefaultStatus
			}
			return types.Event{
				Kind:     types.EventKindProgress,
				Progress: clamp(pct),
				Status:   status,
			}, nil
		}
	}

	return types.Event{}, &DecodeError{
		Kind: DecodeErrorUnrecognized,
		Msg:  fmt.Sprintf("unrecognized frame payload with fields [%s]", strings.Join(keys(fields), ", ")),
	}
}

// present returns the raw value for key when it exists and is not JSON null.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := present(fields, key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// errorMessage renders an error field. Non-string values keep their JSON text.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(bytes.TrimSpace(raw))
	}
	if strings.TrimSpace(s) == "" {
		return defaultErrorMessage
	}
	return s
}

func clamp(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

func keys(fields map[string]json.RawMessage) []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
