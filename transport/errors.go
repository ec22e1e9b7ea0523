package transport

import (
	"errors"
	"fmt"
)

// TransportError reports a failed submission request before any stream
// exists: a connection failure (StatusCode 0) or a non-success status.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the server-provided error text, when the body carried one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is a *TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// StreamFault reports a read failure after the stream was established.
type StreamFault struct {
	// Offset is the number of body bytes read before the fault.
	Offset int64
	Err    error
}

func (e *StreamFault) Error() string {
	return fmt.Sprintf("stream read failed after %d bytes: %v", e.Offset, e.Err)
}

func (e *StreamFault) Unwrap() error {
	return e.Err
}

// IsStreamFault returns true if err is a *StreamFault.
func IsStreamFault(err error) bool {
	var fault *StreamFault
	return errors.As(err, &fault)
}
