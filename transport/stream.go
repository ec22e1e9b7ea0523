package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Stream is an open progress stream: the body of a successful submission.
// Read must be called from a single goroutine. Close may be called from any
// goroutine to abort the stream.
type Stream struct {
	ctx         context.Context
	body        io.ReadCloser
	contentType string
	buf         []byte
	read        int64
	err         error
}

func newStream(ctx context.Context, resp *http.Response) *Stream {
	return &Stream{
		ctx:         ctx,
		body:        resp.Body,
		contentType: resp.Header.Get("Content-Type"),
		buf:         make([]byte, chunkSize),
	}
}

// Read returns the next chunk of the body. The slice is valid until the next
// call. At the end of the stream it returns io.EOF.
//
// Errors:
//   - io.EOF: the body ended normally
//   - ctx.Err(): the submission context was canceled
//   - *StreamFault: the connection failed mid-stream
func (s *Stream) Read() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		n, err := s.body.Read(s.buf)
		s.read += int64(n)
		if err != nil {
			s.err = s.classify(err)
		}
		if n > 0 {
			// Deliver data first; the error surfaces on the next call.
			return s.buf[:n], nil
		}
		if s.err != nil {
			return nil, s.err
		}
	}
}

func (s *Stream) classify(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &StreamFault{Offset: s.read, Err: err}
}

// Close aborts the stream and releases the connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// ContentType returns the response Content-Type header.
func (s *Stream) ContentType() string {
	return s.contentType
}

// BytesRead returns the number of body bytes read so far.
func (s *Stream) BytesRead() int64 {
	return s.read
}
