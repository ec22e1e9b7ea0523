package iox

import (
	"errors"
	"io"
	"testing"
)

type spyCloser struct{ closed bool }

func (s *spyCloser) Close() error { s.closed = true; return errors.New("ignored") }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("ignored")
	})
	if !called {
		t.Fatal("fn was not called")
	}
}

type countingBody struct {
	remaining int
	read      int
	closed    bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	if b.remaining == 0 {
		return 0, io.EOF
	}
	n := min(len(p), b.remaining)
	b.remaining -= n
	b.read += n
	return n, nil
}

func (b *countingBody) Close() error { b.closed = true; return nil }

func TestDrainClose(t *testing.T) {
	small := &countingBody{remaining: 100}
	DrainClose(small)
	if !small.closed || small.read != 100 {
		t.Errorf("small body: closed=%v read=%d", small.closed, small.read)
	}

	large := &countingBody{remaining: 10 * drainLimit}
	DrainClose(large)
	if !large.closed {
		t.Error("large body not closed")
	}
	if large.read != drainLimit {
		t.Errorf("large body read %d bytes, want %d", large.read, drainLimit)
	}
}
