package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/mwi/iox"
	"github.com/pithecene-io/mwi/submit"
)

const driveLink = "https://drive.google.com/drive/folders/1AbC_d-E"

func testPayload(t *testing.T) *submit.Payload {
	t.Helper()
	att := &submit.Attachment{Name: "me.jpg", ContentType: "image/jpeg", Data: []byte("\xff\xd8\xff\xe0fake-jpeg")}
	p, err := submit.Build(att, map[string]string{submit.DriveLinkField: driveLink}, submit.DefaultConstraints())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return p
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url, Headers: map[string]string{"X-Api-Key": "k"}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func readAll(t *testing.T, s *Stream) string {
	t.Helper()
	var sb strings.Builder
	for {
		chunk, err := s.Read()
		sb.Write(chunk)
		if errors.Is(err, io.EOF) {
			return sb.String()
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New(Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for non-http scheme")
	}
	c, err := New(Config{BaseURL: "http://localhost:5000"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.config.SubmitPath != DefaultSubmitPath || c.config.AttachmentField != DefaultAttachmentField {
		t.Errorf("defaults not applied: %+v", c.config)
	}
}

func TestSubmit_MultipartBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/process" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "k" {
			t.Error("custom header missing")
		}
		mr, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("MultipartReader: %v", err)
		}

		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("first part: %v", err)
		}
		if part.FormName() != "selfie" || part.FileName() != "me.jpg" {
			t.Errorf("attachment part = %s/%s", part.FormName(), part.FileName())
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("attachment content type = %s", ct)
		}
		data, _ := io.ReadAll(part)
		if string(data) != "\xff\xd8\xff\xe0fake-jpeg" {
			t.Errorf("attachment data = %q", data)
		}

		part, err = mr.NextPart()
		if err != nil {
			t.Fatalf("second part: %v", err)
		}
		value, _ := io.ReadAll(part)
		if part.FormName() != "drive_link" || string(value) != driveLink {
			t.Errorf("field part = %s=%q", part.FormName(), value)
		}
		if _, err := mr.NextPart(); !errors.Is(err, io.EOF) {
			t.Errorf("expected exactly two parts, got err=%v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"progress\":10}\n\n")
	}))
	defer ts.Close()

	s, err := newClient(t, ts.URL).Submit(t.Context(), testPayload(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	defer iox.DiscardClose(s)

	if got := readAll(t, s); got != "data: {\"progress\":10}\n\n" {
		t.Errorf("body = %q", got)
	}
	if s.ContentType() != "text/event-stream" {
		t.Errorf("ContentType = %q", s.ContentType())
	}
	if s.BytesRead() != int64(len("data: {\"progress\":10}\n\n")) {
		t.Errorf("BytesRead = %d", s.BytesRead())
	}
	// EOF is sticky.
	if _, err := s.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Read after EOF = %v", err)
	}
}

func TestSubmit_IncrementalChunks(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"progress\":1")
		w.(http.Flusher).Flush()
		<-release
		_, _ = io.WriteString(w, "0}\n\n")
	}))
	defer ts.Close()

	s, err := newClient(t, ts.URL).Submit(t.Context(), testPayload(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	defer iox.DiscardClose(s)

	first, err := s.Read()
	if err != nil {
		t.Fatalf("first Read failed: %v", err)
	}
	if string(first) != "data: {\"progress\":1" {
		t.Errorf("first chunk = %q", first)
	}
	close(release)
	if rest := readAll(t, s); rest != "0}\n\n" {
		t.Errorf("rest = %q", rest)
	}
}

func TestSubmit_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"json error body", http.StatusBadRequest, `{"error": "No selfie file uploaded"}`, "No selfie file uploaded"},
		{"plain body", http.StatusInternalServerError, "boom\n", "boom"},
		{"empty body", http.StatusBadGateway, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			s, err := newClient(t, ts.URL).Submit(t.Context(), testPayload(t))
			if s != nil {
				t.Fatal("no stream should exist on error status")
			}
			var tErr *TransportError
			if !errors.As(err, &tErr) {
				t.Fatalf("expected *TransportError, got %T: %v", err, err)
			}
			if tErr.StatusCode != tt.status || tErr.Message != tt.message {
				t.Errorf("TransportError = %+v", tErr)
			}
		})
	}
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newClient(t, url).Submit(t.Context(), testPayload(t))
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if tErr.StatusCode != 0 || tErr.Err == nil {
		t.Errorf("TransportError = %+v", tErr)
	}
}

func TestStream_CanceledMidStream(t *testing.T) {
	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"progress\":10}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer ts.Close()
	defer close(done)

	ctx, cancel := context.WithCancel(t.Context())
	s, err := newClient(t, ts.URL).Submit(ctx, testPayload(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	defer iox.DiscardClose(s)

	if _, err := s.Read(); err != nil {
		t.Fatalf("first Read failed: %v", err)
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("Read did not return after cancel")
		default:
		}
		_, err := s.Read()
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Read after cancel = %v, want context.Canceled", err)
		}
		if IsStreamFault(err) {
			t.Error("cancellation must not be reported as a stream fault")
		}
		return
	}
}

func TestStatusAndHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"status":"running","face_recognition":{"available":true,"demo_mode":false,"error":null},"version":"1.0.0"}`)
		case "/health":
			_, _ = io.WriteString(w, "OK")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := newClient(t, ts.URL)
	status, err := c.Status(t.Context())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Status != "running" || status.Version != "1.0.0" {
		t.Errorf("status = %+v", status)
	}
	if !status.FaceRecognition.Available || status.FaceRecognition.DemoMode || status.FaceRecognition.Error != nil {
		t.Errorf("face recognition = %+v", status.FaceRecognition)
	}
	if err := c.Health(t.Context()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	err := newClient(t, ts.URL).Health(t.Context())
	var tErr *TransportError
	if !errors.As(err, &tErr) || tErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Health = %v", err)
	}
}

func TestDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download/matching_photos_1.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Disposition", `attachment; filename="matching_photos_1.zip"`)
			_, _ = io.WriteString(w, "PK\x03\x04zip")
		case "/download/bare.zip":
			_, _ = io.WriteString(w, "PK")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	c := newClient(t, ts.URL)

	dl, err := c.Download(t.Context(), "/download/matching_photos_1.zip")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer iox.DiscardClose(dl.Body)
	data, _ := io.ReadAll(dl.Body)
	if dl.Name != "matching_photos_1.zip" || dl.ContentType != "application/zip" || string(data) != "PK\x03\x04zip" {
		t.Errorf("download = %+v data=%q", dl, data)
	}

	// Absolute references are used as-is.
	dl, err = c.Download(t.Context(), ts.URL+"/download/bare.zip")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	iox.DrainClose(dl.Body)
	if dl.Name != "bare.zip" {
		t.Errorf("Name = %q, want name from path", dl.Name)
	}

	if _, err := c.Download(t.Context(), "/download/missing.zip"); !IsTransportError(err) {
		t.Errorf("missing download = %v, want *TransportError", err)
	}
	if _, err := c.Download(t.Context(), " "); err == nil {
		t.Error("expected error for empty reference")
	}
}

func TestResolve(t *testing.T) {
	c, err := New(Config{BaseURL: "http://svc:5000/base/"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tests := map[string]string{
		"/download/a.zip":             "http://svc:5000/download/a.zip",
		"download/a.zip":              "http://svc:5000/base/download/a.zip",
		"https://cdn.example/x/a.zip": "https://cdn.example/x/a.zip",
	}
	for ref, want := range tests {
		got, err := c.Resolve(ref)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", ref, err)
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestTransportError_Messages(t *testing.T) {
	tests := []struct {
		err  *TransportError
		want string
	}{
		{&TransportError{Err: errors.New("dial tcp: refused")}, "request failed: dial tcp: refused"},
		{&TransportError{StatusCode: 400, Message: "bad"}, "server returned 400: bad"},
		{&TransportError{StatusCode: 502}, "server returned 502"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
