// Package transport owns the HTTP session with the photo extraction service.
//
// Submit issues exactly one multipart POST per call and exposes the response
// body as an incremental chunk source. There are no retries: a failed
// submission is reported and the caller decides what to do next.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pithecene-io/mwi/iox"
	"github.com/pithecene-io/mwi/log"
	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/types"
)

// Defaults for Config.
const (
	DefaultSubmitPath      = "/process"
	DefaultAttachmentField = "selfie"
	DefaultStatusPath      = "/api/status"
	DefaultHealthPath      = "/health"

	// EventStreamContentType is the expected response type of a submission.
	EventStreamContentType = "text/event-stream"

	// maxErrorBody bounds how much of a non-success body is read.
	maxErrorBody = 4 * 1024
	// chunkSize is the read buffer size of a Stream.
	chunkSize = 32 * 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:5000" (required).
	BaseURL string
	// SubmitPath is the submission endpoint path (default "/process").
	SubmitPath string
	// AttachmentField is the multipart field name of the image (default "selfie").
	AttachmentField string
	// Headers are added to every request.
	Headers map[string]string
	// UserAgent overrides the default User-Agent.
	UserAgent string
	// ResponseHeaderTimeout bounds the wait for response headers. Zero means
	// no bound; the stream itself is never subject to a timeout.
	ResponseHeaderTimeout time.Duration
	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client
	// Logger receives transport diagnostics. Nil discards them.
	Logger *log.Logger
}

// Client talks to the photo extraction service.
type Client struct {
	base   *url.URL
	config Config
	client *http.Client
	logger *log.Logger
}

// New creates a client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transport requires a base URL")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.SubmitPath == "" {
		cfg.SubmitPath = DefaultSubmitPath
	}
	if cfg.AttachmentField == "" {
		cfg.AttachmentField = DefaultAttachmentField
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mwi/" + types.Version
	}

	client := cfg.HTTPClient
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
		client = &http.Client{Transport: tr}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{base: base, config: cfg, client: client, logger: logger}, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Resolve resolves a reference (absolute or relative) against the base URL.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return c.base.ResolveReference(u).String(), nil
}

func (c *Client) newRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Submit posts the payload and returns the open progress stream.
//
// Errors:
//   - *TransportError: connection failure or non-success status
//   - ctx.Err(): the context was canceled before a response arrived
func (c *Client) Submit(ctx context.Context, payload *submit.Payload) (*Stream, error) {
	body, contentType, err := c.encode(payload)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.config.SubmitPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", EventStreamContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer iox.DrainClose(resp.Body)
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	ct := resp.Header.Get("Content-Type")
	if mediaType, _, _ := mime.ParseMediaType(ct); mediaType != EventStreamContentType {
		c.logger.Warn("unexpected response content type", map[string]any{
			"content_type": ct,
			"expected":     EventStreamContentType,
		})
	}

	return newStream(ctx, resp), nil
}

// encode builds the multipart body: the attachment part first, then the
// auxiliary fields in name order.
func (c *Client) encode(payload *submit.Payload) (io.Reader, string, error) {
	if payload == nil {
		return nil, "", errors.New("nil payload")
	}

	var buf bytes.Buffer
	buf.Grow(int(payload.Size()) + 1024)
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     c.config.AttachmentField,
		"filename": payload.Name(),
	}))
	h.Set("Content-Type", payload.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := part.Write(payload.Data()); err != nil {
		return nil, "", fmt.Errorf("write attachment part: %w", err)
	}

	for _, name := range payload.FieldNames() {
		value, _ := payload.Field(name)
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// errorMessage extracts the "error" text of a JSON error body, falling back
// to the trimmed body text.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// ServiceStatus is the service's self-reported status.
type ServiceStatus struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	FaceRecognition struct {
		Available bool    `json:"available"`
		DemoMode  bool    `json:"demo_mode"`
		Error     *string `json:"error"`
	} `json:"face_recognition"`
}

// Status fetches the service status.
func (c *Client) Status(ctx context.Context) (*ServiceStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, DefaultStatusPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var status ServiceStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Health checks the service liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, DefaultHealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &TransportError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return nil
}

// Download is an open result archive.
type Download struct {
	// Name is the file name from Content-Disposition or the URL path.
	Name string
	// ContentType is the response media type.
	ContentType string
	// Size is the declared length, or -1 when unknown.
	Size int64
	// Body is the archive content. The caller must close it.
	Body io.ReadCloser
}

// Download opens the result archive a download reference points to.
func (c *Client) Download(ctx context.Context, ref string) (*Download, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("empty download reference")
	}
	req, err := c.newRequest(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer iox.DrainClose(resp.Body)
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	return &Download{
		Name:        downloadName(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

func downloadName(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := path.Base(params["filename"]); name != "." && name != "/" && params["filename"] != "" {
				return name
			}
		}
	}
	if name := path.Base(resp.Request.URL.Path); name != "." && name != "/" {
		return name
	}
	return "download.zip"
}
