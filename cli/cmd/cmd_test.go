package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/journal"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/runtime"
	"github.com/pithecene-io/mwi/types"
)

const driveLink = "https://drive.google.com/drive/folders/1AbC_d-E"

// runApp runs the mwi app with args and returns stdout, stderr and the
// exit code carried by the returned error.
func runApp(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &cli.App{
		Name:           "mwi",
		Writer:         &out,
		ErrWriter:      &errOut,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       Commands("test"),
	}
	err := app.Run(append([]string{"mwi"}, args...))
	switch {
	case err == nil:
		code = 0
	default:
		var exitCoder cli.ExitCoder
		if errors.As(err, &exitCoder) {
			code = exitCoder.ExitCode()
		} else {
			code = 1
		}
		errOut.WriteString(err.Error())
	}
	return out.String(), errOut.String(), code
}

// fakeService serves a submission stream, an archive, health and status.
type fakeService struct {
	*httptest.Server
	frames      []string
	submissions atomic.Int32
	unhealthy   atomic.Bool
}

func newFakeService(t *testing.T, frames ...string) *fakeService {
	t.Helper()
	s := &fakeService{frames: frames}
	mux := http.NewServeMux()
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		s.submissions.Add(1)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("drive_link") == "" {
			t.Errorf("drive_link missing from form")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range s.frames {
			_, _ = io.WriteString(w, f)
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/download/photos.zip", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK-archive")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if s.unhealthy.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"healthy","version":"1.4.0","face_recognition":{"available":true,"demo_mode":false,"error":null}}`)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "me.jpg")
	if err := os.WriteFile(path, []byte("\xff\xd8\xff\xe0jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var successFrames = []string{
	"data: {\"progress\": 10, \"status\": \"Downloading\"}\n\n",
	"data: {\"progress\": 60, \"status\": \"Matching faces\"}\n\n",
	"data: {\"download_url\": \"/download/photos.zip\"}\n\n",
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestServiceFlags(t *testing.T) {
	want := map[string]bool{"config": false, "env-file": false, "endpoint": false, "timeout": false, "header": false, "log-level": false}
	for _, f := range ServiceFlags() {
		want[f.Names()[0]] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("ServiceFlags missing --%s", name)
		}
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"single", []string{"drive_link=x"}, map[string]string{"drive_link": "x"}, false},
		{"value with equals", []string{"q=a=b"}, map[string]string{"q": "a=b"}, false},
		{"empty value", []string{"note="}, map[string]string{"note": ""}, false},
		{"missing equals", []string{"drive_link"}, nil, true},
		{"missing name", []string{"=x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePairs(tt.in, "--field")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePairs error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePairs = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parsePairs[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	svc := newFakeService(t, successFrames...)
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "job.journal")
	reportPath := filepath.Join(dir, "report.json")
	outDir := filepath.Join(dir, "out")

	stdout, stderr, code := runApp(t, "submit",
		"--endpoint", svc.URL,
		"--file", writeImage(t),
		"--drive-link", driveLink,
		"--journal", journalPath,
		"--save-to", outDir,
		"--report", reportPath,
		"--format", "json",
	)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	for _, want := range []string{"[ 10%] Downloading", "[ 60%] Matching faces", "done: /download/photos.zip"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("progress output missing %q:\n%s", want, stderr)
		}
	}

	var view struct {
		Outcome     string  `json:"outcome"`
		DownloadURL string  `json:"download_url"`
		Archive     string  `json:"archive"`
		Percent     float64 `json:"percent"`
	}
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if view.Outcome != "succeeded" || view.DownloadURL != "/download/photos.zip" || view.Percent != 100 {
		t.Errorf("view = %+v", view)
	}
	if view.Archive != filepath.Join(outDir, "photos.zip") {
		t.Errorf("archive = %q", view.Archive)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "photos.zip"))
	if err != nil || string(data) != "PK-archive" {
		t.Errorf("archive content = %q, %v", data, err)
	}

	f, err := os.Open(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := journal.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("journal is empty")
	}
	last := records[len(records)-1]
	if last.Type != journal.RecordOutcome || last.Outcome != string(types.OutcomeSucceeded) {
		t.Errorf("last record = %+v", last)
	}
	if last.SubmissionID == "" {
		t.Error("journal records should carry the submission id")
	}

	raw, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	var report runtime.SubmissionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("invalid report: %v", err)
	}
	if report.ExitCode != 0 || report.Archive == nil || report.Archive.Bytes != int64(len("PK-archive")) {
		t.Errorf("report = %+v", report)
	}
	if report.Metrics == nil || report.Metrics.ArchiveSaves != 1 {
		t.Errorf("report metrics = %+v", report.Metrics)
	}
}

func TestSubmit_LogsArchiveAtInfo(t *testing.T) {
	svc := newFakeService(t, successFrames...)
	outDir := filepath.Join(t.TempDir(), "out")

	_, stderr, code := runApp(t, "submit",
		"--endpoint", svc.URL,
		"--file", writeImage(t),
		"--drive-link", driveLink,
		"--save-to", outDir,
		"--log-level", "info",
		"--quiet",
	)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{`"command":"submit"`, "archive saved to " + filepath.Join(outDir, "photos.zip"), "(10 bytes)"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("log output missing %q:\n%s", want, stderr)
		}
	}
	if strings.Contains(stderr, "[ 10%]") {
		t.Errorf("--quiet should suppress progress lines:\n%s", stderr)
	}
}

func TestSubmit_JobError(t *testing.T) {
	svc := newFakeService(t,
		"data: {\"progress\": 30, \"status\": \"Scanning\"}\n\n",
		"data: {\"error\": \"No matching photos found\"}\n\n",
	)
	outDir := filepath.Join(t.TempDir(), "out")

	_, stderr, code := runApp(t, "submit",
		"--endpoint", svc.URL,
		"--file", writeImage(t),
		"--field", "drive_link="+driveLink,
		"--save-to", outDir,
		"--format", "json",
	)
	if code != runtime.ExitCodeJobError {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeJobError)
	}
	if !strings.Contains(stderr, "failed: No matching photos found") {
		t.Errorf("stderr missing failure:\n%s", stderr)
	}
	if entries, _ := os.ReadDir(outDir); len(entries) != 0 {
		t.Errorf("nothing should be saved for a failed job, found %d entries", len(entries))
	}
}

func TestSubmit_IncompleteStream(t *testing.T) {
	svc := newFakeService(t, "data: {\"progress\": 30}\n\n")

	_, _, code := runApp(t, "submit",
		"--endpoint", svc.URL,
		"--file", writeImage(t),
		"--drive-link", driveLink,
		"--quiet",
	)
	if code != runtime.ExitCodeFailure {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeFailure)
	}
}

func TestSubmit_ValidationRejectedWithoutRequest(t *testing.T) {
	svc := newFakeService(t, successFrames...)

	_, stderr, code := runApp(t, "submit",
		"--endpoint", svc.URL,
		"--file", writeImage(t),
		"--drive-link", "https://example.com/folder",
		"--quiet",
	)
	if code != runtime.ExitCodeInvalidInput {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeInvalidInput)
	}
	if n := svc.submissions.Load(); n != 0 {
		t.Errorf("server received %d submissions, want 0", n)
	}
	if stderr == "" {
		t.Error("validation message should be reported")
	}
}

func TestSubmit_InputErrors(t *testing.T) {
	svc := newFakeService(t, successFrames...)
	img := writeImage(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no file", []string{"--drive-link", driveLink}},
		{"missing file", []string{"--file", filepath.Join(t.TempDir(), "nope.jpg"), "--drive-link", driveLink}},
		{"bad field", []string{"--file", img, "--field", "drive_link"}},
		{"tui with quiet", []string{"--file", img, "--drive-link", driveLink, "--tui", "--quiet"}},
		{"bad endpoint", []string{"--file", img, "--drive-link", driveLink, "--endpoint", "ftp://x"}},
		{"bad log level", []string{"--file", img, "--drive-link", driveLink, "--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"submit"}, tt.args...)
			if !containsArg(tt.args, "--endpoint") {
				args = append(args, "--endpoint", svc.URL)
			}
			_, _, code := runApp(t, args...)
			if code != runtime.ExitCodeInvalidInput {
				t.Errorf("exit code = %d, want %d", code, runtime.ExitCodeInvalidInput)
			}
		})
	}
	if n := svc.submissions.Load(); n != 0 {
		t.Errorf("server received %d submissions, want 0", n)
	}
}

func containsArg(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func TestSubmit_ConfigFile(t *testing.T) {
	svc := newFakeService(t, successFrames...)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mwi.yaml")
	yaml := "endpoint: " + svc.URL + "\noutput:\n  dir: " + filepath.Join(dir, "archives") + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := runApp(t, "submit",
		"--config", cfgPath,
		"--file", writeImage(t),
		"--drive-link", driveLink,
		"--quiet",
	)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "archives", "photos.zip")); err != nil {
		t.Errorf("archive not saved to configured dir: %v", err)
	}
}

func TestStatus(t *testing.T) {
	svc := newFakeService(t)

	stdout, stderr, code := runApp(t, "status", "--endpoint", svc.URL, "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var resp StatusResponse
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if !resp.Healthy || resp.Status != "healthy" || resp.Version != "1.4.0" || resp.Recognition != "available" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatus_Unhealthy(t *testing.T) {
	svc := newFakeService(t)
	svc.unhealthy.Store(true)

	stdout, _, code := runApp(t, "status", "--endpoint", svc.URL, "--format", "json")
	if code != runtime.ExitCodeFailure {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeFailure)
	}
	var resp StatusResponse
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if resp.Healthy || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDownload(t *testing.T) {
	svc := newFakeService(t)
	outDir := t.TempDir()

	stdout, stderr, code := runApp(t, "download", "--endpoint", svc.URL, "--save-to", outDir, "--format", "json", "/download/photos.zip")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var resp DownloadResponse
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if resp.Name != "photos.zip" || resp.Bytes != int64(len("PK-archive")) {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDownload_Errors(t *testing.T) {
	svc := newFakeService(t)

	if _, _, code := runApp(t, "download", "--endpoint", svc.URL, "/download/photos.zip"); code != runtime.ExitCodeInvalidInput {
		t.Errorf("no destination: exit code = %d, want %d", code, runtime.ExitCodeInvalidInput)
	}
	if _, _, code := runApp(t, "download", "--endpoint", svc.URL, "--save-to", t.TempDir()); code != runtime.ExitCodeInvalidInput {
		t.Errorf("no ref: exit code = %d, want %d", code, runtime.ExitCodeInvalidInput)
	}
	if _, _, code := runApp(t, "download", "--endpoint", svc.URL, "--save-to", t.TempDir(), "/download/missing.zip"); code != runtime.ExitCodeFailure {
		t.Errorf("missing archive: exit code = %d, want %d", code, runtime.ExitCodeFailure)
	}
}

func writeJournal(t *testing.T, truncate bool) string {
	t.Helper()
	var buf bytes.Buffer
	w := journal.NewWriter(&buf, "sub-1", nil)
	w.OnTransition(types.StateIdle, types.StateSubmitting)
	w.OnUpdate(40, "Scanning")
	w.OnFailure("No matching photos found")
	if err := w.WriteOutcome(&types.Outcome{Status: types.OutcomeJobError, Message: "No matching photos found"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if truncate {
		data = data[:len(data)-3]
	}
	path := filepath.Join(t.TempDir(), "job.journal")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspect(t *testing.T) {
	stdout, stderr, code := runApp(t, "inspect", "--format", "json", writeJournal(t, false))
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var rows []struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0].Detail != "idle -> submitting" || rows[3].Detail != "job_error: No matching photos found" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestInspect_TruncatedJournal(t *testing.T) {
	stdout, _, code := runApp(t, "inspect", "--format", "json", writeJournal(t, true))
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "Scanning") {
		t.Errorf("records before the cut should still render:\n%s", stdout)
	}
}

func TestInspect_Errors(t *testing.T) {
	if _, _, code := runApp(t, "inspect"); code != 1 {
		t.Errorf("no path: exit code = %d, want 1", code)
	}
	if _, _, code := runApp(t, "inspect", filepath.Join(t.TempDir(), "nope")); code != 1 {
		t.Errorf("missing file: exit code = %d, want 1", code)
	}
}

func TestStats(t *testing.T) {
	result := &runtime.Result{
		SubmissionID: "sub-1",
		Outcome:      &types.Outcome{Status: types.OutcomeSucceeded, DownloadURL: "/download/photos.zip"},
	}
	snap := metrics.Snapshot{SubmissionsStarted: 1, SubmissionsSucceeded: 1, FramesDecoded: 3, Endpoint: "http://localhost:5000"}
	report := runtime.BuildSubmissionReport(result, "http://localhost:5000", snap, 0)
	path := filepath.Join(t.TempDir(), "report.json")
	if err := runtime.WriteSubmissionReport(report, path); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runApp(t, "stats", "--format", "json", path)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, `"FramesDecoded": 3`) {
		t.Errorf("stats output missing frames:\n%s", stdout)
	}
}

func TestStats_InvalidReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte(`{"submission_id":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, code := runApp(t, "stats", path); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, code := runApp(t, "version", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var resp VersionResponse
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if resp.Version != types.Version || resp.Commit != "test" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestVersion_RejectsTUI(t *testing.T) {
	if _, _, code := runApp(t, "version", "--tui"); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
