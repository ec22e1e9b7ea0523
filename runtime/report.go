package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/types"
)

// SubmissionReport is the structured JSON report written by --report.
type SubmissionReport struct {
	SubmissionID string              `json:"submission_id"`
	Endpoint     string              `json:"endpoint"`
	Outcome      types.OutcomeStatus `json:"outcome"`
	Message      string              `json:"message"`
	DownloadURL  string              `json:"download_url,omitempty"`
	ExitCode     int                 `json:"exit_code"`
	DurationMs   int64               `json:"duration_ms"`
	FinalPercent float64             `json:"final_percent"`
	FinalStatus  string              `json:"final_status,omitempty"`

	Stream  *ReportStream     `json:"stream"`
	Archive *ReportArchive    `json:"archive,omitempty"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportStream holds stream counters in the report.
type ReportStream struct {
	BytesRead     int64 `json:"bytes_read"`
	Frames        int64 `json:"frames"`
	Discarded     int64 `json:"discarded"`
	DecodeErrors  int64 `json:"decode_errors"`
	DiscardedTail int   `json:"discarded_tail"`
}

// ReportArchive describes the saved result archive, when one was fetched.
type ReportArchive struct {
	Location string `json:"location"`
	Bytes    int64  `json:"bytes"`
}

// BuildSubmissionReport composes a report from a Result and metrics snapshot.
// exitCode is the process exit code that will be returned to the caller.
func BuildSubmissionReport(result *Result, endpoint string, snap metrics.Snapshot, exitCode int) *SubmissionReport {
	report := &SubmissionReport{
		SubmissionID: result.SubmissionID,
		Endpoint:     endpoint,
		Outcome:      result.Outcome.Status,
		Message:      result.Outcome.Message,
		DownloadURL:  result.Outcome.DownloadURL,
		ExitCode:     exitCode,
		DurationMs:   result.Duration.Milliseconds(),
		FinalPercent: result.Final.Percent,
		FinalStatus:  result.Final.Status,
		Stream: &ReportStream{
			BytesRead:     result.Stats.BytesRead,
			Frames:        result.Stats.Frames,
			Discarded:     result.Stats.Discarded,
			DecodeErrors:  result.Stats.DecodeErrors,
			DiscardedTail: result.Stats.DiscardedTail,
		},
		Metrics: &snap,
	}
	return report
}

// WithArchive records where the result archive was saved.
func (r *SubmissionReport) WithArchive(location string, size int64) *SubmissionReport {
	r.Archive = &ReportArchive{Location: location, Bytes: size}
	return r
}

// WriteSubmissionReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteSubmissionReport(report *SubmissionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeSubmissionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeSubmissionReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeSubmissionReportTo(report *SubmissionReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
