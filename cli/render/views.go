package render

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pithecene-io/mwi/journal"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/runtime"
)

// SubmissionView is the rendered summary of one submission.
type SubmissionView struct {
	SubmissionID string  `json:"submission_id" yaml:"submission_id"`
	Outcome      string  `json:"outcome" yaml:"outcome"`
	Message      string  `json:"message" yaml:"message"`
	DownloadURL  string  `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	Archive      string  `json:"archive,omitempty" yaml:"archive,omitempty"`
	Percent      float64 `json:"percent" yaml:"percent"`
	DurationMs   int64   `json:"duration_ms" yaml:"duration_ms"`
	Frames       int64   `json:"frames" yaml:"frames"`
	DecodeErrors int64   `json:"decode_errors" yaml:"decode_errors"`
}

// NewSubmissionView flattens a result. archive is the saved archive
// location, or empty when nothing was saved.
func NewSubmissionView(result *runtime.Result, archive string) SubmissionView {
	v := SubmissionView{
		SubmissionID: result.SubmissionID,
		Percent:      result.Final.Percent,
		DurationMs:   result.Duration.Milliseconds(),
		Frames:       result.Stats.Frames,
		DecodeErrors: result.Stats.DecodeErrors,
		Archive:      archive,
	}
	if result.Outcome != nil {
		v.Outcome = string(result.Outcome.Status)
		v.Message = result.Outcome.Message
		v.DownloadURL = result.Outcome.DownloadURL
	}
	return v
}

// Fields implements Describer.
func (v SubmissionView) Fields() []Field {
	return []Field{
		{Label: "Submission", Value: v.SubmissionID},
		{Label: "Outcome", Value: v.Outcome, State: v.Outcome},
		{Label: "Message", Value: v.Message},
		{Label: "Download", Value: v.DownloadURL},
		{Label: "Archive", Value: v.Archive},
		{Label: "Progress", Value: formatPercent(v.Percent)},
		{Label: "Duration", Value: fmt.Sprintf("%.1fs", float64(v.DurationMs)/1000)},
		{Label: "Frames", Value: fmt.Sprintf("%d (%d malformed)", v.Frames, v.DecodeErrors)},
	}
}

// JournalRow is one journal record in list form.
type JournalRow struct {
	Seq     int64  `json:"seq" yaml:"seq"`
	Time    string `json:"time" yaml:"time"`
	Type    string `json:"type" yaml:"type"`
	Detail  string `json:"detail" yaml:"detail"`
	Percent string `json:"percent" yaml:"percent"`
}

// JournalRows is a replayed journal.
type JournalRows []JournalRow

// Columns implements Lister.
func (rows JournalRows) Columns() []string {
	return []string{"SEQ", "TIME", "TYPE", "PERCENT", "DETAIL"}
}

// Rows implements Lister.
func (rows JournalRows) Rows() [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{strconv.FormatInt(row.Seq, 10), row.Time, row.Type, row.Percent, row.Detail})
	}
	return out
}

// NewJournalRows converts journal records for table output.
func NewJournalRows(records []journal.Record) JournalRows {
	rows := make(JournalRows, 0, len(records))
	for _, rec := range records {
		row := JournalRow{
			Seq:  rec.Seq,
			Time: rec.Ts.Format("15:04:05.000"),
			Type: string(rec.Type),
		}
		switch rec.Type {
		case journal.RecordTransition:
			row.Detail = string(rec.From) + " -> " + string(rec.To)
		case journal.RecordUpdate:
			row.Detail = rec.Status
			row.Percent = formatPercent(rec.Percent)
		case journal.RecordSuccess:
			row.Detail = rec.DownloadURL
			row.Percent = formatPercent(100)
		case journal.RecordFailure:
			row.Detail = rec.Message
		case journal.RecordOutcome:
			row.Detail = rec.Outcome
			if rec.Message != "" {
				row.Detail += ": " + rec.Message
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

// MetricsFields lays out a metrics snapshot for table output. Zero counters
// are omitted, except the submission totals.
func MetricsFields(s *metrics.Snapshot) []Field {
	count := func(n int64) string {
		if n == 0 {
			return ""
		}
		return strconv.FormatInt(n, 10)
	}
	fields := []Field{
		{Label: "Endpoint", Value: s.Endpoint},
		{Label: "Sink", Value: s.Sink},
		{Label: "Started", Value: strconv.FormatInt(s.SubmissionsStarted, 10)},
		{Label: "Succeeded", Value: strconv.FormatInt(s.SubmissionsSucceeded, 10), State: "succeeded"},
		{Label: "Failed", Value: strconv.FormatInt(s.SubmissionsFailed, 10), State: "failed"},
		{Label: "Canceled", Value: count(s.SubmissionsCanceled)},
	}

	reasons := make([]string, 0, len(s.FailuresByReason))
	for reason := range s.FailuresByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fields = append(fields, Field{Label: "  " + reason, Value: count(s.FailuresByReason[reason]), State: reason})
	}

	return append(fields,
		Field{Label: "Rejected", Value: count(s.ValidationRejections)},
		Field{Label: "Transport errors", Value: count(s.TransportErrors)},
		Field{Label: "Stream faults", Value: count(s.StreamFaults)},
		Field{Label: "Bytes read", Value: count(s.BytesRead)},
		Field{Label: "Frames", Value: count(s.FramesDecoded)},
		Field{Label: "Discarded", Value: count(s.FramesDiscarded)},
		Field{Label: "Trailing bytes", Value: count(s.TrailingBytes)},
		Field{Label: "Decode errors", Value: count(s.DecodeErrors)},
		Field{Label: "Archives saved", Value: count(s.ArchiveSaves)},
		Field{Label: "Archive errors", Value: count(s.ArchiveFailures)},
		Field{Label: "Journal records", Value: count(s.JournalRecords)},
		Field{Label: "Published", Value: count(s.PublishSuccesses)},
		Field{Label: "Publish errors", Value: count(s.PublishFailures)},
	)
}
