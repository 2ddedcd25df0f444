// package formatter renders run results as CSV reports, JSON and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/desertthunder/isrcx/internal/tasks"
)

var reportHeaders = []string{"Row", "ISRC", "Status", "URI", "Cached", "Error"}

// WriteReport streams one CSV record per lookup result to w.
func WriteReport(w io.Writer, results []tasks.LookupResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(reportHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		record := []string{
			strconv.Itoa(r.Request.Row),
			r.Request.Identifier,
			r.Status.String(),
			string(r.Ref),
			strconv.FormatBool(r.Cached),
			errText,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ReportToCSV renders results as a CSV document.
func ReportToCSV(results []tasks.LookupResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, results); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteReportFile writes the CSV report to path.
func WriteReportFile(path string, results []tasks.LookupResult) error {
	data, err := ReportToCSV(results)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// RunSummary is the serialized form of a [tasks.RunResult].
type RunSummary struct {
	PlaylistID   string  `json:"playlist_id,omitempty"`
	PlaylistName string  `json:"playlist_name,omitempty"`
	PlaylistURL  string  `json:"playlist_url,omitempty"`
	DryRun       bool    `json:"dry_run"`
	Total        int     `json:"total"`
	Found        int     `json:"found"`
	NotFound     int     `json:"not_found"`
	Failed       int     `json:"failed"`
	Submitted    int     `json:"submitted"`
	MatchRate    float64 `json:"match_rate"`
	Duration     string  `json:"duration"`
}

// NewRunSummary flattens result.
func NewRunSummary(result *tasks.RunResult) RunSummary {
	s := RunSummary{
		DryRun:    result.DryRun,
		Total:     result.Summary.Total,
		Found:     result.Summary.Found,
		NotFound:  result.Summary.NotFound,
		Failed:    result.Summary.Failed,
		Submitted: result.Submitted,
		MatchRate: result.Summary.MatchRate(),
	}
	if result.Playlist != nil {
		s.PlaylistID = result.Playlist.ID
		s.PlaylistName = result.Playlist.Name
		s.PlaylistURL = result.Playlist.URL
	}
	if !result.FinishedAt.IsZero() {
		s.Duration = result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String()
	}
	return s
}

// SummaryToJSON renders the run summary as indented JSON.
func SummaryToJSON(result *tasks.RunResult) ([]byte, error) {
	return shared.MarshalJSON(NewRunSummary(result), true)
}

// SummaryToText renders the run summary as plain text lines.
func SummaryToText(result *tasks.RunResult) []byte {
	var buf bytes.Buffer
	s := NewRunSummary(result)

	if s.PlaylistName != "" {
		buf.WriteString(fmt.Sprintf("Playlist: %s\n", s.PlaylistName))
	}
	if s.PlaylistURL != "" {
		buf.WriteString(fmt.Sprintf("URL: %s\n", s.PlaylistURL))
	}
	buf.WriteString(fmt.Sprintf("Searched: %d\n", s.Total))
	buf.WriteString(fmt.Sprintf("Found: %d (%.1f%%)\n", s.Found, s.MatchRate))
	buf.WriteString(fmt.Sprintf("Not found: %d", s.NotFound))
	if s.Failed > 0 {
		buf.WriteString(fmt.Sprintf(" (%d failed after retries)", s.Failed))
	}
	buf.WriteString("\n")
	if !s.DryRun {
		buf.WriteString(fmt.Sprintf("Added: %d\n", s.Submitted))
	}
	if s.Duration != "" {
		buf.WriteString(fmt.Sprintf("Elapsed: %s\n", s.Duration))
	}
	return buf.Bytes()
}
