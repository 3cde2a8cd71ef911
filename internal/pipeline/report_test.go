package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func sampleReport() RunReport {
	started := time.Date(2026, time.September, 1, 6, 0, 0, 0, time.UTC)
	return RunReport{
		RunID:      "0c9d9d4e-run",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Succeeded:  true,
		Steps: []StepResult{
			{Name: "load_staging", Status: StatusOK, Duration: 12 * time.Second},
			{Name: "publish_views", Status: StatusFailed, Error: "relation does not exist"},
		},
	}
}

func TestBuildRunReportPDF(t *testing.T) {
	data, err := BuildRunReportPDF(sampleReport())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("not a pdf, got %q", data[:min(len(data), 8)])
	}
}

func TestTruncateRunesKeepsValidUTF8(t *testing.T) {
	short := "relation does not exist"
	if got := truncateRunes(short, 48); got != short {
		t.Fatalf("short string modified: %q", got)
	}

	long := strings.Repeat("ł", 60)
	got := truncateRunes(long, 48)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 48 {
		t.Fatalf("rune count: %d", utf8.RuneCountInString(got))
	}
}

func TestWriteRunReport(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	jsonPath, pdfPath, err := WriteRunReport(dir, report)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.RunID != report.RunID || len(decoded.Steps) != 2 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}

	if info, err := os.Stat(pdfPath); err != nil || info.Size() == 0 {
		t.Fatalf("pdf missing or empty: %v", err)
	}
}
