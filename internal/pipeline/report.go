package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BuildRunReportPDF renders a one-page summary of a pipeline run.
func BuildRunReportPDF(report RunReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Pipeline Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", report.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", report.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Finished: %s", report.FinishedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	status := "succeeded"
	if !report.Succeeded {
		status = "failed"
	}
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", status))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Step", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Duration", "1", 0, "R", false, 0, "")
	pdf.CellFormat(70, 6, "Error", "1", 0, "L", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, step := range report.Steps {
		errText := truncateRunes(step.Error, 48)
		pdf.CellFormat(60, 6, step.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, step.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, step.Duration.Round(time.Millisecond).String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(70, 6, errText, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncateRunes shortens s to at most n runes. Truncating on runes rather
// than bytes keeps the result valid UTF-8.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// WriteRunReport persists the run report as JSON and PDF under dir, named by
// run ID. The returned paths are relative to dir's parent invocation.
func WriteRunReport(dir string, report RunReport) (jsonPath, pdfPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("pipeline report: create %s: %w", dir, err)
	}

	jsonPath = filepath.Join(dir, "run_"+report.RunID+".json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("pipeline report: marshal: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("pipeline report: write json: %w", err)
	}

	pdfPath = filepath.Join(dir, "run_"+report.RunID+".pdf")
	pdfBytes, err := BuildRunReportPDF(report)
	if err != nil {
		return jsonPath, "", fmt.Errorf("pipeline report: render pdf: %w", err)
	}
	if err := os.WriteFile(pdfPath, pdfBytes, 0o644); err != nil {
		return jsonPath, "", fmt.Errorf("pipeline report: write pdf: %w", err)
	}
	return jsonPath, pdfPath, nil
}
