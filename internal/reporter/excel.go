package reporter

import (
	"fmt"
	"time"

	"httpstress/internal/tester"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook
const (
	SummarySheet = "Summary"
	StatusSheet  = "Status Codes"
	ErrorsSheet  = "Errors"
	LatencySheet = "Latency"
)

// ExcelReporter writes a run report as an Excel workbook
type ExcelReporter struct {
	file        *excelize.File
	headerStyle int
}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{
		file: excelize.NewFile(),
	}
}

// GenerateReport creates the workbook and saves it to outputPath
func (r *ExcelReporter) GenerateReport(report *tester.Report, outputPath string) error {
	defer r.file.Close()

	style, err := r.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	r.headerStyle = style

	if err := r.createSummarySheet(report); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := r.createStatusSheet(report); err != nil {
		return fmt.Errorf("failed to create status sheet: %w", err)
	}
	if err := r.createErrorsSheet(report); err != nil {
		return fmt.Errorf("failed to create errors sheet: %w", err)
	}
	if err := r.createLatencySheet(report); err != nil {
		return fmt.Errorf("failed to create latency sheet: %w", err)
	}

	// Delete default Sheet1 once another sheet exists
	if err := r.file.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if idx, err := r.file.GetSheetIndex(SummarySheet); err == nil {
		r.file.SetActiveSheet(idx)
	}

	if err := r.file.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func (r *ExcelReporter) writeHeader(sheet string, headers []string) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := r.file.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return r.file.SetCellStyle(sheet, "A1", last, r.headerStyle)
}

func (r *ExcelReporter) writeRow(sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return r.file.SetSheetRow(sheet, cell, &values)
}

// createSummarySheet creates the run overview sheet
func (r *ExcelReporter) createSummarySheet(report *tester.Report) error {
	if _, err := r.file.NewSheet(SummarySheet); err != nil {
		return err
	}
	r.file.SetColWidth(SummarySheet, "A", "A", 22)
	r.file.SetColWidth(SummarySheet, "B", "B", 40)

	if err := r.writeHeader(SummarySheet, []string{"Metric", "Value"}); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Target", report.Target},
		{"Method", report.Method},
		{"Concurrency", report.Concurrency},
		{"Start Time", report.StartTime.Format(time.RFC3339)},
		{"End Time", report.EndTime.Format(time.RFC3339)},
		{"Elapsed (s)", round2(report.Elapsed.Seconds())},
		{"Total Requests", report.Total},
		{"Requests/s", round2(report.RPS)},
		{"Successful", report.Success},
		{"Success Rate (%)", round2(report.SuccessRate)},
		{"Failed", report.Failed},
		{"Partial", report.Partial},
	}
	for i, row := range rows {
		if err := r.writeRow(SummarySheet, i+2, row...); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelReporter) createStatusSheet(report *tester.Report) error {
	if _, err := r.file.NewSheet(StatusSheet); err != nil {
		return err
	}
	if err := r.writeHeader(StatusSheet, []string{"Status Code", "Count"}); err != nil {
		return err
	}
	for i, sc := range report.StatusCodes {
		if err := r.writeRow(StatusSheet, i+2, sc.Code, sc.Count); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelReporter) createErrorsSheet(report *tester.Report) error {
	if _, err := r.file.NewSheet(ErrorsSheet); err != nil {
		return err
	}
	r.file.SetColWidth(ErrorsSheet, "A", "A", 24)
	if err := r.writeHeader(ErrorsSheet, []string{"Error Kind", "Count"}); err != nil {
		return err
	}
	for i, ec := range report.Errors {
		if err := r.writeRow(ErrorsSheet, i+2, ec.Kind, ec.Count); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelReporter) createLatencySheet(report *tester.Report) error {
	if _, err := r.file.NewSheet(LatencySheet); err != nil {
		return err
	}
	if err := r.writeHeader(LatencySheet, []string{"Statistic", "Latency (ms)"}); err != nil {
		return err
	}

	lat := report.Latency
	rows := []struct {
		name  string
		value time.Duration
	}{
		{"Min", lat.Min},
		{"Max", lat.Max},
		{"Mean", lat.Mean},
		{"P50", lat.P50},
		{"P90", lat.P90},
		{"P95", lat.P95},
		{"P99", lat.P99},
	}
	for i, row := range rows {
		if err := r.writeRow(LatencySheet, i+2, row.name, durationMs(row.value)); err != nil {
			return err
		}
	}
	return r.writeRow(LatencySheet, len(rows)+2, "Samples", lat.Samples)
}

func durationMs(d time.Duration) float64 {
	return round2(float64(d.Microseconds()) / 1000.0)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
