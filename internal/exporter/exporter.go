package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"httpstress/internal/tester"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatHTML ExportFormat = "html"
)

// ParseFormats validates format names, ignoring case, blanks and duplicates
func ParseFormats(names []string) ([]ExportFormat, error) {
	var formats []ExportFormat
	seen := make(map[ExportFormat]bool)
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			f := ExportFormat(strings.ToLower(strings.TrimSpace(part)))
			if f == "" || seen[f] {
				continue
			}
			switch f {
			case FormatCSV, FormatJSON, FormatHTML:
			default:
				return nil, fmt.Errorf("unsupported export format: %s", f)
			}
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// Exporter handles exporting a run report to various formats
type Exporter struct {
	outputDir string
}

// NewExporter creates a new exporter instance
func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		outputDir: outputDir,
	}
}

// Export writes the report in every requested format and returns the created files
func (e *Exporter) Export(report *tester.Report, formats []ExportFormat) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	baseName := "httpstress_" + report.StartTime.Format("20060102_150405")

	var files []string
	for _, format := range formats {
		filename := filepath.Join(e.outputDir, baseName+"."+string(format))

		var err error
		switch format {
		case FormatCSV:
			err = exportCSV(report, filename)
		case FormatJSON:
			err = exportJSON(report, filename)
		case FormatHTML:
			err = exportHTML(report, filename)
		default:
			return files, fmt.Errorf("unsupported export format: %s", format)
		}
		if err != nil {
			return files, fmt.Errorf("failed to export as %s: %w", format, err)
		}

		logrus.WithField("file", filename).Infof("%s report exported", strings.ToUpper(string(format)))
		files = append(files, filename)
	}

	return files, nil
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Microseconds())/1000.0)
}

// exportCSV writes section,name,value rows
func exportCSV(report *tester.Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	rows := [][]string{
		{"section", "name", "value"},
		{"summary", "target", report.Target},
		{"summary", "method", report.Method},
		{"summary", "concurrency", strconv.Itoa(report.Concurrency)},
		{"summary", "start_time", report.StartTime.Format(time.RFC3339)},
		{"summary", "end_time", report.EndTime.Format(time.RFC3339)},
		{"summary", "elapsed_seconds", fmt.Sprintf("%.2f", report.Elapsed.Seconds())},
		{"summary", "total", strconv.FormatInt(report.Total, 10)},
		{"summary", "rps", fmt.Sprintf("%.2f", report.RPS)},
		{"summary", "success", strconv.FormatInt(report.Success, 10)},
		{"summary", "success_rate", fmt.Sprintf("%.2f", report.SuccessRate)},
		{"summary", "failed", strconv.FormatInt(report.Failed, 10)},
		{"summary", "partial", strconv.FormatBool(report.Partial)},
	}
	for _, sc := range report.StatusCodes {
		rows = append(rows, []string{"status", strconv.Itoa(sc.Code), strconv.FormatInt(sc.Count, 10)})
	}
	for _, ec := range report.Errors {
		rows = append(rows, []string{"error", ec.Kind, strconv.FormatInt(ec.Count, 10)})
	}
	lat := report.Latency
	rows = append(rows,
		[]string{"latency_ms", "min", ms(lat.Min)},
		[]string{"latency_ms", "max", ms(lat.Max)},
		[]string{"latency_ms", "mean", ms(lat.Mean)},
		[]string{"latency_ms", "p50", ms(lat.P50)},
		[]string{"latency_ms", "p90", ms(lat.P90)},
		[]string{"latency_ms", "p95", ms(lat.P95)},
		[]string{"latency_ms", "p99", ms(lat.P99)},
		[]string{"latency_ms", "samples", strconv.Itoa(lat.Samples)},
	)

	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

type jsonReport struct {
	Info struct {
		Target      string `json:"target"`
		Method      string `json:"method"`
		Concurrency int    `json:"concurrency"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
		Duration    string `json:"duration"`
		Partial     bool   `json:"partial"`
	} `json:"test_info"`
	Summary struct {
		Total       int64   `json:"total_requests"`
		Success     int64   `json:"successful_requests"`
		Failed      int64   `json:"failed_requests"`
		RPS         float64 `json:"rps"`
		SuccessRate float64 `json:"success_rate"`
	} `json:"summary"`
	StatusCodes map[string]int64   `json:"status_codes"`
	Errors      []jsonErrorCount   `json:"errors"`
	LatencyMs   map[string]float64 `json:"latency_ms"`
	Samples     int                `json:"latency_samples"`
}

type jsonErrorCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

func msFloat(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// exportJSON exports the report to JSON format
func exportJSON(report *tester.Report, filename string) error {
	var out jsonReport
	out.Info.Target = report.Target
	out.Info.Method = report.Method
	out.Info.Concurrency = report.Concurrency
	out.Info.StartTime = report.StartTime.Format(time.RFC3339)
	out.Info.EndTime = report.EndTime.Format(time.RFC3339)
	out.Info.Duration = report.Elapsed.String()
	out.Info.Partial = report.Partial

	out.Summary.Total = report.Total
	out.Summary.Success = report.Success
	out.Summary.Failed = report.Failed
	out.Summary.RPS = report.RPS
	out.Summary.SuccessRate = report.SuccessRate

	out.StatusCodes = make(map[string]int64, len(report.StatusCodes))
	for _, sc := range report.StatusCodes {
		out.StatusCodes[strconv.Itoa(sc.Code)] = sc.Count
	}
	out.Errors = make([]jsonErrorCount, 0, len(report.Errors))
	for _, ec := range report.Errors {
		out.Errors = append(out.Errors, jsonErrorCount{Kind: ec.Kind, Count: ec.Count})
	}

	lat := report.Latency
	out.Samples = lat.Samples
	out.LatencyMs = map[string]float64{
		"min":  msFloat(lat.Min),
		"max":  msFloat(lat.Max),
		"mean": msFloat(lat.Mean),
		"p50":  msFloat(lat.P50),
		"p90":  msFloat(lat.P90),
		"p95":  msFloat(lat.P95),
		"p99":  msFloat(lat.P99),
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
