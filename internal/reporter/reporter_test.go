package reporter

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"httpstress/internal/config"
	"httpstress/internal/tester"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func init() {
	color.NoColor = true
}

func sampleReport() *tester.Report {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &tester.Report{
		Target:      "https://example.com/api",
		Method:      "GET",
		Concurrency: 50,
		StartTime:   start,
		EndTime:     start.Add(10 * time.Second),
		Elapsed:     10 * time.Second,
		Total:       1000,
		Success:     950,
		Failed:      50,
		RPS:         100,
		SuccessRate: 95,
		StatusCodes: []tester.StatusCount{{Code: 200, Count: 940}, {Code: 301, Count: 10}, {Code: 503, Count: 20}},
		Errors:      []tester.ErrorCount{{Kind: tester.KindTimeout, Count: 25}, {Kind: tester.KindConnectionReset, Count: 5}},
		Latency: tester.LatencyStats{
			Samples: 1000,
			Min:     2 * time.Millisecond,
			Max:     900 * time.Millisecond,
			Mean:    40 * time.Millisecond,
			P50:     30 * time.Millisecond,
			P90:     80 * time.Millisecond,
			P95:     120 * time.Millisecond,
			P99:     400 * time.Millisecond,
		},
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "TEST COMPLETED IN 10.00 SECONDS")
	assert.Contains(t, out, "Target: https://example.com/api")
	assert.Contains(t, out, "Total Requests: 1000")
	assert.Contains(t, out, "Throughput: 100.00 requests/second")
	assert.Contains(t, out, "Success: 950 (95.0%)")
	assert.Contains(t, out, "Failed: 50")
	assert.Contains(t, out, "Timeout: 25")
	assert.Contains(t, out, "P90: 80.00 | P95: 120.00 | P99: 400.00")

	// status histogram ascending
	i200 := strings.Index(out, "Status 200")
	i301 := strings.Index(out, "Status 301")
	i503 := strings.Index(out, "Status 503")
	assert.True(t, i200 < i301 && i301 < i503)

	// error histogram keeps insertion order
	assert.Less(t, strings.Index(out, "Timeout: 25"), strings.Index(out, "ConnectionReset: 5"))
}

func TestPrintReportEmptyAndPartial(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, &tester.Report{Target: "http://x/", Partial: true, Elapsed: time.Second})
	out := buf.String()

	assert.Contains(t, out, "PARTIAL REPORT")
	assert.Contains(t, out, "Success: N/A")
	assert.Contains(t, out, "No status codes recorded.")
	assert.Contains(t, out, "No connection/timeout errors recorded.")
	assert.Contains(t, out, "No response times recorded.")
}

func TestPrintBanner(t *testing.T) {
	s := config.DefaultSettings()
	s.Target = "https://example.com/"
	s.Method = "POST"
	s.PayloadSize = "2KB"
	cfg, err := config.New(s)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintBanner(&buf, cfg, "", "", "2KB")
	out := buf.String()

	assert.Contains(t, out, "Target: https://example.com/")
	assert.Contains(t, out, "Duration: 60s | Concurrency: 2000")
	assert.Contains(t, out, "Timeout: 8s | Method: POST")
	assert.Contains(t, out, "Data: N/A | Headers: N/A")
	assert.Contains(t, out, "Payload Size: 2KB (2.00 KB)")
	assert.Contains(t, out, "DNS Refresh: 60s | SSL Verify: true")
	assert.NotContains(t, out, "Rate cap")
}

func TestExcelReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, NewExcelReporter().GenerateReport(sampleReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, StatusSheet, ErrorsSheet, LatencySheet}, f.GetSheetList())

	target, err := f.GetCellValue(SummarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api", target)

	total, err := f.GetCellValue(SummarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "1000", total)

	rows, err := f.GetRows(StatusSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"200", "940"}, rows[1])

	rows, err = f.GetRows(ErrorsSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Timeout", "25"}, rows[1])

	p99, err := f.GetCellValue(LatencySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "400", p99)
}
