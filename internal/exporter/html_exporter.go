package exporter

import (
	"fmt"
	"html/template"
	"os"
	"time"

	"httpstress/internal/tester"
)

type htmlLatencyRow struct {
	Name  string
	Value time.Duration
}

type htmlReportData struct {
	Report      *tester.Report
	GeneratedAt string
	Latency     []htmlLatencyRow
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": func(d time.Duration) string {
		return fmt.Sprintf("%.2f", float64(d.Microseconds())/1000.0)
	},
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.2f", d.Seconds())
	},
}).Parse(singleReportTemplate))

// exportHTML renders the report as a standalone HTML page
func exportHTML(report *tester.Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	lat := report.Latency
	data := htmlReportData{
		Report:      report,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Latency: []htmlLatencyRow{
			{"Minimum", lat.Min},
			{"Median (P50)", lat.P50},
			{"Average", lat.Mean},
			{"P90", lat.P90},
			{"P95", lat.P95},
			{"P99", lat.P99},
			{"Maximum", lat.Max},
		},
	}

	return reportTemplate.Execute(file, data)
}

const singleReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Load Test Report</title>
    <style>
        :root {
            --primary: #4f46e5;
            --success: #10b981;
            --danger: #ef4444;
            --text-main: #111827;
            --text-muted: #6b7280;
            --card-bg: #ffffff;
        }
        body { font-family: system-ui, -apple-system, sans-serif; background: #f3f4f6; color: var(--text-main); margin: 0; }
        .container { max-width: 1100px; margin: 0 auto; padding: 2rem; }
        .header { background: var(--primary); color: white; padding: 2rem; border-radius: 1rem; margin-bottom: 2rem; }
        .header h1 { margin: 0 0 0.5rem 0; }
        .header .meta { display: flex; flex-wrap: wrap; gap: 2rem; font-size: 0.9rem; opacity: 0.85; }
        .stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; margin-bottom: 2rem; }
        .stat-card, .card { background: var(--card-bg); padding: 1.5rem; border-radius: 1rem; box-shadow: 0 4px 6px -1px rgba(0, 0, 0, 0.1); }
        .stat-label { color: var(--text-muted); font-size: 0.8rem; font-weight: 600; text-transform: uppercase; }
        .stat-value { font-size: 1.8rem; font-weight: 700; color: var(--primary); }
        .stat-value.success { color: var(--success); }
        .stat-value.danger { color: var(--danger); }
        .main-grid { display: grid; grid-template-columns: 1fr 1fr 1fr; gap: 1.5rem; }
        .section-title { font-weight: 700; margin-bottom: 1rem; border-left: 4px solid var(--primary); padding-left: 0.75rem; }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        td, th { padding: 0.6rem; border-bottom: 1px solid #e5e7eb; text-align: left; }
        .metric-cell { font-family: ui-monospace, monospace; }
        .partial { background: #fef3c7; color: #92400e; padding: 0.75rem 1rem; border-radius: 0.5rem; margin-bottom: 1rem; }
        @media (max-width: 900px) { .main-grid { grid-template-columns: 1fr; } }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>⚡ Load Test Report</h1>
            <div class="meta">
                <span><strong>Target:</strong> {{.Report.Target}}</span>
                <span><strong>Method:</strong> {{.Report.Method}}</span>
                <span><strong>Concurrency:</strong> {{.Report.Concurrency}}</span>
                <span><strong>Elapsed:</strong> {{seconds .Report.Elapsed}} s</span>
                <span><strong>Generated:</strong> {{.GeneratedAt}}</span>
            </div>
        </div>
        {{if .Report.Partial}}<div class="partial">Partial report: the run did not finish draining.</div>{{end}}

        <div class="stats-grid">
            <div class="stat-card">
                <div class="stat-label">Total Requests</div>
                <div class="stat-value">{{.Report.Total}}</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Throughput</div>
                <div class="stat-value">{{printf "%.2f" .Report.RPS}} <small>req/s</small></div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Success Rate</div>
                <div class="stat-value success">{{printf "%.2f" .Report.SuccessRate}}%</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Failed</div>
                <div class="stat-value danger">{{.Report.Failed}}</div>
            </div>
        </div>

        <div class="main-grid">
            <div class="card">
                <div class="section-title">📊 Status Codes</div>
                <table>
                    <tr><th>Code</th><th>Count</th></tr>
                    {{range .Report.StatusCodes}}<tr><td>{{.Code}}</td><td class="metric-cell">{{.Count}}</td></tr>
                    {{else}}<tr><td colspan="2">No status codes recorded.</td></tr>{{end}}
                </table>
            </div>
            <div class="card">
                <div class="section-title">⚠️ Errors</div>
                <table>
                    <tr><th>Kind</th><th>Count</th></tr>
                    {{range .Report.Errors}}<tr><td>{{.Kind}}</td><td class="metric-cell">{{.Count}}</td></tr>
                    {{else}}<tr><td colspan="2">No errors recorded.</td></tr>{{end}}
                </table>
            </div>
            <div class="card">
                <div class="section-title">⏱️ Latency ({{.Report.Latency.Samples}} samples)</div>
                <table>
                    {{range .Latency}}<tr><td>{{.Name}}</td><td class="metric-cell">{{formatDuration .Value}} ms</td></tr>
                    {{end}}
                </table>
            </div>
        </div>
    </div>
</body>
</html>
`
