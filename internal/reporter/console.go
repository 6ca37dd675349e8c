package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"httpstress/internal/config"
	"httpstress/internal/tester"

	"github.com/fatih/color"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	good     = color.New(color.FgGreen)
	bad      = color.New(color.FgRed)
	warn     = color.New(color.FgYellow)
)

func rule(w io.Writer, ch string) {
	fmt.Fprintln(w, strings.Repeat(ch, 80))
}

// PrintBanner echoes the run parameters before the run starts
func PrintBanner(w io.Writer, cfg *config.Config, data, headers, payloadSize string) {
	fmt.Fprintln(w)
	rule(w, "=")
	headline.Fprintln(w, "       🚀 HTTP/HTTPS High-Performance Load Tester")
	fmt.Fprintln(w, "        (authorized, responsible use only)")
	rule(w, "=")
	fmt.Fprintf(w, "Target: %s\n", cfg.Target)
	fmt.Fprintf(w, "Duration: %s | Concurrency: %d\n", seconds(cfg.Duration), cfg.Concurrency)
	fmt.Fprintf(w, "Timeout: %s | Method: %s\n", seconds(cfg.Timeout), cfg.Method)
	fmt.Fprintf(w, "Data: %s | Headers: %s\n", orNA(data), orNA(headers))
	fmt.Fprintf(w, "Payload Size: %s (%s)\n", orNA(payloadSize), cfg.PayloadNote)
	fmt.Fprintf(w, "Keep-Alive: %t | DNS Refresh: %s | SSL Verify: %t\n",
		cfg.KeepAlive, seconds(cfg.DNSRefresh), cfg.VerifyTLS)
	if cfg.Proxy != "" || cfg.RPS > 0 {
		rps := "unlimited"
		if cfg.RPS > 0 {
			rps = fmt.Sprintf("%.1f/s", cfg.RPS)
		}
		fmt.Fprintf(w, "Proxy: %s | Rate cap: %s\n", orNA(cfg.Proxy), rps)
	}
	rule(w, "-")
}

// PrintReport writes the final report
func PrintReport(w io.Writer, r *tester.Report) {
	fmt.Fprint(w, "\n\n")
	rule(w, "=")
	if r.Partial {
		warn.Fprintf(w, "⚠️ PARTIAL REPORT AFTER %.2f SECONDS\n", r.Elapsed.Seconds())
	} else {
		headline.Fprintf(w, "⚡ TEST COMPLETED IN %.2f SECONDS\n", r.Elapsed.Seconds())
	}
	rule(w, "=")
	fmt.Fprintf(w, "🔗 Target: %s\n", r.Target)
	fmt.Fprintf(w, "📈 Total Requests: %d\n", r.Total)
	fmt.Fprintf(w, "📊 Throughput: %.2f requests/second (RPS)\n", r.RPS)
	if r.Total > 0 {
		good.Fprintf(w, "✅ Success: %d (%.1f%%)\n", r.Success, r.SuccessRate)
	} else {
		fmt.Fprintln(w, "✅ Success: N/A")
	}
	bad.Fprintf(w, "🔴 Failed: %d\n", r.Failed)

	fmt.Fprintln(w, "\n📊 HTTP Status Codes:")
	if len(r.StatusCodes) == 0 {
		fmt.Fprintln(w, "  No status codes recorded.")
	}
	for _, sc := range r.StatusCodes {
		fmt.Fprintf(w, "  Status %d: %d requests\n", sc.Code, sc.Count)
	}

	fmt.Fprintln(w, "\n⚠️ Errors:")
	if len(r.Errors) == 0 {
		fmt.Fprintln(w, "  No connection/timeout errors recorded.")
	}
	for _, ec := range r.Errors {
		fmt.Fprintf(w, "  %s: %d\n", ec.Kind, ec.Count)
	}

	if r.Latency.Samples > 0 {
		lat := r.Latency
		fmt.Fprintln(w, "\n⏱️ Response Times (ms):")
		fmt.Fprintf(w, "  Min: %.2f | Max: %.2f\n", msf(lat.Min), msf(lat.Max))
		fmt.Fprintf(w, "  Mean: %.2f | Median (P50): %.2f\n", msf(lat.Mean), msf(lat.P50))
		fmt.Fprintf(w, "  P90: %.2f | P95: %.2f | P99: %.2f\n", msf(lat.P90), msf(lat.P95), msf(lat.P99))
	} else {
		fmt.Fprintln(w, "\n⏱️ No response times recorded.")
	}
	rule(w, "=")
}

func msf(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%gs", d.Seconds())
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
