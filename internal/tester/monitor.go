package tester

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// IsTTY reports whether stdout is an interactive terminal
func IsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Monitor prints a live status line from aggregator snapshots
type Monitor struct {
	stats    *Aggregator
	out      io.Writer
	interval time.Duration
	inPlace  bool
}

// NewMonitor creates a monitor. inPlace overwrites one terminal line instead of appending lines.
func NewMonitor(stats *Aggregator, out io.Writer, interval time.Duration, inPlace bool) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{stats: stats, out: out, interval: interval, inPlace: inPlace}
}

// Run prints the header and one line per tick until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	fmt.Fprint(m.out, MonitorHeader())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if m.inPlace {
				fmt.Fprintln(m.out)
			}
			return
		case <-ticker.C:
			line := FormatLine(m.stats.Snapshot())
			if m.inPlace {
				fmt.Fprint(m.out, "\r"+line)
			} else {
				fmt.Fprintln(m.out, line)
			}
		}
	}
}

// MonitorHeader returns the banner and column titles printed before the first tick
func MonitorHeader() string {
	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, center("Live Monitoring", 80), rule)
	fmt.Fprintf(&b, "%-10s | %-10s | %-8s | %-8s | %-8s | %-18s\n",
		"Time (s)", "Requests", "RPS", "Success%", "Failed", "Latency Avg (ms)")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 80))
	return b.String()
}

// FormatLine renders one status line: elapsed, total, RPS, success %, failed, mean latency
func FormatLine(s Snapshot) string {
	return fmt.Sprintf("%-10d | %-10d | %-8.1f | %-8.1f | %-8d | %-18.2f",
		int64(s.Elapsed.Seconds()),
		s.Total,
		s.RPS(),
		s.SuccessRate(),
		s.Failed,
		float64(s.MeanLatency())/float64(time.Millisecond),
	)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}
