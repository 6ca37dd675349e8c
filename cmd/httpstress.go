package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"httpstress/internal/config"
	"httpstress/internal/exporter"
	"httpstress/internal/metrics"
	"httpstress/internal/reporter"
	"httpstress/internal/resolver"
	"httpstress/internal/tester"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(runStress)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:      "httpstress",
		Usage:     "HTTP/HTTPS load generator for authorized testing",
		ArgsUsage: "<target-url>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Value:   int(config.DefaultDuration / time.Second),
				Usage:   "test duration in seconds",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Value:   config.DefaultConcurrency,
				Usage:   "maximum concurrent requests",
			},
			&cli.Float64Flag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   config.DefaultTimeout.Seconds(),
				Usage:   "per-request timeout in seconds",
			},
			&cli.StringFlag{
				Name:  "method",
				Value: "GET",
				Usage: "HTTP method: " + strings.Join(config.Methods, ", "),
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "request body (ignored when --payload-size is set)",
			},
			&cli.StringFlag{
				Name:  "headers",
				Usage: `custom headers as a JSON object, e.g. '{"X-Token": "abc"}'`,
			},
			&cli.StringFlag{
				Name:  "payload-size",
				Usage: "generated body size for POST/PUT, e.g. 10KB, 1MB, 500B",
			},
			&cli.BoolFlag{
				Name:  "keepalive",
				Usage: "reuse connections between requests",
			},
			&cli.IntFlag{
				Name:  "dns-refresh",
				Value: int(config.DefaultDNSRefresh / time.Second),
				Usage: "seconds between DNS re-resolutions of the target (0 disables)",
			},
			&cli.BoolFlag{
				Name:  "no-ssl-verify",
				Usage: "skip TLS certificate verification",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML profile supplying defaults, flags override it",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "log format: text, json",
			},
			&cli.StringFlag{
				Name:  "dns-server",
				Usage: "DNS server host[:port] for target resolution (default: system resolv.conf)",
			},
			&cli.StringFlag{
				Name:  "proxy",
				Usage: "SOCKS5 proxy host:port for outgoing connections",
			},
			&cli.Float64Flag{
				Name:  "rps",
				Usage: "global requests-per-second cap (0 = unlimited)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "expose Prometheus metrics on this address, e.g. :9090",
			},
			&cli.StringSliceFlag{
				Name:    "export-formats",
				Aliases: []string{"e"},
				Usage:   "write report files: csv, json, html (comma separated)",
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Value: "reports",
				Usage: "directory for exported report files",
			},
			&cli.StringFlag{
				Name:  "xlsx",
				Usage: "write an Excel report to this path",
			},
		},
		Action: action,
	}
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q (allowed: text, json)", format)
	}
	return nil
}

func seconds(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

// buildSettings merges defaults, the optional profile and explicitly set flags
func buildSettings(c *cli.Context) (config.Settings, error) {
	settings := config.DefaultSettings()
	if path := c.String("config"); path != "" {
		profile, err := config.LoadProfile(path)
		if err != nil {
			return settings, fmt.Errorf("failed to load config: %w", err)
		}
		settings = *profile
	}

	if target := c.Args().First(); target != "" {
		settings.Target = target
	}
	if settings.Target == "" {
		return settings, fmt.Errorf("%w: a target URL is required", config.ErrInvalidTarget)
	}

	if c.IsSet("duration") {
		settings.Duration = seconds(float64(c.Int("duration")))
	}
	if c.IsSet("concurrency") {
		settings.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("timeout") {
		settings.Timeout = seconds(c.Float64("timeout"))
	}
	if c.IsSet("method") {
		settings.Method = c.String("method")
	}
	if c.IsSet("data") {
		settings.Data = c.String("data")
	}
	if c.IsSet("headers") {
		settings.Headers = c.String("headers")
	}
	if c.IsSet("payload-size") {
		settings.PayloadSize = c.String("payload-size")
	}
	if c.IsSet("keepalive") {
		settings.KeepAlive = c.Bool("keepalive")
	}
	if c.IsSet("dns-refresh") {
		settings.DNSRefresh = seconds(float64(c.Int("dns-refresh")))
	}
	if c.IsSet("no-ssl-verify") {
		settings.VerifyTLS = !c.Bool("no-ssl-verify")
	}
	if c.IsSet("dns-server") {
		settings.DNSServer = c.String("dns-server")
	}
	if c.IsSet("proxy") {
		settings.Proxy = c.String("proxy")
	}
	if c.IsSet("rps") {
		settings.RPS = c.Float64("rps")
	}

	return settings, nil
}

func runStress(c *cli.Context) (err error) {
	if err := setupLogging(c.String("log-level"), c.String("log-format")); err != nil {
		return err
	}

	formats, err := exporter.ParseFormats(c.StringSlice("export-formats"))
	if err != nil {
		return err
	}

	settings, err := buildSettings(c)
	if err != nil {
		return err
	}

	cfg, err := config.New(settings)
	if err != nil {
		return err
	}

	lookuper, err := resolver.NewDNSLookuper(cfg.DNSServer, 0)
	if err != nil {
		return fmt.Errorf("failed to create DNS client: %w", err)
	}

	var collector *metrics.Collector
	var observers []tester.Observer
	if c.String("metrics-addr") != "" {
		collector = metrics.NewCollector()
		observers = append(observers, collector)
	}

	stats := tester.NewAggregator(observers...)
	res := resolver.New(resolver.Target{
		Scheme:   cfg.Scheme,
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		Path:     cfg.RequestPath,
	}, lookuper, stats, cfg.DNSRefresh)

	reporter.PrintBanner(os.Stdout, cfg, settings.Data, settings.Headers, settings.PayloadSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := res.Init(ctx); err != nil {
		return err
	}

	eng, err := tester.NewEngine(cfg, res, stats, os.Stdout, tester.IsTTY())
	if err != nil {
		return err
	}

	// A panic on this goroutine still prints what was collected. Workers and the
	// live monitor recover their own panics inside the engine.
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("A critical error interrupted the test")
			reporter.PrintReport(os.Stdout, eng.PartialReport())
			err = fmt.Errorf("run aborted: %v", r)
		}
	}()

	if collector != nil {
		collector.TrackInFlight(eng.Dispatcher().InFlight)
		go func() {
			if err := collector.Serve(ctx, c.String("metrics-addr")); err != nil {
				logrus.WithError(err).Warn("Metrics server stopped")
			}
		}()
	}

	// First signal drains the run, a second one prints the partial report and exits
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigChan:
		case <-done:
			return
		}
		fmt.Println("\n\nInterrupted, stopping workers and generating the report...")
		cancel()

		select {
		case <-sigChan:
		case <-done:
			return
		}
		fmt.Println("\nSecond interrupt, printing partial report")
		reporter.PrintReport(os.Stdout, eng.PartialReport())
		os.Exit(1)
	}()

	fmt.Println("Preparing test... please wait.")
	report, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	reporter.PrintReport(os.Stdout, report)

	if len(formats) > 0 {
		files, err := exporter.NewExporter(c.String("export-dir")).Export(report, formats)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("✓ Report exported to: %s\n", f)
		}
	}

	if path := c.String("xlsx"); path != "" {
		if err := reporter.NewExcelReporter().GenerateReport(report, path); err != nil {
			return err
		}
		fmt.Printf("✓ Excel report saved to: %s\n", path)
	}

	return nil
}
