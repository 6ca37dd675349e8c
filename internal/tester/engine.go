package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"httpstress/internal/config"
	"httpstress/internal/resolver"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyStarted is returned when Run is called twice on one engine
var ErrAlreadyStarted = errors.New("engine already started")

// State of the run lifecycle
type State int32

const (
	Idle State = iota
	Running
	Draining
	Reported
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Reported:
		return "reported"
	default:
		return "idle"
	}
}

// Engine drives one load run from start to final report
type Engine struct {
	cfg        *config.Config
	stats      *Aggregator
	client     *HTTPClient
	dispatcher *Dispatcher
	monitor    *Monitor
	state      atomic.Int32
}

// NewEngine wires the shared client, the dispatcher and the monitor.
// res must already be initialized and use stats as its refresh gate.
func NewEngine(cfg *config.Config, res *resolver.Resolver, stats *Aggregator, out io.Writer, inPlace bool) (*Engine, error) {
	client, err := NewHTTPClient(ClientOptions{
		Method:    cfg.Method,
		Hostname:  cfg.Hostname,
		Port:      cfg.Port,
		Scheme:    cfg.Scheme,
		Headers:   cfg.Headers,
		Body:      cfg.Body(),
		Timeout:   cfg.Timeout,
		KeepAlive: cfg.KeepAlive,
		VerifyTLS: cfg.VerifyTLS,
		MaxConns:  cfg.Concurrency,
		Proxy:     cfg.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if out == nil {
		out = io.Discard
	}

	return &Engine{
		cfg:        cfg,
		stats:      stats,
		client:     client,
		dispatcher: NewDispatcher(client, res, stats, cfg.Concurrency, cfg.RPS),
		monitor:    NewMonitor(stats, out, cfg.MonitorInterval, inPlace),
	}, nil
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Dispatcher exposes the worker pool
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Run generates load until the configured duration elapses or ctx is cancelled,
// waits for every worker and the monitor, then closes the client and builds the report.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, ErrAlreadyStarted
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Duration)
	defer cancel()

	e.stats.Start()
	logrus.WithFields(logrus.Fields{
		"target":      e.cfg.Target,
		"concurrency": e.cfg.Concurrency,
		"workers":     e.dispatcher.Workers(),
		"duration":    e.cfg.Duration,
	}).Debug("Run started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.dispatcher.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		// A broken monitor only ends the live view, the run goes on
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("Live monitor stopped")
			}
		}()
		e.monitor.Run(runCtx)
	}()

	<-runCtx.Done()
	e.state.Store(int32(Draining))
	if ctx.Err() != nil {
		logrus.Debug("Run interrupted, draining workers")
	}

	wg.Wait()
	e.client.Close()

	report := e.stats.Report(e.cfg.Target, e.cfg.Method, e.cfg.Concurrency)
	e.state.Store(int32(Reported))

	logrus.WithFields(logrus.Fields{
		"total":       report.Total,
		"peak":        e.dispatcher.PeakInFlight(),
		"interrupted": ctx.Err() != nil,
	}).Debug("Run finished")

	return report, nil
}

// PartialReport builds a best-effort report from the current counters.
// It may be called at any time, including while workers are still running.
func (e *Engine) PartialReport() *Report {
	r := e.stats.Report(e.cfg.Target, e.cfg.Method, e.cfg.Concurrency)
	r.Partial = e.State() != Reported
	return r
}
