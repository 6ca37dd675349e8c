// Package metrics exposes run outcomes in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"httpstress/internal/tester"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collector mirrors every outcome the aggregator records. It owns its registry so
// several collectors can coexist in one process.
type Collector struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   prometheus.Histogram
}

// NewCollector creates and registers the run metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpstress_requests_total",
			Help: "Completed requests by result",
		}, []string{"result"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpstress_responses_total",
			Help: "Responses by HTTP status code",
		}, []string{"code"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpstress_request_errors_total",
			Help: "Requests that ended without a response, by error kind",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "httpstress_request_duration_seconds",
			Help:    "Latency distribution",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
	}
	c.registry.MustRegister(c.requests, c.responses, c.errors, c.latency)
	return c
}

// Observe implements tester.Observer
func (c *Collector) Observe(o tester.Outcome, success bool) {
	if success {
		c.requests.WithLabelValues("success").Inc()
	} else {
		c.requests.WithLabelValues("failed").Inc()
	}
	if o.Failed() {
		c.errors.WithLabelValues(o.ErrorKind).Inc()
	} else {
		c.responses.WithLabelValues(strconv.Itoa(o.StatusCode)).Inc()
	}
	c.latency.Observe(o.Latency.Seconds())
}

// TrackInFlight exports the current number of admitted requests
func (c *Collector) TrackInFlight(fn func() int64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "httpstress_in_flight_requests",
		Help: "Requests currently admitted by the semaphore",
	}, func() float64 {
		return float64(fn())
	}))
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logrus.Infof("Metrics at %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ tester.Observer = (*Collector)(nil)
