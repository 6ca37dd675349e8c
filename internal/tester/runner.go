package tester

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"httpstress/internal/resolver"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Requester sends one request to an endpoint
type Requester interface {
	Do(ctx context.Context, ep resolver.Endpoint) (Outcome, error)
}

// Dispatcher runs the worker pool. Twice as many workers as slots keep the
// semaphore saturated while finished workers record their outcome.
type Dispatcher struct {
	client      Requester
	resolver    *resolver.Resolver
	stats       *Aggregator
	sem         *semaphore.Weighted
	limiter     *rate.Limiter
	concurrency int
	workers     int

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewDispatcher creates a dispatcher admitting at most concurrency requests at once.
// rps > 0 caps the global request rate.
func NewDispatcher(client Requester, res *resolver.Resolver, stats *Aggregator, concurrency int, rps float64) *Dispatcher {
	d := &Dispatcher{
		client:      client,
		resolver:    res,
		stats:       stats,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
		workers:     2 * concurrency,
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		if burst > concurrency {
			burst = concurrency
		}
		d.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return d
}

// Workers returns the number of worker goroutines Run starts
func (d *Dispatcher) Workers() int {
	return d.workers
}

// InFlight returns the number of requests currently admitted
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// PeakInFlight returns the highest number of simultaneously admitted requests
func (d *Dispatcher) PeakInFlight() int64 {
	return d.peak.Load()
}

// Run starts the workers and blocks until every one of them has returned.
// Workers stop when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d.iterate(ctx) {
			}
		}()
	}
	wg.Wait()
}

// iterate performs one worker iteration and reports whether the worker should continue
func (d *Dispatcher) iterate(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	d.resolver.RefreshIfDue(ctx, time.Now())

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	d.trackAdmission()

	ep := d.resolver.Endpoint()
	outcome, err := d.send(ctx, ep)

	d.inFlight.Add(-1)
	d.sem.Release(1)

	if err != nil && ctx.Err() != nil {
		// cancelled by the run itself, the request never completed
		return false
	}

	d.stats.Record(outcome)
	if err != nil {
		logrus.WithError(err).WithField("kind", outcome.ErrorKind).Debug("Request failed")
	}
	return true
}

func (d *Dispatcher) trackAdmission() {
	n := d.inFlight.Add(1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

// send isolates a panicking request so the worker keeps running
func (d *Dispatcher) send(ctx context.Context, ep resolver.Endpoint) (outcome Outcome, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{ErrorKind: KindPanic, Latency: time.Since(start)}
			err = fmt.Errorf("panic during request: %v", r)
			logrus.WithField("panic", r).Error("Recovered panic in worker")
		}
	}()
	return d.client.Do(ctx, ep)
}
