package tester

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"httpstress/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLookuper struct {
	addrs []string
}

func (s staticLookuper) LookupA(context.Context, string) ([]string, error) {
	return s.addrs, nil
}

func newTestResolver(t *testing.T, host string, port int, gate resolver.RefreshGate) *resolver.Resolver {
	t.Helper()
	res := resolver.New(resolver.Target{Scheme: "http", Hostname: host, Port: port, Path: "/"},
		staticLookuper{addrs: []string{host}}, gate, 0)
	require.NoError(t, res.Init(context.Background()))
	return res
}

// slowRequester counts concurrent calls
type slowRequester struct {
	delay   time.Duration
	current atomic.Int64
	max     atomic.Int64
	calls   atomic.Int64
}

func (s *slowRequester) Do(ctx context.Context, _ resolver.Endpoint) (Outcome, error) {
	n := s.current.Add(1)
	defer s.current.Add(-1)
	s.calls.Add(1)
	for {
		m := s.max.Load()
		if n <= m || s.max.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case <-time.After(s.delay):
		return Outcome{StatusCode: 200, Latency: s.delay}, nil
	case <-ctx.Done():
		return Outcome{ErrorKind: KindOther}, ctx.Err()
	}
}

func TestDispatcherAdmissionBound(t *testing.T) {
	stats := NewAggregator()
	req := &slowRequester{delay: 5 * time.Millisecond}
	d := NewDispatcher(req, newTestResolver(t, "127.0.0.1", 80, stats), stats, 3, 0)
	assert.Equal(t, 6, d.Workers())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	assert.LessOrEqual(t, req.max.Load(), int64(3))
	assert.LessOrEqual(t, d.PeakInFlight(), int64(3))
	assert.Equal(t, int64(3), d.PeakInFlight(), "the pool should saturate its slots")

	snap := stats.Snapshot()
	assert.Positive(t, snap.Total)
	assert.Equal(t, snap.Total, snap.Success)
	// requests cut off by the deadline are not recorded
	assert.LessOrEqual(t, snap.Total, req.calls.Load())
}

func TestDispatcherRateLimit(t *testing.T) {
	stats := NewAggregator()
	req := &slowRequester{}
	d := NewDispatcher(req, newTestResolver(t, "127.0.0.1", 80, stats), stats, 4, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	// 4 burst tokens plus 50/s over 200ms
	assert.LessOrEqual(t, stats.Snapshot().Total, int64(20))
}

type panicRequester struct{}

func (panicRequester) Do(context.Context, resolver.Endpoint) (Outcome, error) {
	panic("boom")
}

func TestDispatcherRecoversPanics(t *testing.T) {
	stats := NewAggregator()
	d := NewDispatcher(panicRequester{}, newTestResolver(t, "127.0.0.1", 80, stats), stats, 2, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	r := stats.Report("http://127.0.0.1/", "GET", 2)
	require.Positive(t, r.Total)
	assert.Equal(t, r.Total, r.Failed)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, KindPanic, r.Errors[0].Kind)
}

type failingRequester struct{}

func (failingRequester) Do(context.Context, resolver.Endpoint) (Outcome, error) {
	return Outcome{ErrorKind: KindConnectionReset, Latency: time.Millisecond}, errors.New("connection reset by peer")
}

func TestDispatcherKeepsRunningAfterErrors(t *testing.T) {
	stats := NewAggregator()
	d := NewDispatcher(failingRequester{}, newTestResolver(t, "127.0.0.1", 80, stats), stats, 1, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	r := stats.Report("http://127.0.0.1/", "GET", 1)
	assert.Greater(t, r.Total, int64(1))
	assert.Equal(t, []ErrorCount{{KindConnectionReset, r.Total}}, r.Errors)
}

func TestDispatcherStopsOnCancelledContext(t *testing.T) {
	stats := NewAggregator()
	req := &slowRequester{}
	d := NewDispatcher(req, newTestResolver(t, "127.0.0.1", 80, stats), stats, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.Zero(t, req.calls.Load())
	assert.Zero(t, stats.Snapshot().Total)
}
