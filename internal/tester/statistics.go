package tester

import (
	"sort"
	"sync"
	"time"
)

// IsSuccessStatus classifies a response status. Redirects are never followed, so a 3xx
// answer is counted as success: the server responded without error at the client boundary.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 400
}

// Observer receives every recorded outcome, under the aggregator lock
type Observer interface {
	Observe(o Outcome, success bool)
}

// Aggregator is the single shared statistics object of a run. All fields are guarded by mu.
type Aggregator struct {
	mu sync.Mutex

	total       int64
	success     int64
	failed      int64
	statusCodes map[int]int64
	errors      map[string]int64
	errorOrder  []string
	latencies   *latencyRing
	startTime   time.Time
	lastRefresh time.Time
	observers   []Observer

	now func() time.Time
}

// NewAggregator creates an aggregator with the default latency capacity
func NewAggregator(observers ...Observer) *Aggregator {
	return newAggregator(LatencyCapacity, time.Now, observers...)
}

func newAggregator(capacity int, now func() time.Time, observers ...Observer) *Aggregator {
	return &Aggregator{
		statusCodes: make(map[int]int64),
		errors:      make(map[string]int64),
		latencies:   newLatencyRing(capacity),
		startTime:   now(),
		observers:   observers,
		now:         now,
	}
}

// Start resets the clock the rate is computed against
func (a *Aggregator) Start() {
	a.mu.Lock()
	a.startTime = a.now()
	a.mu.Unlock()
}

// Record adds one outcome
func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	success := false
	if o.Failed() {
		a.failed++
		if _, seen := a.errors[o.ErrorKind]; !seen {
			a.errorOrder = append(a.errorOrder, o.ErrorKind)
		}
		a.errors[o.ErrorKind]++
	} else {
		a.statusCodes[o.StatusCode]++
		if IsSuccessStatus(o.StatusCode) {
			a.success++
			success = true
		} else {
			a.failed++
		}
	}
	a.latencies.push(o.Latency)

	for _, obs := range a.observers {
		obs.Observe(o, success)
	}
}

// TryRefresh implements the DNS refresh gate: it returns true to exactly one caller per
// elapsed interval and advances the last refresh time.
func (a *Aggregator) TryRefresh(now time.Time, interval time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.lastRefresh.IsZero() && now.Sub(a.lastRefresh) < interval {
		return false
	}
	if now.After(a.lastRefresh) {
		a.lastRefresh = now
	}
	return true
}

// LastRefresh returns when the last DNS refresh was started
func (a *Aggregator) LastRefresh() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRefresh
}

// Snapshot copies the counters and the latency buffer
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		Elapsed:   a.now().Sub(a.startTime),
		Total:     a.total,
		Success:   a.success,
		Failed:    a.failed,
		Latencies: a.latencies.values(),
	}
}

// Report builds the final report from the current state
func (a *Aggregator) Report(target, method string, concurrency int) *Report {
	a.mu.Lock()
	end := a.now()
	r := &Report{
		Target:      target,
		Method:      method,
		Concurrency: concurrency,
		StartTime:   a.startTime,
		EndTime:     end,
		Elapsed:     end.Sub(a.startTime),
		Total:       a.total,
		Success:     a.success,
		Failed:      a.failed,
		StatusCodes: make([]StatusCount, 0, len(a.statusCodes)),
		Errors:      make([]ErrorCount, 0, len(a.errorOrder)),
	}
	for code, n := range a.statusCodes {
		r.StatusCodes = append(r.StatusCodes, StatusCount{Code: code, Count: n})
	}
	for _, kind := range a.errorOrder {
		r.Errors = append(r.Errors, ErrorCount{Kind: kind, Count: a.errors[kind]})
	}
	latencies := a.latencies.values()
	a.mu.Unlock()

	sort.Slice(r.StatusCodes, func(i, j int) bool {
		return r.StatusCodes[i].Code < r.StatusCodes[j].Code
	})
	if r.Elapsed > 0 {
		r.RPS = float64(r.Total) / r.Elapsed.Seconds()
	}
	if r.Total > 0 {
		r.SuccessRate = float64(r.Success) / float64(r.Total) * 100.0
	}
	r.Latency = CalculateStats(latencies)

	return r
}

// CalculateStats computes statistical metrics from latency data
func CalculateStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := sortedCopy(durations)

	stats := LatencyStats{
		Samples: len(sorted),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		P50:     percentile(sorted, 50),
		P90:     percentile(sorted, 90),
		P95:     percentile(sorted, 95),
		P99:     percentile(sorted, 99),
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	stats.Mean = time.Duration(int64(sum) / int64(len(durations)))

	return stats
}

// Percentile returns the pth percentile of values using linear interpolation.
// p is clamped to [0, 100]; an empty input yields 0.
func Percentile(values []time.Duration, p float64) time.Duration {
	return percentile(sortedCopy(values), p)
}

func sortedCopy(durations []time.Duration) []time.Duration {
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	return sorted
}

// percentile calculates the pth percentile from sorted durations
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100.0 * float64(len(sorted)-1)
	lowerIndex := int(rank)
	upperIndex := lowerIndex + 1

	if upperIndex >= len(sorted) {
		return sorted[lowerIndex]
	}

	fraction := rank - float64(lowerIndex)
	lower := float64(sorted[lowerIndex])
	upper := float64(sorted[upperIndex])

	return time.Duration(lower + fraction*(upper-lower))
}
