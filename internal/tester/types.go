package tester

import (
	"time"
)

// Outcome is the result of one request attempt
type Outcome struct {
	StatusCode int           // HTTP status, 0 when the request failed
	ErrorKind  string        // error label when the request failed
	Latency    time.Duration // time from send to fully drained body
}

// Failed reports whether the attempt ended without a response
func (o Outcome) Failed() bool {
	return o.ErrorKind != ""
}

// Snapshot is a point-in-time copy of the live counters
type Snapshot struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Failed    int64
	Latencies []time.Duration
}

// RPS returns requests per second over the elapsed time
func (s Snapshot) RPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total) / s.Elapsed.Seconds()
}

// SuccessRate returns the success share as a percentage
func (s Snapshot) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100.0
}

// MeanLatency returns the mean of the buffered latencies
func (s Snapshot) MeanLatency() time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range s.Latencies {
		sum += l
	}
	return sum / time.Duration(len(s.Latencies))
}

// LatencyStats represents statistical analysis of latency data
type LatencyStats struct {
	Samples int
	Mean    time.Duration
	Min     time.Duration
	Max     time.Duration
	P50     time.Duration
	P90     time.Duration
	P95     time.Duration
	P99     time.Duration
}

// StatusCount is one row of the status-code histogram
type StatusCount struct {
	Code  int
	Count int64
}

// ErrorCount is one row of the error-kind histogram
type ErrorCount struct {
	Kind  string
	Count int64
}

// Report is the final result of a run
type Report struct {
	Target      string
	Method      string
	Concurrency int
	StartTime   time.Time
	EndTime     time.Time
	Elapsed     time.Duration
	Total       int64
	Success     int64
	Failed      int64
	RPS         float64
	SuccessRate float64
	StatusCodes []StatusCount // ascending by code
	Errors      []ErrorCount  // first-seen order
	Latency     LatencyStats
	Partial     bool // produced before the drain completed
}
