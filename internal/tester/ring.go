package tester

import "time"

// LatencyCapacity is the number of latencies kept for percentile calculation
const LatencyCapacity = 20000

// latencyRing keeps the most recent latencies; once full the oldest entry is overwritten.
// Not safe for concurrent use, the aggregator lock guards it.
type latencyRing struct {
	buf  []time.Duration
	next int
	full bool
}

func newLatencyRing(capacity int) *latencyRing {
	if capacity <= 0 {
		capacity = LatencyCapacity
	}
	return &latencyRing{buf: make([]time.Duration, capacity)}
}

func (r *latencyRing) push(d time.Duration) {
	r.buf[r.next] = d
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *latencyRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

func (r *latencyRing) capacity() int {
	return len(r.buf)
}

// values copies the contents, oldest first
func (r *latencyRing) values() []time.Duration {
	if !r.full {
		out := make([]time.Duration, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]time.Duration, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
