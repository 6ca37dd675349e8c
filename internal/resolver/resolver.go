package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrFatalResolution aborts a run whose initial lookup failed
var ErrFatalResolution = errors.New("initial DNS resolution failed")

// State of the effective endpoint
type State int

const (
	Unresolved State = iota
	Resolved
	StaleFallback
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case StaleFallback:
		return "fallback"
	default:
		return "unresolved"
	}
}

// Endpoint is the destination used for the next request
type Endpoint struct {
	Scheme string
	Host   string // resolved IP, or the hostname after a failed refresh
	Port   int
	Path   string // path plus query
}

// URL renders the endpoint as a request URL
func (e Endpoint) URL() string {
	return e.Scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) + e.Path
}

// RefreshGate decides which caller performs a due refresh. Implementations must check
// and advance the last-refresh time atomically.
type RefreshGate interface {
	TryRefresh(now time.Time, interval time.Duration) bool
}

// Target is the static part of the endpoint
type Target struct {
	Scheme   string
	Hostname string
	Port     int
	Path     string
}

// Resolver maintains the effective endpoint for one hostname
type Resolver struct {
	target   Target
	lookup   Lookuper
	gate     RefreshGate
	interval time.Duration

	mu      sync.RWMutex
	current Endpoint
	state   State
	rng     *rand.Rand
	lookups int
}

// New creates a resolver. interval 0 disables refreshing.
func New(target Target, lookup Lookuper, gate RefreshGate, interval time.Duration) *Resolver {
	return &Resolver{
		target:   target,
		lookup:   lookup,
		gate:     gate,
		interval: interval,
		current:  target.fallback(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (t Target) fallback() Endpoint {
	return Endpoint{Scheme: t.Scheme, Host: t.Hostname, Port: t.Port, Path: t.Path}
}

// Init performs the mandatory startup lookup
func (r *Resolver) Init(ctx context.Context) error {
	ip, err := r.resolveOnce(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFatalResolution, err)
	}

	r.mu.Lock()
	r.current = r.withIP(ip)
	r.state = Resolved
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{"host": r.target.Hostname, "ip": ip}).Info("Target resolved")
	return nil
}

// Endpoint returns the current effective endpoint
func (r *Resolver) Endpoint() Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// State returns the resolution state
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Lookups returns how many lookups have been issued
func (r *Resolver) Lookups() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookups
}

// RefreshIfDue re-resolves the hostname when the refresh interval has elapsed.
// It reports whether this caller performed the refresh.
func (r *Resolver) RefreshIfDue(ctx context.Context, now time.Time) bool {
	if r.interval <= 0 || !r.gate.TryRefresh(now, r.interval) {
		return false
	}

	ip, err := r.resolveOnce(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			logrus.WithError(err).WithField("host", r.target.Hostname).Debug("DNS refresh failed, using hostname")
		}
		r.current = r.target.fallback()
		r.state = StaleFallback
		return true
	}

	r.current = r.withIP(ip)
	r.state = Resolved
	logrus.WithFields(logrus.Fields{"host": r.target.Hostname, "ip": ip}).Debug("DNS refreshed")
	return true
}

func (r *Resolver) resolveOnce(ctx context.Context) (string, error) {
	r.mu.Lock()
	r.lookups++
	r.mu.Unlock()

	addrs, err := r.lookup.LookupA(ctx, r.target.Hostname)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", &ResolutionError{Host: r.target.Hostname, Kind: KindNoAnswer}
	}

	r.mu.Lock()
	ip := addrs[r.rng.IntN(len(addrs))]
	r.mu.Unlock()
	return ip, nil
}

func (r *Resolver) withIP(ip string) Endpoint {
	ep := r.target.fallback()
	ep.Host = ip
	return ep
}
