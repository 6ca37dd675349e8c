package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// ErrorKind classifies a failed lookup
type ErrorKind string

const (
	KindNXDomain      ErrorKind = "NXDOMAIN"
	KindNoAnswer      ErrorKind = "NoAnswer"
	KindServerFailure ErrorKind = "ServerFailure"
	KindTransport     ErrorKind = "Transport"
)

// ResolutionError is the typed failure of a single lookup
type ResolutionError struct {
	Host string
	Kind ErrorKind
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Host, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Host, e.Kind)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ResolutionError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Kind == kind
}

// Lookuper returns every IPv4 address of a host
type Lookuper interface {
	LookupA(ctx context.Context, host string) ([]string, error)
}

// DNSLookuper queries A records straight from a nameserver, bypassing any local cache
type DNSLookuper struct {
	client *dns.Client
	tcp    *dns.Client
	server string
}

// DefaultResolvConf is read when no nameserver is given
const DefaultResolvConf = "/etc/resolv.conf"

// NewDNSLookuper creates a lookuper for server (host:port or host). An empty server
// means the first nameserver of the system resolv.conf.
func NewDNSLookuper(server string, timeout time.Duration) (*DNSLookuper, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(DefaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", DefaultResolvConf, err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameserver in %s", DefaultResolvConf)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &DNSLookuper{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		tcp:    &dns.Client{Net: "tcp", Timeout: timeout},
		server: server,
	}, nil
}

// Server returns the nameserver address in use
func (l *DNSLookuper) Server() string {
	return l.server
}

// LookupA performs a single A query, repeated over TCP when the UDP answer is
// truncated. IP literals are returned as is.
func (l *DNSLookuper) LookupA(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	in, _, err := l.client.ExchangeContext(ctx, msg, l.server)
	if err == nil && in.Truncated {
		in, _, err = l.tcp.ExchangeContext(ctx, msg, l.server)
	}
	if err != nil {
		return nil, &ResolutionError{Host: host, Kind: KindTransport, Err: err}
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &ResolutionError{Host: host, Kind: KindNXDomain}
	default:
		return nil, &ResolutionError{Host: host, Kind: KindServerFailure, Err: fmt.Errorf("rcode %s", dns.RcodeToString[in.Rcode])}
	}

	var addrs []string
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return nil, &ResolutionError{Host: host, Kind: KindNoAnswer}
	}

	return addrs, nil
}
