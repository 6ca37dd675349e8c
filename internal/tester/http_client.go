package tester

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"httpstress/internal/resolver"

	"golang.org/x/net/proxy"
)

// ErrClientClosed is returned for requests issued after Close
var ErrClientClosed = errors.New("http client closed")

// ClientOptions configure the shared HTTP client
type ClientOptions struct {
	Method    string
	Hostname  string // sent as Host header and TLS server name
	Port      int
	Scheme    string
	Headers   http.Header
	Body      []byte
	Timeout   time.Duration
	KeepAlive bool
	VerifyTLS bool
	MaxConns  int
	Proxy     string // SOCKS5 host:port, empty for direct connections
}

// HTTPClient is the connection pool shared by all workers of a run
type HTTPClient struct {
	client    *http.Client
	transport *http.Transport
	method    string
	headers   http.Header
	body      []byte
	host      string

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewHTTPClient creates the shared client. Redirects are never followed.
func NewHTTPClient(opts ClientOptions) (*HTTPClient, error) {
	baseDialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}

	dialFunc := baseDialer.DialContext
	if opts.Proxy != "" {
		s5, err := proxy.SOCKS5("tcp", opts.Proxy, nil, baseDialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := s5.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", opts.Proxy)
		}
		dialFunc = cd.DialContext
	}

	tlsConfig := &tls.Config{
		ServerName:         opts.Hostname,
		InsecureSkipVerify: !opts.VerifyTLS,
	}
	if opts.VerifyTLS {
		tlsConfig.MinVersion = tls.VersionTLS12
	}

	transport := &http.Transport{
		DialContext:           dialFunc,
		TLSClientConfig:       tlsConfig,
		DisableKeepAlives:     !opts.KeepAlive,
		MaxConnsPerHost:       opts.MaxConns,
		MaxIdleConns:          opts.MaxConns,
		MaxIdleConnsPerHost:   opts.MaxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPClient{
		client:    httpClient,
		transport: transport,
		method:    opts.Method,
		headers:   opts.Headers,
		body:      opts.Body,
		host:      hostHeader(opts.Scheme, opts.Hostname, opts.Port),
	}, nil
}

// hostHeader omits the port when it is the scheme default
func hostHeader(scheme, hostname string, port int) string {
	if port == 0 || (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return hostname
	}
	return net.JoinHostPort(hostname, strconv.Itoa(port))
}

// Do sends one request to the endpoint and drains the response body.
// The returned error is the raw cause; the outcome already carries its kind.
func (c *HTTPClient) Do(ctx context.Context, ep resolver.Endpoint) (Outcome, error) {
	if c.closed.Load() {
		return Outcome{ErrorKind: KindClientClosed}, ErrClientClosed
	}

	var body io.Reader
	if len(c.body) > 0 {
		body = bytes.NewReader(c.body)
	}

	requestStart := time.Now()
	req, err := http.NewRequestWithContext(ctx, c.method, ep.URL(), body)
	if err != nil {
		return Outcome{ErrorKind: KindOther}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.headers != nil {
		req.Header = c.headers.Clone()
	}
	req.Host = c.host

	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{ErrorKind: ClassifyError(err), Latency: time.Since(requestStart)}, err
	}

	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	latency := time.Since(requestStart)
	if err != nil {
		kind := ClassifyError(err)
		if kind == KindOther || kind == KindEOF {
			kind = KindBodyRead
		}
		return Outcome{ErrorKind: kind, Latency: latency}, err
	}

	return Outcome{StatusCode: resp.StatusCode, Latency: latency}, nil
}

// Close releases pooled connections. Safe to call more than once.
func (c *HTTPClient) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.transport.CloseIdleConnections()
	})
}

// Closed reports whether Close has been called
func (c *HTTPClient) Closed() bool {
	return c.closed.Load()
}
