package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"httpstress/internal/payload"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidTarget is returned when the target URL lacks a scheme or host
var ErrInvalidTarget = errors.New("invalid target URL")

// Defaults
const (
	DefaultDuration        = 60 * time.Second
	DefaultConcurrency     = 2000
	DefaultTimeout         = 8 * time.Second
	DefaultDNSRefresh      = 60 * time.Second
	DefaultMonitorInterval = time.Second
)

// Methods accepted for the --method flag
var Methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodHead, http.MethodOptions}

// Settings are the raw run parameters collected from a profile and the command line
type Settings struct {
	Target          string
	Method          string
	Duration        time.Duration
	Concurrency     int
	Timeout         time.Duration
	Data            string
	Headers         string // JSON object
	PayloadSize     string
	KeepAlive       bool
	DNSRefresh      time.Duration
	DNSServer       string // host:port, empty means the system resolv.conf
	VerifyTLS       bool
	Proxy           string // SOCKS5 host:port
	RPS             float64
	MonitorInterval time.Duration
}

// DefaultSettings returns settings with every default applied
func DefaultSettings() Settings {
	return Settings{
		Method:          http.MethodGet,
		Duration:        DefaultDuration,
		Concurrency:     DefaultConcurrency,
		Timeout:         DefaultTimeout,
		DNSRefresh:      DefaultDNSRefresh,
		VerifyTLS:       true,
		MonitorInterval: DefaultMonitorInterval,
	}
}

// Validate checks everything except the target URL, which New parses
func (s *Settings) Validate() error {
	if !validMethod(s.Method) {
		return fmt.Errorf("unsupported method %q (allowed: %s)", s.Method, strings.Join(Methods, ", "))
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", s.Concurrency)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", s.Duration)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}
	if s.DNSRefresh < 0 {
		return fmt.Errorf("dns refresh interval must not be negative, got %v", s.DNSRefresh)
	}
	if s.RPS < 0 {
		return fmt.Errorf("rps must not be negative, got %v", s.RPS)
	}
	return nil
}

func validMethod(m string) bool {
	for _, allowed := range Methods {
		if m == allowed {
			return true
		}
	}
	return false
}

// Config is the validated run configuration. It is never mutated after New returns.
type Config struct {
	Target      string
	Scheme      string
	Hostname    string
	Port        int
	RequestPath string // path plus query

	Method          string
	Concurrency     int
	Duration        time.Duration
	Timeout         time.Duration
	VerifyTLS       bool
	DNSRefresh      time.Duration
	KeepAlive       bool
	DNSServer       string
	Proxy           string
	RPS             float64
	MonitorInterval time.Duration

	Payload     []byte
	PayloadNote string
	Headers     http.Header
}

// New validates the settings, parses the target and synthesizes the payload and headers
func New(s Settings) (*Config, error) {
	s.Method = strings.ToUpper(s.Method)
	if err := s.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(s.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q must include scheme (http/https) and hostname", ErrInvalidTarget, s.Target)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: bad port %q", ErrInvalidTarget, p)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	cfg := &Config{
		Target:          s.Target,
		Scheme:          scheme,
		Hostname:        u.Hostname(),
		Port:            port,
		RequestPath:     path,
		Method:          s.Method,
		Concurrency:     s.Concurrency,
		Duration:        s.Duration,
		Timeout:         s.Timeout,
		VerifyTLS:       s.VerifyTLS,
		DNSRefresh:      s.DNSRefresh,
		KeepAlive:       s.KeepAlive,
		DNSServer:       s.DNSServer,
		Proxy:           s.Proxy,
		RPS:             s.RPS,
		MonitorInterval: s.MonitorInterval,
		PayloadNote:     "N/A",
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}

	generated := 0
	switch {
	case s.PayloadSize != "":
		n, err := payload.ParseSize(s.PayloadSize)
		if err != nil || n <= 0 {
			logrus.WithField("payload_size", s.PayloadSize).Warn("Payload size is zero or invalid, no payload generated")
			break
		}
		generated = n
		cfg.Payload = payload.Build(n)
		cfg.PayloadNote = payload.Describe(n)
		if s.Data != "" {
			logrus.Warn("--data ignored because --payload-size is set")
		}
	case s.Data != "":
		cfg.Payload = []byte(s.Data)
		cfg.PayloadNote = fmt.Sprintf("%d Bytes (from --data)", len(cfg.Payload))
	}

	if len(cfg.Payload) > 0 && !payload.CarriesBody(cfg.Method) {
		logrus.WithField("method", cfg.Method).Warn("Payload configured but the method carries no body, it will not be sent")
	}

	data := ""
	if generated == 0 {
		data = s.Data
	}
	cfg.Headers = payload.BuildHeaders(payload.HeaderOptions{
		Method:      cfg.Method,
		Scheme:      cfg.Scheme,
		Host:        cfg.Hostname,
		KeepAlive:   cfg.KeepAlive,
		PayloadSize: generated,
		Data:        data,
		CustomJSON:  s.Headers,
	}, nil)

	return cfg, nil
}

// HostPort returns host:port of the configured target
func (c *Config) HostPort() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// Body returns the payload to attach to each request, nil for bodyless methods
func (c *Config) Body() []byte {
	if !payload.CarriesBody(c.Method) {
		return nil
	}
	return c.Payload
}
