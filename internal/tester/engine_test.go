package tester

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"httpstress/internal/config"
	"httpstress/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, target string, mutate func(*config.Settings)) (*Engine, *Aggregator, *bytes.Buffer) {
	t.Helper()
	return newResolvingTestEngine(t, target, nil, mutate)
}

// newResolvingTestEngine resolves the target hostname to addrs, or to itself when addrs is empty
func newResolvingTestEngine(t *testing.T, target string, addrs []string, mutate func(*config.Settings)) (*Engine, *Aggregator, *bytes.Buffer) {
	t.Helper()

	s := config.DefaultSettings()
	s.Target = target
	s.Concurrency = 1
	s.Duration = 300 * time.Millisecond
	s.Timeout = 2 * time.Second
	s.MonitorInterval = 50 * time.Millisecond
	if mutate != nil {
		mutate(&s)
	}

	cfg, err := config.New(s)
	require.NoError(t, err)

	if len(addrs) == 0 {
		addrs = []string{cfg.Hostname}
	}

	stats := NewAggregator()
	res := resolver.New(resolver.Target{
		Scheme:   cfg.Scheme,
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		Path:     cfg.RequestPath,
	}, staticLookuper{addrs: addrs}, stats, cfg.DNSRefresh)
	require.NoError(t, res.Init(context.Background()))

	var out bytes.Buffer
	eng, err := NewEngine(cfg, res, stats, &out, false)
	require.NoError(t, err)
	return eng, stats, &out
}

func TestEngineSuccessfulRun(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	eng, _, out := newTestEngine(t, srv.URL+"/health?x=1", nil)
	assert.Equal(t, Idle, eng.State())

	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Reported, eng.State())
	assert.True(t, eng.client.Closed())

	require.Positive(t, report.Total)
	assert.Equal(t, report.Total, report.Success)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []StatusCount{{200, report.Total}}, report.StatusCodes)
	assert.Empty(t, report.Errors)
	assert.Equal(t, int(report.Total), report.Latency.Samples)
	assert.GreaterOrEqual(t, hits.Load(), report.Total)
	assert.False(t, report.Partial)
	assert.InDelta(t, 0.3, report.Elapsed.Seconds(), 0.25)

	assert.Contains(t, out.String(), "Live Monitoring")

	_, err = eng.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestEngineSendsConfiguredRequest(t *testing.T) {
	type seen struct {
		method, path, host, contentType, custom string
		bodyLen                                 int
	}
	got := make(chan seen, 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		select {
		case got <- seen{r.Method, r.URL.RequestURI(), r.Host, r.Header.Get("Content-Type"), r.Header.Get("X-Test"), len(b)}:
		default:
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	eng, _, _ := newTestEngine(t, srv.URL+"/upload?id=7", func(s *config.Settings) {
		s.Method = "POST"
		s.PayloadSize = "1KB"
		s.Headers = `{"X-Test": "yes"}`
		s.Duration = 100 * time.Millisecond
	})

	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, report.Total)
	assert.Equal(t, report.Total, report.Success)

	first := <-got
	assert.Equal(t, "POST", first.method)
	assert.Equal(t, "/upload?id=7", first.path)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), first.host)
	assert.Equal(t, "application/octet-stream", first.contentType)
	assert.Equal(t, "yes", first.custom)
	assert.Equal(t, 1024, first.bodyLen)
}

func TestEngineDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	eng, _, _ := newTestEngine(t, srv.URL, func(s *config.Settings) {
		s.Duration = 100 * time.Millisecond
	})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, report.Total)
	assert.Equal(t, []StatusCount{{http.StatusFound, report.Total}}, report.StatusCodes)
	assert.Equal(t, report.Total, report.Success)
}

func TestEngineConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	for _, path := range []string{"/", "/api/proxy-status", "/socks/tls/eof"} {
		t.Run(path, func(t *testing.T) {
			eng, _, _ := newTestEngine(t, "http://"+addr+path, func(s *config.Settings) {
				s.Concurrency = 2
				s.Duration = 150 * time.Millisecond
			})

			report, err := eng.Run(context.Background())
			require.NoError(t, err)
			require.Positive(t, report.Total)
			assert.Zero(t, report.Success)
			assert.Equal(t, report.Total, report.Failed)
			assert.Empty(t, report.StatusCodes)
			require.Len(t, report.Errors, 1)
			assert.Equal(t, KindConnectionRefused, report.Errors[0].Kind)
			assert.Equal(t, report.Total, report.Errors[0].Count)
		})
	}
}

func TestEngineHTTPSKeepsHostnameOnResolvedIP(t *testing.T) {
	for _, h2 := range []bool{false, true} {
		name := "http1"
		if h2 {
			name = "http2"
		}
		t.Run(name, func(t *testing.T) {
			type seen struct {
				host, serverName string
				protoMajor       int
			}
			got := make(chan seen, 1024)
			srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case got <- seen{r.Host, r.TLS.ServerName, r.ProtoMajor}:
				default:
				}
				_, _ = io.WriteString(w, "ok")
			}))
			srv.EnableHTTP2 = h2
			srv.StartTLS()
			defer srv.Close()

			_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
			require.NoError(t, err)
			target := "https://example.com:" + port + "/"

			eng, _, _ := newResolvingTestEngine(t, target, []string{"127.0.0.1"}, func(s *config.Settings) {
				s.VerifyTLS = false
				s.KeepAlive = true
				s.Duration = 200 * time.Millisecond
			})

			report, err := eng.Run(context.Background())
			require.NoError(t, err)
			require.Positive(t, report.Total)
			assert.Equal(t, report.Total, report.Success)
			assert.Equal(t, []StatusCount{{http.StatusOK, report.Total}}, report.StatusCodes)
			assert.Empty(t, report.Errors)

			first := <-got
			assert.Equal(t, "example.com:"+port, first.host)
			assert.Equal(t, "example.com", first.serverName)
			wantProto := 1
			if h2 {
				wantProto = 2
			}
			assert.Equal(t, wantProto, first.protoMajor)
		})
	}
}

// panicWriter breaks the live monitor on its first write
type panicWriter struct{}

func (panicWriter) Write([]byte) (int, error) { panic("monitor output broken") }

func TestEngineSurvivesMonitorPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	eng, stats, _ := newTestEngine(t, srv.URL, func(s *config.Settings) {
		s.Duration = 150 * time.Millisecond
	})
	eng.monitor = NewMonitor(stats, panicWriter{}, eng.cfg.MonitorInterval, false)

	report, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Reported, eng.State())
	require.Positive(t, report.Total)
	assert.Equal(t, report.Total, report.Success)
}

func TestEngineInterruptDrainsWithoutRecordingCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	eng, _, _ := newTestEngine(t, srv.URL, func(s *config.Settings) {
		s.Concurrency = 2
		s.Duration = 30 * time.Second
		s.Timeout = 10 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	report, err := eng.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	assert.Equal(t, Reported, eng.State())
	assert.True(t, eng.client.Closed())
	assert.Zero(t, report.Total)
	for _, e := range report.Errors {
		assert.NotEqual(t, KindClientClosed, e.Kind)
	}
}

func TestEnginePartialReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	eng, _, _ := newTestEngine(t, srv.URL, func(s *config.Settings) {
		s.Duration = 400 * time.Millisecond
	})

	done := make(chan *Report, 1)
	go func() {
		r, _ := eng.Run(context.Background())
		done <- r
	}()

	time.Sleep(150 * time.Millisecond)
	partial := eng.PartialReport()
	assert.True(t, partial.Partial)

	final := <-done
	require.NotNil(t, final)
	assert.False(t, final.Partial)
	assert.GreaterOrEqual(t, final.Total, partial.Total)
	assert.Equal(t, final.Total, final.Failed)
	assert.False(t, eng.PartialReport().Partial)
}

func TestClientRejectsRequestsAfterClose(t *testing.T) {
	c, err := NewHTTPClient(ClientOptions{Method: "GET", Hostname: "127.0.0.1", Timeout: time.Second, MaxConns: 1})
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.True(t, c.Closed())

	out, err := c.Do(context.Background(), resolver.Endpoint{Scheme: "http", Host: "127.0.0.1", Port: 1, Path: "/"})
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Equal(t, KindClientClosed, out.ErrorKind)
}

func TestHostHeader(t *testing.T) {
	assert.Equal(t, "example.com", hostHeader("http", "example.com", 80))
	assert.Equal(t, "example.com", hostHeader("https", "example.com", 443))
	assert.Equal(t, "example.com:8080", hostHeader("http", "example.com", 8080))
	assert.Equal(t, "[::1]:8443", hostHeader("https", "::1", 8443))
}
