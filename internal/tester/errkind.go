package tester

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Error kinds recorded for failed requests
const (
	KindTimeout            = "Timeout"
	KindConnectionRefused  = "ConnectionRefused"
	KindConnectionReset    = "ConnectionReset"
	KindNetworkUnreachable = "NetworkUnreachable"
	KindDNS                = "DNSError"
	KindTLS                = "TLSError"
	KindProxy              = "ProxyError"
	KindEOF                = "EOF"
	KindBodyRead           = "BodyReadError"
	KindClientClosed       = "ClientClosed"
	KindPanic              = "Panic"
	KindOther              = "Other"
)

// ClassifyError maps a request error onto a short error kind label
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrClientClosed) {
		return KindClientClosed
	}
	// The request URL must not leak into the message fallbacks below
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	msg := strings.ToLower(err.Error())

	// Proxy dial errors wrap the socket error, so they go before the socket checks
	if isProxyError(err) {
		return KindProxy
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindConnectionReset
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return KindNetworkUnreachable
	}
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr) || errors.As(err, &recordErr) {
		return KindTLS
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindEOF
	}

	// Fall back to the message for wrapped errors that lose their type
	switch {
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "lookup"):
		return KindDNS
	case strings.Contains(msg, "connection refused"):
		return KindConnectionRefused
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"):
		return KindConnectionReset
	case strings.Contains(msg, "network is unreachable"), strings.Contains(msg, "no route to host"):
		return KindNetworkUnreachable
	case strings.Contains(msg, "tls"), strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return KindTLS
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "eof"):
		return KindEOF
	}
	return KindOther
}

// isProxyError matches the dial errors of the SOCKS5 dialer ("socks connect")
// and of an HTTP CONNECT proxy ("proxyconnect")
func isProxyError(err error) bool {
	var opErr *net.OpError
	for errors.As(err, &opErr) {
		if strings.HasPrefix(opErr.Op, "socks") || opErr.Op == "proxyconnect" {
			return true
		}
		if opErr.Err == nil {
			return false
		}
		err = opErr.Err
	}
	return false
}
