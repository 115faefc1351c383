// Package transport builds the outbound HTTP transport used to reach the
// storefront backend.
//
// Go's TLS client hello is easy to tell apart from a browser's, and CDNs in
// front of storefronts use JA3 fingerprints to block non-browser clients.
// The fingerprinted transport dials TLS through uTLS with a browser hello,
// lets ALPN pick h2 or http/1.1, and frames h2 with golang.org/x/net/http2.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

// Fingerprint selects the TLS client hello presented upstream.
type Fingerprint string

const (
	FingerprintChrome   Fingerprint = "chrome"
	FingerprintStandard Fingerprint = "standard"
)

var hellos = map[Fingerprint]utls.ClientHelloID{
	FingerprintChrome: utls.HelloChrome_Auto,
}

// New returns the storefront transport wrapped with OpenTelemetry client
// instrumentation, so backend calls join the trace of the wallet request
// that caused them. Unknown fingerprints use Chrome's.
func New(fp Fingerprint, timeout time.Duration) http.RoundTripper {
	var base http.RoundTripper
	if fp == FingerprintStandard {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout: timeout,
			ForceAttemptHTTP2:   true,
		}
	} else {
		base = newFingerprinted(hellos[FingerprintChrome], timeout)
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "storefront " + r.Method + " " + r.URL.Path
		}),
	)
}

// NewChromeTransport returns an uninstrumented transport presenting Chrome's
// TLS fingerprint.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	return newFingerprinted(utls.HelloChrome_Auto, timeout)
}

// fingerprinted routes https requests over h2 until a host proves it only
// speaks http/1.1; plain http goes straight to the h1 transport.
type fingerprinted struct {
	h2 *http2.Transport
	h1 *http.Transport

	// h1Hosts holds hosts whose h2 attempt failed.
	h1Hosts sync.Map
}

func newFingerprinted(hello utls.ClientHelloID, timeout time.Duration) *fingerprinted {
	dialer := &net.Dialer{Timeout: timeout}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialTLS(ctx, dialer, hello, network, addr)
	}

	return &fingerprinted{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dial(ctx, network, addr)
			},
		},
		h1: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			DialTLSContext:      dial,
			TLSHandshakeTimeout: timeout,
		},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *fingerprinted) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	if _, ok := t.h1Hosts.Load(req.URL.Host); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Context().Err() != nil {
		return nil, err
	}
	// Only retry when the body can be replayed.
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}

	t.h1Hosts.Store(req.URL.Host, struct{}{})
	return t.h1.RoundTrip(req)
}

// dialTLS opens a TCP connection and completes a uTLS handshake with the
// given client hello. SNI comes from addr.
func dialTLS(ctx context.Context, dialer *net.Dialer, hello utls.ClientHelloID, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, hello)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return tlsConn, nil
}
