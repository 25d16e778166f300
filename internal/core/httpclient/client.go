// Package httpclient configures the HTTP client used to call the tile backend.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

type Options struct {
	// InsecureSkipVerify disables certificate checks toward the backend.
	// Only meant for backends serving self-signed certificates.
	InsecureSkipVerify bool
	// Timeout bounds a whole request; zero means 30s.
	Timeout time.Duration
	// MaxConnsPerHost caps parallel connections to one backend host; zero
	// means unlimited.
	MaxConnsPerHost int
}

// NewOutbound creates a new outbound http client
func NewOutbound(opts Options) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // opt-in via BACKEND_TLS_INSECURE
		},
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
