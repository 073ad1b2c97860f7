// Package httpx holds the shared outbound HTTP plumbing: one client for all
// providers, browser-like request headers, bounded response reading, and the
// classification of transport failures into the error-kind taxonomy.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// BrowserUserAgent is sent on every outbound request. Several mirrors
	// reject obvious bot agents.
	BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2_1) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// AcceptHTML is the Accept header for page fetches.
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// AcceptFeed is the Accept header for feed fetches.
	AcceptFeed = "application/rss+xml,application/xml,*/*"

	// AcceptJSON is the Accept header for API fetches.
	AcceptJSON = "application/json,text/plain,*/*"

	// maxBodyBytes caps response bodies to avoid memory exhaustion from a
	// misbehaving mirror.
	maxBodyBytes = 8 << 20
)

// NewClient creates the shared HTTP client. Redirects are followed with the
// default policy; every request inherits the given timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// Get performs a GET with the shared browser headers and returns the body.
// Non-2xx responses are returned as *StatusError.
func Get(ctx context.Context, client *http.Client, url, accept string, extraHeaders map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("Get: build request: %w", err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("Get: read body: %w", err)
	}
	return body, nil
}
