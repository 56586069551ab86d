// Package transport is the HTTP execution collaborator the core depends
// on (spec: "To transport (required capability)"). The core never talks
// to net/http directly - it asks a Client to execute a RawRequest and
// hands back a RawResponse, so tests can substitute a fake Client with no
// network involved.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bcfsec/paramhunt/internal/headerlist"
)

// RawRequest is a fully materialized, byte-exact HTTP request: method,
// absolute URI including the explicit port, duplicate-tolerant ordered
// headers, and a body.
type RawRequest struct {
	Method  string
	URL     string
	Headers *headerlist.List
	Body    []byte
}

// RawResponse is what the transport hands back: status code,
// duplicate-tolerant headers, the full body, and elapsed wall time.
type RawResponse struct {
	Code    uint16
	Headers *headerlist.List
	Body    []byte
	Elapsed time.Duration
}

// Client executes one HTTP request. Implementations must not retry
// internally - retry-once-with-sleep is the request package's job, so it
// can keep the configured concurrency ceiling across the retry.
type Client interface {
	Do(ctx context.Context, req RawRequest) (RawResponse, error)
}

// Options configures an HTTPClient.
type Options struct {
	// HTTPVersion is "1.1" or "2". Anything else defaults to "1.1".
	HTTPVersion string
	// ProxyURL, if non-nil, is used for all requests.
	ProxyURL *url.URL
	// FollowRedirects, when false, makes the client return the first
	// redirect response instead of chasing Location.
	FollowRedirects bool
	// InsecureSkipVerify disables TLS certificate validation, useful
	// against self-signed lab/CTF targets.
	InsecureSkipVerify bool
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	inner *http.Client
}

// NewHTTPClient builds an HTTPClient from Options.
func NewHTTPClient(opts Options) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyURL(opts.ProxyURL),
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
		ForceAttemptHTTP2: opts.HTTPVersion == "2",
	}
	if opts.ProxyURL == nil {
		transport.Proxy = nil
	}

	client := &http.Client{Transport: transport}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &HTTPClient{inner: client}
}

// Do issues req and converts the result into a RawResponse. Request
// headers are sent in list order with duplicates; response headers keep
// their duplicates, but their order across names follows net/http's map
// iteration, not the wire order.
func (c *HTTPClient) Do(ctx context.Context, req RawRequest) (RawResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return RawResponse{}, err
	}
	for _, p := range req.Headers.Pairs() {
		httpReq.Header.Add(p.Name, p.Value)
	}

	start := time.Now()
	resp, err := c.inner.Do(httpReq)
	if err != nil {
		return RawResponse{}, err
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, err
	}

	headers := headerlist.New()
	for k, values := range resp.Header {
		for _, v := range values {
			headers.Add(k, v)
		}
	}

	return RawResponse{
		Code:    uint16(resp.StatusCode),
		Headers: headers,
		Body:    body,
		Elapsed: elapsed,
	}, nil
}
