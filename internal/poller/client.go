package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout applies when a source does not set its own timeout.
const DefaultTimeout = 10 * time.Second

// connection pooling limits; every source keeps a connection to its host warm
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response holds the result of a single fetch made by [Client].
//
// Exactly one of Document and Error is meaningful: Error is nil only when
// the endpoint answered 200 with a body that decoded as JSON.
type Response struct {
	// Document is the decoded JSON body.
	Document any

	// Body contains the raw response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is a *TransportError, *StatusError or *DecodeError.
	Error error
}

// Client is the fetcher: one GET, one JSON decode, no retries.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so each source keeps its own timeout. When a host rate limit is configured,
// requests to the same host share one token bucket.
type Client struct {
	httpClient *http.Client

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHostRateLimit caps requests per host at rps with the given burst.
// A non-positive rps disables limiting.
func WithHostRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limit = rate.Limit(rps)
		c.burst = burst
	}
}

// NewClient creates a new fetch [Client].
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET against rawURL and decodes the body as JSON.
//
// A non-positive timeout means [DefaultTimeout]. Fetch always returns a
// Response; the failure, if any, is in Response.Error.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) Response {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	fail := func(code int, err error) Response {
		return Response{StatusCode: code, Latency: time.Since(start), Error: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(0, &TransportError{Op: "build request", Err: err})
	}

	if limiter := c.limiterFor(req.URL); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fail(0, &TransportError{Op: "rate limit", Err: err})
		}
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, &TransportError{Op: "request", Err: redactURLError(err)})
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fail(resp.StatusCode, &TransportError{Op: "read body", Err: err})
	}

	if resp.StatusCode != http.StatusOK {
		r := fail(resp.StatusCode, &StatusError{Code: resp.StatusCode})
		r.Body = body
		return r
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return fail(resp.StatusCode, &DecodeError{Err: errors.New("empty body")})
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		r := fail(resp.StatusCode, &DecodeError{Err: err})
		r.Body = body
		return r
	}

	return Response{
		Document:   doc,
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// limiterFor returns the shared limiter for u's host, or nil when limiting is off.
func (c *Client) limiterFor(u *url.URL) *rate.Limiter {
	if c.limit == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[u.Host]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[u.Host] = l
	}
	return l
}

// redactURLError drops the query string from a *url.Error so API keys passed
// as query parameters do not end up in logs.
func redactURLError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	u.RawQuery = ""
	return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
