package marquee

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jpalmerr/marquee/internal/poller"
)

const (
	// DefaultCadence is the time between fetches for a source that sets none.
	DefaultCadence = poller.DefaultCadence

	// DefaultTimeout is the per-request timeout for a source that sets none.
	DefaultTimeout = poller.DefaultTimeout

	minCadence = time.Second
	maxCadence = 24 * time.Hour
)

// Source is one external JSON endpoint polled into its own snapshot slot.
//
// Source is immutable after creation via [NewSource]. All fields are private
// with getter methods that return copies of mutable data (maps). The API key,
// if any, is never returned by a getter and never logged.
//
// Sources are configured using [SourceOption] functions such as [WithPath],
// [WithQuery], [WithAPIKey], [WithHeaders], [WithCadence] and [WithTimeout].
type Source struct {
	name         string
	baseURL      string
	path         string
	query        map[string]string
	headers      map[string]string
	apiKey       string
	apiKeyParam  string
	apiKeyHeader string
	cadence      time.Duration
	timeout      time.Duration
	policy       FailurePolicy
}

// Name returns the source id, which is also its snapshot slot.
func (s Source) Name() string {
	return s.name
}

// BaseURL returns the URL the path suffix is appended to.
func (s Source) BaseURL() string {
	return s.baseURL
}

// Path returns the path suffix appended to the base URL, or "".
func (s Source) Path() string {
	return s.path
}

// Query returns a copy of the query parameters sent with every request.
// The API key parameter is not included.
func (s Source) Query() map[string]string {
	return copyMap(s.query)
}

// Headers returns a copy of the custom HTTP headers sent with every request.
// The API key header is not included.
func (s Source) Headers() map[string]string {
	return copyMap(s.headers)
}

// Cadence returns the time between fetches.
// Returns 0 if unset, meaning [DefaultCadence] applies.
func (s Source) Cadence() time.Duration {
	return s.cadence
}

// Timeout returns the per-request timeout. Defaults to [DefaultTimeout].
func (s Source) Timeout() time.Duration {
	return s.timeout
}

// FailurePolicy returns the source's policy override, or "" to inherit
// the board-wide policy set with [WithFailurePolicy].
func (s Source) FailurePolicy() FailurePolicy {
	return s.policy
}

// HasAPIKey reports whether a credential is attached to the source.
func (s Source) HasAPIKey() bool {
	return s.apiKey != ""
}

// URL returns the request URL without credentials.
func (s Source) URL() string {
	return s.buildURL(false)
}

// LogValue implements [slog.LogValuer] so a Source never logs its key.
func (s Source) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", s.name),
		slog.String("url", s.URL()),
	)
}

// requestURL returns the URL actually fetched, credentials included.
func (s Source) requestURL() string {
	return s.buildURL(true)
}

func (s Source) buildURL(withKey bool) string {
	u, err := url.Parse(s.baseURL + s.path)
	if err != nil {
		// validated in NewSource
		return s.baseURL + s.path
	}
	q := u.Query()
	for k, v := range s.query {
		q.Set(k, v)
	}
	if withKey && s.apiKeyParam != "" {
		q.Set(s.apiKeyParam, s.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s Source) requestHeaders() map[string]string {
	h := copyMap(s.headers)
	if s.apiKeyHeader != "" {
		if h == nil {
			h = make(map[string]string, 1)
		}
		h[s.apiKeyHeader] = s.apiKey
	}
	return h
}

func (s Source) pollerInfo() poller.SourceInfo {
	return poller.SourceInfo{
		Name:    s.name,
		URL:     s.requestURL(),
		Headers: s.requestHeaders(),
		Timeout: s.timeout,
		Cadence: s.cadence,
		Policy:  s.policy,
	}
}

// NewSource creates a [Source] with the given name, base URL, and options.
//
// The name identifies the snapshot slot ("weather", "bus", ...) and must be
// unique within a board. baseURL must be absolute with an http or https
// scheme; options such as [WithPath] and [WithQuery] extend it.
//
// Returns an error if the name is empty, the URL is invalid, or any option
// fails validation.
//
// Example:
//
//	bus, err := marquee.NewSource("bus", "https://www.ctabustracker.com/bustime/api/v2/getpredictions",
//	    marquee.WithAPIKey("key", os.Getenv("CTA_BUS_KEY")),
//	    marquee.WithQuery("format", "json", "stpid", "1234"),
//	    marquee.WithCadence(time.Minute),
//	)
func NewSource(name, baseURL string, opts ...SourceOption) (Source, error) {
	if strings.TrimSpace(name) == "" {
		return Source{}, errors.New("source name cannot be empty")
	}

	if err := validateBaseURL(baseURL); err != nil {
		return Source{}, err
	}

	cfg := &sourceConfig{
		query:   make(map[string]string),
		headers: make(map[string]string),
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Source{}, fmt.Errorf("source %q: %w", name, err)
		}
	}

	if _, err := url.Parse(baseURL + cfg.path); err != nil {
		return Source{}, fmt.Errorf("source %q: invalid path: %w", name, err)
	}

	return Source{
		name:         name,
		baseURL:      baseURL,
		path:         cfg.path,
		query:        cfg.query,
		headers:      cfg.headers,
		apiKey:       cfg.apiKey,
		apiKeyParam:  cfg.apiKeyParam,
		apiKeyHeader: cfg.apiKeyHeader,
		cadence:      cfg.cadence,
		timeout:      cfg.timeout,
		policy:       cfg.policy,
	}, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid URL: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must have a scheme (http:// or https://)")
	}
	if u.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
