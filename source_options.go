package marquee

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// sourceConfig holds mutable state during source construction.
type sourceConfig struct {
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

// SourceOption is a function that configures a [Source] during construction.
//
// Options return an error if validation fails.
type SourceOption func(*sourceConfig) error

// WithPath appends a path suffix to the source's base URL.
//
// Used for APIs that serve related documents below one base, e.g. the
// weather.gov gridpoint, its "/forecast" and its "/forecast/hourly".
// The suffix must be empty or start with "/".
func WithPath(path string) SourceOption {
	return func(cfg *sourceConfig) error {
		if path != "" && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("path %q must start with /", path)
		}
		cfg.path = path
		return nil
	}
}

// WithQuery adds query parameters to every request.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	marquee.WithQuery("format", "json", "stpid", "1234")
func WithQuery(keyValues ...string) SourceOption {
	return func(cfg *sourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithQuery requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			if keyValues[i] == "" {
				return errors.New("query parameter name cannot be empty")
			}
			cfg.query[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithAPIKey sends key as the query parameter param on every request.
//
// The key is kept out of [Source.URL], [Source.Query] and logs.
// Returns an error if param or key is empty, or a header key is already set.
func WithAPIKey(param, key string) SourceOption {
	return func(cfg *sourceConfig) error {
		if param == "" {
			return errors.New("api key parameter name cannot be empty")
		}
		if key == "" {
			return errors.New("api key cannot be empty")
		}
		if cfg.apiKeyHeader != "" {
			return errors.New("api key already set as a header")
		}
		cfg.apiKey = key
		cfg.apiKeyParam = param
		return nil
	}
}

// WithAPIKeyHeader sends key in the HTTP header named header on every request.
//
// Returns an error if header or key is empty, or a query key is already set.
func WithAPIKeyHeader(header, key string) SourceOption {
	return func(cfg *sourceConfig) error {
		if header == "" {
			return errors.New("api key header name cannot be empty")
		}
		if key == "" {
			return errors.New("api key cannot be empty")
		}
		if cfg.apiKeyParam != "" {
			return errors.New("api key already set as a query parameter")
		}
		cfg.apiKey = key
		cfg.apiKeyHeader = header
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every request.
//
// The weather.gov API, for example, rejects requests without a User-Agent.
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	marquee.WithHeaders("User-Agent", "marquee (me@example.com)")
func WithHeaders(keyValues ...string) SourceOption {
	return func(cfg *sourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithCadence sets the time between fetches for this source.
//
// The cadence is measured from the end of one fetch to the start of the
// next, so a slow response never causes overlapping requests. Defaults to
// [DefaultCadence]. Must be between 1 second and 24 hours.
func WithCadence(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d < minCadence {
			return errors.New("cadence must be at least 1 second")
		}
		if d > maxCadence {
			return errors.New("cadence must not exceed 24 hours")
		}
		cfg.cadence = d
		return nil
	}
}

// WithTimeout sets the HTTP request timeout for this source.
//
// A request that does not complete in time is a transport failure.
// Defaults to [DefaultTimeout]. Returns an error if d is not positive.
func WithTimeout(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithSourceFailurePolicy overrides the board-wide failure policy for this
// source only.
func WithSourceFailurePolicy(p FailurePolicy) SourceOption {
	return func(cfg *sourceConfig) error {
		if !p.Valid() {
			return fmt.Errorf("unknown failure policy %q", p)
		}
		cfg.policy = p
		return nil
	}
}
