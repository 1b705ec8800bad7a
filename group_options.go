package marquee

import (
	"errors"
	"fmt"
	"time"
)

// groupConfig holds configuration during source group construction.
type groupConfig struct {
	urlTemplate  string
	vars         map[string]string
	members      []Member
	headers      map[string]string
	query        map[string]string
	apiKey       string
	apiKeyParam  string
	apiKeyHeader string
	cadence      time.Duration
	timeout      time.Duration
	policy       FailurePolicy
}

// GroupOption configures source group generation.
// GroupOption implements the functional options pattern for [NewSourceGroup].
type GroupOption func(*groupConfig) error

// WithURLTemplate sets the base URL template shared by every member.
// The template uses Go's text/template syntax with [WithVars] keys as variables.
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GroupOption {
	return func(cfg *groupConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithVars sets the template variables. Later calls add to earlier ones.
//
// Returns an error if any value is empty.
func WithVars(vars map[string]string) GroupOption {
	return func(cfg *groupConfig) error {
		for k, v := range vars {
			if v == "" {
				return fmt.Errorf("variable '%s' is empty", k)
			}
			cfg.vars[k] = v
		}
		return nil
	}
}

// WithMembers appends members to the group. Member names must be unique.
func WithMembers(members ...Member) GroupOption {
	return func(cfg *groupConfig) error {
		for _, m := range members {
			if m.Name == "" {
				return errors.New("member name cannot be empty")
			}
			for _, existing := range cfg.members {
				if existing.Name == m.Name {
					return fmt.Errorf("duplicate member name: %q", m.Name)
				}
			}
			cfg.members = append(cfg.members, m)
		}
		return nil
	}
}

// WithGroupHeaders adds HTTP headers to every member.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGroupHeaders(keyValues ...string) GroupOption {
	return func(cfg *groupConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGroupHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGroupQuery adds query parameters to every member.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGroupQuery(keyValues ...string) GroupOption {
	return func(cfg *groupConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGroupQuery requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.query[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGroupAPIKey sends key as query parameter param from every member.
// Validation happens when the members are built.
func WithGroupAPIKey(param, key string) GroupOption {
	return func(cfg *groupConfig) error {
		cfg.apiKeyParam = param
		cfg.apiKey = key
		return nil
	}
}

// WithGroupAPIKeyHeader sends key in header from every member.
// Validation happens when the members are built.
func WithGroupAPIKeyHeader(header, key string) GroupOption {
	return func(cfg *groupConfig) error {
		cfg.apiKeyHeader = header
		cfg.apiKey = key
		return nil
	}
}

// WithGroupCadence sets one cadence for every member.
//
// A zero duration means use [DefaultCadence].
func WithGroupCadence(d time.Duration) GroupOption {
	return func(cfg *groupConfig) error {
		if d < 0 {
			return errors.New("cadence cannot be negative")
		}
		cfg.cadence = d
		return nil
	}
}

// WithGroupTimeout sets the HTTP request timeout for every member.
//
// A zero duration means use [DefaultTimeout].
func WithGroupTimeout(d time.Duration) GroupOption {
	return func(cfg *groupConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGroupFailurePolicy overrides the board-wide failure policy for every
// member.
func WithGroupFailurePolicy(p FailurePolicy) GroupOption {
	return func(cfg *groupConfig) error {
		if !p.Valid() {
			return fmt.Errorf("unknown failure policy %q", p)
		}
		cfg.policy = p
		return nil
	}
}
