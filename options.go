package marquee

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	sources   []Source
	stagger   time.Duration
	policy    FailurePolicy
	rateLimit float64
	burst     int
	port      int
	mqtt      *MQTTConfig
	logger    *slog.Logger
	callbacks []func(Update)
}

// MQTTConfig enables publishing every new snapshot to an MQTT broker as a
// retained message on <TopicPrefix>/<source>.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string

	// TopicPrefix defaults to "marquee".
	TopicPrefix string

	// ClientID defaults to "marquee".
	ClientID string

	// QoS is 0, 1 or 2.
	QoS byte
}

// Option is a function that configures a [Board] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithSource registers a single [Source].
//
// Can be called multiple times. Registration order determines each poller's
// start delay: the i-th source starts after i times the stagger.
func WithSource(s Source) Option {
	return func(cfg *boardConfig) error {
		cfg.sources = append(cfg.sources, s)
		return nil
	}
}

// WithSources registers several sources in order.
// Equivalent to calling [WithSource] for each.
//
// Example:
//
//	weather, _ := marquee.NewSourceGroup(...)
//	b, err := marquee.New(
//	    marquee.WithSources(weather...),
//	    marquee.WithSource(bus),
//	)
func WithSources(sources ...Source) Option {
	return func(cfg *boardConfig) error {
		cfg.sources = append(cfg.sources, sources...)
		return nil
	}
}

// WithStagger sets the start-delay increment between successive sources.
//
// Staggering spreads the first fetches out so a board with many sources does
// not hit every API at the same instant. Defaults to 5 seconds. Zero starts
// every source immediately.
//
// Returns an error if the duration is negative.
func WithStagger(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d < 0 {
			return errors.New("stagger cannot be negative")
		}
		cfg.stagger = d
		return nil
	}
}

// WithFailurePolicy sets the policy for every source that does not set its
// own with [WithSourceFailurePolicy]. Defaults to [PolicyRetry].
func WithFailurePolicy(p FailurePolicy) Option {
	return func(cfg *boardConfig) error {
		if !p.Valid() {
			return fmt.Errorf("unknown failure policy %q", p)
		}
		cfg.policy = p
		return nil
	}
}

// WithRateLimit caps requests per host at rps with the given burst.
//
// Sources sharing a host, such as the three weather.gov members of a
// [NewSourceGroup], share one bucket. Disabled by default.
//
// Returns an error if rps is not positive or burst is less than 1.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *boardConfig) error {
		if rps <= 0 {
			return errors.New("rate limit must be positive")
		}
		if burst < 1 {
			return errors.New("rate limit burst must be at least 1")
		}
		cfg.rateLimit = rps
		cfg.burst = burst
		return nil
	}
}

// WithPort enables the inspection API on the given port.
//
// The API serves /api/sources, /api/snapshots/{source} and /api/sse.
// Disabled unless this option is given.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMQTT enables publishing snapshots to an MQTT broker.
//
// Returns an error if the broker is empty or QoS is greater than 2.
func WithMQTT(m MQTTConfig) Option {
	return func(cfg *boardConfig) error {
		if m.Broker == "" {
			return errors.New("mqtt broker required")
		}
		if m.QoS > 2 {
			return errors.New("mqtt qos must be 0, 1 or 2")
		}
		cfg.mqtt = &m
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithUpdateCallback registers a function to be called after every fetch
// attempt, successful or not.
//
// On success the store has already been updated when the callback runs, so
// [Handle.Get] returns the new snapshot.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They are invoked synchronously
// from a single goroutine; a slow callback delays the ones after it and, if
// it falls far enough behind, later updates are dropped. Pollers are never
// blocked. Panics within callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(Update)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
