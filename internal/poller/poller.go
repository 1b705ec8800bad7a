package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/marquee/internal/store"
	"github.com/zeebo/xxh3"
)

// DefaultCadence is the interval between fetches when a source sets none.
const DefaultCadence = 120 * time.Second

// FailurePolicy decides what a poller does after a failed fetch.
type FailurePolicy string

const (
	// PolicyRetry keeps the previous snapshot and retries after the cadence.
	PolicyRetry FailurePolicy = "retry"

	// PolicyStop keeps the previous snapshot and exits the poller for good.
	PolicyStop FailurePolicy = "stop"
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	return p == PolicyRetry || p == PolicyStop
}

// State is the lifecycle state of a [Poller].
type State string

const (
	// StatePending: waiting out the initial stagger delay.
	StatePending State = "pending"
	// StateRunning: fetching on cadence.
	StateRunning State = "running"
	// StateStopped: exited, either by policy or by shutdown. Never restarted.
	StateStopped State = "stopped"
)

// SourceInfo contains the configuration needed to poll a single source.
//
// This is the poller-internal representation of a source, decoupled from
// marquee.Source to avoid circular dependencies.
type SourceInfo struct {
	// Name is the store slot this poller writes.
	Name string

	// URL is the fully resolved request URL, credentials included.
	URL string

	// Headers are sent with every request.
	Headers map[string]string

	// Timeout is the per-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// Cadence is the sleep between fetches. Zero means DefaultCadence.
	Cadence time.Duration

	// Policy overrides the supervisor's failure policy when set.
	Policy FailurePolicy
}

// Attempt is the outcome of one fetch by one poller.
type Attempt struct {
	Source string

	// Number counts attempts for this source, starting at 1.
	Number uint64

	StatusCode int
	Latency    time.Duration
	At         time.Time

	// Err is nil when the snapshot was replaced.
	Err error

	// Changed is true when a successful fetch produced a body different
	// from the snapshot it replaced (or the slot was absent).
	Changed bool

	// Stopped is true when this attempt made the poller exit.
	Stopped bool
}

// PollerStatus is a copy of a poller's bookkeeping.
type PollerStatus struct {
	Source              string        `json:"source"`
	State               State         `json:"state"`
	Policy              FailurePolicy `json:"policy"`
	Cadence             time.Duration `json:"cadence"`
	InitialDelay        time.Duration `json:"initial_delay"`
	Attempts            uint64        `json:"attempts"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastAttemptAt       time.Time     `json:"last_attempt_at"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastError           string        `json:"last_error,omitempty"`
	LastErrorKind       string        `json:"last_error_kind,omitempty"`
}

// Poller fetches one source on its cadence and writes successes to the store.
//
// A Poller issues fetches serially, so results for its source are applied in
// the order they were requested. It is the only writer of its store slot.
type Poller struct {
	info   SourceInfo
	delay  time.Duration
	client *Client
	store  store.Store
	logger *slog.Logger
	report func(Attempt)

	mu     sync.Mutex
	status PollerStatus
}

// NewPoller creates a [Poller] for info that starts after delay.
// Zero Cadence and empty Policy are replaced with their defaults.
func NewPoller(info SourceInfo, delay time.Duration, client *Client, st store.Store, logger *slog.Logger) *Poller {
	if info.Cadence <= 0 {
		info.Cadence = DefaultCadence
	}
	if !info.Policy.Valid() {
		info.Policy = PolicyRetry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		info:   info,
		delay:  delay,
		client: client,
		store:  st,
		logger: logger.With("source", info.Name),
		status: PollerStatus{
			Source:       info.Name,
			State:        StatePending,
			Policy:       info.Policy,
			Cadence:      info.Cadence,
			InitialDelay: delay,
		},
	}
}

// Status returns a copy of the poller's current bookkeeping.
func (p *Poller) Status() PollerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run polls until ctx is cancelled or, under PolicyStop, until a fetch fails.
//
// Run sleeps the initial delay first, then alternates fetch and cadence
// sleep. A fetch interrupted by cancellation is not counted as a failure.
func (p *Poller) Run(ctx context.Context) {
	defer p.setState(StateStopped)

	if !sleepContext(ctx, p.delay) {
		return
	}
	p.setState(StateRunning)
	p.logger.Debug("poller started", "cadence", p.info.Cadence.String(), "policy", string(p.info.Policy))

	for {
		if ok := p.cycle(ctx); !ok && p.info.Policy == PolicyStop {
			p.logger.Error("poller stopped after failed fetch", "policy", string(p.info.Policy))
			return
		}
		if !sleepContext(ctx, p.info.Cadence) {
			return
		}
	}
}

// cycle performs one fetch and applies its result.
// Returns false when the fetch failed.
func (p *Poller) cycle(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("poll panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			p.fail(Response{Error: &TransportError{
				Op:  "poll",
				Err: fmt.Errorf("panic (correlation_id: %s)", correlationID),
			}})
			ok = false
		}
	}()

	resp := p.client.Fetch(ctx, p.info.URL, p.info.Headers, p.info.Timeout)
	if ctx.Err() != nil {
		// shutting down; the loop exits on its next sleep
		return true
	}
	if resp.Error != nil {
		p.fail(resp)
		return false
	}

	snap := store.Snapshot{
		Document:  resp.Document,
		Raw:       resp.Body,
		Checksum:  xxh3.Hash(resp.Body),
		FetchedAt: time.Now(),
	}
	prev, had := p.store.Get(p.info.Name)
	changed := !had || prev.Checksum != snap.Checksum

	if err := p.store.Put(p.info.Name, snap); err != nil {
		p.fail(Response{StatusCode: resp.StatusCode, Latency: resp.Latency, Error: err})
		return false
	}

	p.succeed(resp, snap.FetchedAt, changed)
	return true
}

func (p *Poller) succeed(resp Response, at time.Time, changed bool) {
	p.mu.Lock()
	p.status.Attempts++
	p.status.ConsecutiveFailures = 0
	p.status.LastAttemptAt = at
	p.status.LastSuccessAt = at
	attempt := Attempt{
		Source:     p.info.Name,
		Number:     p.status.Attempts,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		At:         at,
		Changed:    changed,
	}
	p.mu.Unlock()

	p.logger.Debug("fetch succeeded",
		"attempt", attempt.Number,
		"latency_ms", resp.Latency.Milliseconds(),
		"bytes", len(resp.Body),
		"changed", changed,
	)
	p.emit(attempt)
}

func (p *Poller) fail(resp Response) {
	now := time.Now()
	stopping := p.info.Policy == PolicyStop

	p.mu.Lock()
	p.status.Attempts++
	p.status.Failures++
	p.status.ConsecutiveFailures++
	p.status.LastAttemptAt = now
	p.status.LastError = resp.Error.Error()
	p.status.LastErrorKind = ErrorKind(resp.Error)
	attempt := Attempt{
		Source:     p.info.Name,
		Number:     p.status.Attempts,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		At:         now,
		Err:        resp.Error,
		Stopped:    stopping,
	}
	consecutive := p.status.ConsecutiveFailures
	p.mu.Unlock()

	p.logger.Warn("fetch failed",
		"attempt", attempt.Number,
		"kind", ErrorKind(resp.Error),
		"status_code", resp.StatusCode,
		"consecutive_failures", consecutive,
		"error", resp.Error.Error(),
	)
	p.emit(attempt)
}

func (p *Poller) emit(a Attempt) {
	if p.report != nil {
		p.report(a)
	}
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.status.State = s
	p.mu.Unlock()
}

// sleepContext waits for d or until ctx is done.
// Returns false if ctx finished first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
