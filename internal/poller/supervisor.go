package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/marquee/internal/store"
)

// DefaultStagger is the start-delay increment between successive pollers.
const DefaultStagger = 5 * time.Second

// SupervisorConfig holds the supervisor-wide settings.
type SupervisorConfig struct {
	// Stagger is added to each successive poller's start delay.
	// Zero starts every poller immediately.
	Stagger time.Duration

	// Policy applies to sources that do not set their own.
	// Empty means PolicyRetry.
	Policy FailurePolicy

	// RateLimit and Burst cap requests per host. Zero disables limiting.
	RateLimit float64
	Burst     int
}

// Supervisor starts one [Poller] per source and owns their lifecycle.
//
// Pollers are built at construction, so their stagger delays and status are
// available before Start. Each poller runs in its own goroutine; a poller
// that stops under PolicyStop is not restarted.
//
// Every fetch outcome is offered to the channel returned by
// [Supervisor.Attempts]. Sends are non-blocking: if the consumer falls
// behind, attempts are dropped rather than stalling a poller.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Supervisor struct {
	pollers  []*Poller
	client   *Client
	attempts chan Attempt
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// StaggerDelays returns the start delay for n pollers registered in order:
// index * stagger.
func StaggerDelays(n int, stagger time.Duration) []time.Duration {
	if stagger < 0 {
		stagger = 0
	}
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = time.Duration(i) * stagger
	}
	return delays
}

// NewSupervisor creates a [Supervisor] for sources, writing into st.
//
// Sources are registered in slice order; the i-th source starts after
// i * cfg.Stagger. st must have a slot for every source name.
func NewSupervisor(sources []SourceInfo, st store.Store, cfg SupervisorConfig, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if !policy.Valid() {
		policy = PolicyRetry
	}

	s := &Supervisor{
		client:   NewClient(WithHostRateLimit(cfg.RateLimit, cfg.Burst)),
		attempts: make(chan Attempt, 4*len(sources)+1),
		logger:   logger,
	}

	delays := StaggerDelays(len(sources), cfg.Stagger)
	s.pollers = make([]*Poller, len(sources))
	for i, info := range sources {
		if info.Policy == "" {
			info.Policy = policy
		}
		p := NewPoller(info, delays[i], s.client, st, logger)
		p.report = s.offer
		s.pollers[i] = p
	}
	return s
}

// Attempts returns a receive-only channel of fetch outcomes.
//
// The channel is closed when the supervisor stops.
func (s *Supervisor) Attempts() <-chan Attempt {
	return s.attempts
}

// Status returns a copy of every poller's bookkeeping in registration order.
func (s *Supervisor) Status() []PollerStatus {
	out := make([]PollerStatus, len(s.pollers))
	for i, p := range s.pollers {
		out[i] = p.Status()
	}
	return out
}

// Start launches every poller in its own goroutine and returns immediately.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, p := range s.pollers {
		s.wg.Add(1)
		go func(p *Poller) {
			defer s.wg.Done()
			p.Run(s.ctx)
		}(p)
	}

	s.logger.Info("pollers started", "count", len(s.pollers))
}

// Wait blocks until every poller has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Stop cancels all pollers and waits for them to exit.
//
// In-flight requests are cancelled. Stop closes the attempts channel and
// idle connections. Stop is idempotent and safe to call before Start.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.client != nil {
		s.client.Close()
	}

	s.closeOnce.Do(func() { close(s.attempts) })
}

// offer delivers a to the attempts channel without blocking.
// Called only from poller goroutines, which Stop waits for before closing.
func (s *Supervisor) offer(a Attempt) {
	select {
	case s.attempts <- a:
	default:
		s.logger.Debug("attempt dropped, consumer is behind", "source", a.Source)
	}
}
