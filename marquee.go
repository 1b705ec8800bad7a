package marquee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/marquee/internal/poller"
	"github.com/jpalmerr/marquee/internal/publish"
	"github.com/jpalmerr/marquee/internal/server"
	"github.com/jpalmerr/marquee/internal/store"
)

// DefaultStagger is the start-delay increment between successive sources.
const DefaultStagger = poller.DefaultStagger

// Board keeps the latest snapshot of every configured source fresh.
//
// A Board is created with [New] and started with [Board.Start], which
// launches one background poller per source and returns a [Handle] for
// reading snapshots. [Board.Run] is the blocking variant for programs whose
// only job is polling.
//
// The typical lifecycle is:
//
//	b, err := marquee.New(marquee.WithSources(sources...))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	h, err := b.Start(ctx)
//	...
//	snap, ok := h.Get("weather") // from the render loop
//
// A Board is a value built once; starting it does not change it, and it can
// be started more than once to produce independent handles.
type Board struct {
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

// New creates a [Board] with the given options.
//
// At least one source must be configured via [WithSource] or [WithSources],
// and source names must be unique. Defaults:
//   - Stagger: 5 seconds
//   - Failure policy: retry
//   - Rate limit, inspection API, MQTT: disabled
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		stagger: DefaultStagger,
		policy:  PolicyRetry,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.sources) == 0 {
		return nil, errors.New("at least one source is required")
	}

	// one slot per name
	seen := make(map[string]bool, len(cfg.sources))
	for _, s := range cfg.sources {
		if s.name == "" {
			return nil, errors.New("source must be created with NewSource")
		}
		if seen[s.name] {
			return nil, fmt.Errorf("duplicate source name: %q", s.name)
		}
		seen[s.name] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		sources:   cfg.sources,
		stagger:   cfg.stagger,
		policy:    cfg.policy,
		rateLimit: cfg.rateLimit,
		burst:     cfg.burst,
		port:      cfg.port,
		mqtt:      cfg.mqtt,
		logger:    logger,
		callbacks: cfg.callbacks,
	}, nil
}

// Sources returns a copy of the configured sources in registration order.
func (b *Board) Sources() []Source {
	cp := make([]Source, len(b.sources))
	copy(cp, b.sources)
	return cp
}

// Stagger returns the start-delay increment between sources.
func (b *Board) Stagger() time.Duration {
	return b.stagger
}

// Port returns the inspection API port, or 0 if the API is disabled.
func (b *Board) Port() int {
	return b.port
}

// Start launches one poller per source and returns immediately.
//
// Every slot starts absent. The i-th source makes its first request after
// i times the stagger, then once per cadence. When the inspection API is
// enabled it is bound before any poller starts, and a bind failure is
// returned as an error. MQTT publishing connects in the background.
//
// Pollers run until ctx is cancelled or [Handle.Stop] is called. Returns an
// error if ctx is already done.
func (b *Board) Start(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, len(b.sources))
	infos := make([]poller.SourceInfo, len(b.sources))
	for i, s := range b.sources {
		names[i] = s.name
		infos[i] = s.pollerInfo()
	}

	st := store.NewMemoryStore(names...)
	sup := poller.NewSupervisor(infos, st, poller.SupervisorConfig{
		Stagger:   b.stagger,
		Policy:    b.policy,
		RateLimit: b.rateLimit,
		Burst:     b.burst,
	}, b.logger)

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		store:  st,
		sup:    sup,
		logger: b.logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var pub *publish.Publisher
	if b.mqtt != nil {
		var err error
		pub, err = publish.New(publish.Config{
			Broker:      b.mqtt.Broker,
			TopicPrefix: b.mqtt.TopicPrefix,
			ClientID:    b.mqtt.ClientID,
			QoS:         b.mqtt.QoS,
		}, b.logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create mqtt publisher: %w", err)
		}
	}

	if b.port != 0 {
		srv := server.NewServer(st, sup, b.port, b.logger)
		if err := srv.Start(ctx); err != nil {
			cancel()
			if pub != nil {
				pub.Close()
			}
			return nil, fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	b.logger.Info("marquee starting",
		"source_count", len(b.sources),
		"stagger", b.stagger.String(),
		"policy", string(b.policy),
	)
	for _, s := range b.sources {
		b.logger.Debug("source registered", "source", s)
	}

	sup.Start(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for a := range sup.Attempts() {
			if len(b.callbacks) == 0 {
				continue
			}
			u := updateFromAttempt(a)
			for _, cb := range b.callbacks {
				invokeCallbackSafe(cb, u, b.logger)
			}
		}
	}()

	if pub != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			defer pub.Close()
			// the broker may be down at boot; polling never waits for it
			if err := pub.Connect(ctx); err != nil {
				if ctx.Err() == nil {
					b.logger.Error("mqtt connect failed", "error", err)
				}
				return
			}
			pub.Run(ctx, st)
		}()
	}

	go func() {
		<-ctx.Done()
		sup.Stop() // closes the attempts channel
		h.wg.Wait()
		b.logger.Info("marquee stopped")
		close(h.done)
	}()

	return h, nil
}

// Run starts the board and blocks until ctx is cancelled and every poller
// has exited.
//
// For signal handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	b.Run(ctx)
//
// Returns nil on graceful shutdown, including when ctx is already done.
// Returns an error if the inspection API fails to start.
func (b *Board) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	h, err := b.Start(ctx)
	if err != nil {
		return err
	}
	<-h.Done()
	return nil
}

// Handle is a running board: the read side of the snapshot store plus
// lifecycle control.
//
// All methods are safe for concurrent use. [Handle.Get] never blocks on a
// poller, so it can be called from a render loop at any rate.
type Handle struct {
	store  *store.MemoryStore
	sup    *poller.Supervisor
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// Get returns the latest snapshot for source.
//
// ok is false if the source has not been fetched successfully yet, or is not
// configured. Callers should render a placeholder in that case.
func (h *Handle) Get(source string) (snap Snapshot, ok bool) {
	s, ok := h.store.Get(source)
	if !ok {
		return Snapshot{}, false
	}
	return snapshotFromStore(s), true
}

// Snapshots returns every present snapshot in registration order.
func (h *Handle) Snapshots() []Snapshot {
	all := h.store.GetAll()
	out := make([]Snapshot, len(all))
	for i, s := range all {
		out[i] = snapshotFromStore(s)
	}
	return out
}

// Sources returns the configured source names in registration order.
func (h *Handle) Sources() []string {
	return h.store.Sources()
}

// Status returns a copy of every source's state in registration order.
func (h *Handle) Status() []SourceStatus {
	ps := h.sup.Status()
	out := make([]SourceStatus, len(ps))
	for i, p := range ps {
		out[i] = sourceStatus(p, h.store)
	}
	return out
}

// Stop cancels all pollers and waits for them, the callback goroutine and
// the MQTT publisher to exit. In-flight requests are cancelled.
//
// Stop is idempotent.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done returns a channel that is closed once the handle has fully stopped,
// either through [Handle.Stop] or cancellation of the context passed to
// [Board.Start].
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Update), u Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"source", u.Source,
			)
		}
	}()
	cb(u)
}
