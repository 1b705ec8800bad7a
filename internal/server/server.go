package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jpalmerr/marquee/internal/poller"
	"github.com/jpalmerr/marquee/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusSource reports per-source poller bookkeeping.
// Implemented by *poller.Supervisor.
type StatusSource interface {
	Status() []poller.PollerStatus
}

// sourceView is one entry of GET /api/sources.
type sourceView struct {
	poller.PollerStatus
	Present    bool       `json:"present"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds *float64   `json:"age_seconds,omitempty"`
}

// Server handles HTTP requests for snapshot inspection.
//
// Server provides three endpoints:
//   - GET /api/sources: freshness and poller state of every source
//   - GET /api/snapshots/{source}: the latest raw JSON for one source
//   - GET /api/sse: Server-Sent Events stream of snapshot updates
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	status     StatusSource
	port       int
	httpServer *http.Server
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, status StatusSource, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  st,
		status: status,
		port:   port,
		logger: logger,
		now:    time.Now,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sources", s.handleSources)
	mux.HandleFunc("GET /api/snapshots/{source}", s.handleSnapshot)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("inspection api listening", "addr", ln.Addr().String())
	return nil
}

// handleSources returns every source's state as JSON, in registration order.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	var statuses []poller.PollerStatus
	if s.status != nil {
		statuses = s.status.Status()
	}

	views := make([]sourceView, 0, len(statuses))
	for _, ps := range statuses {
		v := sourceView{PollerStatus: ps}
		if at, ok := s.store.LastFetched(ps.Source); ok {
			age := now.Sub(at).Seconds()
			v.Present = true
			v.FetchedAt = &at
			v.AgeSeconds = &age
		}
		views = append(views, v)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(views); err != nil {
		s.logger.Error("failed to encode sources response", "error", err)
	}
}

// handleSnapshot writes the latest raw body for one source.
//
// Responds 404 for an unknown source and 503 while the source has no
// snapshot yet.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("source")

	known := false
	for _, id := range s.store.Sources() {
		if id == name {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	snap, ok := s.store.Get(name)
	if !ok {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("ETag", `"`+strconv.FormatUint(snap.Checksum, 16)+`"`)

	if _, err := w.Write(snap.Raw); err != nil {
		s.logger.Error("failed to write snapshot response", "source", name, "error", err)
	}
}

// handleSSE streams snapshot metadata via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may be unsupported by some ResponseWriter implementations
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, snap := range s.store.GetAll() {
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}
