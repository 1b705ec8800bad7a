package marquee

import (
	"time"

	"github.com/jpalmerr/marquee/internal/poller"
	"github.com/jpalmerr/marquee/internal/store"
)

// FailurePolicy decides what a source's poller does after a failed fetch.
//
// The previous snapshot is kept under both policies. [PolicyRetry] (the
// default) tries again after the source's cadence; [PolicyStop] exits the
// poller, which is then reported as [StateStopped] and never restarted.
type FailurePolicy = poller.FailurePolicy

const (
	PolicyRetry = poller.PolicyRetry
	PolicyStop  = poller.PolicyStop
)

// PollerState is the lifecycle state of one source's poller.
type PollerState = poller.State

const (
	StatePending = poller.StatePending
	StateRunning = poller.StateRunning
	StateStopped = poller.StateStopped
)

// Snapshot is the most recent successfully parsed document for one source.
//
// A Snapshot is a value: once handed out it never changes. Readers should
// treat Document as read-only; it is shared with every other reader of the
// same snapshot.
type Snapshot struct {
	// Source is the slot the snapshot was stored under.
	Source string

	// Document is the decoded JSON body: map[string]any, []any, string,
	// float64, bool or nil. See [Lookup] and the typed readers.
	Document any

	// Raw is the response body the document was decoded from.
	Raw []byte

	// Checksum is the xxh3 hash of Raw. Equal checksums mean equal bodies.
	Checksum uint64

	FetchedAt time.Time
}

// Age returns how long ago the snapshot was fetched, relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

func snapshotFromStore(s store.Snapshot) Snapshot {
	return Snapshot{
		Source:    s.Source,
		Document:  s.Document,
		Raw:       s.Raw,
		Checksum:  s.Checksum,
		FetchedAt: s.FetchedAt,
	}
}

// SourceStatus reports one source's freshness and poller bookkeeping.
type SourceStatus struct {
	Source string        `json:"source"`
	State  PollerState   `json:"state"`
	Policy FailurePolicy `json:"policy"`

	Cadence      time.Duration `json:"cadence"`
	InitialDelay time.Duration `json:"initial_delay"`

	// Present is true once the first successful fetch has been stored.
	Present   bool      `json:"present"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`

	Attempts            uint64    `json:"attempts"`
	Failures            uint64    `json:"failures"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
	LastAttemptAt       time.Time `json:"last_attempt_at,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	LastErrorKind       string    `json:"last_error_kind,omitempty"`
}

// Stale reports whether the source has no snapshot, or its snapshot is older
// than two cadences.
func (s SourceStatus) Stale(now time.Time) bool {
	if !s.Present {
		return true
	}
	return now.Sub(s.FetchedAt) > 2*s.Cadence
}

func sourceStatus(ps poller.PollerStatus, st store.Store) SourceStatus {
	out := SourceStatus{
		Source:              ps.Source,
		State:               ps.State,
		Policy:              ps.Policy,
		Cadence:             ps.Cadence,
		InitialDelay:        ps.InitialDelay,
		Attempts:            ps.Attempts,
		Failures:            ps.Failures,
		ConsecutiveFailures: ps.ConsecutiveFailures,
		LastAttemptAt:       ps.LastAttemptAt,
		LastError:           ps.LastError,
		LastErrorKind:       ps.LastErrorKind,
	}
	if at, ok := st.LastFetched(ps.Source); ok {
		out.Present = true
		out.FetchedAt = at
	}
	return out
}

// Update describes one completed fetch attempt.
//
// Updates are passed to callbacks registered with [WithUpdateCallback].
type Update struct {
	Source string

	// Attempt counts fetches for this source, starting at 1.
	Attempt uint64

	StatusCode int
	Latency    time.Duration
	At         time.Time

	// Err is nil when the fetch succeeded and the snapshot was replaced.
	Err error

	// ErrKind is "transport", "status" or "decode" when Err is set.
	ErrKind string

	// Changed is true when the new snapshot's body differs from the old one.
	Changed bool

	// Stopped is true when this failure made the poller exit for good.
	Stopped bool
}

// OK reports whether the attempt replaced the snapshot.
func (u Update) OK() bool {
	return u.Err == nil
}

func updateFromAttempt(a poller.Attempt) Update {
	return Update{
		Source:     a.Source,
		Attempt:    a.Number,
		StatusCode: a.StatusCode,
		Latency:    a.Latency,
		At:         a.At,
		Err:        a.Err,
		ErrKind:    poller.ErrorKind(a.Err),
		Changed:    a.Changed,
		Stopped:    a.Stopped,
	}
}
