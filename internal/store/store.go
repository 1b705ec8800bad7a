package store

import (
	"errors"
	"time"
)

// ErrUnknownSource is returned by Put when the source has no slot.
var ErrUnknownSource = errors.New("unknown source")

// Snapshot is the most recent successfully parsed document for one source.
//
// A Snapshot is immutable once stored. Document is shared between all
// readers and must not be modified; Raw is the body it was decoded from.
type Snapshot struct {
	// Source is the identifier of the slot this snapshot belongs to.
	Source string `json:"source"`

	// Document is the decoded JSON value (maps, slices, float64, string, bool, nil).
	Document any `json:"-"`

	// Raw is the response body the document was decoded from.
	Raw []byte `json:"-"`

	// Checksum is the xxh3 hash of Raw.
	Checksum uint64 `json:"checksum"`

	// FetchedAt is when the fetch that produced this snapshot completed.
	FetchedAt time.Time `json:"fetched_at"`
}

// Store defines slot access for source snapshots.
//
// Store implementations must be safe for concurrent access. Each slot has
// exactly one writer (its poller); any number of readers may call Get at
// any time.
type Store interface {
	// Get returns the current snapshot for source.
	// The second result is false while the slot is absent or unknown.
	Get(source string) (Snapshot, bool)

	// Put replaces the snapshot for source.
	// Returns ErrUnknownSource if the store has no slot for source.
	Put(source string, snap Snapshot) error

	// LastFetched returns the FetchedAt of the current snapshot.
	LastFetched(source string) (time.Time, bool)

	// Sources returns the slot identifiers in registration order.
	Sources() []string

	// GetAll returns every present snapshot in registration order.
	GetAll() []Snapshot

	// Subscribe returns a channel that receives each stored snapshot.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
