package marquee

import "github.com/jpalmerr/marquee/internal/poller"

// Fetch errors carried in [Update.Err] and [SourceStatus.LastError].
//
// Every failure falls into exactly one of three kinds. All three are handled
// the same way by a poller: the cycle is discarded and the previous snapshot
// stays in place.
type (
	// TransportError: no HTTP response (DNS, connect, timeout, cancelled
	// rate-limit wait).
	TransportError = poller.TransportError

	// StatusError: a response with a status other than 200.
	StatusError = poller.StatusError

	// DecodeError: a 200 response whose body is not JSON.
	DecodeError = poller.DecodeError
)

// IsTransport reports whether err is or wraps a [TransportError].
func IsTransport(err error) bool { return poller.IsTransport(err) }

// IsStatus reports whether err is or wraps a [StatusError].
func IsStatus(err error) bool { return poller.IsStatus(err) }

// IsDecode reports whether err is or wraps a [DecodeError].
func IsDecode(err error) bool { return poller.IsDecode(err) }
