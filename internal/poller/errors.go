package poller

import (
	"errors"
	"fmt"
)

// Error kinds reported by [ErrorKind].
const (
	KindTransport = "transport"
	KindStatus    = "status"
	KindDecode    = "decode"
)

// TransportError reports that no HTTP response was obtained: DNS, connect,
// timeout, cancelled rate-limit wait, or a request that could not be built.
type TransportError struct {
	// Op names the step that failed (e.g. "request", "read body").
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a response whose status code was not 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// DecodeError reports a 200 response whose body is not valid JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorKind classifies err as [KindTransport], [KindStatus] or [KindDecode].
// Returns "" for nil and for errors outside the fetch taxonomy.
func ErrorKind(err error) string {
	var (
		te *TransportError
		se *StatusError
		de *DecodeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return KindStatus
	case errors.As(err, &de):
		return KindDecode
	case errors.As(err, &te):
		return KindTransport
	default:
		return ""
	}
}

// IsTransport reports whether err is or wraps a [TransportError].
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsStatus reports whether err is or wraps a [StatusError].
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// IsDecode reports whether err is or wraps a [DecodeError].
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
