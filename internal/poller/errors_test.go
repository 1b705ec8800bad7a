package poller

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	cause := errors.New("dial tcp: no such host")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"transport", &TransportError{Op: "request", Err: cause}, KindTransport},
		{"status", &StatusError{Code: 500}, KindStatus},
		{"decode", &DecodeError{Err: cause}, KindDecode},
		{"wrapped status", fmt.Errorf("poll: %w", &StatusError{Code: 404}), KindStatus},
		{"unrelated", cause, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Op: "request", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is() = false, want cause reachable through Unwrap")
	}
	if got := err.Error(); got != "transport error: request: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Code: 503}
	if got := err.Error(); got != "unexpected status 503" {
		t.Errorf("Error() = %q, want %q", got, "unexpected status 503")
	}
}

func TestIsHelpers(t *testing.T) {
	transport := fmt.Errorf("fetch: %w", &TransportError{Op: "request", Err: errors.New("timeout")})
	status := &StatusError{Code: 502}
	decode := &DecodeError{Err: errors.New("bad json")}

	tests := []struct {
		name                       string
		err                        error
		isTransport, isStat, isDec bool
	}{
		{"transport", transport, true, false, false},
		{"status", status, false, true, false},
		{"decode", decode, false, false, true},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransport(tt.err); got != tt.isTransport {
				t.Errorf("IsTransport() = %v, want %v", got, tt.isTransport)
			}
			if got := IsStatus(tt.err); got != tt.isStat {
				t.Errorf("IsStatus() = %v, want %v", got, tt.isStat)
			}
			if got := IsDecode(tt.err); got != tt.isDec {
				t.Errorf("IsDecode() = %v, want %v", got, tt.isDec)
			}
		})
	}
}
