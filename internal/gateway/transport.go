package gateway

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials indicates a remote service is configured without the
// key material it requires. It aborts the whole sync attempt.
var ErrMissingCredentials = errors.New("missing remote service credentials")

// TransportError wraps any network or HTTP-level failure talking to a remote
// API. It is retryable in principle but never auto-retried here.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transport error for %s: status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
