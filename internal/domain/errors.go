package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound             = errors.New("not found")
	ErrMalformedEvent       = errors.New("malformed event: sender id is missing")
	ErrNoRecipient          = errors.New("no recipient could be resolved")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrTransportUnavailable = errors.New("push transport unavailable")
	ErrQueueFull            = errors.New("queue is at capacity, try again later")
	ErrInvalidContainer     = errors.New("invalid container")
)

// Transport error codes that mean the delivery token will never work again.
const (
	CodeUnregistered = "unregistered"
	CodeInvalidToken = "invalid-token"
	CodeUnavailable  = "unavailable"
)

// TransportError is a per-job delivery failure reported by the push backend.
// It is recorded on the job and never retried.
type TransportError struct {
	Code    string
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error %s: %s", e.Code, e.Message)
}

// IsInvalidToken reports whether the recipient's token must be cleared.
func (e *TransportError) IsInvalidToken() bool {
	return e.Code == CodeUnregistered || e.Code == CodeInvalidToken
}

// AsTransportError unwraps err into a *TransportError if it carries one.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
