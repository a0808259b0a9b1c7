package connectors

import (
	"errors"
	"fmt"
	"net"
)

// ErrSessionExpired is returned when the broker rejects the access
// token. Placement and reconciliation stop for the day when they see it.
var ErrSessionExpired = errors.New("broker session expired")

// TransientError marks a gateway failure that may have happened after
// the broker accepted the request: network timeouts, connection resets,
// 5xx responses. Callers must assume the order may exist broker-side.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient gateway error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error is a retryable gateway failure.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
