package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a failure worth retrying: network trouble, timeouts,
// 5xx-class responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient remote error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not heal on its own (validation,
// conflict, auth). Without cause inspection it is indistinguishable from a
// transient one at the call site, so the sync loop still retries it to budget
// before dead-lettering.
type PermanentError struct {
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent remote error (status %d): %v", e.StatusCode, e.Err)
}
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func classifyStatus(status int, body string) error {
	if status >= 500 {
		return &TransientError{Err: fmt.Errorf("remote responded %d: %s", status, body)}
	}
	return &PermanentError{StatusCode: status, Err: fmt.Errorf("remote responded %d: %s", status, body)}
}
