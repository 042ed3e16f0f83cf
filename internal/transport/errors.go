package transport

import (
	"fmt"
	"net/http"
)

// RemoteServiceError is returned when the remote service answered with a
// non-retryable status, or when every attempt failed.
type RemoteServiceError struct {
	Status   int
	Body     string
	Attempts int

	// Err is the last network error when no response was received (Status 0).
	Err error
}

func (e *RemoteServiceError) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("remote service: no response after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("remote service: status %d after %d attempt(s): %s", e.Status, e.Attempts, e.Body)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a response status is worth another attempt.
func IsRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
