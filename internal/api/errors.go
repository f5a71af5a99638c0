package api

import "fmt"

// StatusError represents an HTTP error response from the backend
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Fatal reports whether retrying the same request can ever succeed.
// Client errors (bad request, unknown job, auth rejection) are fatal;
// 408 and 429 are not, and server errors are treated as transient.
func (e *StatusError) Fatal() bool {
	if e.StatusCode == 408 || e.StatusCode == 429 {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}
