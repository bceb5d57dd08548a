package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx answer from an external API.
type StatusError struct {
	API        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.API, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.API, e.StatusCode)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsTemporary reports whether err is a StatusError for a server-side failure.
func IsTemporary(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Temporary()
}
