package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitError represents a rate limit error from any API
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// NewRateLimitError creates a new RateLimitError with the given message
func NewRateLimitError(message string) *RateLimitError {
	return &RateLimitError{Message: message}
}

// NewRateLimitErrorWithRetry creates a RateLimitError carrying the server's retry hint
func NewRateLimitErrorWithRetry(message string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Message: message, RetryAfter: retryAfter}
}

// IsRateLimitError reports whether err is a RateLimitError (even when wrapped).
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// RateLimitFromResponse builds a RateLimitError for a 429 response,
// honoring a Retry-After header given in seconds or as an HTTP date.
func RateLimitFromResponse(api string, resp *http.Response) *RateLimitError {
	msg := api + " rate limit exceeded"
	header := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if header == "" {
		return NewRateLimitError(msg)
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return NewRateLimitErrorWithRetry(msg, time.Duration(secs)*time.Second)
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return NewRateLimitErrorWithRetry(msg, d.Round(time.Second))
		}
	}
	return NewRateLimitError(msg)
}
