package jira

import (
	"fmt"
	"time"
)

// RequestError is any non-2xx response from the Jira API that is not a rate
// limit or an authentication failure. The sync engine treats it as
// recoverable at item granularity: log, skip the item, continue.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("jira API returned %d: %s", e.StatusCode, e.Message)
}

// RateLimitError signals HTTP 429. RetryAfter carries the server's
// Retry-After duration (defaults to 60s when the header is absent). Callers
// may retry the specific call after pacing; the session as a whole is never
// retried.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AuthError signals HTTP 401/403: invalid credentials or insufficient
// permission for the attempted operation.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("jira authentication failed (%d): %s", e.StatusCode, e.Message)
}
