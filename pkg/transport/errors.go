package transport

import (
	"fmt"
	"net/http"
)

// ConnectivityError is a DNS, TCP, TLS or timeout failure. Sent reports
// whether a request may already have reached the wholesaler.
type ConnectivityError struct {
	Endpoint string
	Err      error
	Sent     bool
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// AuthenticationError is returned when every answered attempt was rejected
// with 401, which points at wrong credentials rather than a transient fault.
type AuthenticationError struct {
	Endpoint string
	Attempts int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected by %s on all %d attempts", e.Endpoint, e.Attempts)
}

// ExhaustedFallbackError is returned when no URL and content type
// combination produced an acceptable response.
type ExhaustedFallbackError struct {
	Endpoint   string
	LastURL    string
	LastStatus int
	Snippet    string
	Attempts   int
}

func (e *ExhaustedFallbackError) Error() string {
	return fmt.Sprintf("no acceptable response from %s after %d attempts, last %s answered %d %s: %s",
		e.Endpoint, e.Attempts, e.LastURL, e.LastStatus, http.StatusText(e.LastStatus), e.Snippet)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
