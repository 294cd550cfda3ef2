package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorKind tells the caller which retry policy applies to a failed call
type ErrorKind string

const (
	// KindToken means the CSRF token was rejected; fetch a new one and retry once
	KindToken ErrorKind = "token"
	// KindTransient covers network failures, throttling and server errors; retry with backoff
	KindTransient ErrorKind = "transient"
	// KindFatal means the API rejected the request itself; do not retry
	KindFatal ErrorKind = "fatal"
)

// Error is a classified Action API failure
type Error struct {
	Kind       ErrorKind
	Code       string        // API error code, or a local code such as "http-503" or "network"
	Info       string        // Human-readable description from the API
	Messages   []string      // Wikibase message keys, e.g. wikibase-validator-...
	StatusCode int           // HTTP status, 0 if no response was received
	RetryAfter time.Duration // Server-requested delay, 0 if none
	Err        error         // Underlying transport or decode error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Kind)
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	if e.Info != "" {
		fmt.Fprintf(&b, ": %s", e.Info)
	}
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Messages, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error, or "" if err is not one
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient failure
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// IsTokenError reports whether err means the CSRF token must be refreshed
func IsTokenError(err error) bool {
	return KindOf(err) == KindToken
}

// IsFatal reports whether err must not be retried. Unclassified errors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	return k == KindFatal || k == ""
}

// RetryAfterOf returns the server-requested delay carried by err
func RetryAfterOf(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

var tokenCodes = map[string]bool{
	"badtoken": true,
	"notoken":  true,
}

var transientCodes = map[string]bool{
	"maxlag":             true,
	"ratelimited":        true,
	"readonly":           true,
	"internal_api_error": true,
}

// classifyAPIErrorCode maps an Action API error code to a retry policy
func classifyAPIErrorCode(code string) ErrorKind {
	switch {
	case tokenCodes[code]:
		return KindToken
	case transientCodes[code], strings.HasPrefix(code, "internal_api_error_"):
		return KindTransient
	default:
		return KindFatal
	}
}

// classifyHTTPStatus returns the kind for a non-2xx response, or "" for success
func classifyHTTPStatus(status int) ErrorKind {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return KindTransient
	case status >= 500 && status < 600:
		return KindTransient
	default:
		return KindFatal
	}
}

// classifyTransportError wraps an error from http.Client.Do
func classifyTransportError(err error) *Error {
	kind := KindFatal
	if isRetryableNetworkError(err) {
		kind = KindTransient
	}
	return &Error{Kind: kind, Code: "network", Err: err}
}

// isRetryableNetworkError reports timeouts and dropped connections
func isRetryableNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "eof")
}
