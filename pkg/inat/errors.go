package inat

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a failed API call. Every error surfaced by the
// request executor carries exactly one kind, so callers can branch on the
// failure class without string matching.
type ErrorKind string

const (
	// ErrorKindAuthFailed means credentials are invalid or unrefreshable.
	// Never retried.
	ErrorKindAuthFailed ErrorKind = "auth_failed"

	// ErrorKindRateLimited means the provider quota was exhausted even
	// after waiting.
	ErrorKindRateLimited ErrorKind = "rate_limited"

	// ErrorKindTransient covers network timeouts, connection resets and
	// temporary server conditions.
	ErrorKindTransient ErrorKind = "transient"

	// ErrorKindClient covers malformed requests, not-found and validation
	// failures. Never retried.
	ErrorKindClient ErrorKind = "client_error"

	// ErrorKindServer covers unexpected provider faults (5xx).
	ErrorKindServer ErrorKind = "server_error"

	// ErrorKindSchemaMismatch means a payload did not match the expected
	// entity structure.
	ErrorKindSchemaMismatch ErrorKind = "schema_mismatch"
)

// APIError represents an error returned by the iNaturalist API, classified
// into the client's error taxonomy.
type APIError struct {
	Kind       ErrorKind `json:"kind"                  yaml:"kind"`
	StatusCode int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Title      string    `json:"title,omitempty"       yaml:"title,omitempty"`
	Detail     string    `json:"detail,omitempty"      yaml:"detail,omitempty"`

	// RetryAfter is the server-provided wait hint for rate-limited
	// responses, zero when absent.
	RetryAfter time.Duration `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (status: %d)", e.Kind, e.Detail, e.StatusCode)
	}

	if e.Title != "" {
		return fmt.Sprintf("%s: %s (status: %d)", e.Kind, e.Title, e.StatusCode)
	}

	return fmt.Sprintf("%s (status: %d)", e.Kind, e.StatusCode)
}

// Is matches two APIErrors by kind, so errors.Is(err, &APIError{Kind: ...})
// works without comparing details.
func (e *APIError) Is(target error) bool {
	targetErr := &APIError{}
	if errors.As(target, &targetErr) {
		return e.Kind == targetErr.Kind
	}

	return false
}

// ClassifyStatus maps an HTTP status code to an ErrorKind.
func ClassifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorKindAuthFailed
	case statusCode == http.StatusTooManyRequests:
		return ErrorKindRateLimited
	case statusCode == http.StatusBadGateway || statusCode == http.StatusServiceUnavailable || statusCode == http.StatusGatewayTimeout:
		return ErrorKindTransient
	case statusCode >= 500:
		return ErrorKindServer
	default:
		return ErrorKindClient
	}
}

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrBaseURLRequired      = errors.New("base URL is required")
	ErrAuthUnavailable      = errors.New("no credentials available")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrRetriesExhausted     = errors.New("retries exhausted")
	ErrCacheMiss            = errors.New("cache miss")
	ErrCacheEntryExpired    = errors.New("cache entry expired")
	ErrCacheDisabled        = errors.New("cache disabled")
	ErrNoMoreItems          = errors.New("no more items")
	ErrObservationNotFound  = errors.New("observation not found")
	ErrTaxonNotFound        = errors.New("taxon not found")
	ErrSchemaMismatch       = errors.New("schema mismatch")
	ErrUnknownEntityKind    = errors.New("unknown entity kind")
	ErrDryRun               = errors.New("dry run")
	ErrStaticTokenNoRefresh = errors.New("static token cannot be refreshed")
	ErrCircuitBreakerOpen   = errors.New("circuit breaker is open")
)

// IsNotFound checks if the error is a not-found client error.
func IsNotFound(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}

	return errors.Is(err, ErrObservationNotFound) || errors.Is(err, ErrTaxonNotFound)
}

// IsRateLimited checks if the error was classified as quota exhaustion.
func IsRateLimited(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind == ErrorKindRateLimited
	}

	return false
}

// IsAuthFailed checks if the error is an authentication failure.
func IsAuthFailed(err error) bool {
	if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrAuthUnavailable) {
		return true
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind == ErrorKindAuthFailed
	}

	return false
}

// IsTransient determines whether an error represents a transient failure
// that might succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind == ErrorKindTransient || apiErr.Kind == ErrorKindServer || apiErr.Kind == ErrorKindRateLimited
	}

	return false
}

// IsSchemaMismatch checks if the error came from the model mapper rejecting
// a payload shape.
func IsSchemaMismatch(err error) bool {
	if errors.Is(err, ErrSchemaMismatch) {
		return true
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind == ErrorKindSchemaMismatch
	}

	return false
}

// IsRetriesExhausted reports whether err is a failure that survived the full
// retry budget.
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}
