package inat

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fieldnotes-io/inat/internal/constants"
)

// RetryPolicy decides whether a failed attempt should be retried and how
// long to wait before the next one. It is consulted by the request executor
// through the retryable transport's CheckRetry/Backoff hooks, keeping the
// retry decision out of the call sites.
type RetryPolicy struct {
	// RetryMax is the maximum number of retries after the initial attempt.
	RetryMax int
	// RetryWaitMin is the base delay for exponential backoff.
	RetryWaitMin time.Duration
	// RetryWaitMax caps the computed delay.
	RetryWaitMax time.Duration
	// Jitter in [0,1] adds a random fraction of the delay, spreading
	// synchronized clients apart.
	Jitter float64
}

// DefaultRetryPolicy returns the default policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		RetryMax:     constants.DefaultRetryMax,
		RetryWaitMin: constants.DefaultRetryWaitMin,
		RetryWaitMax: constants.DefaultRetryWaitMax,
		Jitter:       0.2,
	}
}

// certificate errors and malformed URLs will not succeed on retry.
var redirectsErrorRe = regexp.MustCompile(`stopped after \d+ redirects\z`)

// ShouldRetry reports whether the attempt may be retried. Only transient
// failures qualify: network errors, 429, and 5xx except 501. Client errors
// are never retried. Context cancellation always stops retrying.
func (p *RetryPolicy) ShouldRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			if redirectsErrorRe.MatchString(urlErr.Error()) {
				return false, err
			}

			if strings.Contains(urlErr.Error(), "x509:") {
				return false, err
			}
		}

		// Remaining transport errors (timeouts, resets, refused
		// connections) are transient.
		return true, nil
	}

	if resp == nil {
		return true, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}

	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}

	return false, nil
}

// Backoff computes the delay before the given retry attempt. A server
// Retry-After hint takes precedence over the exponential schedule.
func (p *RetryPolicy) Backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if delay := ParseRetryAfter(resp.Header.Get("Retry-After")); delay > 0 {
			return delay
		}
	}

	if attempt < 0 {
		attempt = 0
	}

	// Cap the exponent to avoid overflow.
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(p.RetryWaitMin) * math.Pow(2, float64(attempt)))
	if delay < 0 || delay > p.RetryWaitMax {
		delay = p.RetryWaitMax
	}

	jitter := p.Jitter
	if jitter > 0 {
		if jitter > 1 {
			jitter = 1
		}

		jitterAmount := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+jitterAmount <= p.RetryWaitMax {
			delay += jitterAmount
		} else {
			delay = p.RetryWaitMax
		}
	}

	return delay
}

// IsIdempotent reports whether an HTTP method is safe to retry by default.
// Writes the API documents as idempotent must be marked per request.
func IsIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ParseRetryAfter parses a Retry-After header value, supporting both
// delay-seconds and HTTP-date formats. The result is capped at one hour.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}

		delay := time.Duration(seconds) * time.Second
		if delay > constants.MaxRetryAfter {
			delay = constants.MaxRetryAfter
		}

		return delay
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= constants.MaxRetryAfter {
			return delay
		}
	}

	return 0
}
