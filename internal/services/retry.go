package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig is an exponential backoff policy
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig is used for caption downloads
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// backoff returns the wait before retry number attempt (0-based)
func (rc RetryConfig) backoff(attempt int) time.Duration {
	wait := float64(rc.InitialWait)
	for i := 0; i < attempt; i++ {
		wait *= rc.Multiplier
		if wait >= float64(rc.MaxWait) {
			return rc.MaxWait
		}
	}
	return time.Duration(wait)
}

// RetryDo calls fn until it succeeds, fails permanently or runs out of retries.
// A server-supplied Retry-After replaces the computed backoff, capped at MaxWait.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if attempt >= rc.MaxRetries || !isRetryable(err) {
			return zero, err
		}

		wait := rc.backoff(attempt)
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			wait = min(statusErr.RetryAfter, rc.MaxWait)
		}
		log.Printf("🔁 [RETRY] Attempt %d/%d failed (%v), retrying in %v", attempt+1, rc.MaxRetries+1, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
}

// httpStatusError is a response status worth retrying
type httpStatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// newHTTPStatusError reads the delay-seconds form of Retry-After
func newHTTPStatusError(resp *http.Response) *httpStatusError {
	err := &httpStatusError{StatusCode: resp.StatusCode}
	if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
		err.RetryAfter = time.Duration(secs) * time.Second
	}
	return err
}

// isRetryable accepts retryable statuses and network failures; timeouts only when the net layer says so
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *httpStatusError
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &statusErr):
		return isRetryableStatus(statusErr.StatusCode)
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
