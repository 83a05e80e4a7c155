package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type rateLimitError struct {
	message string
}

func (e *rateLimitError) Error() string {
	if e.message == "" {
		return "rate limited"
	}
	return "rate limited: " + e.message
}

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

type serverError struct {
	statusCode int
	body       string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.statusCode, e.body)
}

// IsAuthError reports whether err is, or wraps, an authentication failure.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	var rl *rateLimitError
	var se *serverError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// statusError maps a non-200 HTTP status to the matching error type.
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return &rateLimitError{message: msg}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &authError{message: msg}
	case status >= 500:
		return &serverError{statusCode: status, body: msg}
	default:
		return fmt.Errorf("API error (status %d): %s", status, msg)
	}
}

var retryBaseDelay = time.Second

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := retryBaseDelay << uint(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
