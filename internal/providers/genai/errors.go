package genai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts,
	// rate limits and server side errors.
	ErrTransient = errors.New("transient generation failure")
	// ErrMalformed marks responses that cannot be used as returned. Retrying
	// the same prompt is not expected to help.
	ErrMalformed = errors.New("malformed generation response")
)

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformed) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// statusError classifies a non-2xx provider response.
func statusError(provider string, code int, detail string) error {
	kind := ErrMalformed
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError {
		kind = ErrTransient
	}
	if detail == "" {
		return fmt.Errorf("%w: %s status %d", kind, provider, code)
	}
	return fmt.Errorf("%w: %s status %d: %s", kind, provider, code, detail)
}

func transportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	return fmt.Errorf("%w: %s request: %v", ErrTransient, provider, err)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
