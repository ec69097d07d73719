// Package resilience holds the retry and failure-isolation primitives
// shared by components that talk to external providers.
package resilience

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrPermissionDenied marks failures that no amount of retrying will
// fix. Callers treat it as terminal.
var ErrPermissionDenied = errors.New("permission denied")

// BackoffConfig describes an exponential backoff schedule
type BackoffConfig struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig returns the dictation restart schedule
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:       500 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
	}
}

// Delay returns the wait before the next attempt after the given number
// of consecutive failures.
func (c BackoffConfig) Delay(failures int) time.Duration {
	d := c.Base
	for i := 0; i < failures; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		// Overflow shows up as a wrap to negative.
		if d > c.Max || d <= 0 {
			return c.Max
		}
	}
	if d > c.Max {
		return c.Max
	}
	return d
}

// Wait sleeps for the computed delay or until the context is done
func (c BackoffConfig) Wait(ctx context.Context, failures int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.Delay(failures)):
		return nil
	}
}

// permissionMarkers are substrings that identify authorization failures
// across the providers we integrate with.
var permissionMarkers = []string{
	"permission denied",
	"not-allowed",
	"access denied",
	"unauthenticated",
	"invalid api key",
}

// IsPermissionDenied reports whether err is in the terminal class that
// restarting cannot fix.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permissionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
