package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("tour not found")
	ErrSyncDisabled = errors.New("sync disabled or credentials missing")
)

// RateBudgetError is raised before any network call when the local request
// budget for the current window is exhausted.
type RateBudgetError struct {
	Wait time.Duration
}

func (e *RateBudgetError) Error() string {
	return fmt.Sprintf("local rate budget exhausted, retry in %s", e.Wait.Round(time.Second))
}

// UpstreamError is an HTTP >=400 response from the booking platform.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// TransportError means no HTTP response was obtained at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
