package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthorized        = errors.New("authentication required")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrGenerationTimeout   = errors.New("generation did not complete within the polling budget")
	ErrAccountNotFound     = errors.New("credit account not found")
	ErrRateLimited         = errors.New("too many requests")
	ErrLockBusy            = errors.New("account is busy with another reservation")
	ErrUnknownPrice        = errors.New("unknown price identifier")
	ErrInvalidExecContext  = errors.New("invalid executor context")
)

// ErrGenerationFailed marks a provider-reported terminal failure. The chain
// matches ErrJobFailed; the message carries the provider's stated reason.
var ErrJobFailed = errors.New("generation failed")

func ErrGenerationFailed(reason string) error {
	if reason == "" {
		return ErrJobFailed
	}
	return fmt.Errorf("%w: %s", ErrJobFailed, reason)
}

// UpstreamError carries a provider's non-2xx response back to the caller
// verbatim, so operators can see exactly what the provider said.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Details    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: http %d: %s", e.Provider, e.StatusCode, e.Details)
}

// AsUpstreamError unwraps err into an *UpstreamError if one is in the chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
