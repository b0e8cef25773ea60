package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Reported to the caller, never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown distributor, visit, trip or record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a lost race on a conditional update or a duplicate row.
	ErrConflict = errors.New("conflict")
	// ErrInvalidStateTransition marks an illegal visit or trip transition.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrExternalProvider marks a routing provider failure. Recovered locally.
	ErrExternalProvider = errors.New("external provider error")
)

// InvalidStateTransitionError identifies the entity, its current state and the requested state.
type InvalidStateTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	msg := fmt.Sprintf("%s %s: cannot transition from %q to %q", e.Entity, e.ID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// ExternalProviderError wraps a failed call to the routing provider.
type ExternalProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ExternalProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalProviderError) Unwrap() error { return e.Err }

func (e *ExternalProviderError) Is(target error) bool {
	return target == ErrExternalProvider
}

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
