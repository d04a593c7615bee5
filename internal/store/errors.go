package store

import (
	"errors"
	"fmt"
)

// Typed errors raised by the state machine. Races (ErrConcurrentGeneration,
// ErrAlreadyHired) are expected outcomes the client recovers from by
// refreshing, not system faults.
var (
	// ErrNotFound means the referenced request, match or placement does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller does not own the care request.
	// Always audit-logged by the caller.
	ErrForbidden = errors.New("forbidden")

	// ErrConcurrentGeneration means another match generation run currently
	// holds the request's generation claim.
	ErrConcurrentGeneration = errors.New("match generation already in progress")

	// ErrAlreadyHired means the hire lost: a sibling match won the race,
	// the proposal expired, or the request is closed. The family should be
	// shown refreshed state rather than a generic failure.
	ErrAlreadyHired = errors.New("request is no longer open for this hire")

	// ErrInvalidTransition means the requested state change is not
	// permitted from the entity's current status.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// ValidationError rejects malformed input synchronously. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}
