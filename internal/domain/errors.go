package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned when an action needs a signed-in user and
	// none was supplied.
	ErrAuthRequired = errors.New("sign-in required")

	// ErrForbidden is returned when the caller is signed in but lacks the
	// role the action requires.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced post or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyShared is returned when a user shares the same post twice.
	ErrAlreadyShared = errors.New("already shared")

	// ErrStoreUnavailable matches any transport or backend failure. Use
	// errors.Is; concrete failures are reported as *StoreError.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrValidation matches any *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrFetchInProgress is returned by FeedPager.Next when a fetch is
	// already pending. The request is dropped, not queued.
	ErrFetchInProgress = errors.New("fetch already in progress")

	// ErrCancelled is returned when the user declines a destructive action.
	ErrCancelled = errors.New("cancelled by user")
)

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

// Unavailable wraps err as a StoreError for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// ValidationError reports bad user input: file type, upload size, embed URL,
// or a malformed AI response.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
