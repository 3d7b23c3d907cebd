package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionNotFound is returned when a user has no persisted session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBookingNotFound is returned for unknown booking ids.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrClientNotFound is returned when no client matches a lookup.
	ErrClientNotFound = errors.New("client not found")
	// ErrInvalidTransition is returned when a stage or status move is not allowed.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrSlotTaken is returned by stores when an insert would overlap an active booking.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrRateLimited is returned when a user creates too many bookings.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized is returned when a non-operator invokes an operator command.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned for malformed client or operator input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalService is returned when a collaborator is unreachable or misbehaves.
	ErrExternalService = errors.New("external service failure")
)

// ValidationError describes rejected name or phone input.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ConflictError reports an unavailable slot together with free alternatives.
type ConflictError struct {
	Master       string
	Date         string
	Time         string
	Alternatives []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s on %s at %s is not available (alternatives: %s)",
		e.Master, e.Date, e.Time, strings.Join(e.Alternatives, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrSlotTaken }

// RateLimitError reports too many booking attempts.
type RateLimitError struct {
	Limit  int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("more than %d bookings within %s", e.Limit, e.Window)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// NotFoundError reports an unknown booking id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("booking #%d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrBookingNotFound }

// TransitionError reports a move the transition tables do not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// AuthorizationError reports an operator command from a non-operator.
type AuthorizationError struct {
	Sender  string
	Command string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not allowed to run %s", e.Sender, e.Command)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// ExternalError wraps a failure of a collaborator such as the store or the extractor.
type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalError) Is(target error) bool { return target == ErrExternalService }

func (e *ExternalError) Unwrap() error { return e.Err }
