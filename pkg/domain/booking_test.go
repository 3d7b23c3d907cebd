package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusConfirmed))
	assert.True(t, StatusPending.CanTransition(StatusRejected))
	assert.True(t, StatusPending.CanTransition(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransition(StatusCancelled))

	assert.False(t, StatusConfirmed.CanTransition(StatusConfirmed))
	assert.False(t, StatusConfirmed.CanTransition(StatusRejected))
	assert.False(t, StatusRejected.CanTransition(StatusConfirmed))
	assert.False(t, StatusCancelled.CanTransition(StatusPending))
}

func TestBooking_StartsAt(t *testing.T) {
	loc := time.FixedZone("ALMT", 5*3600)
	b := &Booking{Date: "2025-03-01", Time: "14:30"}

	start, err := b.StartsAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 14, 30, 0, 0, loc), start)

	b.Time = "25:00"
	_, err = b.StartsAt(loc)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClock(t *testing.T) {
	m, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, 545, m)
	assert.Equal(t, "09:05", FormatClock(m))

	_, err = ParseClock("nine")
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "77011234567", NormalizeAddress("77011234567@c.us"))
	assert.Equal(t, "77011234567", NormalizeAddress(" +77011234567 "))
	assert.Equal(t, "12345", NormalizeAddress("12345@lid"))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	assert.ErrorIs(t, &ConflictError{}, ErrSlotTaken)
	assert.ErrorIs(t, &RateLimitError{}, ErrRateLimited)
	assert.ErrorIs(t, &NotFoundError{ID: 3}, ErrBookingNotFound)
	assert.ErrorIs(t, &AuthorizationError{}, ErrUnauthorized)
	assert.ErrorIs(t, &ValidationError{}, ErrInvalidInput)

	cause := errors.New("timeout")
	ext := &ExternalError{Service: "extractor", Err: cause}
	assert.ErrorIs(t, ext, ErrExternalService)
	assert.ErrorIs(t, ext, cause)
}
