package ports

import (
	"context"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

// SessionStore persists dialogue sessions.
type SessionStore interface {
	// LoadSession returns domain.ErrSessionNotFound for unknown users.
	LoadSession(ctx context.Context, userID string) (*domain.Session, error)
	SaveSession(ctx context.Context, sess *domain.Session) error
	ListSessions(ctx context.Context) ([]*domain.Session, error)
	// ListIdleSessions returns sessions outside the greeting stage last updated before the cutoff.
	ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error)
	// FindSessionByPhone matches the stored client phone by suffix.
	FindSessionByPhone(ctx context.Context, phone string) (*domain.Session, error)
	// FindSessionByCounterpart returns the session bound to an operator.
	FindSessionByCounterpart(ctx context.Context, operatorID string) (*domain.Session, error)
	// CountActiveSessions counts sessions outside the greeting stage.
	CountActiveSessions(ctx context.Context) (int, error)
}

// BookingStore persists bookings and the statistics derived from them.
type BookingStore interface {
	// CreateBooking assigns b.ID. The overlap check against active bookings of
	// the same master and date runs atomically with the insert; an overlap
	// yields domain.ErrSlotTaken.
	CreateBooking(ctx context.Context, b *domain.Booking) error
	// GetBooking returns domain.ErrBookingNotFound for unknown ids.
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListActiveBookings(ctx context.Context, master, date string) ([]*domain.Booking, error)
	ListBookings(ctx context.Context, userID string) ([]*domain.Booking, error)
	CountBookingsSince(ctx context.Context, userID string, since time.Time) (int, error)
	// LatestActiveBooking returns domain.ErrBookingNotFound when the user has none.
	LatestActiveBooking(ctx context.Context, userID string) (*domain.Booking, error)
	// TransitionBooking moves a booking to status to and returns the status it had
	// before. Moving to confirmed updates the master statistics and the client
	// totals in the same transaction. Disallowed moves return a
	// *domain.TransitionError and change nothing.
	TransitionBooking(ctx context.Context, id int64, to domain.Status, at time.Time) (prev domain.Status, b *domain.Booking, err error)
	// DueReminders lists confirmed bookings on date starting within [from, to] without a reminder.
	DueReminders(ctx context.Context, date, from, to string) ([]*domain.Booking, error)
	// MarkReminderSent flags the reminder and reports whether this call set it.
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) ([]domain.MasterStats, error)
}

// ClientStore persists returning customers.
type ClientStore interface {
	// UpsertClient creates the client or updates name and user id, keeping totals.
	UpsertClient(ctx context.Context, c *domain.Client) error
	// FindClientByPhone matches by phone suffix; domain.ErrClientNotFound otherwise.
	FindClientByPhone(ctx context.Context, phone string) (*domain.Client, error)
}

// Store is the full persistence port.
type Store interface {
	SessionStore
	BookingStore
	ClientStore
}

type combined struct {
	SessionStore
	BookingStore
	ClientStore
}

// Combine keeps sessions in one backend and bookings and clients in another.
func Combine(sessions SessionStore, records interface {
	BookingStore
	ClientStore
}) Store {
	return combined{SessionStore: sessions, BookingStore: records, ClientStore: records}
}
