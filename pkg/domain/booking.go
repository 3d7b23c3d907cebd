package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

// CanTransition reports whether a booking in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the booking still occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Booking is a persisted appointment request.
type Booking struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	ClientName   string    `json:"client_name"`
	ClientPhone  string    `json:"client_phone"`
	Service      string    `json:"service"`
	Master       string    `json:"master"`
	Price        int64     `json:"price"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Duration     int       `json:"duration"`
	Status       Status    `json:"status"`
	ReminderSent bool      `json:"reminder_sent"`
	CreatedAt    time.Time `json:"created_at"`
	ConfirmedAt  time.Time `json:"confirmed_at,omitzero"`
}

// Interval returns the booking as minutes since midnight and its length.
func (b *Booking) Interval() (start, duration int, err error) {
	start, err = ParseClock(b.Time)
	if err != nil {
		return 0, 0, err
	}
	return start, b.Duration, nil
}

// StartsAt resolves the booking start in loc.
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, b.Date+" "+b.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: booking %d start: %v", ErrInvalidInput, b.ID, err)
	}
	return t, nil
}

// NewBooking builds a pending booking from a draft and the session's client details.
func NewBooking(sess *Session, d Draft, now time.Time) *Booking {
	return &Booking{
		UserID:      sess.UserID,
		ClientName:  sess.ClientName,
		ClientPhone: sess.ClientPhone,
		Service:     d.Service,
		Master:      d.Master,
		Price:       d.Price,
		Date:        d.Date,
		Time:        d.Time,
		Duration:    d.Duration,
		Status:      StatusPending,
		CreatedAt:   now,
	}
}
