/*
Package availability answers whether a master is free at a given time.

The same predicate backs the advisory check during the dialogue, the check
made when a booking intent becomes ready, and the authoritative check the
stores run inside the insert transaction.
*/
package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
)

// Overlaps reports whether [s1, s1+d1) and [s2, s2+d2) intersect.
func Overlaps(s1, d1, s2, d2 int) bool {
	return s1 < s2+d2 && s2 < s1+d1
}

// Conflict returns the first active booking overlapping [start, start+duration).
// Bookings whose time cannot be parsed are treated as conflicting.
func Conflict(bookings []*domain.Booking, start, duration int) (*domain.Booking, bool) {
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		s, d, err := b.Interval()
		if err != nil || Overlaps(start, duration, s, d) {
			return b, true
		}
	}
	return nil, false
}

// BookingLister is the slice of the store the engine reads from.
type BookingLister interface {
	ListActiveBookings(ctx context.Context, master, date string) ([]*domain.Booking, error)
}

// Hours configures the bookable part of the day.
type Hours struct {
	Open            int           // opening hour, 0-23
	Close           int           // closing hour, 1-24
	Granularity     time.Duration // distance between candidate start times
	DefaultDuration time.Duration // slot length when the service is unknown
}

// DefaultHours returns 10:00 to 21:00 with hourly one-hour slots.
func DefaultHours() Hours {
	return Hours{Open: 10, Close: 21, Granularity: time.Hour, DefaultDuration: time.Hour}
}

// Engine evaluates availability against the store.
type Engine struct {
	bookings BookingLister
	hours    Hours
	logger   *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithHours overrides the business hours.
func WithHours(h Hours) Option {
	return func(e *Engine) {
		e.hours = h
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine over the given bookings source.
func NewEngine(bookings BookingLister, opts ...Option) *Engine {
	e := &Engine{
		bookings: bookings,
		hours:    DefaultHours(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hours returns the configured business hours.
func (e *Engine) Hours() Hours {
	return e.hours
}

// DefaultDuration returns the default slot length in minutes.
func (e *Engine) DefaultDuration() int {
	return int(e.hours.DefaultDuration / time.Minute)
}

// IsFree reports whether master has no active booking overlapping the interval.
// It fails closed: any error reading the store or parsing the input yields false.
func (e *Engine) IsFree(ctx context.Context, master, date, clock string, duration int) bool {
	start, err := domain.ParseClock(clock)
	if err != nil {
		e.logger.Warn("Availability check on malformed time", "master", master, "date", date, "time", clock)
		return false
	}
	if _, err := domain.ParseDate(date); err != nil {
		e.logger.Warn("Availability check on malformed date", "master", master, "date", date)
		return false
	}
	if duration <= 0 {
		duration = e.DefaultDuration()
	}

	bookings, err := e.bookings.ListActiveBookings(ctx, master, date)
	if err != nil {
		e.logger.Error("Availability check failed, treating slot as taken",
			"master", master, "date", date, "time", clock, "err", err)
		return false
	}
	_, taken := Conflict(bookings, start, duration)
	return !taken
}

// FreeSlots lists the free start times of master on date, ordered by time of day.
// Every slot fits the default duration before closing time. Store errors yield no slots.
func (e *Engine) FreeSlots(ctx context.Context, master, date string) []string {
	bookings, err := e.bookings.ListActiveBookings(ctx, master, date)
	if err != nil {
		e.logger.Error("Failed to list free slots", "master", master, "date", date, "err", err)
		return nil
	}
	return e.freeSlots(bookings)
}

// Alternatives returns at most limit free start times of master on date.
func (e *Engine) Alternatives(ctx context.Context, master, date string, limit int) []string {
	slots := e.FreeSlots(ctx, master, date)
	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots
}

func (e *Engine) freeSlots(bookings []*domain.Booking) []string {
	step := int(e.hours.Granularity / time.Minute)
	if step <= 0 {
		step = 60
	}
	duration := e.DefaultDuration()
	closing := e.hours.Close * 60

	var slots []string
	for start := e.hours.Open * 60; start+duration <= closing; start += step {
		if _, taken := Conflict(bookings, start, duration); !taken {
			slots = append(slots, domain.FormatClock(start))
		}
	}
	return slots
}
