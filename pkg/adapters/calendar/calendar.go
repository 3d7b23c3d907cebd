// Package calendar mirrors confirmed bookings into a Google Calendar.
package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/aretw0/concierge/pkg/domain"
)

// DefaultDuration is used for bookings that carry no duration.
const DefaultDuration = 90 * time.Minute

// Sync implements ports.Calendar.
type Sync struct {
	events     *gcal.EventsService
	calendarID string
	location   *time.Location
}

// New creates a Sync. Client options select credentials, for example
// option.WithCredentialsFile.
func New(ctx context.Context, calendarID string, loc *time.Location, opts ...option.ClientOption) (*Sync, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sync{events: svc.Events, calendarID: calendarID, location: loc}, nil
}

// AddBooking inserts one event for b.
func (s *Sync) AddBooking(ctx context.Context, b *domain.Booking) error {
	start, err := b.StartsAt(s.location)
	if err != nil {
		return err
	}
	duration := DefaultDuration
	if b.Duration > 0 {
		duration = time.Duration(b.Duration) * time.Minute
	}

	event := &gcal.Event{
		Summary:     fmt.Sprintf("%s: %s", b.Master, b.Service),
		Description: fmt.Sprintf("Client: %s\nPhone: %s\nPrice: %d\nBooking #%d", b.ClientName, b.ClientPhone, b.Price, b.ID),
		Start: &gcal.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.location.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: start.Add(duration).Format(time.RFC3339),
			TimeZone: s.location.String(),
		},
	}
	if _, err := s.events.Insert(s.calendarID, event).Context(ctx).Do(); err != nil {
		return &domain.ExternalError{Service: "calendar", Err: err}
	}
	return nil
}
