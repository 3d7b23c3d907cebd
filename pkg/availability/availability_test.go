package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type fakeLister struct {
	bookings []*domain.Booking
	err      error
}

func (f *fakeLister) ListActiveBookings(ctx context.Context, master, date string) ([]*domain.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Booking
	for _, b := range f.bookings {
		if b.Master == master && b.Date == date && b.Status.Active() {
			out = append(out, b)
		}
	}
	return out, nil
}

func booked(clock string, duration int, status domain.Status) *domain.Booking {
	return &domain.Booking{Master: "Yuna", Date: "2025-03-02", Time: clock, Duration: duration, Status: status}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, d1, s2, d2 int
		want           bool
	}{
		{"identical", 600, 60, 600, 60, true},
		{"partial", 600, 90, 660, 60, true},
		{"contained", 600, 180, 660, 30, true},
		{"adjacent after", 600, 60, 660, 60, false},
		{"adjacent before", 660, 60, 600, 60, false},
		{"disjoint", 600, 30, 720, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.s1, tt.d1, tt.s2, tt.d2))
			assert.Equal(t, tt.want, Overlaps(tt.s2, tt.d2, tt.s1, tt.d1), "overlap must be symmetric")
		})
	}
}

func TestIsFree(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(&fakeLister{bookings: []*domain.Booking{
		booked("10:00", 90, domain.StatusPending),
		booked("14:00", 60, domain.StatusConfirmed),
		booked("16:00", 60, domain.StatusRejected),
		booked("17:00", 60, domain.StatusCancelled),
	}})

	assert.False(t, e.IsFree(ctx, "Yuna", "2025-03-02", "11:00", 60), "overlaps the pending booking")
	assert.True(t, e.IsFree(ctx, "Yuna", "2025-03-02", "11:30", 60), "starts when the pending booking ends")
	assert.False(t, e.IsFree(ctx, "Yuna", "2025-03-02", "13:30", 60))
	assert.True(t, e.IsFree(ctx, "Yuna", "2025-03-02", "16:00", 60), "rejected bookings free the slot")
	assert.True(t, e.IsFree(ctx, "Yuna", "2025-03-02", "17:00", 60), "cancelled bookings free the slot")
	assert.True(t, e.IsFree(ctx, "Lena", "2025-03-02", "10:00", 60))
	assert.True(t, e.IsFree(ctx, "Yuna", "2025-03-03", "10:00", 60))
}

func TestIsFree_FailsClosed(t *testing.T) {
	ctx := context.Background()

	broken := NewEngine(&fakeLister{err: errors.New("db down")})
	assert.False(t, broken.IsFree(ctx, "Yuna", "2025-03-02", "12:00", 60))

	e := NewEngine(&fakeLister{})
	assert.False(t, e.IsFree(ctx, "Yuna", "2025-03-02", "noon", 60))
	assert.False(t, e.IsFree(ctx, "Yuna", "tomorrow", "12:00", 60))
}

func TestFreeSlots(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(&fakeLister{bookings: []*domain.Booking{
		booked("10:00", 90, domain.StatusPending),
		booked("15:00", 60, domain.StatusConfirmed),
	}})

	slots := e.FreeSlots(ctx, "Yuna", "2025-03-02")
	assert.Equal(t, []string{"12:00", "13:00", "14:00", "16:00", "17:00", "18:00", "19:00", "20:00"}, slots)

	assert.Equal(t, []string{"12:00", "13:00"}, e.Alternatives(ctx, "Yuna", "2025-03-02", 2))
}

func TestFreeSlots_CustomHours(t *testing.T) {
	e := NewEngine(&fakeLister{}, WithHours(Hours{
		Open:            9,
		Close:           11,
		Granularity:     30 * time.Minute,
		DefaultDuration: time.Hour,
	}))

	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, e.FreeSlots(context.Background(), "Yuna", "2025-03-02"))
}

func TestFreeSlots_StoreError(t *testing.T) {
	e := NewEngine(&fakeLister{err: errors.New("db down")})
	assert.Empty(t, e.FreeSlots(context.Background(), "Yuna", "2025-03-02"))
}
