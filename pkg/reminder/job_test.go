package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmed(t *testing.T, store *memory.Store, userID, date, clock string) *domain.Booking {
	t.Helper()
	ctx := context.Background()
	b := &domain.Booking{
		UserID: userID, Service: "Manicure without coating", Master: "Yuna", Price: 3000,
		Date: date, Time: clock, Duration: 60, Status: domain.StatusPending,
	}
	require.NoError(t, store.CreateBooking(ctx, b))
	_, _, err := store.TransitionBooking(ctx, b.ID, domain.StatusConfirmed, time.Now())
	require.NoError(t, err)
	return b
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gateway := testutils.NewGateway()
	clock := testutils.NewClock(time.Date(2025, 3, 2, 11, 30, 0, 0, time.UTC))
	job := reminder.New(store, notify.New(gateway), reminder.WithClock(clock.Now))

	confirmed(t, store, "soon", "2025-03-02", "12:00")
	confirmed(t, store, "later", "2025-03-02", "15:00")
	confirmed(t, store, "tomorrow", "2025-03-03", "12:00")
	pending := &domain.Booking{UserID: "pending", Master: "Lena", Date: "2025-03-02", Time: "12:00", Duration: 60, Status: domain.StatusPending}
	require.NoError(t, store.CreateBooking(ctx, pending))

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, gateway.Last("soon"), "today at 12:00")
	assert.Empty(t, gateway.To("later"))
	assert.Empty(t, gateway.To("tomorrow"))
	assert.Empty(t, gateway.To("pending"))

	t.Run("At Most Once", func(t *testing.T) {
		n, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, gateway.To("soon"), 1)
	})
}

func TestRun_WindowCrossesMidnight(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gateway := testutils.NewGateway()
	clock := testutils.NewClock(time.Date(2025, 3, 2, 23, 30, 0, 0, time.UTC))
	job := reminder.New(store, notify.New(gateway), reminder.WithClock(clock.Now))

	confirmed(t, store, "late", "2025-03-02", "23:45")
	confirmed(t, store, "early", "2025-03-03", "00:15")
	confirmed(t, store, "too-early", "2025-03-03", "01:00")

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, gateway.To("late"))
	assert.NotEmpty(t, gateway.To("early"))
	assert.Empty(t, gateway.To("too-early"))
}

func TestRun_BusinessTimeZone(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gateway := testutils.NewGateway()
	// 06:30 UTC is 11:30 in UTC+5.
	clock := testutils.NewClock(time.Date(2025, 3, 2, 6, 30, 0, 0, time.UTC))
	job := reminder.New(store, notify.New(gateway),
		reminder.WithClock(clock.Now),
		reminder.WithLocation(time.FixedZone("UTC+5", 5*3600)))

	confirmed(t, store, "local", "2025-03-02", "12:00")

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_FailedDeliveryIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gateway := testutils.NewGateway()
	gateway.Fail["soon"] = errors.New("bridge down")
	clock := testutils.NewClock(time.Date(2025, 3, 2, 11, 30, 0, 0, time.UTC))
	job := reminder.New(store, notify.New(gateway), reminder.WithClock(clock.Now))

	b := confirmed(t, store, "soon", "2025-03-02", "12:00")

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)

	delete(gateway.Fail, "soon")
	n, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
