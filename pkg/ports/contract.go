package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	booking := func(user, master, date, clock string, duration int) *domain.Booking {
		return &domain.Booking{
			UserID:      user,
			ClientName:  "Anna",
			ClientPhone: "77011234567",
			Service:     "Manicure without coating",
			Master:      master,
			Price:       3000,
			Date:        date,
			Time:        clock,
			Duration:    duration,
			Status:      domain.StatusPending,
			CreatedAt:   now,
		}
	}

	t.Run("Session Save and Load", func(t *testing.T) {
		store := newStore(t)
		sess := domain.NewSession("u1", now)
		sess.Stage = domain.StageConversation
		sess.ClientName = "Anna"
		sess.ClientPhone = "77011234567"
		sess.Append(domain.RoleUser, "hello", now)
		sess.Draft = domain.Draft{Master: "Yuna", Date: "2025-03-02", Time: "10:00", Duration: 60}
		require.NoError(t, sess.BindOperator("op1"))

		require.NoError(t, store.SaveSession(ctx, sess))

		loaded, err := store.LoadSession(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.StageConversation, loaded.Stage)
		assert.Equal(t, "Anna", loaded.ClientName)
		assert.Equal(t, sess.Draft, loaded.Draft)
		assert.True(t, loaded.AdminMode)
		assert.Equal(t, "op1", loaded.AdminCounterpart)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "hello", loaded.History[0].Content)
		assert.True(t, now.Equal(loaded.UpdatedAt))

		loaded.ClientName = "mutated"
		again, err := store.LoadSession(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Anna", again.ClientName, "store must not share memory with callers")
	})

	t.Run("Session Load Non-Existent", func(t *testing.T) {
		store := newStore(t)
		_, err := store.LoadSession(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Idle Sessions", func(t *testing.T) {
		store := newStore(t)
		stale := domain.NewSession("stale", now.Add(-time.Hour))
		stale.Stage = domain.StageConversation
		fresh := domain.NewSession("fresh", now)
		fresh.Stage = domain.StageConversation
		greeting := domain.NewSession("greeting", now.Add(-time.Hour))
		for _, s := range []*domain.Session{stale, fresh, greeting} {
			require.NoError(t, store.SaveSession(ctx, s))
		}

		idle, err := store.ListIdleSessions(ctx, now.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Len(t, idle, 1)
		assert.Equal(t, "stale", idle[0].UserID)

		n, err := store.CountActiveSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, err := store.ListSessions(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Idle Operator Binding In Greeting", func(t *testing.T) {
		store := newStore(t)
		bound := domain.NewSession("bound", now.Add(-time.Hour))
		require.NoError(t, bound.BindOperator("op1"))
		require.NoError(t, store.SaveSession(ctx, bound))

		idle, err := store.ListIdleSessions(ctx, now.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Len(t, idle, 1)
		assert.Equal(t, "bound", idle[0].UserID)
		assert.Equal(t, domain.StageGreeting, idle[0].Stage)
	})

	t.Run("Session Lookup", func(t *testing.T) {
		store := newStore(t)
		sess := domain.NewSession("u1", now)
		sess.ClientPhone = "77011234567"
		require.NoError(t, store.SaveSession(ctx, sess))
		other := domain.NewSession("u2", now)
		require.NoError(t, other.BindOperator("op1"))
		require.NoError(t, store.SaveSession(ctx, other))

		found, err := store.FindSessionByPhone(ctx, "7011234567")
		require.NoError(t, err)
		assert.Equal(t, "u1", found.UserID)

		_, err = store.FindSessionByPhone(ctx, "70000000")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		bound, err := store.FindSessionByCounterpart(ctx, "op1")
		require.NoError(t, err)
		assert.Equal(t, "u2", bound.UserID)

		_, err = store.FindSessionByCounterpart(ctx, "op2")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Create Booking Assigns IDs", func(t *testing.T) {
		store := newStore(t)
		a := booking("u1", "Yuna", "2025-03-02", "10:00", 60)
		b := booking("u1", "Yuna", "2025-03-02", "11:00", 60)
		require.NoError(t, store.CreateBooking(ctx, a))
		require.NoError(t, store.CreateBooking(ctx, b))
		assert.Positive(t, a.ID)
		assert.Greater(t, b.ID, a.ID)

		got, err := store.GetBooking(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "10:00", got.Time)
		assert.Equal(t, domain.StatusPending, got.Status)

		_, err = store.GetBooking(ctx, 9999)
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("Create Booking Rejects Overlap", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateBooking(ctx, booking("u1", "Yuna", "2025-03-02", "10:00", 90)))

		err := store.CreateBooking(ctx, booking("u2", "Yuna", "2025-03-02", "11:00", 60))
		assert.ErrorIs(t, err, domain.ErrSlotTaken)

		// Half-open intervals: starting when the other ends is fine.
		assert.NoError(t, store.CreateBooking(ctx, booking("u2", "Yuna", "2025-03-02", "11:30", 60)))
		assert.NoError(t, store.CreateBooking(ctx, booking("u3", "Lena", "2025-03-02", "10:00", 60)))
		assert.NoError(t, store.CreateBooking(ctx, booking("u3", "Yuna", "2025-03-03", "10:00", 60)))

		active, err := store.ListActiveBookings(ctx, "Yuna", "2025-03-02")
		require.NoError(t, err)
		assert.Len(t, active, 2)
	})

	t.Run("Inactive Bookings Free Their Slot", func(t *testing.T) {
		store := newStore(t)
		first := booking("u1", "Yuna", "2025-03-02", "10:00", 60)
		require.NoError(t, store.CreateBooking(ctx, first))
		_, _, err := store.TransitionBooking(ctx, first.ID, domain.StatusRejected, now)
		require.NoError(t, err)

		assert.NoError(t, store.CreateBooking(ctx, booking("u2", "Yuna", "2025-03-02", "10:00", 60)))
	})

	t.Run("Concurrent Create Has One Winner", func(t *testing.T) {
		store := newStore(t)
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			won     int
			clashes int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.CreateBooking(ctx, booking(fmt.Sprintf("u%d", i), "Yuna", "2025-03-02", "15:00", 60))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won++
				case errors.Is(err, domain.ErrSlotTaken):
					clashes++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, won)
		assert.Equal(t, 7, clashes)
	})

	t.Run("Confirm Updates Statistics Once", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.UpsertClient(ctx, &domain.Client{Phone: "77011234567", Name: "Anna", UserID: "u1"}))
		b := booking("u1", "Yuna", "2025-03-02", "10:00", 60)
		require.NoError(t, store.CreateBooking(ctx, b))

		prev, confirmed, err := store.TransitionBooking(ctx, b.ID, domain.StatusConfirmed, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, prev)
		assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
		assert.True(t, now.Equal(confirmed.ConfirmedAt))

		prev, _, err = store.TransitionBooking(ctx, b.ID, domain.StatusConfirmed, now)
		var te *domain.TransitionError
		assert.ErrorAs(t, err, &te)
		assert.Equal(t, domain.StatusConfirmed, prev)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "Yuna", stats[0].Master)
		assert.Equal(t, 1, stats[0].TotalBookings)
		assert.Equal(t, 1, stats[0].ConfirmedBookings)
		assert.Equal(t, int64(3000), stats[0].Revenue)

		c, err := store.FindClientByPhone(ctx, "77011234567")
		require.NoError(t, err)
		assert.Equal(t, 1, c.TotalVisits)
		assert.Equal(t, int64(3000), c.TotalSpent)
	})

	t.Run("Transition Unknown Booking", func(t *testing.T) {
		store := newStore(t)
		_, _, err := store.TransitionBooking(ctx, 42, domain.StatusConfirmed, now)
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("Rate Window And Latest Booking", func(t *testing.T) {
		store := newStore(t)
		old := booking("u1", "Yuna", "2025-03-02", "10:00", 60)
		old.CreatedAt = now.Add(-2 * time.Hour)
		recent := booking("u1", "Yuna", "2025-03-02", "12:00", 60)
		require.NoError(t, store.CreateBooking(ctx, old))
		require.NoError(t, store.CreateBooking(ctx, recent))

		n, err := store.CountBookingsSince(ctx, "u1", now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		latest, err := store.LatestActiveBooking(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, recent.ID, latest.ID)

		_, _, err = store.TransitionBooking(ctx, recent.ID, domain.StatusCancelled, now)
		require.NoError(t, err)
		latest, err = store.LatestActiveBooking(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, old.ID, latest.ID)

		_, err = store.LatestActiveBooking(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)

		mine, err := store.ListBookings(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})

	t.Run("Reminders", func(t *testing.T) {
		store := newStore(t)
		due := booking("u1", "Yuna", "2025-03-02", "10:30", 60)
		later := booking("u2", "Yuna", "2025-03-02", "13:00", 60)
		pending := booking("u3", "Lena", "2025-03-02", "10:30", 60)
		for _, b := range []*domain.Booking{due, later, pending} {
			require.NoError(t, store.CreateBooking(ctx, b))
		}
		for _, b := range []*domain.Booking{due, later} {
			_, _, err := store.TransitionBooking(ctx, b.ID, domain.StatusConfirmed, now)
			require.NoError(t, err)
		}

		list, err := store.DueReminders(ctx, "2025-03-02", "10:00", "11:00")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, due.ID, list[0].ID)

		set, err := store.MarkReminderSent(ctx, due.ID)
		require.NoError(t, err)
		assert.True(t, set)
		set, err = store.MarkReminderSent(ctx, due.ID)
		require.NoError(t, err)
		assert.False(t, set)

		list, err = store.DueReminders(ctx, "2025-03-02", "10:00", "11:00")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Clients", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.UpsertClient(ctx, &domain.Client{Phone: "77011234567", Name: "Anna", UserID: "u1"}))
		require.NoError(t, store.UpsertClient(ctx, &domain.Client{Phone: "77011234567", Name: "Anya", UserID: "u1"}))

		c, err := store.FindClientByPhone(ctx, "7011234567")
		require.NoError(t, err)
		assert.Equal(t, "Anya", c.Name)
		assert.Equal(t, "u1", c.UserID)

		_, err = store.FindClientByPhone(ctx, "79990000000")
		assert.ErrorIs(t, err, domain.ErrClientNotFound)
	})
}
