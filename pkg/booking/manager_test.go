package booking_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/adapters/sqlite"
	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/booking"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var operators = []string{"op1", "op2"}

type fixture struct {
	store    ports.Store
	gateway  *testutils.Gateway
	calendar *testutils.Calendar
	clock    *testutils.Clock
	notifier *notify.Notifier
	manager  *booking.Manager
}

func newFixture(t *testing.T, store ports.Store) *fixture {
	t.Helper()
	f := &fixture{
		store:    store,
		gateway:  testutils.NewGateway(),
		calendar: &testutils.Calendar{},
		clock:    testutils.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.notifier = notify.New(f.gateway)
	locks := session.NewManager(store)
	engine := availability.NewEngine(store)
	cfg := booking.DefaultConfig()
	cfg.Operators = operators
	f.manager = booking.NewManager(store, locks, engine, f.notifier, cfg,
		booking.WithCalendar(f.calendar),
		booking.WithClock(f.clock.Now),
	)
	return f
}

func (f *fixture) client(t *testing.T, userID, name string) *domain.Session {
	t.Helper()
	sess := domain.NewSession(userID, f.clock.Now())
	sess.Stage = domain.StageConversation
	sess.ClientName = name
	sess.ClientPhone = "7701000" + fmt.Sprintf("%04d", len(userID))
	require.NoError(t, f.store.SaveSession(context.Background(), sess))
	return sess
}

func draft(clock string) domain.Draft {
	return domain.Draft{
		Service:  "Manicure without coating",
		Master:   "Yuna",
		Price:    3000,
		Date:     "2025-03-02",
		Time:     clock,
		Duration: 60,
	}
}

func stores(t *testing.T) map[string]func() ports.Store {
	return map[string]func() ports.Store{
		"memory": func() ports.Store { return memory.NewStore() },
		"sqlite": func() ports.Store {
			s, err := sqlite.NewStore(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestCreate_Succeeds(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	sess := f.client(t, "u1", "Anna")

	b, err := f.manager.Create(ctx, sess, draft("10:00"))
	require.NoError(t, err)
	f.notifier.Wait()

	assert.Equal(t, domain.StatusPending, b.Status)
	assert.Equal(t, b.ID, sess.Draft.BookingID)
	require.NotEmpty(t, sess.History)
	last := sess.History[len(sess.History)-1]
	assert.Equal(t, domain.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Do not create it again")

	assert.Contains(t, f.gateway.Last("u1"), "sent to the administrator")
	for _, op := range operators {
		assert.Contains(t, f.gateway.Last(op), fmt.Sprintf("/approve %d", b.ID))
		assert.Contains(t, f.gateway.Last(op), fmt.Sprintf("/reject %d", b.ID))
	}
}

func TestCreate_DefaultsDuration(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	d := draft("10:00")
	d.Duration = 0

	b, err := f.manager.Create(context.Background(), f.client(t, "u1", "Anna"), d)
	require.NoError(t, err)
	assert.Equal(t, 60, b.Duration)
}

func TestCreate_PadsTime(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, newStore())

			b, err := f.manager.Create(ctx, f.client(t, "u1", "Anna"), draft("9:30"))
			require.NoError(t, err)
			assert.Equal(t, "09:30", b.Time)

			_, _, err = f.store.TransitionBooking(ctx, b.ID, domain.StatusConfirmed, f.clock.Now())
			require.NoError(t, err)
			due, err := f.store.DueReminders(ctx, "2025-03-02", "09:00", "10:00")
			require.NoError(t, err)
			require.Len(t, due, 1)
			assert.Equal(t, b.ID, due[0].ID)
		})
	}
}

func TestCreate_IncompleteDraft(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	d := draft("")

	_, err := f.manager.Create(context.Background(), f.client(t, "u1", "Anna"), d)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreate_RateLimit(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	sess := f.client(t, "u1", "Anna")

	for i := 0; i < 5; i++ {
		_, err := f.manager.Create(ctx, sess, draft(fmt.Sprintf("%02d:00", 10+i)))
		require.NoError(t, err, "attempt %d", i+1)
		f.clock.Advance(5 * time.Minute)
	}

	_, err := f.manager.Create(ctx, sess, draft("16:00"))
	var rle *domain.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 5, rle.Limit)
	assert.Contains(t, f.gateway.Last("u1"), "5 booking requests")

	// The window is rolling: once the first booking is older than an hour, one more fits.
	f.clock.Advance(40 * time.Minute)
	_, err = f.manager.Create(ctx, sess, draft("16:00"))
	assert.NoError(t, err)
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, newStore())
			ctx := context.Background()
			alice := f.client(t, "alice", "Alice")
			bob := f.client(t, "bob", "Bob")

			var (
				wg   sync.WaitGroup
				errs = make([]error, 2)
			)
			for i, sess := range []*domain.Session{alice, bob} {
				wg.Add(1)
				go func(i int, sess *domain.Session) {
					defer wg.Done()
					_, errs[i] = f.manager.Create(ctx, sess, draft("12:00"))
				}(i, sess)
			}
			wg.Wait()

			var conflicts []*domain.ConflictError
			winners := 0
			for _, err := range errs {
				var ce *domain.ConflictError
				switch {
				case err == nil:
					winners++
				case errors.As(err, &ce):
					conflicts = append(conflicts, ce)
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			require.Equal(t, 1, winners)
			require.Len(t, conflicts, 1)
			assert.NotEmpty(t, conflicts[0].Alternatives)
			assert.NotContains(t, conflicts[0].Alternatives, "12:00")
			assert.LessOrEqual(t, len(conflicts[0].Alternatives), 5)

			active, err := f.store.ListActiveBookings(ctx, "Yuna", "2025-03-02")
			require.NoError(t, err)
			assert.Len(t, active, 1)
		})
	}
}

func TestCreate_ConflictWithoutAlternatives(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	d := draft("10:00")
	d.Duration = 11 * 60
	_, err := f.manager.Create(ctx, f.client(t, "u1", "Anna"), d)
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, f.client(t, "u22", "Dana"), draft("15:00"))
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, ce.Alternatives)
	assert.Contains(t, f.gateway.Last("u22"), "another day")
}

func TestApprove_IsIdempotent(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, newStore())
			ctx := context.Background()
			sess := f.client(t, "u1", "Anna")
			b, err := f.manager.Create(ctx, sess, draft("10:00"))
			require.NoError(t, err)

			confirmed, err := f.manager.Approve(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusConfirmed, confirmed.Status)

			again, err := f.manager.Approve(ctx, b.ID)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.Equal(t, domain.StatusConfirmed, again.Status)

			stats, err := f.store.Stats(ctx)
			require.NoError(t, err)
			require.Len(t, stats, 1)
			assert.Equal(t, int64(3000), stats[0].Revenue)
			assert.Equal(t, 1, stats[0].ConfirmedBookings)

			assert.Equal(t, []int64{b.ID}, f.calendar.Added())
			confirmations := 0
			for _, m := range f.gateway.To("u1") {
				if strings.Contains(m, "is confirmed") {
					confirmations++
				}
			}
			assert.Equal(t, 1, confirmations, "the client is told once")

			stored, err := f.store.LoadSession(ctx, "u1")
			require.NoError(t, err)
			assert.Contains(t, stored.History[len(stored.History)-1].Content, "is now confirmed")
		})
	}
}

func TestApprove_CalendarFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	f.calendar.Err = errors.New("calendar down")
	ctx := context.Background()
	b, err := f.manager.Create(ctx, f.client(t, "u1", "Anna"), draft("10:00"))
	require.NoError(t, err)

	_, err = f.manager.Approve(ctx, b.ID)
	assert.NoError(t, err)
	assert.Contains(t, f.gateway.Last("u1"), "is confirmed")
}

func TestApprove_UnknownBooking(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	_, err := f.manager.Approve(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestReject(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	b, err := f.manager.Create(ctx, f.client(t, "u1", "Anna"), draft("10:00"))
	require.NoError(t, err)

	rejected, err := f.manager.Reject(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Contains(t, f.gateway.Last("u1"), "cannot confirm")

	_, err = f.manager.Reject(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.manager.Approve(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestCancel_NotifiesOperatorsOnlyWhenConfirmed(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	sess := f.client(t, "u1", "Anna")

	pending, err := f.manager.Create(ctx, sess, draft("10:00"))
	require.NoError(t, err)
	confirmed, err := f.manager.Create(ctx, sess, draft("12:00"))
	require.NoError(t, err)
	_, err = f.manager.Approve(ctx, confirmed.ID)
	require.NoError(t, err)
	f.notifier.Wait()
	f.gateway.Reset()

	_, err = f.manager.Cancel(ctx, pending.ID, "u1")
	require.NoError(t, err)
	f.notifier.Wait()
	assert.Empty(t, f.gateway.To("op1"))

	_, err = f.manager.Cancel(ctx, confirmed.ID, "u1")
	require.NoError(t, err)
	f.notifier.Wait()
	assert.Contains(t, f.gateway.Last("op1"), "cancelled confirmed booking")

	_, err = f.manager.Cancel(ctx, confirmed.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelLatest(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	sess := f.client(t, "u1", "Anna")

	first, err := f.manager.Create(ctx, sess, draft("10:00"))
	require.NoError(t, err)
	second, err := f.manager.Create(ctx, sess, draft("12:00"))
	require.NoError(t, err)

	ok, err := f.manager.CancelLatest(ctx, sess)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sess.Draft.Empty())

	got, err := f.store.GetBooking(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	got, err = f.store.GetBooking(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Contains(t, f.gateway.Last("u1"), "has been cancelled")
}

func TestCancelLatest_NoBookingClearsDraft(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	sess := f.client(t, "u1", "Anna")
	sess.Draft = draft("10:00")

	ok, err := f.manager.CancelLatest(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, sess.Draft.Empty())
}

func TestCreate_OperatorFailureDoesNotBlockClient(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	f.gateway.Fail["op1"] = errors.New("blocked")

	_, err := f.manager.Create(context.Background(), f.client(t, "u1", "Anna"), draft("10:00"))
	require.NoError(t, err)
	f.notifier.Wait()

	assert.Contains(t, f.gateway.Last("u1"), "sent to the administrator")
	assert.NotEmpty(t, f.gateway.To("op2"))
}
