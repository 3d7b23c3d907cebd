package admin_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/admin"
	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/booking"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	operator = "77010000001@c.us"
	client   = "77019998877@c.us"
)

type fixture struct {
	store    *memory.Store
	gateway  *testutils.Gateway
	notifier *notify.Notifier
	bookings *booking.Manager
	ctrl     *admin.Controller
	locks    *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutils.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		store:   memory.NewStore(),
		gateway: testutils.NewGateway(),
	}
	f.notifier = notify.New(f.gateway)
	f.locks = session.NewManager(f.store, session.WithClock(clock.Now))
	cfg := booking.DefaultConfig()
	cfg.Operators = []string{operator}
	f.bookings = booking.NewManager(f.store, f.locks, availability.NewEngine(f.store), f.notifier, cfg,
		booking.WithClock(clock.Now))
	f.ctrl = admin.NewController(f.store, f.locks, f.bookings, f.notifier, []string{"+77010000001"},
		admin.WithClock(clock.Now),
		admin.WithDashboardURL("https://example.test/dash"),
	)

	sess := domain.NewSession(client, clock.Now())
	sess.Stage = domain.StageConversation
	sess.ClientName = "Aliya"
	sess.ClientPhone = "77019998877"
	require.NoError(t, f.store.SaveSession(context.Background(), sess))
	return f
}

func (f *fixture) session(t *testing.T) *domain.Session {
	t.Helper()
	sess, err := f.store.LoadSession(context.Background(), client)
	require.NoError(t, err)
	return sess
}

func (f *fixture) book(t *testing.T) *domain.Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), f.session(t), domain.Draft{
		Service: "Manicure without coating", Master: "Yuna", Price: 3000,
		Date: "2025-03-02", Time: "12:00", Duration: 60,
	})
	require.NoError(t, err)
	f.notifier.Wait()
	f.gateway.Reset()
	return b
}

func TestIsOperator(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.ctrl.IsOperator(operator))
	assert.True(t, f.ctrl.IsOperator("77010000001"))
	assert.False(t, f.ctrl.IsOperator(client))
}

func TestApproveAndReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.book(t)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/approve "+itoa(b.ID)))
	assert.Contains(t, f.gateway.Last(operator), "confirmed")
	assert.True(t, f.gateway.Contains(client, "is confirmed"))

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "ok #"+itoa(b.ID)))
	assert.Contains(t, f.gateway.Last(operator), "already confirmed")

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/reject 999"))
	assert.Contains(t, f.gateway.Last(operator), "not found")

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/reject "+itoa(b.ID)))
	assert.Contains(t, f.gateway.Last(operator), "already confirmed")
}

func TestStatsAndDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.book(t)
	_, err := f.bookings.Approve(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/stats"))
	report := f.gateway.Last(operator)
	assert.Contains(t, report, "Yuna: 1 confirmed, revenue 3000")
	assert.Contains(t, report, "Active dialogs: 1")

	sum, err := f.ctrl.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), sum.Revenue)
	assert.Equal(t, 1, sum.Confirmed)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "dashboard"))
	assert.Contains(t, f.gateway.Last(operator), "https://example.test/dash")
}

func TestConnectRelayClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/connect 9998877"))
	assert.Contains(t, f.gateway.Last(operator), "Connected to Aliya")
	assert.Equal(t, admin.MsgOperatorJoined, f.gateway.Last(client))

	sess := f.session(t)
	assert.True(t, sess.AdminMode)
	assert.Equal(t, operator, sess.AdminCounterpart)

	t.Run("Second Connect Refused", func(t *testing.T) {
		require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/connect 9998877"))
		assert.Contains(t, f.gateway.Last(operator), "/close first")
	})

	t.Run("Operator Text Is Relayed Verbatim", func(t *testing.T) {
		require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "Hello! Tomorrow 14:00 works."))
		assert.Equal(t, "Hello! Tomorrow 14:00 works.", f.gateway.Last(client))
	})

	t.Run("Client Text Is Relayed Verbatim", func(t *testing.T) {
		err := f.locks.UpdateExisting(ctx, client, func(ctx context.Context, sess *domain.Session) error {
			return f.ctrl.RelayToOperator(ctx, sess, "Great, thanks")
		})
		require.NoError(t, err)
		assert.Equal(t, "Great, thanks", f.gateway.Last(operator))
	})

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/close"))
	assert.Equal(t, admin.MsgAssistantResume, f.gateway.Last(client))
	assert.Contains(t, f.gateway.Last(operator), "closed")

	sess = f.session(t)
	assert.False(t, sess.AdminMode)
	assert.Empty(t, sess.AdminCounterpart)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/close"))
	assert.Contains(t, f.gateway.Last(operator), "no active dialog")
}

func TestConnectViaClientRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.UpsertClient(ctx, &domain.Client{
		Phone: "77071112233", Name: "Dana", UserID: "77071112233@c.us",
	}))

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/connect 1112233"))
	sess, err := f.store.LoadSession(ctx, "77071112233@c.us")
	require.NoError(t, err)
	assert.True(t, sess.AdminMode)
}

func TestConnectUnknownPhone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/connect 0000000"))
	assert.Contains(t, f.gateway.Last(operator), "No client found")
}

func TestOperatorHelp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "hello there"))
	assert.Contains(t, f.gateway.Last(operator), "/connect")

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/frobnicate"))
	assert.Contains(t, f.gateway.Last(operator), "/approve")

	require.NoError(t, f.ctrl.HandleOperator(ctx, operator, "/approve abc"))
	assert.Contains(t, f.gateway.Last(operator), "usage")
}

func TestHandleClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.session(t)

	t.Run("Plain Text Is Not A Command", func(t *testing.T) {
		assert.False(t, f.ctrl.HandleClient(ctx, sess, "I want a manicure"))
	})

	t.Run("Operator Commands Are Denied", func(t *testing.T) {
		assert.True(t, f.ctrl.HandleClient(ctx, sess, "/stats"))
		assert.Contains(t, f.gateway.Last(client), "administrators only")
		assert.True(t, f.ctrl.HandleClient(ctx, sess, "/approve 1"))
		assert.Contains(t, f.gateway.Last(client), "administrators only")
	})

	t.Run("Update Name", func(t *testing.T) {
		assert.True(t, f.ctrl.HandleClient(ctx, sess, "/update-name dana"))
		assert.Equal(t, "Dana", sess.ClientName)
		c, err := f.store.FindClientByPhone(ctx, "77019998877")
		require.NoError(t, err)
		assert.Equal(t, "Dana", c.Name)
	})

	t.Run("My Info", func(t *testing.T) {
		f.book(t)
		assert.True(t, f.ctrl.HandleClient(ctx, sess, "/my-info"))
		info := f.gateway.Last(client)
		assert.Contains(t, info, "Name: Dana")
		assert.Contains(t, info, "Phone: 77019998877")
		assert.Contains(t, info, "Yuna")
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
