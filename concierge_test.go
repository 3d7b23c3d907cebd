package concierge_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

const (
	client   = "77011234567@c.us"
	operator = "77010000001@c.us"
)

type fixture struct {
	store     *memory.Store
	gateway   *testutils.Gateway
	extractor *testutils.Extractor
	responder *testutils.Responder
	clock     *testutils.Clock
	assistant *concierge.Assistant
	routes    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		gateway:   testutils.NewGateway(),
		extractor: &testutils.Extractor{},
		responder: &testutils.Responder{Text: "How can I help?"},
		clock:     testutils.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	a, err := concierge.New(f.store, f.gateway,
		concierge.WithExtractor(f.extractor),
		concierge.WithResponder(f.responder),
		concierge.WithOperators("+77010000001"),
		concierge.WithClock(f.clock.Now),
		concierge.WithHooks(domain.Hooks{OnMessage: func(_ context.Context, route string) {
			f.routes = append(f.routes, route)
		}}),
	)
	require.NoError(t, err)
	f.assistant = a
	return f
}

func (f *fixture) send(t *testing.T, from, body string) {
	t.Helper()
	require.NoError(t, f.assistant.Handle(context.Background(), domain.InboundMessage{From: from, Body: body}))
}

func (f *fixture) session(t *testing.T) *domain.Session {
	t.Helper()
	sess, err := f.assistant.Session(context.Background(), client)
	require.NoError(t, err)
	return sess
}

func (f *fixture) register(t *testing.T) {
	t.Helper()
	f.send(t, client, "Hi")
	f.send(t, client, "Anna +77011234567")
	require.Equal(t, domain.StageConversation, f.session(t).Stage)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := concierge.New(memory.NewStore(), testutils.NewGateway())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = concierge.New(nil, nil, concierge.WithExtractor(&testutils.Extractor{}), concierge.WithResponder(&testutils.Responder{}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHandle_ScenarioA(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	sess := f.session(t)
	assert.Equal(t, "Anna", sess.ClientName)
	assert.Equal(t, "77011234567", sess.ClientPhone)
}

func TestHandle_IgnoresSelfAndGroupMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.assistant.Handle(ctx, domain.InboundMessage{From: client, Body: "hi", IsSelfSent: true}))
	require.NoError(t, f.assistant.Handle(ctx, domain.InboundMessage{From: client, Body: "hi", IsGroupChat: true}))
	require.NoError(t, f.assistant.Handle(ctx, domain.InboundMessage{From: client, Body: "   "}))

	_, err := f.assistant.Session(ctx, client)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Empty(t, f.gateway.To(client))
	assert.Equal(t, []string{domain.RouteIgnored, domain.RouteIgnored, domain.RouteIgnored}, f.routes)
}

func TestHandle_ScenarioC_OperatorRelay(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	intentCalls := f.extractor.IntentCalls.Load()
	replies := f.responder.Calls.Load()

	f.send(t, operator, "connect 77011234567")
	sess := f.session(t)
	require.True(t, sess.AdminMode)
	assert.Equal(t, operator, sess.AdminCounterpart)

	f.send(t, client, "Can I come at 18:00 instead?")
	assert.Equal(t, "Can I come at 18:00 instead?", f.gateway.Last(operator))
	assert.Equal(t, intentCalls, f.extractor.IntentCalls.Load())
	assert.Equal(t, replies, f.responder.Calls.Load())

	f.send(t, operator, "Yes, 18:00 works, see you!")
	assert.Equal(t, "Yes, 18:00 works, see you!", f.gateway.Last(client))

	f.send(t, operator, "close")
	sess = f.session(t)
	assert.False(t, sess.AdminMode)
	assert.Empty(t, sess.AdminCounterpart)
	assert.Contains(t, f.gateway.Last(client), "I'm back")

	history := sess.History
	require.GreaterOrEqual(t, len(history), 2)
	assert.Equal(t, "Can I come at 18:00 instead?", history[len(history)-2].Content)
	assert.Equal(t, "Yes, 18:00 works, see you!", history[len(history)-1].Content)

	f.send(t, client, "thanks")
	assert.Equal(t, replies+1, f.responder.Calls.Load())
}

func TestHandle_ClientCommands(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	f.send(t, client, "/stats")
	assert.Contains(t, f.gateway.Last(client), "administrators only")

	f.send(t, client, "/update_name Dana")
	assert.Equal(t, "Dana", f.session(t).ClientName)

	f.send(t, client, "/myinfo")
	assert.Contains(t, f.gateway.Last(client), "Name: Dana")
	assert.Zero(t, f.responder.Calls.Load())
}

func TestHandle_CommandsRelayedWhileOperatorBound(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.send(t, operator, "connect 77011234567")
	require.True(t, f.session(t).AdminMode)

	f.send(t, client, "/update-name Dana")
	assert.Equal(t, "/update-name Dana", f.gateway.Last(operator))
	assert.Equal(t, "Anna", f.session(t).ClientName)

	f.send(t, client, "/my-info")
	assert.Equal(t, "/my-info", f.gateway.Last(operator))
	assert.Equal(t, domain.RouteRelay, f.routes[len(f.routes)-1])
}

func TestHandle_LazyExpiry(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	f.clock.Advance(31 * time.Minute)
	f.send(t, client, "hello again")

	sess := f.session(t)
	assert.Equal(t, domain.StageAwaitingNameAndPhone, sess.Stage)
	assert.Empty(t, sess.ClientName)
	assert.Contains(t, f.gateway.Last(client), "name and phone number")
}

func TestHandle_ActiveSessionDoesNotExpire(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	for range 4 {
		f.clock.Advance(20 * time.Minute)
		f.send(t, client, "still here")
	}
	assert.Equal(t, domain.StageConversation, f.session(t).Stage)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t)

	n, err := f.assistant.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Hour)
	n, err = f.assistant.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StageGreeting, f.session(t).Stage)
}

func TestResetSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t)

	require.NoError(t, f.assistant.ResetSession(ctx, client))
	assert.Equal(t, domain.StageGreeting, f.session(t).Stage)
	assert.ErrorIs(t, f.assistant.ResetSession(ctx, "nobody"), domain.ErrSessionNotFound)
}

func TestHandle_RecoversFromPanics(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.responder.ReplyFunc = func(ports.ReplyRequest) (ports.Reply, error) {
		panic("model exploded")
	}

	err := f.assistant.Handle(context.Background(), domain.InboundMessage{From: client, Body: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")

	f.responder.ReplyFunc = nil
	f.send(t, client, "hello")
	assert.Equal(t, "How can I help?", f.gateway.Last(client))
}

func TestRunner(t *testing.T) {
	f := newFixture(t)
	var out strings.Builder
	r := &concierge.Runner{
		Input:    strings.NewReader("Hi\nAnna +77011234567\n\n/as " + operator + "\n/stats\nquit\nignored\n"),
		Output:   &out,
		From:     client,
		Headless: true,
	}

	require.NoError(t, r.Run(context.Background(), f.assistant))
	assert.Equal(t, domain.StageConversation, f.session(t).Stage)
	assert.Contains(t, f.gateway.Last(operator), "Active dialogs: 1")
	assert.Empty(t, out.String())
}
