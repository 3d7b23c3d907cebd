// Package conversation drives the per-client dialogue: registration of name and
// phone, free-form conversation and the hand-over of ready intents to booking.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/booking"
	"github.com/aretw0/concierge/pkg/catalog"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/intent"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/ports"
)

// DefaultWindow is the number of recent turns given to intent extraction.
const DefaultWindow = 10

// Engine executes one step of the conversation state machine.
// It holds no per-session state; callers serialize steps per session.
type Engine struct {
	store     ports.ClientStore
	extractor ports.Extractor
	responder ports.Responder
	validator *intent.Validator
	bookings  *booking.Manager
	slots     *availability.Engine
	notifier  *notify.Notifier
	catalog   *catalog.Catalog
	location  *time.Location
	window    int
	hooks     domain.Hooks
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithCatalog replaces the embedded default catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithLocation sets the business time zone used for "today".
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.location = loc
	}
}

// WithWindow sets how many recent turns intent extraction sees.
func WithWindow(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine wires the conversation engine.
func NewEngine(
	store ports.ClientStore,
	extractor ports.Extractor,
	responder ports.Responder,
	validator *intent.Validator,
	bookings *booking.Manager,
	slots *availability.Engine,
	notifier *notify.Notifier,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:     store,
		extractor: extractor,
		responder: responder,
		validator: validator,
		bookings:  bookings,
		slots:     slots,
		notifier:  notifier,
		catalog:   catalog.Default(),
		location:  time.UTC,
		window:    DefaultWindow,
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine offers.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Today is the current date in the business time zone.
func (e *Engine) Today() string {
	return e.now().In(e.location).Format(domain.DateLayout)
}

// Step handles one inbound message for sess and mutates it in place.
// The caller must hold the session lock and persist sess afterwards.
func (e *Engine) Step(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	text := strings.TrimSpace(msg.Body)
	log := e.logger.With("user_id", sess.UserID, "stage", sess.Stage)

	var err error
	switch sess.Stage {
	case domain.StageGreeting:
		err = e.greet(ctx, sess)
	case domain.StageAwaitingNameAndPhone:
		err = e.awaitNameAndPhone(ctx, sess, msg, text)
	case domain.StageAwaitingPhoneOnly:
		err = e.awaitPhone(ctx, sess, text)
	case domain.StageConversation:
		err = e.converse(ctx, sess, text)
	default:
		err = &domain.TransitionError{Entity: "session", From: string(sess.Stage), To: string(domain.StageGreeting)}
	}
	if err != nil {
		log.Error("Conversation step failed", "err", err)
		return err
	}
	sess.UpdatedAt = e.now()
	return nil
}

func (e *Engine) greet(ctx context.Context, sess *domain.Session) error {
	if err := sess.Transition(domain.StageAwaitingNameAndPhone); err != nil {
		return err
	}
	return e.say(ctx, sess, welcomeMessage(e.catalog))
}

func (e *Engine) awaitNameAndPhone(ctx context.Context, sess *domain.Session, msg domain.InboundMessage, text string) error {
	name := e.validator.Validate(ctx, text, domain.KindName)
	if !name.Valid {
		return e.say(ctx, sess, name.Message)
	}

	phone := e.validator.Validate(ctx, text, domain.KindPhone)
	if !phone.Valid {
		phone = e.profilePhone(ctx, sess, msg)
	}

	if !phone.Valid {
		sess.ClientName = name.Value
		if err := sess.Transition(domain.StageAwaitingPhoneOnly); err != nil {
			return err
		}
		return e.say(ctx, sess, askPhoneMessage(name.Value))
	}
	return e.register(ctx, sess, name.Value, phone.Value)
}

// profilePhone falls back to the number the gateway knows for the sender.
func (e *Engine) profilePhone(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) domain.Validation {
	profile, err := msg.Profile(ctx)
	if err != nil {
		e.logger.Debug("Sender profile unavailable", "user_id", sess.UserID, "err", err)
		return domain.Validation{}
	}
	phone, ok := intent.NormalizePhone(profile.Phone)
	if !ok {
		return domain.Validation{}
	}
	return domain.Validation{Valid: true, Value: phone}
}

func (e *Engine) awaitPhone(ctx context.Context, sess *domain.Session, text string) error {
	phone := e.validator.Validate(ctx, text, domain.KindPhone)
	if !phone.Valid {
		return e.say(ctx, sess, phone.Message)
	}
	return e.register(ctx, sess, sess.ClientName, phone.Value)
}

func (e *Engine) register(ctx context.Context, sess *domain.Session, name, phone string) error {
	sess.ClientName = name
	sess.ClientPhone = phone
	if err := sess.Transition(domain.StageConversation); err != nil {
		return err
	}

	client := &domain.Client{Phone: phone, Name: name, UserID: sess.UserID}
	if err := e.store.UpsertClient(ctx, client); err != nil {
		e.logger.Error("Failed to save client", "user_id", sess.UserID, "err", err)
	}
	e.logger.Info("Client registered", "user_id", sess.UserID)
	return e.say(ctx, sess, menuMessage(name, e.catalog))
}

func (e *Engine) converse(ctx context.Context, sess *domain.Session, text string) error {
	now := e.now()
	sess.Append(domain.RoleUser, text, now)

	switch Classify(text) {
	case ActionOperator:
		return e.requestOperator(ctx, sess)
	case ActionRestart:
		sess.Reset(now)
		e.hooks.Reset(ctx, sess.UserID, domain.ResetCancel)
		e.logger.Info("Session restarted by client", "user_id", sess.UserID)
		return e.greet(ctx, sess)
	case ActionCancel:
		cancelled, err := e.bookings.CancelLatest(ctx, sess)
		if err != nil {
			e.logger.Error("Cancellation failed", "user_id", sess.UserID, "err", err)
			return e.say(ctx, sess, msgFailure)
		}
		if !cancelled {
			return e.say(ctx, sess, msgNothingToCancel)
		}
		return nil
	}

	today := e.Today()
	reply, err := e.responder.Reply(ctx, ports.ReplyRequest{Session: sess, Catalog: e.catalog, Today: today})
	if err != nil {
		e.logger.Error("Responder failed", "user_id", sess.UserID, "err", err)
		return e.say(ctx, sess, msgFailure)
	}

	if q := reply.Check; q != nil {
		q.Master, q.Time = e.canonicalMaster(q.Master), canonicalClock(q.Time)
		duration := e.guessDuration(sess, q.Master)
		if !e.slots.IsFree(ctx, q.Master, q.Date, q.Time, duration) {
			e.logger.Info("Requested slot is busy", "user_id", sess.UserID, "master", q.Master, "date", q.Date, "time", q.Time)
			text := strings.TrimSpace(reply.Text + "\n\n" + busyMessage(*q, e.slots.FreeSlots(ctx, q.Master, q.Date)))
			sess.Append(domain.RoleAssistant, text, e.now())
			return e.say(ctx, sess, text)
		}
	}
	sess.Append(domain.RoleAssistant, reply.Text, e.now())

	found, err := e.extractor.ExtractBookingIntent(ctx, ports.IntentRequest{
		Window:  sess.Window(e.window),
		Catalog: e.catalog,
		Today:   today,
	})
	if err != nil {
		e.logger.Warn("Intent extraction failed", "user_id", sess.UserID, "err", err)
		return e.say(ctx, sess, reply.Text)
	}
	found = e.canonical(found)
	if !found.Ready || sameBooking(sess.Draft, found) {
		return e.say(ctx, sess, reply.Text)
	}
	return e.book(ctx, sess, found, reply.Text)
}

func (e *Engine) book(ctx context.Context, sess *domain.Session, found domain.BookingIntent, reply string) error {
	duration := e.slots.DefaultDuration()
	if svc, ok := e.catalog.Lookup(found.Service, found.Master); ok {
		duration = svc.Duration
		if found.Price == 0 {
			found.Price = svc.Price
		}
	}
	draft := found.Draft(duration)
	sess.Draft = draft

	if !e.slots.IsFree(ctx, draft.Master, draft.Date, draft.Time, draft.Duration) {
		conflict := e.bookings.Conflict(ctx, draft)
		e.logger.Info("Intent slot is busy", "user_id", sess.UserID, "master", draft.Master, "date", draft.Date, "time", draft.Time)
		e.hooks.Booking(ctx, domain.OutcomeConflict)
		return e.say(ctx, sess, booking.ConflictMessage(conflict))
	}

	_, err := e.bookings.Create(ctx, sess, draft)
	var (
		conflict *domain.ConflictError
		limited  *domain.RateLimitError
	)
	switch {
	case err == nil, errors.As(err, &conflict), errors.As(err, &limited):
		// The client has already been told the outcome.
		return nil
	case errors.Is(err, domain.ErrInvalidInput):
		return e.say(ctx, sess, reply)
	default:
		e.logger.Error("Booking creation failed", "user_id", sess.UserID, "err", err)
		return e.say(ctx, sess, msgFailure)
	}
}

func (e *Engine) requestOperator(ctx context.Context, sess *domain.Session) error {
	phone := sess.ClientPhone
	if phone == "" {
		phone = domain.NormalizeAddress(sess.UserID)
	}
	e.logger.Info("Client asked for an operator", "user_id", sess.UserID)
	e.notifier.Broadcast(ctx, e.bookings.Operators(), operatorRequestMessage(sess, phone))
	return e.say(ctx, sess, msgOperatorAck)
}

// canonical rewrites the names in found with the catalog's spelling and pads
// the time, so stores and slot locks see one key per master and slot.
func (e *Engine) canonical(found domain.BookingIntent) domain.BookingIntent {
	found.Master = e.canonicalMaster(found.Master)
	if svc, ok := e.catalog.Lookup(found.Service, found.Master); ok {
		found.Service = svc.Name
	}
	found.Time = canonicalClock(found.Time)
	return found
}

func (e *Engine) canonicalMaster(name string) string {
	if m, ok := e.catalog.Master(name); ok {
		return m.Name
	}
	return strings.TrimSpace(name)
}

func canonicalClock(v string) string {
	minutes, err := domain.ParseClock(strings.TrimSpace(v))
	if err != nil {
		return v
	}
	return domain.FormatClock(minutes)
}

// guessDuration picks the duration of a catalog service named in the latest
// client turns, or the default slot duration.
func (e *Engine) guessDuration(sess *domain.Session, master string) int {
	if sess.Draft.Duration > 0 && strings.EqualFold(sess.Draft.Master, master) {
		return sess.Draft.Duration
	}
	recent := slices.Clone(sess.Window(3))
	slices.Reverse(recent)
	for _, turn := range recent {
		if turn.Role != domain.RoleUser {
			continue
		}
		lower := strings.ToLower(turn.Content)
		for _, svc := range e.catalog.ByMaster(master) {
			if strings.Contains(lower, strings.ToLower(svc.Name)) {
				return svc.Duration
			}
		}
	}
	return e.slots.DefaultDuration()
}

// sameBooking reports whether found repeats the booking already created from
// the current draft.
func sameBooking(d domain.Draft, found domain.BookingIntent) bool {
	return d.BookingID != 0 &&
		strings.EqualFold(d.Master, found.Master) &&
		strings.EqualFold(d.Service, found.Service) &&
		d.Date == found.Date &&
		d.Time == found.Time
}

func (e *Engine) say(ctx context.Context, sess *domain.Session, text string) error {
	if text == "" {
		return nil
	}
	_ = e.notifier.Send(ctx, sess.UserID, text)
	return nil
}

