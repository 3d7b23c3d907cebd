package concierge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/admin"
	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/booking"
	"github.com/aretw0/concierge/pkg/catalog"
	"github.com/aretw0/concierge/pkg/conversation"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/expiry"
	"github.com/aretw0/concierge/pkg/intent"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/reminder"
	"github.com/aretw0/concierge/pkg/session"
)

// Assistant is the high-level entry point: it routes every inbound message to
// operator handling, client commands, relay or the conversation engine.
type Assistant struct {
	store        ports.Store
	locks        *session.Manager
	notifier     *notify.Notifier
	bookings     *booking.Manager
	admin        *admin.Controller
	conversation *conversation.Engine
	expiry       *expiry.Monitor
	reminders    *reminder.Job
	hooks        domain.Hooks
	now          func() time.Time
	logger       *slog.Logger
}

type settings struct {
	extractor        ports.Extractor
	responder        ports.Responder
	calendar         ports.Calendar
	locker           ports.DistributedLocker
	catalog          *catalog.Catalog
	location         *time.Location
	bookingCfg       booking.Config
	hours            availability.Hours
	idleTimeout      time.Duration
	sweepSchedule    string
	reminderLead     time.Duration
	reminderSchedule string
	deliveryTimeout  time.Duration
	validateTimeout  time.Duration
	dashboardURL     string
	hooks            domain.Hooks
	now              func() time.Time
	logger           *slog.Logger
}

// Option configures the Assistant.
type Option func(*settings)

// WithExtractor sets the intent extraction service.
func WithExtractor(e ports.Extractor) Option {
	return func(s *settings) {
		s.extractor = e
	}
}

// WithResponder sets the reply generator.
func WithResponder(r ports.Responder) Option {
	return func(s *settings) {
		s.responder = r
	}
}

// WithCalendar mirrors confirmed bookings into an external calendar.
func WithCalendar(c ports.Calendar) Option {
	return func(s *settings) {
		s.calendar = c
	}
}

// WithLocker adds a distributed lock next to the in-process one.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *settings) {
		s.locker = l
	}
}

// WithCatalog replaces the embedded default catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *settings) {
		s.catalog = c
	}
}

// WithLocation sets the business time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		s.location = loc
	}
}

// WithOperators sets the operator ids allowed to run admin commands.
func WithOperators(ids ...string) Option {
	return func(s *settings) {
		s.bookingCfg.Operators = ids
	}
}

// WithBookingConfig sets rate limits and alternative counts. Operators set
// with WithOperators are kept when cfg has none.
func WithBookingConfig(cfg booking.Config) Option {
	return func(s *settings) {
		if len(cfg.Operators) == 0 {
			cfg.Operators = s.bookingCfg.Operators
		}
		s.bookingCfg = cfg
	}
}

// WithHours sets business hours and slot granularity.
func WithHours(h availability.Hours) Option {
	return func(s *settings) {
		s.hours = h
	}
}

// WithIdleTimeout sets how long a session may stay silent before it is reset.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.idleTimeout = d
	}
}

// WithSweepSchedule sets the cron expression of the expiry sweep.
func WithSweepSchedule(spec string) Option {
	return func(s *settings) {
		s.sweepSchedule = spec
	}
}

// WithReminders sets the reminder lead time and schedule.
func WithReminders(lead time.Duration, schedule string) Option {
	return func(s *settings) {
		s.reminderLead = lead
		s.reminderSchedule = schedule
	}
}

// WithTimeouts bounds gateway deliveries and remote validation.
func WithTimeouts(delivery, validation time.Duration) Option {
	return func(s *settings) {
		s.deliveryTimeout = delivery
		s.validateTimeout = validation
	}
}

// WithDashboardURL sets the link operators get from /dashboard.
func WithDashboardURL(url string) Option {
	return func(s *settings) {
		s.dashboardURL = url
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.Hooks) Option {
	return func(s *settings) {
		s.hooks = h
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// New wires an Assistant over store and gateway.
// An extractor and a responder are required.
func New(store ports.Store, gateway ports.Gateway, opts ...Option) (*Assistant, error) {
	s := &settings{
		catalog:    catalog.Default(),
		location:   time.UTC,
		bookingCfg: booking.DefaultConfig(),
		hours:      availability.DefaultHours(),
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if store == nil || gateway == nil {
		return nil, fmt.Errorf("%w: store and gateway are required", domain.ErrInvalidInput)
	}
	if s.extractor == nil || s.responder == nil {
		return nil, fmt.Errorf("%w: extractor and responder are required", domain.ErrInvalidInput)
	}

	lockOpts := []session.Option{session.WithClock(s.now), session.WithLogger(s.logger)}
	if s.locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(s.locker))
	}
	locks := session.NewManager(store, lockOpts...)

	notifyOpts := []notify.Option{notify.WithHooks(s.hooks), notify.WithLogger(s.logger)}
	if s.deliveryTimeout > 0 {
		notifyOpts = append(notifyOpts, notify.WithTimeout(s.deliveryTimeout))
	}
	notifier := notify.New(gateway, notifyOpts...)

	slots := availability.NewEngine(store, availability.WithHours(s.hours), availability.WithLogger(s.logger))

	bookingOpts := []booking.Option{
		booking.WithHooks(s.hooks),
		booking.WithClock(s.now),
		booking.WithLogger(s.logger),
	}
	if s.calendar != nil {
		bookingOpts = append(bookingOpts, booking.WithCalendar(s.calendar))
	}
	bookings := booking.NewManager(store, locks, slots, notifier, s.bookingCfg, bookingOpts...)

	validatorOpts := []intent.Option{intent.WithLogger(s.logger)}
	if s.validateTimeout > 0 {
		validatorOpts = append(validatorOpts, intent.WithTimeout(s.validateTimeout))
	}

	a := &Assistant{
		store:    store,
		locks:    locks,
		notifier: notifier,
		bookings: bookings,
		admin: admin.NewController(store, locks, bookings, notifier, s.bookingCfg.Operators,
			admin.WithDashboardURL(s.dashboardURL),
			admin.WithClock(s.now),
			admin.WithLogger(s.logger),
		),
		conversation: conversation.NewEngine(store, s.extractor, s.responder,
			intent.NewValidator(s.extractor, validatorOpts...), bookings, slots, notifier,
			conversation.WithCatalog(s.catalog),
			conversation.WithLocation(s.location),
			conversation.WithHooks(s.hooks),
			conversation.WithClock(s.now),
			conversation.WithLogger(s.logger),
		),
		expiry: expiry.NewMonitor(locks,
			expiry.WithTimeout(s.idleTimeout),
			expiry.WithSchedule(orDefault(s.sweepSchedule, expiry.DefaultSchedule)),
			expiry.WithHooks(s.hooks),
			expiry.WithClock(s.now),
			expiry.WithLogger(s.logger),
		),
		reminders: reminder.New(store, notifier,
			reminder.WithLead(s.reminderLead),
			reminder.WithSchedule(orDefault(s.reminderSchedule, reminder.DefaultSchedule)),
			reminder.WithLocation(s.location),
			reminder.WithClock(s.now),
			reminder.WithLogger(s.logger),
		),
		hooks:  s.hooks,
		now:    s.now,
		logger: s.logger,
	}
	return a, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Handle processes one inbound message. A panic while handling it is
// recovered and returned as an error.
func (a *Assistant) Handle(ctx context.Context, msg domain.InboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Panic while handling message", "from", msg.From, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic while handling message from %s: %v", msg.From, r)
		}
	}()

	if msg.IsSelfSent || msg.IsGroupChat || strings.TrimSpace(msg.Body) == "" {
		a.hooks.Message(ctx, domain.RouteIgnored)
		return nil
	}

	if a.admin.IsOperator(msg.From) {
		a.hooks.Message(ctx, domain.RouteOperator)
		return a.admin.HandleOperator(ctx, msg.From, msg.Body)
	}

	return a.locks.Update(ctx, msg.From, func(ctx context.Context, sess *domain.Session) error {
		a.expiry.ExpireIfIdle(ctx, sess)

		// A bound operator receives everything the client sends, commands included.
		if sess.AdminMode {
			a.hooks.Message(ctx, domain.RouteRelay)
			if err := a.admin.RelayToOperator(ctx, sess, msg.Body); err != nil {
				a.logger.Warn("Relay to operator failed", "user_id", sess.UserID, "operator", sess.AdminCounterpart, "err", err)
			}
			sess.UpdatedAt = a.now()
			return nil
		}

		if sess.Stage != domain.StageGreeting && a.admin.HandleClient(ctx, sess, msg.Body) {
			a.hooks.Message(ctx, domain.RouteCommand)
			sess.UpdatedAt = a.now()
			return nil
		}

		a.hooks.Message(ctx, domain.RouteConversation)
		return a.conversation.Step(ctx, sess, msg)
	})
}

// Start schedules the expiry sweep and the reminder job until ctx is done.
func (a *Assistant) Start(ctx context.Context) error {
	if err := a.expiry.Start(ctx); err != nil {
		return err
	}
	if err := a.reminders.Start(ctx); err != nil {
		a.expiry.Stop()
		return err
	}
	a.logger.Info("Background jobs started")
	return nil
}

// Stop halts background jobs and waits for pending operator notifications.
func (a *Assistant) Stop() {
	a.expiry.Stop()
	a.reminders.Stop()
	a.notifier.Wait()
}

// Sweep resets idle sessions once.
func (a *Assistant) Sweep(ctx context.Context) (int, error) {
	return a.expiry.Sweep(ctx)
}

// SendReminders runs the reminder job once.
func (a *Assistant) SendReminders(ctx context.Context) (int, error) {
	return a.reminders.Run(ctx)
}

// ResetSession forces a session back to the greeting stage.
func (a *Assistant) ResetSession(ctx context.Context, userID string) error {
	err := a.locks.UpdateExisting(ctx, userID, func(ctx context.Context, sess *domain.Session) error {
		sess.Reset(a.now())
		return nil
	})
	if err != nil {
		return err
	}
	a.hooks.Reset(ctx, userID, domain.ResetManual)
	a.logger.Info("Session reset", "user_id", userID)
	return nil
}

// Session returns a snapshot of a stored session.
func (a *Assistant) Session(ctx context.Context, userID string) (*domain.Session, error) {
	return a.store.LoadSession(ctx, userID)
}

// Sessions lists every stored session.
func (a *Assistant) Sessions(ctx context.Context) ([]*domain.Session, error) {
	return a.store.ListSessions(ctx)
}

// Summary returns the statistics operators see with /stats.
func (a *Assistant) Summary(ctx context.Context) (domain.Summary, error) {
	return a.admin.Summary(ctx)
}

// Bookings exposes the booking lifecycle, for example to approve from a dashboard.
func (a *Assistant) Bookings() *booking.Manager {
	return a.bookings
}

// Catalog returns the offered catalog.
func (a *Assistant) Catalog() *catalog.Catalog {
	return a.conversation.Catalog()
}
