// Package booking owns the booking lifecycle: creation with rate limiting and
// conflict detection, operator approval and rejection, and cancellation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
)

// Config holds the booking thresholds.
type Config struct {
	RateLimit       int           // bookings per user per window
	RateWindow      time.Duration // rolling window of the rate limit
	MaxAlternatives int           // free slots offered on conflict
	Operators       []string      // recipients of booking notifications
	CalendarTimeout time.Duration
}

// DefaultConfig returns 5 bookings per hour and 5 alternatives.
func DefaultConfig() Config {
	return Config{
		RateLimit:       5,
		RateWindow:      time.Hour,
		MaxAlternatives: 5,
		CalendarTimeout: 10 * time.Second,
	}
}

// Manager runs booking operations.
type Manager struct {
	store    ports.Store
	locks    *session.Manager
	engine   *availability.Engine
	notifier *notify.Notifier
	calendar ports.Calendar
	cfg      Config
	hooks    domain.Hooks
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithCalendar mirrors confirmed bookings into cal.
func WithCalendar(cal ports.Calendar) Option {
	return func(m *Manager) {
		m.calendar = cal
	}
}

// WithHooks reports booking outcomes.
func WithHooks(h domain.Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager wires the booking lifecycle.
func NewManager(store ports.Store, locks *session.Manager, engine *availability.Engine, notifier *notify.Notifier, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    locks,
		engine:   engine,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Operators returns the configured operator ids.
func (m *Manager) Operators() []string {
	return m.cfg.Operators
}

// Create turns a ready draft into a pending booking for sess.
//
// The caller must hold the session lock of sess and save it afterwards: Create
// records the booking id in the draft and appends a history marker. The client
// is always told the outcome. Errors are *domain.RateLimitError,
// *domain.ConflictError or failures of the store.
func (m *Manager) Create(ctx context.Context, sess *domain.Session, draft domain.Draft) (*domain.Booking, error) {
	now := m.now()
	log := m.logger.With("user_id", sess.UserID, "master", draft.Master, "date", draft.Date, "time", draft.Time)

	count, err := m.store.CountBookingsSince(ctx, sess.UserID, now.Add(-m.cfg.RateWindow))
	if err != nil {
		return nil, &domain.ExternalError{Service: "store", Err: err}
	}
	if count >= m.cfg.RateLimit {
		rle := &domain.RateLimitError{Limit: m.cfg.RateLimit, Window: m.cfg.RateWindow}
		log.Warn("Booking rate limit reached", "count", count)
		m.hooks.Booking(ctx, domain.OutcomeRateLimited)
		_ = m.notifier.Send(ctx, sess.UserID, rateLimitMessage(rle))
		return nil, rle
	}

	if draft.Master == "" || draft.Date == "" || draft.Time == "" {
		return nil, fmt.Errorf("%w: incomplete draft", domain.ErrInvalidInput)
	}
	start, err := domain.ParseClock(draft.Time)
	if err != nil {
		return nil, err
	}
	draft.Time = domain.FormatClock(start)
	if draft.Duration <= 0 {
		draft.Duration = m.engine.DefaultDuration()
	}

	var b *domain.Booking
	err = m.locks.WithLock(ctx, session.SlotKey(draft.Master, draft.Date), func(ctx context.Context) error {
		if !m.engine.IsFree(ctx, draft.Master, draft.Date, draft.Time, draft.Duration) {
			return m.Conflict(ctx, draft)
		}
		b = domain.NewBooking(sess, draft, now)
		if err := m.store.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, domain.ErrSlotTaken) {
				return m.Conflict(ctx, draft)
			}
			return &domain.ExternalError{Service: "store", Err: err}
		}
		return nil
	})

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		log.Info("Booking conflict", "alternatives", len(conflict.Alternatives))
		m.hooks.Booking(ctx, domain.OutcomeConflict)
		_ = m.notifier.Send(ctx, sess.UserID, ConflictMessage(conflict))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	draft.BookingID = b.ID
	sess.Draft = draft
	sess.Append(domain.RoleSystem, createdMarker(b), now)

	log.Info("Booking created", "booking_id", b.ID)
	m.hooks.Booking(ctx, domain.OutcomeCreated)
	_ = m.notifier.Send(ctx, sess.UserID, pendingMessage(b))
	m.notifier.Broadcast(ctx, m.cfg.Operators, operatorMessage(b))
	return b, nil
}

// Conflict describes d as taken and lists up to MaxAlternatives free slots that day.
func (m *Manager) Conflict(ctx context.Context, d domain.Draft) *domain.ConflictError {
	return &domain.ConflictError{
		Master:       d.Master,
		Date:         d.Date,
		Time:         d.Time,
		Alternatives: m.engine.Alternatives(ctx, d.Master, d.Date, m.cfg.MaxAlternatives),
	}
}

// Approve confirms a pending booking. Approving a booking that was already
// decided changes nothing and returns a *domain.TransitionError with the booking.
func (m *Manager) Approve(ctx context.Context, id int64) (*domain.Booking, error) {
	_, b, err := m.store.TransitionBooking(ctx, id, domain.StatusConfirmed, m.now())
	if err != nil {
		return b, err
	}

	m.logger.Info("Booking confirmed", "booking_id", id, "master", b.Master, "price", b.Price)
	m.hooks.Booking(ctx, domain.OutcomeConfirmed)

	if m.calendar != nil {
		cctx, cancel := context.WithTimeout(ctx, m.cfg.CalendarTimeout)
		if err := m.calendar.AddBooking(cctx, b); err != nil {
			m.logger.Error("Calendar sync failed", "booking_id", id, "err", err)
		}
		cancel()
	}

	_ = m.notifier.Send(ctx, b.UserID, confirmedMessage(b))
	m.mark(ctx, b)
	return b, nil
}

// Reject declines a pending booking, symmetric to Approve.
func (m *Manager) Reject(ctx context.Context, id int64) (*domain.Booking, error) {
	_, b, err := m.store.TransitionBooking(ctx, id, domain.StatusRejected, m.now())
	if err != nil {
		return b, err
	}

	m.logger.Info("Booking rejected", "booking_id", id)
	m.hooks.Booking(ctx, domain.OutcomeRejected)
	_ = m.notifier.Send(ctx, b.UserID, rejectedMessage(b))
	m.mark(ctx, b)
	return b, nil
}

// Cancel cancels a pending or confirmed booking on behalf of actor.
// Operators are told only when a confirmed booking is cancelled.
func (m *Manager) Cancel(ctx context.Context, id int64, actor string) (*domain.Booking, error) {
	prev, b, err := m.store.TransitionBooking(ctx, id, domain.StatusCancelled, m.now())
	if err != nil {
		return b, err
	}

	m.logger.Info("Booking cancelled", "booking_id", id, "actor", actor, "previous", prev)
	m.hooks.Booking(ctx, domain.OutcomeCancelled)
	if prev == domain.StatusConfirmed {
		m.notifier.Broadcast(ctx, m.cfg.Operators, cancelledOperatorMessage(b))
	}
	return b, nil
}

// CancelLatest cancels the newest active booking of sess and clears its draft.
// It reports whether a booking was cancelled. The caller must hold the session lock.
func (m *Manager) CancelLatest(ctx context.Context, sess *domain.Session) (bool, error) {
	sess.Draft = domain.Draft{}

	latest, err := m.store.LatestActiveBooking(ctx, sess.UserID)
	if errors.Is(err, domain.ErrBookingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &domain.ExternalError{Service: "store", Err: err}
	}

	b, err := m.Cancel(ctx, latest.ID, sess.UserID)
	if err != nil {
		return false, err
	}
	sess.Append(domain.RoleSystem, decidedMarker(b), m.now())
	_ = m.notifier.Send(ctx, sess.UserID, cancelledMessage(b))
	return true, nil
}

// mark appends the decision to the client's history.
func (m *Manager) mark(ctx context.Context, b *domain.Booking) {
	err := m.locks.UpdateExisting(ctx, b.UserID, func(ctx context.Context, sess *domain.Session) error {
		sess.Append(domain.RoleSystem, decidedMarker(b), m.now())
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		m.logger.Warn("Failed to record decision in session", "booking_id", b.ID, "err", err)
	}
}
