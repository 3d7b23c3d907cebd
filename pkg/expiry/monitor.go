// Package expiry resets idle sessions, lazily before a message is handled and
// periodically in a background sweep.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/session"
)

const (
	DefaultTimeout  = 30 * time.Minute
	DefaultSchedule = "*/15 * * * *"
)

// Monitor decides when a session is idle and resets it.
type Monitor struct {
	locks    *session.Manager
	timeout  time.Duration
	schedule string
	hooks    domain.Hooks
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithTimeout sets the idle timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithSchedule sets the cron expression of the background sweep.
func WithSchedule(spec string) Option {
	return func(m *Monitor) {
		m.schedule = spec
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.Hooks) Option {
	return func(m *Monitor) {
		m.hooks = h
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithLogger configures a logger for the Monitor.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor creates a Monitor over the sessions managed by locks.
func NewMonitor(locks *session.Manager, opts ...Option) *Monitor {
	m := &Monitor{
		locks:    locks,
		timeout:  DefaultTimeout,
		schedule: DefaultSchedule,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeout returns the idle timeout.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// Expired reports whether sess has been idle past the timeout at now.
// Greeting sessions expire only while bound to an operator.
func (m *Monitor) Expired(sess *domain.Session, now time.Time) bool {
	return sess.Idle(now, m.timeout)
}

// ExpireIfIdle resets sess when it is idle and reports whether it did.
// The caller must hold the session lock.
func (m *Monitor) ExpireIfIdle(ctx context.Context, sess *domain.Session) bool {
	now := m.now()
	if !m.Expired(sess, now) {
		return false
	}
	m.logger.Info("Session expired", "user_id", sess.UserID, "stage", sess.Stage, "idle", now.Sub(sess.UpdatedAt).Round(time.Second))
	sess.Reset(now)
	m.hooks.Reset(ctx, sess.UserID, domain.ResetLazy)
	return true
}

// Sweep resets every idle session and returns how many it reset.
// Each candidate is re-checked under its lock, so a message that arrived in
// the meantime keeps the session alive.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	idle, err := m.locks.Store().ListIdleSessions(ctx, now.Add(-m.timeout))
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	reset := 0
	var errs []error
	for _, candidate := range idle {
		err := m.locks.UpdateExisting(ctx, candidate.UserID, func(ctx context.Context, sess *domain.Session) error {
			if !m.Expired(sess, m.now()) {
				return errUnchanged
			}
			sess.Reset(m.now())
			return nil
		})
		switch {
		case err == nil:
			reset++
			m.hooks.Reset(ctx, candidate.UserID, domain.ResetSweep)
		case errors.Is(err, errUnchanged), errors.Is(err, domain.ErrSessionNotFound):
		default:
			errs = append(errs, fmt.Errorf("session %s: %w", candidate.UserID, err))
		}
	}

	if reset > 0 {
		m.logger.Info("Expired sessions swept", "count", reset)
	}
	return reset, errors.Join(errs...)
}

// errUnchanged aborts an update without saving.
var errUnchanged = errors.New("session unchanged")

// Start schedules Sweep until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(m.schedule, func() {
		if _, err := m.Sweep(ctx); err != nil {
			m.logger.Error("Session sweep failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", m.schedule, err)
	}
	m.cron = c
	c.Start()
	m.logger.Debug("Session sweep scheduled", "schedule", m.schedule, "timeout", m.timeout)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Monitor) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}
