// Package reminder messages clients shortly before their confirmed visits.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/ports"
)

const (
	DefaultLead     = time.Hour
	DefaultSchedule = "*/30 * * * *"
)

// Job sends at most one reminder per confirmed booking.
type Job struct {
	store    ports.BookingStore
	notifier *notify.Notifier
	lead     time.Duration
	location *time.Location
	schedule string
	now      func() time.Time
	logger   *slog.Logger
	cron     *cron.Cron
}

// Option configures the Job.
type Option func(*Job)

// WithLead sets how long before the visit the reminder goes out.
func WithLead(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.lead = d
		}
	}
}

// WithLocation sets the time zone booking dates and times are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(j *Job) {
		j.location = loc
	}
}

// WithSchedule sets the cron expression of the job.
func WithSchedule(spec string) Option {
	return func(j *Job) {
		j.schedule = spec
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

// New creates a reminder Job.
func New(store ports.BookingStore, notifier *notify.Notifier, opts ...Option) *Job {
	j := &Job{
		store:    store,
		notifier: notifier,
		lead:     DefaultLead,
		location: time.UTC,
		schedule: DefaultSchedule,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// window is a closed range of clock times on one date.
type window struct {
	date, from, to string
}

// windows splits [now, now+lead] into per-date ranges.
func (j *Job) windows() []window {
	start := j.now().In(j.location)
	end := start.Add(j.lead)

	var out []window
	for day := start; ; {
		date := day.Format(domain.DateLayout)
		from := day.Format(domain.ClockLayout)
		if date == end.Format(domain.DateLayout) {
			return append(out, window{date, from, end.Format(domain.ClockLayout)})
		}
		out = append(out, window{date, from, "23:59"})
		y, m, d := day.Date()
		day = time.Date(y, m, d+1, 0, 0, 0, 0, j.location)
	}
}

// Run sends the reminders that are due and returns how many were delivered.
// A booking is flagged before delivery, so a failed delivery is not retried.
func (j *Job) Run(ctx context.Context) (int, error) {
	sent := 0
	var errs []error
	for _, w := range j.windows() {
		due, err := j.store.DueReminders(ctx, w.date, w.from, w.to)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to list reminders for %s: %w", w.date, err))
			continue
		}
		for _, b := range due {
			claimed, err := j.store.MarkReminderSent(ctx, b.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("booking %d: %w", b.ID, err))
				continue
			}
			if !claimed {
				continue
			}
			if err := j.notifier.Send(ctx, b.UserID, reminderMessage(b)); err != nil {
				continue
			}
			j.logger.Info("Reminder sent", "booking_id", b.ID, "user_id", b.UserID)
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// Start schedules Run until ctx is done or Stop is called.
func (j *Job) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(j.location))
	_, err := c.AddFunc(j.schedule, func() {
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error("Reminder run failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", j.schedule, err)
	}
	j.cron = c
	c.Start()

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (j *Job) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func reminderMessage(b *domain.Booking) string {
	return fmt.Sprintf("Reminder: today at %s you have %s with %s. We look forward to seeing you!",
		b.Time, b.Service, b.Master)
}
