package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/adapters/calendar"
	"github.com/aretw0/concierge/pkg/adapters/gemini"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/adapters/redis"
	"github.com/aretw0/concierge/pkg/adapters/sqlite"
	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/booking"
	"github.com/aretw0/concierge/pkg/catalog"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
	"github.com/aretw0/concierge/pkg/ports"
)

// app holds what every command shares: configuration, logger and store.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   ports.Store
	locker  ports.DistributedLocker
	closers []func() error
}

// setup loads the configuration and opens the store.
func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New(level, cfg.Log.Format)}

	var (
		sessions ports.SessionStore
		records  interface {
			ports.BookingStore
			ports.ClientStore
		}
	)
	if cfg.Store.DSN != "" {
		db, err := sqlite.NewStore(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		sessions, records = db, db
	} else {
		mem := memory.NewStore()
		sessions, records = mem, mem
	}

	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(cmd.Context()).Err(); err != nil {
			_ = client.Close()
			a.Close()
			return nil, &domain.ExternalError{Service: "redis", Err: err}
		}
		a.closers = append(a.closers, client.Close)
		sessions = redis.NewSessionStore(client,
			redis.WithPrefix(cfg.Redis.Prefix+"session:"),
			redis.WithTTL(cfg.Redis.SessionTTL),
		)
		a.locker = redis.NewLocker(client, cfg.Redis.Prefix)
	}

	if len(cfg.Store.HistoryKeys) > 0 {
		keys, err := middleware.ParseKeys(cfg.Store.HistoryKeys...)
		if err != nil {
			a.Close()
			return nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			a.Close()
			return nil, err
		}
		sessions = middleware.Chain(sessions, mw)
	}
	a.store = ports.Combine(sessions, records)

	a.logger.Debug("Configuration loaded",
		"store", storeKind(cfg),
		"redis", cfg.Redis.Addr != "",
		"encrypted_history", len(cfg.Store.HistoryKeys) > 0,
	)
	return a, nil
}

// assistant wires the full assistant over gateway. reg receives the metrics.
func (a *app) assistant(ctx context.Context, gateway ports.Gateway, reg prometheus.Registerer) (*concierge.Assistant, error) {
	cfg := a.cfg

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	if cfg.Catalog != "" {
		if cat, err = catalog.Load(cfg.Catalog); err != nil {
			return nil, err
		}
	}
	if cfg.Business != "" {
		cat.Business = cfg.Business
	}

	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("gemini.api_key is required (set CONCIERGE_GEMINI_API_KEY)")
	}
	model, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, model.Close)

	opts := []concierge.Option{
		concierge.WithExtractor(gemini.NewExtractor(model, a.logger)),
		concierge.WithResponder(gemini.NewResponder(model)),
		concierge.WithCatalog(cat),
		concierge.WithLocation(loc),
		concierge.WithOperators(cfg.Operators...),
		concierge.WithBookingConfig(booking.Config{
			RateLimit:       cfg.Booking.RateLimit,
			RateWindow:      cfg.Booking.RateWindow,
			MaxAlternatives: cfg.Booking.MaxAlternatives,
			CalendarTimeout: booking.DefaultConfig().CalendarTimeout,
		}),
		concierge.WithHours(availability.Hours{
			Open:            cfg.Hours.Open,
			Close:           cfg.Hours.Close,
			Granularity:     cfg.Hours.Granularity,
			DefaultDuration: cfg.Hours.DefaultDuration,
		}),
		concierge.WithIdleTimeout(cfg.Session.IdleTimeout),
		concierge.WithSweepSchedule(cfg.Session.SweepSchedule),
		concierge.WithReminders(cfg.Reminder.Lead, cfg.Reminder.Schedule),
		concierge.WithTimeouts(cfg.Delivery.Timeout, cfg.Gemini.ValidationTimeout),
		concierge.WithDashboardURL(cfg.Dashboard),
		concierge.WithLogger(a.logger),
	}
	if reg != nil {
		opts = append(opts, concierge.WithHooks(observability.NewMetrics(reg).Hooks()))
	}
	if a.locker != nil {
		opts = append(opts, concierge.WithLocker(a.locker))
	}
	if cfg.Calendar.Credentials != "" {
		cal, err := calendar.New(ctx, cfg.Calendar.ID, loc, option.WithCredentialsFile(cfg.Calendar.Credentials))
		if err != nil {
			return nil, err
		}
		opts = append(opts, concierge.WithCalendar(cal))
	}

	return concierge.New(a.store, gateway, opts...)
}

// Close releases every opened resource.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", "err", err)
		}
	}
	a.closers = nil
}

func storeKind(cfg *config.Config) string {
	if cfg.Store.DSN == "" {
		return "memory"
	}
	return fmt.Sprintf("sqlite(%s)", cfg.Store.DSN)
}
