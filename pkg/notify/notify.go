// Package notify delivers outbound messages with timeouts and failure accounting.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Notifier wraps a Gateway.
type Notifier struct {
	gateway ports.Gateway
	timeout time.Duration
	hooks   domain.Hooks
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// Option configures the Notifier.
type Option func(*Notifier)

// WithTimeout bounds each delivery.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		n.timeout = d
	}
}

// WithHooks reports delivery failures.
func WithHooks(h domain.Hooks) Option {
	return func(n *Notifier) {
		n.hooks = h
	}
}

// WithLogger configures a logger for the Notifier.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New creates a Notifier over gateway.
func New(gateway ports.Gateway, opts ...Option) *Notifier {
	n := &Notifier{
		gateway: gateway,
		timeout: 10 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send delivers text to one recipient and waits for the result.
// Failures are logged and reported to the hooks before being returned.
func (n *Notifier) Send(ctx context.Context, to, text string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.gateway.Deliver(ctx, to, text); err != nil {
		n.logger.Warn("Delivery failed", "to", to, "err", err)
		n.hooks.DeliveryFailure(ctx, to, err)
		return &domain.ExternalError{Service: "gateway", Err: err}
	}
	return nil
}

// Broadcast delivers text to every recipient without waiting.
// Each recipient gets its own goroutine, so one slow or failing recipient
// never delays the others or the caller.
func (n *Notifier) Broadcast(ctx context.Context, recipients []string, text string) {
	ctx = context.WithoutCancel(ctx)
	for _, to := range recipients {
		n.wg.Add(1)
		go func(to string) {
			defer n.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					n.logger.Error("Delivery panicked", "to", to, "panic", fmt.Sprint(r))
				}
			}()
			_ = n.Send(ctx, to, text)
		}(to)
	}
}

// Wait blocks until every broadcast delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
