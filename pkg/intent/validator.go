// Package intent validates client input and reads booking intents, falling
// back to local rules whenever the language service cannot answer.
package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Validator asks the extractor first and falls back to LocalValidate.
type Validator struct {
	extractor ports.Extractor
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures the Validator.
type Option func(*Validator)

// WithTimeout bounds each remote validation call.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		v.timeout = d
	}
}

// WithLogger configures a logger for the Validator.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a Validator. A nil extractor means local rules only.
func NewValidator(extractor ports.Extractor, opts ...Option) *Validator {
	v := &Validator{
		extractor: extractor,
		timeout:   10 * time.Second,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate always returns a verdict.
func (v *Validator) Validate(ctx context.Context, text string, kind domain.ValidationKind) domain.Validation {
	if v.extractor == nil {
		return LocalValidate(text, kind)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	verdict, err := v.extractor.Validate(ctx, text, kind)
	if err != nil {
		v.logger.Warn("Remote validation unavailable, using local rules", "kind", kind, "err", err)
		return LocalValidate(text, kind)
	}
	if !verdict.Valid {
		if verdict.Message == "" {
			verdict.Message = invalid(kind).Message
		}
		return verdict
	}

	// The remote verdict must still produce a value the rest of the system accepts.
	if kind == domain.KindPhone {
		phone, ok := NormalizePhone(verdict.Value)
		if !ok {
			return LocalValidate(text, kind)
		}
		verdict.Value = phone
	}
	if verdict.Value == "" {
		return LocalValidate(text, kind)
	}
	return verdict
}
