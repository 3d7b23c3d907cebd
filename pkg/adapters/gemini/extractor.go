package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/intent"
	"github.com/aretw0/concierge/pkg/ports"
)

// Extractor implements ports.Extractor with strict JSON prompts.
type Extractor struct {
	gen    Generator
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger discards logs.
func NewExtractor(gen Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{gen: gen, logger: logger}
}

type verdict struct {
	Valid   bool   `mapstructure:"valid"`
	Value   string `mapstructure:"value"`
	Message string `mapstructure:"message"`
}

// Validate asks the model whether text carries a usable name or phone.
func (e *Extractor) Validate(ctx context.Context, text string, kind domain.ValidationKind) (domain.Validation, error) {
	out, err := e.gen.Generate(ctx, nil, validatePrompt(text, kind))
	if err != nil {
		return domain.Validation{}, err
	}
	var v verdict
	if err := intent.DecodeJSON(out, &v); err != nil {
		return domain.Validation{}, &domain.ExternalError{Service: "gemini", Err: err}
	}
	return domain.Validation{Valid: v.Valid, Value: strings.TrimSpace(v.Value), Message: v.Message}, nil
}

type intentPayload struct {
	Ready   bool   `mapstructure:"ready"`
	Service string `mapstructure:"service"`
	Master  string `mapstructure:"master"`
	Price   int64  `mapstructure:"price"`
	Date    string `mapstructure:"date"`
	Time    string `mapstructure:"time"`
	Reason  string `mapstructure:"reason"`
}

// ExtractBookingIntent reads the conversation window. Output that does not
// decode or names an unknown service yields a not-ready intent, never an error.
func (e *Extractor) ExtractBookingIntent(ctx context.Context, req ports.IntentRequest) (domain.BookingIntent, error) {
	out, err := e.gen.Generate(ctx, nil, intentPrompt(req))
	if err != nil {
		return domain.BookingIntent{}, err
	}
	return e.parseIntent(out, req), nil
}

func (e *Extractor) parseIntent(out string, req ports.IntentRequest) domain.BookingIntent {
	var p intentPayload
	if err := intent.DecodeJSON(out, &p); err != nil {
		e.logger.Warn("Unusable intent output", "err", err)
		return domain.BookingIntent{Reason: "unparseable model output"}
	}

	bi := domain.BookingIntent{
		Ready:   p.Ready,
		Service: strings.TrimSpace(p.Service),
		Master:  strings.TrimSpace(p.Master),
		Price:   p.Price,
		Date:    strings.TrimSpace(p.Date),
		Time:    strings.TrimSpace(p.Time),
		Reason:  p.Reason,
	}
	if !bi.Ready {
		return bi
	}

	if reason := incomplete(bi, req); reason != "" {
		e.logger.Debug("Intent downgraded to not ready", "reason", reason)
		bi.Ready = false
		bi.Reason = reason
	}
	return bi
}

func incomplete(bi domain.BookingIntent, req ports.IntentRequest) string {
	switch {
	case bi.Service == "" || bi.Master == "" || bi.Date == "" || bi.Time == "":
		return "missing booking fields"
	}
	if _, err := domain.ParseDate(bi.Date); err != nil {
		return "invalid date"
	}
	if _, err := domain.ParseClock(bi.Time); err != nil {
		return "invalid time"
	}
	if req.Today != "" && bi.Date < req.Today {
		return "date in the past"
	}
	if req.Catalog != nil {
		if _, ok := req.Catalog.Lookup(bi.Service, bi.Master); !ok {
			return fmt.Sprintf("%s does not offer %q", bi.Master, bi.Service)
		}
	}
	return ""
}
