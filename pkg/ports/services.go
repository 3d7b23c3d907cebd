package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/catalog"
	"github.com/aretw0/concierge/pkg/domain"
)

// Gateway delivers text messages to users and operators.
type Gateway interface {
	Deliver(ctx context.Context, to, text string) error
}

// IntentRequest is the input of booking intent detection.
type IntentRequest struct {
	Window  []domain.Turn
	Catalog *catalog.Catalog
	Today   string
}

// Extractor turns free text into structured judgments.
// Implementations must not fail on non-conforming model output: they return a
// not-ready intent or an invalid verdict instead.
type Extractor interface {
	Validate(ctx context.Context, text string, kind domain.ValidationKind) (domain.Validation, error)
	ExtractBookingIntent(ctx context.Context, req IntentRequest) (domain.BookingIntent, error)
}

// ReplyRequest is the input of free-form reply generation.
type ReplyRequest struct {
	Session *domain.Session
	Catalog *catalog.Catalog
	Today   string
}

// Reply is a generated assistant message. Check is set when the reply asks for
// an availability verdict before it is shown to the client.
type Reply struct {
	Text  string
	Check *domain.SlotQuery
}

// Responder generates the assistant side of the conversation.
type Responder interface {
	Reply(ctx context.Context, req ReplyRequest) (Reply, error)
}

// Calendar mirrors confirmed bookings into an external calendar.
type Calendar interface {
	AddBooking(ctx context.Context, b *domain.Booking) error
}
