package domain

import "context"

// Booking outcomes reported through Hooks.OnBooking.
const (
	OutcomeCreated     = "created"
	OutcomeConflict    = "conflict"
	OutcomeRateLimited = "rate_limited"
	OutcomeConfirmed   = "confirmed"
	OutcomeRejected    = "rejected"
	OutcomeCancelled   = "cancelled"
)

// Reset triggers reported through Hooks.OnReset.
const (
	ResetLazy   = "lazy"
	ResetSweep  = "sweep"
	ResetCancel = "cancel"
	ResetManual = "manual"
)

// Routes reported through Hooks.OnMessage.
const (
	RouteIgnored      = "ignored"
	RouteOperator     = "operator"
	RouteCommand      = "command"
	RouteRelay        = "relay"
	RouteConversation = "conversation"
)

// Hooks defines callbacks for observability.
type Hooks struct {
	OnMessage         func(ctx context.Context, route string)
	OnBooking         func(ctx context.Context, outcome string)
	OnReset           func(ctx context.Context, userID, trigger string)
	OnDeliveryFailure func(ctx context.Context, to string, err error)
}

func (h Hooks) Message(ctx context.Context, route string) {
	if h.OnMessage != nil {
		h.OnMessage(ctx, route)
	}
}

func (h Hooks) Booking(ctx context.Context, outcome string) {
	if h.OnBooking != nil {
		h.OnBooking(ctx, outcome)
	}
}

func (h Hooks) Reset(ctx context.Context, userID, trigger string) {
	if h.OnReset != nil {
		h.OnReset(ctx, userID, trigger)
	}
}

func (h Hooks) DeliveryFailure(ctx context.Context, to string, err error) {
	if h.OnDeliveryFailure != nil {
		h.OnDeliveryFailure(ctx, to, err)
	}
}
