// Package testutils provides test doubles for the driven ports.
package testutils

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Message is one recorded delivery.
type Message struct {
	To   string
	Text string
}

// Gateway records deliveries. Recipients listed in Fail get an error instead.
type Gateway struct {
	mu       sync.Mutex
	messages []Message
	Fail     map[string]error
}

// NewGateway creates an empty recording gateway.
func NewGateway() *Gateway {
	return &Gateway{Fail: map[string]error{}}
}

func (g *Gateway) Deliver(ctx context.Context, to, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.Fail[to]; ok {
		return err
	}
	g.messages = append(g.messages, Message{To: to, Text: text})
	return nil
}

// To returns every text delivered to recipient, in order.
func (g *Gateway) To(recipient string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.messages {
		if m.To == recipient {
			out = append(out, m.Text)
		}
	}
	return out
}

// Last returns the latest text delivered to recipient, or "".
func (g *Gateway) Last(recipient string) string {
	msgs := g.To(recipient)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// Contains reports whether any text delivered to recipient contains substr.
func (g *Gateway) Contains(recipient, substr string) bool {
	for _, m := range g.To(recipient) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// Reset forgets every delivery.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = nil
}

// Extractor is a scripted ports.Extractor. Nil funcs fall back to an error,
// which exercises the local validation rules.
type Extractor struct {
	ValidateFunc func(text string, kind domain.ValidationKind) (domain.Validation, error)
	IntentFunc   func(req ports.IntentRequest) (domain.BookingIntent, error)

	ValidateCalls atomic.Int32
	IntentCalls   atomic.Int32
}

func (e *Extractor) Validate(ctx context.Context, text string, kind domain.ValidationKind) (domain.Validation, error) {
	e.ValidateCalls.Add(1)
	if e.ValidateFunc == nil {
		return domain.Validation{}, context.DeadlineExceeded
	}
	return e.ValidateFunc(text, kind)
}

func (e *Extractor) ExtractBookingIntent(ctx context.Context, req ports.IntentRequest) (domain.BookingIntent, error) {
	e.IntentCalls.Add(1)
	if e.IntentFunc == nil {
		return domain.BookingIntent{}, nil
	}
	return e.IntentFunc(req)
}

// Responder returns a fixed reply, or ReplyFunc's answer when set.
type Responder struct {
	Text      string
	ReplyFunc func(req ports.ReplyRequest) (ports.Reply, error)
	Calls     atomic.Int32
}

func (r *Responder) Reply(ctx context.Context, req ports.ReplyRequest) (ports.Reply, error) {
	r.Calls.Add(1)
	if r.ReplyFunc != nil {
		return r.ReplyFunc(req)
	}
	return ports.Reply{Text: r.Text}, nil
}

// Calendar records synchronized bookings.
type Calendar struct {
	mu    sync.Mutex
	added []int64
	Err   error
}

func (c *Calendar) AddBooking(ctx context.Context, b *domain.Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.added = append(c.added, b.ID)
	return nil
}

// Added returns the ids of synchronized bookings.
func (c *Calendar) Added() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.added...)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts the clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
