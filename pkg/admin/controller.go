// Package admin authorizes and executes operator commands and relays messages
// between operators and clients in operator mode.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/booking"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/intent"
	"github.com/aretw0/concierge/pkg/notify"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
)

// Client-facing notices of operator mode.
const (
	MsgOperatorJoined  = "An administrator has joined the chat and will answer you personally."
	MsgAssistantResume = "The administrator has left the chat. I'm back and happy to help you with your booking!"
	msgDenied          = "Sorry, this command is available to administrators only."
)

// Controller handles everything operators send and the commands clients may use.
type Controller struct {
	store        ports.Store
	locks        *session.Manager
	bookings     *booking.Manager
	notifier     *notify.Notifier
	operators    map[string]bool
	dashboardURL string
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures the Controller.
type Option func(*Controller)

// WithDashboardURL sets the link returned by /dashboard.
func WithDashboardURL(url string) Option {
	return func(c *Controller) {
		c.dashboardURL = url
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger configures a logger for the Controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller for the given operator ids.
// Ids are compared after normalization, so "77010000001@c.us" and
// "+77010000001" name the same operator.
func NewController(store ports.Store, locks *session.Manager, bookings *booking.Manager, notifier *notify.Notifier, operators []string, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		locks:     locks,
		bookings:  bookings,
		notifier:  notifier,
		operators: make(map[string]bool, len(operators)),
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	for _, op := range operators {
		c.operators[domain.NormalizeAddress(op)] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsOperator reports whether id belongs to a configured operator.
func (c *Controller) IsOperator(id string) bool {
	return c.operators[domain.NormalizeAddress(id)]
}

// HandleOperator processes one message from an operator. Commands are
// executed; other text is relayed verbatim to the client bound to the operator.
func (c *Controller) HandleOperator(ctx context.Context, from, text string) error {
	cmd, ok, err := Parse(text, false)
	if err != nil {
		return c.reply(ctx, from, err.Error())
	}
	if !ok {
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			return c.reply(ctx, from, Usage(true))
		}
		return c.relayToClient(ctx, from, text)
	}

	log := c.logger.With("operator", from, "command", cmd.Kind)
	log.Info("Operator command")

	switch cmd.Kind {
	case KindStats:
		return c.stats(ctx, from)
	case KindDashboard:
		if c.dashboardURL == "" {
			return c.reply(ctx, from, "No dashboard is configured.")
		}
		return c.reply(ctx, from, "Dashboard: "+c.dashboardURL)
	case KindApprove:
		b, err := c.bookings.Approve(ctx, cmd.ID)
		return c.reply(ctx, from, decisionReply(cmd.ID, b, err, "confirmed", log))
	case KindReject:
		b, err := c.bookings.Reject(ctx, cmd.ID)
		return c.reply(ctx, from, decisionReply(cmd.ID, b, err, "rejected", log))
	case KindConnect:
		return c.connect(ctx, from, cmd.Arg)
	case KindClose:
		return c.close(ctx, from)
	default:
		return c.reply(ctx, from, "This command is meant for clients.")
	}
}

func decisionReply(id int64, b *domain.Booking, err error, verb string, log *slog.Logger) string {
	var te *domain.TransitionError
	switch {
	case err == nil:
		return fmt.Sprintf("Booking #%d %s: %s, %s with %s on %s at %s. The client has been notified.",
			id, verb, b.ClientName, b.Service, b.Master, b.Date, b.Time)
	case errors.Is(err, domain.ErrBookingNotFound):
		return fmt.Sprintf("Booking #%d not found.", id)
	case errors.As(err, &te):
		return fmt.Sprintf("Booking #%d is already %s, nothing changed.", id, te.From)
	default:
		log.Error("Booking decision failed", "booking_id", id, "err", err)
		return fmt.Sprintf("Could not update booking #%d, please try again.", id)
	}
}

// Summary collects the statistics report.
func (c *Controller) Summary(ctx context.Context) (domain.Summary, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	active, err := c.store.CountActiveSessions(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	sum := domain.Summary{Masters: stats, ActiveSessions: active}
	for _, st := range stats {
		sum.TotalBookings += st.TotalBookings
		sum.Confirmed += st.ConfirmedBookings
		sum.Revenue += st.Revenue
	}
	return sum, nil
}

func (c *Controller) stats(ctx context.Context, from string) error {
	sum, err := c.Summary(ctx)
	if err != nil {
		c.logger.Error("Failed to build statistics", "err", err)
		return c.reply(ctx, from, "Statistics are unavailable right now.")
	}

	var b strings.Builder
	b.WriteString("Statistics by master:\n")
	if len(sum.Masters) == 0 {
		b.WriteString("no confirmed bookings yet\n")
	}
	for _, st := range sum.Masters {
		fmt.Fprintf(&b, "%s: %d confirmed, revenue %d\n", st.Master, st.ConfirmedBookings, st.Revenue)
	}
	fmt.Fprintf(&b, "\nTotal: %d bookings, %d confirmed, revenue %d\nActive dialogs: %d",
		sum.TotalBookings, sum.Confirmed, sum.Revenue, sum.ActiveSessions)
	return c.reply(ctx, from, b.String())
}

// resolve finds the client a phone refers to: a session by phone suffix
// (with and without the country digit), then the client record.
func (c *Controller) resolve(ctx context.Context, digits string) (string, error) {
	candidates := []string{digits}
	if len(digits) > 10 {
		candidates = append(candidates, digits[1:])
	}
	for _, q := range candidates {
		sess, err := c.store.FindSessionByPhone(ctx, q)
		if err == nil {
			return sess.UserID, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return "", err
		}
	}

	client, err := c.store.FindClientByPhone(ctx, digits)
	if err != nil {
		return "", err
	}
	if client.UserID == "" {
		return "", domain.ErrClientNotFound
	}
	return client.UserID, nil
}

func (c *Controller) connect(ctx context.Context, operator, digits string) error {
	if bound, err := c.store.FindSessionByCounterpart(ctx, operator); err == nil {
		return c.reply(ctx, operator, fmt.Sprintf(
			"You are still talking to %s. Send /close first.", display(bound)))
	}

	userID, err := c.resolve(ctx, digits)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return c.reply(ctx, operator, fmt.Sprintf("No client found with phone %s.", digits))
		}
		return err
	}

	var (
		busy   string
		client *domain.Session
	)
	err = c.locks.Update(ctx, userID, func(ctx context.Context, sess *domain.Session) error {
		if sess.AdminMode && sess.AdminCounterpart != operator {
			busy = sess.AdminCounterpart
			return nil
		}
		if err := sess.BindOperator(operator); err != nil {
			return err
		}
		sess.UpdatedAt = c.now()
		client = sess.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	if busy != "" {
		return c.reply(ctx, operator, "Another administrator is already talking to this client.")
	}

	c.logger.Info("Operator mode entered", "operator", operator, "user_id", userID)
	_ = c.notifier.Send(ctx, userID, MsgOperatorJoined)
	return c.reply(ctx, operator, fmt.Sprintf(
		"Connected to %s. Your messages are forwarded to the client as is. Send /close to hand the dialog back.",
		display(client)))
}

func (c *Controller) close(ctx context.Context, operator string) error {
	bound, err := c.store.FindSessionByCounterpart(ctx, operator)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return c.reply(ctx, operator, "You have no active dialog.")
	}
	if err != nil {
		return err
	}

	released := false
	err = c.locks.UpdateExisting(ctx, bound.UserID, func(ctx context.Context, sess *domain.Session) error {
		if sess.AdminCounterpart != operator {
			return nil
		}
		sess.ReleaseOperator()
		sess.UpdatedAt = c.now()
		released = true
		return nil
	})
	if err != nil {
		return err
	}
	if released {
		c.logger.Info("Operator mode left", "operator", operator, "user_id", bound.UserID)
		_ = c.notifier.Send(ctx, bound.UserID, MsgAssistantResume)
	}
	return c.reply(ctx, operator, fmt.Sprintf("Dialog with %s closed.", display(bound)))
}

func (c *Controller) relayToClient(ctx context.Context, operator, text string) error {
	bound, err := c.store.FindSessionByCounterpart(ctx, operator)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return c.reply(ctx, operator, "You have no active dialog. Use /connect <phone> to talk to a client.\n\n"+Usage(true))
	}
	if err != nil {
		return err
	}

	err = c.locks.UpdateExisting(ctx, bound.UserID, func(ctx context.Context, sess *domain.Session) error {
		if sess.AdminCounterpart != operator {
			return domain.ErrSessionNotFound
		}
		sess.Append(domain.RoleAssistant, text, c.now())
		sess.UpdatedAt = c.now()
		return nil
	})
	if err != nil {
		return err
	}
	return c.notifier.Send(ctx, bound.UserID, text)
}

// RelayToOperator forwards a client message verbatim to the bound operator.
// The caller must hold the session lock of sess.
func (c *Controller) RelayToOperator(ctx context.Context, sess *domain.Session, text string) error {
	sess.Append(domain.RoleUser, text, c.now())
	return c.notifier.Send(ctx, sess.AdminCounterpart, text)
}

// HandleClient runs a slash command sent by a client and reports whether text
// was a command. The caller must hold the session lock of sess.
func (c *Controller) HandleClient(ctx context.Context, sess *domain.Session, text string) bool {
	cmd, ok, err := Parse(text, true)
	if !ok {
		return false
	}
	if err != nil {
		_ = c.reply(ctx, sess.UserID, err.Error())
		return true
	}
	if cmd.OperatorOnly() {
		authErr := &domain.AuthorizationError{Sender: sess.UserID, Command: string(cmd.Kind)}
		c.logger.Warn("Operator command denied", "user_id", sess.UserID, "command", cmd.Kind, "err", authErr)
		_ = c.reply(ctx, sess.UserID, msgDenied)
		return true
	}

	switch cmd.Kind {
	case KindUpdateName:
		c.updateName(ctx, sess, cmd.Arg)
	case KindMyInfo:
		c.myInfo(ctx, sess)
	}
	return true
}

func (c *Controller) updateName(ctx context.Context, sess *domain.Session, text string) {
	v := intent.LocalValidate(text, domain.KindName)
	if !v.Valid {
		_ = c.reply(ctx, sess.UserID, v.Message)
		return
	}
	sess.ClientName = v.Value
	if sess.ClientPhone != "" {
		if err := c.store.UpsertClient(ctx, &domain.Client{Phone: sess.ClientPhone, Name: v.Value, UserID: sess.UserID}); err != nil {
			c.logger.Error("Failed to update client name", "user_id", sess.UserID, "err", err)
		}
	}
	_ = c.reply(ctx, sess.UserID, fmt.Sprintf("Done! I will call you %s from now on.", v.Value))
}

func (c *Controller) myInfo(ctx context.Context, sess *domain.Session) {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nPhone: %s", orDash(sess.ClientName), orDash(sess.ClientPhone))

	if sess.ClientPhone != "" {
		if client, err := c.store.FindClientByPhone(ctx, sess.ClientPhone); err == nil {
			fmt.Fprintf(&b, "\nVisits: %d", client.TotalVisits)
		}
	}

	bookings, err := c.store.ListBookings(ctx, sess.UserID)
	if err != nil {
		c.logger.Error("Failed to list bookings", "user_id", sess.UserID, "err", err)
	}
	var active []string
	for _, bk := range bookings {
		if bk.Status.Active() {
			active = append(active, fmt.Sprintf("#%d %s with %s on %s at %s (%s)",
				bk.ID, bk.Service, bk.Master, bk.Date, bk.Time, bk.Status))
		}
	}
	if len(active) > 0 {
		b.WriteString("\n\nYour bookings:\n")
		b.WriteString(strings.Join(active, "\n"))
	}
	_ = c.reply(ctx, sess.UserID, b.String())
}

func (c *Controller) reply(ctx context.Context, to, text string) error {
	return c.notifier.Send(ctx, to, text)
}

func display(sess *domain.Session) string {
	if sess == nil {
		return "the client"
	}
	if sess.ClientName == "" {
		return orDash(sess.ClientPhone)
	}
	return fmt.Sprintf("%s (%s)", sess.ClientName, orDash(sess.ClientPhone))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
