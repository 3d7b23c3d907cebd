package domain

import (
	"fmt"
	"time"
)

// Role tags a history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Draft holds booking fields collected during the dialogue.
// BookingID is set once the draft has been persisted as a Booking.
type Draft struct {
	Service   string `json:"service,omitempty"`
	Master    string `json:"master,omitempty"`
	Price     int64  `json:"price,omitempty"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	BookingID int64  `json:"booking_id,omitempty"`
}

// Empty reports whether no field has been collected yet.
func (d Draft) Empty() bool {
	return d == Draft{}
}

// Session is the persisted dialogue state of one client.
type Session struct {
	UserID           string    `json:"user_id"`
	Stage            Stage     `json:"stage"`
	History          []Turn    `json:"history"`
	Draft            Draft     `json:"draft"`
	ClientName       string    `json:"client_name,omitempty"`
	ClientPhone      string    `json:"client_phone,omitempty"`
	AdminMode        bool      `json:"admin_mode"`
	AdminCounterpart string    `json:"admin_counterpart,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewSession creates a session in the greeting stage.
func NewSession(userID string, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Stage:     StageGreeting,
		History:   []Turn{},
		UpdatedAt: now,
	}
}

// Transition moves the session to the next stage if the transition table allows it.
func (s *Session) Transition(next Stage) error {
	if !s.Stage.CanTransition(next) {
		return &TransitionError{Entity: "session " + s.UserID, From: string(s.Stage), To: string(next)}
	}
	s.Stage = next
	return nil
}

// Append adds a turn to the history.
func (s *Session) Append(role Role, content string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Content: content, At: at})
}

// Window returns the last n turns of the history.
func (s *Session) Window(n int) []Turn {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// BindOperator puts the session into operator mode bound to operatorID.
func (s *Session) BindOperator(operatorID string) error {
	if operatorID == "" {
		return fmt.Errorf("%w: empty operator id", ErrInvalidInput)
	}
	s.AdminMode = true
	s.AdminCounterpart = operatorID
	return nil
}

// ReleaseOperator leaves operator mode.
func (s *Session) ReleaseOperator() {
	s.AdminMode = false
	s.AdminCounterpart = ""
}

// Idle reports whether the session has been inactive for longer than timeout.
// Sessions in the greeting stage expire only while bound to an operator.
func (s *Session) Idle(now time.Time, timeout time.Duration) bool {
	return s.Expirable() && now.Sub(s.UpdatedAt) > timeout
}

// Expirable reports whether the session holds state that expiry should clear.
func (s *Session) Expirable() bool {
	return s.Stage != StageGreeting || s.AdminMode
}

// Reset returns the session to the greeting stage and forgets everything it collected.
// Resetting an already reset session leaves it unchanged apart from the timestamp.
func (s *Session) Reset(now time.Time) {
	s.Stage = StageGreeting
	s.History = []Turn{}
	s.Draft = Draft{}
	s.ClientName = ""
	s.ClientPhone = ""
	s.ReleaseOperator()
	s.UpdatedAt = now
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	return &c
}
