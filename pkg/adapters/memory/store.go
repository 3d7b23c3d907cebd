package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/domain"
)

// Store implements ports.Store in memory.
// Safe for concurrent use. Values are copied on the way in and out so callers
// never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	bookings map[int64]*domain.Booking
	stats    map[string]*domain.MasterStats
	clients  map[string]*domain.Client
	nextID   int64
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		bookings: make(map[int64]*domain.Booking),
		stats:    make(map[string]*domain.MasterStats),
		clients:  make(map[string]*domain.Client),
	}
}

// LoadSession returns a copy of the stored session.
func (s *Store) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// SaveSession stores a copy of sess.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess.Clone()
	return nil
}

// ListSessions returns all sessions ordered by user id.
func (s *Store) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	return s.filterSessions(func(*domain.Session) bool { return true }), nil
}

func (s *Store) ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error) {
	return s.filterSessions(func(sess *domain.Session) bool {
		return sess.Expirable() && sess.UpdatedAt.Before(before)
	}), nil
}

func (s *Store) FindSessionByPhone(ctx context.Context, phone string) (*domain.Session, error) {
	found := s.filterSessions(func(sess *domain.Session) bool {
		return domain.PhoneMatches(sess.ClientPhone, phone)
	})
	if len(found) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return found[0], nil
}

func (s *Store) FindSessionByCounterpart(ctx context.Context, operatorID string) (*domain.Session, error) {
	found := s.filterSessions(func(sess *domain.Session) bool {
		return sess.AdminMode && sess.AdminCounterpart == operatorID
	})
	if len(found) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return found[0], nil
}

func (s *Store) CountActiveSessions(ctx context.Context) (int, error) {
	return len(s.filterSessions(func(sess *domain.Session) bool {
		return sess.Stage != domain.StageGreeting
	})), nil
}

func (s *Store) filterSessions(keep func(*domain.Session) bool) []*domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if keep(sess) {
			out = append(out, sess.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Session) int { return cmp.Compare(a.UserID, b.UserID) })
	return out
}

// CreateBooking checks for overlaps and inserts under the same write lock.
func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) error {
	start, duration, err := b.Interval()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := availability.Conflict(s.activeLocked(b.Master, b.Date), start, duration); taken {
		return domain.ErrSlotTaken
	}
	s.nextID++
	b.ID = s.nextID
	stored := *b
	s.bookings[b.ID] = &stored
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	out := *b
	return &out, nil
}

func (s *Store) ListActiveBookings(ctx context.Context, master, date string) ([]*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyBookings(s.activeLocked(master, date)), nil
}

func (s *Store) activeLocked(master, date string) []*domain.Booking {
	var out []*domain.Booking
	for _, b := range s.bookings {
		if b.Master == master && b.Date == date && b.Status.Active() {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Booking) int { return cmp.Compare(a.Time, b.Time) })
	return out
}

func (s *Store) ListBookings(ctx context.Context, userID string) ([]*domain.Booking, error) {
	return s.filterBookings(func(b *domain.Booking) bool { return b.UserID == userID }), nil
}

func (s *Store) CountBookingsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return len(s.filterBookings(func(b *domain.Booking) bool {
		return b.UserID == userID && !b.CreatedAt.Before(since)
	})), nil
}

func (s *Store) LatestActiveBooking(ctx context.Context, userID string) (*domain.Booking, error) {
	found := s.filterBookings(func(b *domain.Booking) bool {
		return b.UserID == userID && b.Status.Active()
	})
	if len(found) == 0 {
		return nil, domain.ErrBookingNotFound
	}
	return found[len(found)-1], nil
}

// TransitionBooking applies the move and, on confirmation, the statistics update atomically.
func (s *Store) TransitionBooking(ctx context.Context, id int64, to domain.Status, at time.Time) (domain.Status, *domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return "", nil, &domain.NotFoundError{ID: id}
	}
	prev := b.Status
	if !prev.CanTransition(to) {
		out := *b
		return prev, &out, &domain.TransitionError{Entity: "booking", From: string(prev), To: string(to)}
	}

	b.Status = to
	if to == domain.StatusConfirmed {
		b.ConfirmedAt = at
		st, ok := s.stats[b.Master]
		if !ok {
			st = &domain.MasterStats{Master: b.Master}
			s.stats[b.Master] = st
		}
		st.TotalBookings++
		st.ConfirmedBookings++
		st.Revenue += b.Price
		st.UpdatedAt = at

		if c, ok := s.clients[b.ClientPhone]; ok {
			c.TotalVisits++
			c.TotalSpent += b.Price
			c.LastVisit = at
		}
	}
	out := *b
	return prev, &out, nil
}

func (s *Store) DueReminders(ctx context.Context, date, from, to string) ([]*domain.Booking, error) {
	return s.filterBookings(func(b *domain.Booking) bool {
		return b.Status == domain.StatusConfirmed && !b.ReminderSent &&
			b.Date == date && b.Time >= from && b.Time <= to
	}), nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return false, &domain.NotFoundError{ID: id}
	}
	if b.ReminderSent {
		return false, nil
	}
	b.ReminderSent = true
	return true, nil
}

// Stats returns per-master statistics ordered by revenue, highest first.
func (s *Store) Stats(ctx context.Context) ([]domain.MasterStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MasterStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b domain.MasterStats) int {
		return cmp.Or(cmp.Compare(b.Revenue, a.Revenue), cmp.Compare(a.Master, b.Master))
	})
	return out, nil
}

func (s *Store) filterBookings(keep func(*domain.Booking) bool) []*domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Booking) int { return cmp.Compare(a.ID, b.ID) })
	return copyBookings(out)
}

func (s *Store) UpsertClient(ctx context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.clients[c.Phone]; ok {
		existing.Name = c.Name
		if c.UserID != "" {
			existing.UserID = c.UserID
		}
		return nil
	}
	stored := *c
	s.clients[c.Phone] = &stored
	return nil
}

func (s *Store) FindClientByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for stored, c := range s.clients {
		if domain.PhoneMatches(stored, phone) {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrClientNotFound
}

func copyBookings(in []*domain.Booking) []*domain.Booking {
	out := make([]*domain.Booking, 0, len(in))
	for _, b := range in {
		c := *b
		out = append(out, &c)
	}
	return out
}
