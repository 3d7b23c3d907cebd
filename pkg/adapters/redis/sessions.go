package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// SessionStore implements ports.SessionStore using Redis.
// Sessions are JSON documents; a sorted set indexes them by last update so
// idle sessions can be found without scanning.
type SessionStore struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures the SessionStore.
type Option func(*SessionStore)

// WithTTL expires sessions that were not saved for ttl.
func WithTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewSessionStore creates a session store over an existing client.
func NewSessionStore(client backend.UniversalClient, opts ...Option) *SessionStore {
	s := &SessionStore{
		client: client,
		prefix: "concierge:session:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) key(userID string) string {
	return s.prefix + userID
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// SaveSession writes the session and moves it in the index.
func (s *SessionStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sess.UserID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(sess.UpdatedAt.UnixMilli()),
		Member: sess.UserID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *SessionStore) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", userID, err)
	}
	return &sess, nil
}

// DeleteSession removes the session and its index entry.
func (s *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(userID))
	pipe.ZRem(ctx, s.indexKey(), userID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListSessions returns all sessions ordered by user id.
func (s *SessionStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return s.fetch(ctx, ids, func(*domain.Session) bool { return true })
}

func (s *SessionStore) ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	return s.fetch(ctx, ids, func(sess *domain.Session) bool {
		return sess.Expirable() && sess.UpdatedAt.Before(before)
	})
}

func (s *SessionStore) FindSessionByPhone(ctx context.Context, phone string) (*domain.Session, error) {
	return s.first(ctx, func(sess *domain.Session) bool {
		return domain.PhoneMatches(sess.ClientPhone, phone)
	})
}

func (s *SessionStore) FindSessionByCounterpart(ctx context.Context, operatorID string) (*domain.Session, error) {
	return s.first(ctx, func(sess *domain.Session) bool {
		return sess.AdminMode && sess.AdminCounterpart == operatorID
	})
}

func (s *SessionStore) CountActiveSessions(ctx context.Context) (int, error) {
	all, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sess := range all {
		if sess.Stage != domain.StageGreeting {
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) first(ctx context.Context, keep func(*domain.Session) bool) (*domain.Session, error) {
	all, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range all {
		if keep(sess) {
			return sess, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// fetch loads the sessions behind ids. Ids whose key expired are pruned from
// the index on the way.
func (s *SessionStore) fetch(ctx context.Context, ids []string, keep func(*domain.Session) bool) ([]*domain.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var (
		out   []*domain.Session
		stale []any
	)
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var sess domain.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session %s: %w", ids[i], err)
		}
		if keep(&sess) {
			out = append(out, &sess)
		}
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Session) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}
