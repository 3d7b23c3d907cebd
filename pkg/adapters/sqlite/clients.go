package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

func (s *Store) UpsertClient(ctx context.Context, c *domain.Client) error {
	now := unixNano(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (phone, name, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = excluded.name,
			user_id = CASE WHEN excluded.user_id = '' THEN clients.user_id ELSE excluded.user_id END,
			updated_at = excluded.updated_at`,
		c.Phone, c.Name, c.UserID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert client %s: %w", c.Phone, err)
	}
	return nil
}

func (s *Store) FindClientByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	if domain.PhoneDigits(phone) == "" {
		return nil, domain.ErrClientNotFound
	}
	var (
		c         domain.Client
		lastVisit sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT phone, name, user_id, total_visits, total_spent, last_visit
		FROM clients WHERE phone LIKE ? ORDER BY updated_at DESC LIMIT 1`, likeSuffix(phone)).
		Scan(&c.Phone, &c.Name, &c.UserID, &c.TotalVisits, &c.TotalSpent, &lastVisit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	c.LastVisit = fromUnixNano(lastVisit)
	return &c, nil
}
