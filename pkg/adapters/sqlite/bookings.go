package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/concierge/pkg/availability"
	"github.com/aretw0/concierge/pkg/domain"
)

const bookingColumns = `id, user_id, client_name, client_phone, service, master, price, date, time, duration, status, reminder_sent, created_at, confirmed_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanBooking(row scanner) (*domain.Booking, error) {
	var (
		b           domain.Booking
		status      string
		reminder    int
		createdAt   sql.NullInt64
		confirmedAt sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.ClientName, &b.ClientPhone, &b.Service, &b.Master, &b.Price,
		&b.Date, &b.Time, &b.Duration, &status, &reminder, &createdAt, &confirmedAt); err != nil {
		return nil, err
	}
	b.Status = domain.Status(status)
	b.ReminderSent = reminder != 0
	b.CreatedAt = fromUnixNano(createdAt)
	b.ConfirmedAt = fromUnixNano(confirmedAt)
	return &b, nil
}

func queryBookings(ctx context.Context, q querier, where string, args ...any) ([]*domain.Booking, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const activeWhere = `WHERE master = ? AND date = ? AND status IN ('pending', 'confirmed') ORDER BY time`

// CreateBooking reads the active bookings of the slot's master and date and
// inserts inside one transaction, so concurrent inserts cannot both succeed.
func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) error {
	start, duration, err := b.Interval()
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := queryBookings(ctx, tx, activeWhere, b.Master, b.Date)
		if err != nil {
			return err
		}
		if _, taken := availability.Conflict(existing, start, duration); taken {
			return domain.ErrSlotTaken
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (user_id, client_name, client_phone, service, master, price, date, time, duration, status, reminder_sent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			b.UserID, b.ClientName, b.ClientPhone, b.Service, b.Master, b.Price, b.Date, b.Time, b.Duration,
			string(b.Status), unixNano(b.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read booking id: %w", err)
		}
		b.ID = id
		return nil
	})
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", id, err)
	}
	return b, nil
}

func (s *Store) ListActiveBookings(ctx context.Context, master, date string) ([]*domain.Booking, error) {
	return queryBookings(ctx, s.db, activeWhere, master, date)
}

func (s *Store) ListBookings(ctx context.Context, userID string) ([]*domain.Booking, error) {
	return queryBookings(ctx, s.db, `WHERE user_id = ? ORDER BY id`, userID)
}

func (s *Store) CountBookingsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = ? AND created_at >= ?`, userID, unixNano(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

func (s *Store) LatestActiveBooking(ctx context.Context, userID string) (*domain.Booking, error) {
	found, err := queryBookings(ctx, s.db,
		`WHERE user_id = ? AND status IN ('pending', 'confirmed') ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrBookingNotFound
	}
	return found[0], nil
}

// TransitionBooking updates the status with a compare-and-set on the previous
// status. Confirmation also bumps statistics and client totals in the same transaction.
func (s *Store) TransitionBooking(ctx context.Context, id int64, to domain.Status, at time.Time) (domain.Status, *domain.Booking, error) {
	var (
		prev domain.Status
		out  *domain.Booking
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		found, err := queryBookings(ctx, tx, `WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return &domain.NotFoundError{ID: id}
		}
		b := found[0]
		prev = b.Status
		out = b
		if !prev.CanTransition(to) {
			return &domain.TransitionError{Entity: "booking", From: string(prev), To: string(to)}
		}

		var confirmedAt any
		if to == domain.StatusConfirmed {
			confirmedAt = unixNano(at)
			b.ConfirmedAt = at
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, confirmed_at = COALESCE(?, confirmed_at) WHERE id = ? AND status = ?`,
			string(to), confirmedAt, id, string(prev))
		if err != nil {
			return fmt.Errorf("failed to update booking %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return &domain.TransitionError{Entity: "booking", From: string(prev), To: string(to)}
		}
		b.Status = to

		if to != domain.StatusConfirmed {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO statistics (master, total_bookings, confirmed_bookings, revenue, updated_at)
			VALUES (?, 1, 1, ?, ?)
			ON CONFLICT(master) DO UPDATE SET
				total_bookings = total_bookings + 1,
				confirmed_bookings = confirmed_bookings + 1,
				revenue = revenue + excluded.revenue,
				updated_at = excluded.updated_at`,
			b.Master, b.Price, unixNano(at)); err != nil {
			return fmt.Errorf("failed to update statistics: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE clients SET total_visits = total_visits + 1, total_spent = total_spent + ?, last_visit = ?, updated_at = ?
			WHERE phone = ?`,
			b.Price, unixNano(at), unixNano(at), b.ClientPhone); err != nil {
			return fmt.Errorf("failed to update client totals: %w", err)
		}
		return nil
	})
	return prev, out, err
}

func (s *Store) DueReminders(ctx context.Context, date, from, to string) ([]*domain.Booking, error) {
	return queryBookings(ctx, s.db,
		`WHERE status = 'confirmed' AND reminder_sent = 0 AND date = ? AND time >= ? AND time <= ? ORDER BY time`,
		date, from, to)
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE bookings SET reminder_sent = 1 WHERE id = ? AND reminder_sent = 0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder for booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Stats(ctx context.Context) ([]domain.MasterStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT master, total_bookings, confirmed_bookings, revenue, updated_at
		FROM statistics ORDER BY revenue DESC, master`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var out []domain.MasterStats
	for rows.Next() {
		var (
			st        domain.MasterStats
			updatedAt sql.NullInt64
		)
		if err := rows.Scan(&st.Master, &st.TotalBookings, &st.ConfirmedBookings, &st.Revenue, &updatedAt); err != nil {
			return nil, err
		}
		st.UpdatedAt = fromUnixNano(updatedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}
