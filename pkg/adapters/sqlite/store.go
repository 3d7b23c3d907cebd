// Package sqlite implements ports.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/concierge/pkg/domain"
)

// Store implements ports.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the database at dsn and runs the migrations.
func NewStore(dsn string) (*Store, error) {
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !inMemory {
		dsn = withParams(dsn, "_txlock=immediate", "_busy_timeout=5000")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to an in-memory database is a different database.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func withParams(dsn string, params ...string) string {
	for _, p := range params {
		key := p[:strings.IndexByte(p, '=')+1]
		if strings.Contains(dsn, key) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p
	}
	return dsn
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			stage TEXT NOT NULL,
			history TEXT NOT NULL DEFAULT '[]',
			draft TEXT NOT NULL DEFAULT '{}',
			client_name TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			admin_mode INTEGER NOT NULL DEFAULT 0,
			admin_counterpart TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_idle ON sessions(stage, updated_at)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			client_name TEXT NOT NULL,
			client_phone TEXT NOT NULL,
			service TEXT NOT NULL,
			master TEXT NOT NULL,
			price INTEGER NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			duration INTEGER NOT NULL,
			status TEXT NOT NULL,
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			confirmed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(master, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS statistics (
			master TEXT PRIMARY KEY,
			total_bookings INTEGER NOT NULL DEFAULT 0,
			confirmed_bookings INTEGER NOT NULL DEFAULT 0,
			revenue INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			phone TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			total_visits INTEGER NOT NULL DEFAULT 0,
			total_spent INTEGER NOT NULL DEFAULT 0,
			last_visit INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func unixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(n sql.NullInt64) time.Time {
	if !n.Valid || n.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

func likeSuffix(phone string) string {
	return "%" + domain.PhoneDigits(phone)
}

// --- sessions ---

const sessionColumns = `user_id, stage, history, draft, client_name, client_phone, admin_mode, admin_counterpart, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		sess      domain.Session
		stage     string
		history   string
		draft     string
		adminMode int
		updatedAt sql.NullInt64
	)
	if err := row.Scan(&sess.UserID, &stage, &history, &draft, &sess.ClientName, &sess.ClientPhone,
		&adminMode, &sess.AdminCounterpart, &updatedAt); err != nil {
		return nil, err
	}
	st, err := domain.ParseStage(stage)
	if err != nil {
		return nil, err
	}
	sess.Stage = st
	if err := json.Unmarshal([]byte(history), &sess.History); err != nil {
		return nil, fmt.Errorf("failed to decode history of %s: %w", sess.UserID, err)
	}
	if err := json.Unmarshal([]byte(draft), &sess.Draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft of %s: %w", sess.UserID, err)
	}
	sess.AdminMode = adminMode != 0
	sess.UpdatedAt = fromUnixNano(updatedAt)
	if sess.History == nil {
		sess.History = []domain.Turn{}
	}
	return &sess, nil
}

func (s *Store) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?`, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", userID, err)
	}
	return sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	history, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	draft, err := json.Marshal(sess.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	adminMode := 0
	if sess.AdminMode {
		adminMode = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			stage = excluded.stage,
			history = excluded.history,
			draft = excluded.draft,
			client_name = excluded.client_name,
			client_phone = excluded.client_phone,
			admin_mode = excluded.admin_mode,
			admin_counterpart = excluded.admin_counterpart,
			updated_at = excluded.updated_at`,
		sess.UserID, string(sess.Stage), string(history), string(draft), sess.ClientName, sess.ClientPhone,
		adminMode, sess.AdminCounterpart, unixNano(sess.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *Store) querySessions(ctx context.Context, where string, args ...any) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions `+where+` ORDER BY user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	return s.querySessions(ctx, "")
}

func (s *Store) ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error) {
	return s.querySessions(ctx, `WHERE (stage != ? OR admin_mode = 1) AND updated_at < ?`, string(domain.StageGreeting), unixNano(before))
}

func (s *Store) FindSessionByPhone(ctx context.Context, phone string) (*domain.Session, error) {
	if domain.PhoneDigits(phone) == "" {
		return nil, domain.ErrSessionNotFound
	}
	found, err := s.querySessions(ctx, `WHERE client_phone LIKE ?`, likeSuffix(phone))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return found[0], nil
}

func (s *Store) FindSessionByCounterpart(ctx context.Context, operatorID string) (*domain.Session, error) {
	found, err := s.querySessions(ctx, `WHERE admin_mode = 1 AND admin_counterpart = ?`, operatorID)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return found[0], nil
}

func (s *Store) CountActiveSessions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE stage != ?`, string(domain.StageGreeting)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
