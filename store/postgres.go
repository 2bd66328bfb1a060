package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresUsers implements UserStore on the users table.
type PostgresUsers struct {
	DB *sql.DB
}

// RecordJoin upserts the online timestamp; offline_at is preserved.
func (s *PostgresUsers) RecordJoin(ctx context.Context, nick string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (nick, online_at) VALUES ($1, $2)
		ON CONFLICT (nick) DO UPDATE SET online_at=EXCLUDED.online_at`, nick, at)
	if err != nil {
		return fmt.Errorf("record join for %s: %w", nick, err)
	}
	return nil
}

// RecordLeave upserts the offline timestamp; online_at is preserved.
func (s *PostgresUsers) RecordLeave(ctx context.Context, nick string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (nick, offline_at) VALUES ($1, $2)
		ON CONFLICT (nick) DO UPDATE SET offline_at=EXCLUDED.offline_at`, nick, at)
	if err != nil {
		return fmt.Errorf("record leave for %s: %w", nick, err)
	}
	return nil
}

func (s *PostgresUsers) Find(ctx context.Context, nick string) (User, bool, error) {
	var u User
	var online, offline sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT nick, online_at, offline_at FROM users WHERE nick=$1`, nick).
		Scan(&u.Nick, &online, &offline)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("find user %s: %w", nick, err)
	}
	if online.Valid {
		t := online.Time
		u.OnlineAt = &t
	}
	if offline.Valid {
		t := offline.Time
		u.OfflineAt = &t
	}
	return u, true, nil
}

func (s *PostgresUsers) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// PostgresLog implements MessageLog on the messages table.
type PostgresLog struct {
	DB *sql.DB
}

func (s *PostgresLog) Append(ctx context.Context, author, body string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO messages (at, author, body) VALUES ($1, $2, $3)`, at, author, body)
	if err != nil {
		return fmt.Errorf("append message from %s: %w", author, err)
	}
	return nil
}

// Range scans strictly between the bounds. The secondary order on id keeps
// entries with equal timestamps in insertion order.
func (s *PostgresLog) Range(ctx context.Context, after, before time.Time) ([]LogEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT at, author, body FROM messages
		WHERE at > $1 AND at < $2 ORDER BY at ASC, id ASC`, after, before)
	if err != nil {
		return nil, fmt.Errorf("range messages: %w", err)
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.At, &e.Author, &e.Body); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range messages: %w", err)
	}
	return out, nil
}

func (s *PostgresLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
