// Package store defines the persistence contracts for the presence ledger
// and the room transcript, plus Postgres and in-memory implementations.
// Both tables are append/upsert-only: users are never deleted and log
// entries are never mutated.
package store

import (
	"context"
	"time"
)

// User is one room participant as the bot has observed them. Either
// timestamp may be nil: a user seen only joining has no OfflineAt, and a
// user seen only leaving has no OnlineAt.
type User struct {
	Nick      string
	OnlineAt  *time.Time
	OfflineAt *time.Time
}

// LogEntry is one recorded room message. Entries arrive from a single
// sequential event stream, so insertion order matches chronological order.
type LogEntry struct {
	At     time.Time
	Author string
	Body   string
}

// UserStore is the per-user online/offline timestamp ledger.
// All operations are total upserts keyed by nick; none signal "not found"
// as an error.
type UserStore interface {
	// RecordJoin sets the user's online timestamp, creating the row if
	// needed. A prior offline timestamp is left untouched.
	RecordJoin(ctx context.Context, nick string, at time.Time) error
	// RecordLeave sets the user's offline timestamp, creating the row if
	// needed.
	RecordLeave(ctx context.Context, nick string, at time.Time) error
	// Find returns the user and whether they are known.
	Find(ctx context.Context, nick string) (User, bool, error)
	// Count returns the number of tracked users.
	Count(ctx context.Context) (int, error)
}

// MessageLog is the append-only room transcript.
type MessageLog interface {
	// Append records one message. Body content is not validated.
	Append(ctx context.Context, author, body string, at time.Time) error
	// Range returns entries with after < At < before, ascending by
	// timestamp. Both bounds are strictly exclusive.
	Range(ctx context.Context, after, before time.Time) ([]LogEntry, error)
	// Count returns the transcript length.
	Count(ctx context.Context) (int, error)
}
