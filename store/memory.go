package store

import (
	"context"
	"sync"
	"time"
)

// MemoryUsers is a mutex-guarded in-memory UserStore. It backs tests and
// ad-hoc runs without Postgres.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]User)}
}

func (s *MemoryUsers) RecordJoin(_ context.Context, nick string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[nick]
	u.Nick = nick
	t := at
	u.OnlineAt = &t
	s.users[nick] = u
	return nil
}

func (s *MemoryUsers) RecordLeave(_ context.Context, nick string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[nick]
	u.Nick = nick
	t := at
	u.OfflineAt = &t
	s.users[nick] = u
	return nil
}

func (s *MemoryUsers) Find(_ context.Context, nick string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[nick]
	return u, ok, nil
}

func (s *MemoryUsers) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

// MemoryLog is a mutex-guarded in-memory MessageLog.
type MemoryLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (s *MemoryLog) Append(_ context.Context, author, body string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, LogEntry{At: at, Author: author, Body: body})
	return nil
}

func (s *MemoryLog) Range(_ context.Context, after, before time.Time) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LogEntry
	for _, e := range s.entries {
		if e.At.After(after) && e.At.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryLog) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
