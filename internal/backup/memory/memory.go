// Package memory is an in-memory backup destination used in tests and
// when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"macapuno/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[string]core.Entry
}

func New() *Store {
	return &Store{items: make(map[string]core.Entry)}
}

// Upsert stores the entry keyed by date and returns a synthetic row
// reference.
func (s *Store) Upsert(_ context.Context, e core.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.Date] = e
	return fmt.Sprintf("mem:%s", e.Date), nil
}

// Remove deletes the mirrored entry for date; absent dates are a no-op.
func (s *Store) Remove(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, date)
	return nil
}

// Entries returns the mirrored entries ordered by date, for assertions.
func (s *Store) Entries() []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Entry, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Get returns the mirrored entry for date.
func (s *Store) Get(date string) (core.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[date]
	return e, ok
}
