package market_hours

import (
	"context"
	"sync"
	"time"
)

// Store is the durable keyed store behind the year cache.
// Get returns ErrNotFound when no day exists for (market, date).
// Upsert replaces any existing day with the same key in one atomic step.
type Store interface {
	Get(ctx context.Context, market string, date time.Time) (Day, error)
	Upsert(ctx context.Context, day Day) error
	DeleteAll(ctx context.Context, market string) error
}

// BatchStore is implemented by stores that can write many days all-or-nothing
type BatchStore interface {
	UpsertBatch(ctx context.Context, days []Day) error
}

// Remover is implemented by stores that can delete a single day. Pop returns
// the removed day, or ErrNotFound, in one atomic step.
type Remover interface {
	Pop(ctx context.Context, market string, date time.Time) (Day, error)
}

// MemoryStore keeps days in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	days map[DayKey]Day
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[DayKey]Day)}
}

func (s *MemoryStore) Get(_ context.Context, market string, date time.Time) (Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day, ok := s.days[DayKey{Market: market, Date: DateOf(date).Format(DateLayout)}]
	if !ok {
		return Day{}, ErrNotFound
	}
	return day, nil
}

func (s *MemoryStore) Upsert(_ context.Context, day Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[day.Key()] = day
	return nil
}

// UpsertBatch writes every day under one lock, so readers never see half a batch
func (s *MemoryStore) UpsertBatch(_ context.Context, days []Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, day := range days {
		s.days[day.Key()] = day
	}
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, market string, date time.Time) (Day, error) {
	key := DayKey{Market: market, Date: DateOf(date).Format(DateLayout)}

	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[key]
	if !ok {
		return Day{}, ErrNotFound
	}
	delete(s.days, key)
	return day, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, market string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.days {
		if key.Market == market {
			delete(s.days, key)
		}
	}
	return nil
}

// Len returns the number of stored days across all markets
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}
