package store

import (
	"context"
	"sync"
)

// MemoryStore keeps alerts in memory. Default backend for development and
// tests; implements AlertStore.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts []*Alert
}

// NewMemoryStore initializes an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *alert
	s.alerts = append(s.alerts, &a)
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.alerts)
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]*Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		a := *s.alerts[i]
		result = append(result, &a)
	}
	return result, nil
}

// Len returns the number of stored alerts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
