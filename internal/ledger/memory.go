package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value int) error {
	m.mu.Lock()
	m.values[key] = max(0, value)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Add(_ context.Context, key string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := max(0, m.values[key]+delta)
	m.values[key] = v
	return v, nil
}
