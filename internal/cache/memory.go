package cache

import (
	"context"
	"sync"
	"time"

	"voka/internal/models"
)

type board struct {
	entries []models.LeaderboardEntry
	expires time.Time
}

// Memory is the in-process Cache.
type Memory struct {
	mu         sync.Mutex
	hearts     map[string]int
	lastScores map[int64]models.LastScore
	denied     map[int64]bool
	boards     map[string]map[int]board
	now        func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		hearts:     make(map[string]int),
		lastScores: make(map[int64]models.LastScore),
		denied:     make(map[int64]bool),
		boards:     make(map[string]map[int]board),
		now:        time.Now,
	}
}

func (m *Memory) Load(_ context.Context, key string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hearts[key]
	return v, ok, nil
}

func (m *Memory) Save(_ context.Context, key string, value int) error {
	m.mu.Lock()
	m.hearts[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Add(_ context.Context, key string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := max(0, m.hearts[key]+delta)
	m.hearts[key] = v
	return v, nil
}

func (m *Memory) SaveLastScore(_ context.Context, profileID int64, score models.LastScore) error {
	m.mu.Lock()
	m.lastScores[profileID] = score
	m.mu.Unlock()
	return nil
}

func (m *Memory) LastScore(_ context.Context, profileID int64) (*models.LastScore, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.lastScores[profileID]
	if !ok {
		return nil, false, nil
	}
	return &score, true, nil
}

func (m *Memory) SetPermissionDenied(_ context.Context, profileID int64, denied bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if denied {
		m.denied[profileID] = true
	} else {
		delete(m.denied, profileID)
	}
	return nil
}

func (m *Memory) PermissionDenied(_ context.Context, profileID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.denied[profileID], nil
}

func (m *Memory) Leaderboard(_ context.Context, category string, limit int) ([]models.LeaderboardEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[boardKey(category)][limit]
	if !ok || m.now().After(b.expires) {
		return nil, false, nil
	}
	return append([]models.LeaderboardEntry(nil), b.entries...), true, nil
}

func (m *Memory) SetLeaderboard(_ context.Context, category string, limit int, entries []models.LeaderboardEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := boardKey(category)
	if m.boards[k] == nil {
		m.boards[k] = make(map[int]board)
	}
	m.boards[k][limit] = board{
		entries: append([]models.LeaderboardEntry(nil), entries...),
		expires: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) InvalidateLeaderboard(_ context.Context, category string) error {
	m.mu.Lock()
	delete(m.boards, boardKey(category))
	delete(m.boards, allCategories)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
