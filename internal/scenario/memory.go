package scenario

import (
	"context"
	"sync"

	"github.com/utakatalp/volley-simulator/internal/league"
)

// MemoryOverrides is an OverrideStore that lives in process memory.
type MemoryOverrides struct {
	mu   sync.RWMutex
	data map[string]league.Overrides
}

func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{data: make(map[string]league.Overrides)}
}

func memoryKey(userID, leagueID, group string) string {
	return userID + "\x00" + leagueID + "\x00" + group
}

func (m *MemoryOverrides) Overrides(_ context.Context, userID, leagueID, group string) (league.Overrides, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[memoryKey(userID, leagueID, group)].Clone(), nil
}

func (m *MemoryOverrides) SaveOverrides(_ context.Context, userID, leagueID, group string, overrides league.Overrides) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[memoryKey(userID, leagueID, group)] = overrides.Clone()
	return nil
}

func (m *MemoryOverrides) ResetOverrides(_ context.Context, userID, leagueID, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memoryKey(userID, leagueID, group))
	return nil
}
