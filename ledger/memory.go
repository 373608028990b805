package ledger

import (
	"context"
	"slices"
	"sync"
)

// Memory is a Store that keeps accounts only in memory.
type Memory struct {
	mu       sync.Mutex
	accounts []Account
}

// Load returns the last saved accounts.
func (m *Memory) Load(ctx context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.accounts), nil
}

// Save replaces the saved accounts.
func (m *Memory) Save(ctx context.Context, accounts []Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = slices.Clone(accounts)
	return nil
}
