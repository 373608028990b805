package relay

import (
	"context"
	"slices"
	"sync"
)

// Memory is a Transcript kept only in memory.
type Memory struct {
	mu    sync.Mutex
	lines map[string][]Line
}

func (m *Memory) Append(ctx context.Context, user string, line Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines == nil {
		m.lines = make(map[string][]Line)
	}
	m.lines[user] = append(m.lines[user], line)
	return nil
}

func (m *Memory) Lines(ctx context.Context, user string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lines[user]), nil
}

func (m *Memory) Forget(ctx context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, user)
	return nil
}
