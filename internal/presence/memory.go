package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Tracker.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemory creates an in-process tracker.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

func (m *Memory) SetOnline(ctx context.Context, agentID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if online {
		m.expires[agentID] = m.now().Add(m.ttl)
	} else {
		delete(m.expires, agentID)
	}
	return nil
}

// Heartbeat extends an online agent's TTL. Offline agents stay offline.
func (m *Memory) Heartbeat(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[agentID]
	now := m.now()
	if !ok || !exp.After(now) {
		delete(m.expires, agentID)
		return nil
	}
	m.expires[agentID] = now.Add(m.ttl)
	return nil
}

func (m *Memory) IsOnline(ctx context.Context, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[agentID]
	return ok && exp.After(m.now()), nil
}

func (m *Memory) Online(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	agents := make([]string, 0, len(m.expires))
	for id, exp := range m.expires {
		if exp.After(now) {
			agents = append(agents, id)
		} else {
			delete(m.expires, id)
		}
	}
	sort.Strings(agents)
	return agents, nil
}
