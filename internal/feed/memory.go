package feed

import (
	"context"
	"sync"
)

// subscription is a bounded delivery queue. Delivery never blocks: when the
// queue is full the event is dropped for this subscriber only.
type subscription struct {
	filter  string
	mu      sync.Mutex
	ch      chan ChangeEvent
	closed  bool
	dropped uint64
}

func newSubscription(filter string) *subscription {
	return &subscription{
		filter: filter,
		ch:     make(chan ChangeEvent, subscriberBuffer),
	}
}

func (s *subscription) deliver(ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped++
		return false
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Memory is an in-process Feed for single-instance deployments and tests.
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	seq    uint64
}

// NewMemory creates an empty in-process feed.
func NewMemory() *Memory {
	return &Memory{subs: make(map[int]*subscription)}
}

// Publish delivers ev to matching subscribers and stamps a sequence number.
func (m *Memory) Publish(ctx context.Context, ev ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.seq++
	ev.Sequence = m.seq
	subs := make([]*subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	subject := ev.Subject()
	for _, s := range subs {
		if Match(s.filter, subject) {
			s.deliver(ev)
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (m *Memory) Subscribe(ctx context.Context, filter string) (<-chan ChangeEvent, error) {
	s := newSubscription(filter)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = s
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		s.close()
	}()

	return s.ch, nil
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}
