package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// Memory is an in-process Channel. Publish delivers synchronously to every
// subscriber of the path, and a new subscriber immediately receives the
// latest published value.
type Memory struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
	subs   map[string]map[*memorySub]struct{}
}

// NewMemory returns an empty Memory channel.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]json.RawMessage),
		subs:   make(map[string]map[*memorySub]struct{}),
	}
}

type memorySub struct {
	listener
	hub *Memory
}

func (s *memorySub) Close() {
	s.closed.Store(true)
	s.hub.mu.Lock()
	delete(s.hub.subs[s.path], s)
	s.hub.mu.Unlock()
}

// Subscribe registers h on path and delivers the current value, if any.
func (m *Memory) Subscribe(_ context.Context, path string, h Handler) (Subscription, error) {
	sub := &memorySub{listener: listener{path: path, handler: h}, hub: m}

	m.mu.Lock()
	if m.subs[path] == nil {
		m.subs[path] = make(map[*memorySub]struct{})
	}
	m.subs[path][sub] = struct{}{}
	current, ok := m.values[path]
	m.mu.Unlock()

	if ok {
		sub.deliver(makeSnapshot(path, current))
	}
	return sub, nil
}

// Publish replaces the value at path and notifies subscribers. A nil v
// publishes an absent value.
func (m *Memory) Publish(path string, v any) error {
	var data json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", path, err)
		}
		data = b
	}

	m.mu.Lock()
	if data == nil {
		delete(m.values, path)
	} else {
		m.values[path] = data
	}
	targets := make([]*memorySub, 0, len(m.subs[path]))
	for s := range m.subs[path] {
		targets = append(targets, s)
	}
	m.mu.Unlock()

	snap := makeSnapshot(path, data)
	for _, s := range targets {
		s.deliver(snap)
	}
	return nil
}

// Subscribers returns the number of open subscriptions on path.
func (m *Memory) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[path])
}
