package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// mockProvider answers requests from a fixed method → result table.
type mockProvider struct {
	mu      sync.Mutex
	results map[string]any
	errs    map[string]error
	calls   []string
}

func newMockProvider(results map[string]any) *mockProvider {
	return &mockProvider{results: results, errs: map[string]error{}}
}

func (m *mockProvider) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
	if err := m.errs[method]; err != nil {
		return nil, err
	}
	v, ok := m.results[method]
	if !ok {
		return nil, fmt.Errorf("method %s not supported", method)
	}
	return json.Marshal(v)
}

func (m *mockProvider) called(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// mockEvents is an EventSource that lets tests emit events by hand.
type mockEvents struct {
	mu   sync.Mutex
	subs map[int]func(Event)
	next int
}

func newMockEvents() *mockEvents {
	return &mockEvents{subs: map[int]func(Event){}}
}

func (m *mockEvents) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *mockEvents) emit(ev Event) {
	m.mu.Lock()
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (m *mockEvents) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
