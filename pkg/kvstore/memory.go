package kvstore

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Memory is a process-local Store safe for concurrent use.
type Memory struct {
	items *xsync.MapOf[string, string]
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: xsync.NewMapOf[string, string]()}
}

func (m *Memory) GetItem(_ context.Context, key string) (string, bool, error) {
	v, ok := m.items.Load(key)
	return v, ok, nil
}

func (m *Memory) SetItem(_ context.Context, key, value string) error {
	m.items.Store(key, value)
	return nil
}

func (m *Memory) RemoveItem(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Len returns the number of stored items.
func (m *Memory) Len() int { return m.items.Size() }
