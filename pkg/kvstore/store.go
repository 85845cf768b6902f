// Package kvstore provides the string key/value capability used to persist
// decryption signatures between sessions, with in-memory, no-op, sealed and
// PostgreSQL implementations.
package kvstore

import "context"

// Store is a string key/value store. A missing key is reported with
// ok == false and a nil error.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Noop discards writes and never finds anything.
type Noop struct{}

func (Noop) GetItem(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) SetItem(context.Context, string, string) error         { return nil }
func (Noop) RemoveItem(context.Context, string) error              { return nil }
