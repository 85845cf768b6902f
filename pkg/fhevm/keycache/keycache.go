// Package keycache remembers FHE public keys and public parameters per ACL
// contract so repeated sessions skip the network fetch.
package keycache

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// Entry is the cached key material for one ACL contract. Either field may
// be empty when the SDK did not expose it.
type Entry struct {
	PublicKey    []byte
	PublicParams []byte
}

// Empty reports whether e carries no key material.
func (e Entry) Empty() bool { return len(e.PublicKey) == 0 && len(e.PublicParams) == 0 }

// Cache stores key material keyed by ACL address.
type Cache interface {
	Get(ctx context.Context, acl common.Address) (Entry, bool)
	Set(ctx context.Context, acl common.Address, e Entry)
}

// Memory is a process-lifetime Cache. Entries are never invalidated and a
// later Set replaces an earlier one.
type Memory struct {
	entries *xsync.MapOf[common.Address, Entry]
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMapOf[common.Address, Entry]()}
}

// Get returns the entry for acl.
func (m *Memory) Get(_ context.Context, acl common.Address) (Entry, bool) {
	return m.entries.Load(acl)
}

// Set stores a copy of e for acl. Empty entries are ignored.
func (m *Memory) Set(_ context.Context, acl common.Address, e Entry) {
	if e.Empty() {
		return
	}
	m.entries.Store(acl, Entry{
		PublicKey:    append([]byte(nil), e.PublicKey...),
		PublicParams: append([]byte(nil), e.PublicParams...),
	})
}

// Len returns the number of cached entries.
func (m *Memory) Len() int { return m.entries.Size() }
