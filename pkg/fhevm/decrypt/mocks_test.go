package decrypt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// countingSigner wraps a Signer and counts signing prompts.
type countingSigner struct {
	Signer
	prompts atomic.Int64
}

func (s *countingSigner) SignTypedData(ctx context.Context, td *apitypes.TypedData) ([]byte, error) {
	s.prompts.Add(1)
	return s.Signer.SignTypedData(ctx, td)
}

type mockSigner struct {
	AddressFunc       func(ctx context.Context) (common.Address, error)
	SignTypedDataFunc func(ctx context.Context, td *apitypes.TypedData) ([]byte, error)
}

func (m *mockSigner) Address(ctx context.Context) (common.Address, error) {
	return m.AddressFunc(ctx)
}

func (m *mockSigner) SignTypedData(ctx context.Context, td *apitypes.TypedData) ([]byte, error) {
	return m.SignTypedDataFunc(ctx, td)
}

var errDeclined = errors.New("user rejected the request")

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) GetItem(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store offline")
}

func (failingStore) SetItem(context.Context, string, string) error {
	return errors.New("store offline")
}

func (failingStore) RemoveItem(context.Context, string) error {
	return errors.New("store offline")
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
