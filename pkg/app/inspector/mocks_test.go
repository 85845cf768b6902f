package inspector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/devnode"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
)

type mockProber struct {
	ProbeFunc func(ctx context.Context, rpcURL string) (*chain.Metadata, bool)
	calls     atomic.Int64
}

func (m *mockProber) Probe(ctx context.Context, rpcURL string) (*chain.Metadata, bool) {
	m.calls.Add(1)
	if m.ProbeFunc == nil {
		return nil, false
	}
	return m.ProbeFunc(ctx, rpcURL)
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// startNode serves a development node over HTTP and returns its URL.
func startNode(t *testing.T, chainID uint64, opts ...devnode.Option) string {
	t.Helper()
	srv, err := devnode.NewServer(chainID, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(http.HandlerFunc(srv.ServeHTTP))
	t.Cleanup(ts.Close)
	return ts.URL
}
