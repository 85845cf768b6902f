package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/devnode"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

type mockLoader struct {
	LoadFunc func(ctx context.Context) (sdk.SDK, error)
	calls    atomic.Int64
}

func (m *mockLoader) Load(ctx context.Context) (sdk.SDK, error) {
	m.calls.Add(1)
	return m.LoadFunc(ctx)
}

func staticLoader(s sdk.SDK) *mockLoader {
	return &mockLoader{LoadFunc: func(context.Context) (sdk.SDK, error) { return s, nil }}
}

type mockProber struct {
	ProbeFunc func(ctx context.Context, rpcURL string) (*chain.Metadata, bool)
}

func (m *mockProber) Probe(ctx context.Context, rpcURL string) (*chain.Metadata, bool) {
	return m.ProbeFunc(ctx, rpcURL)
}

func envMap(m map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// countingNode is a devnode that counts the HTTP requests it receives.
type countingNode struct {
	URL      string
	requests atomic.Int64
}

func startNode(t *testing.T, chainID uint64, opts ...devnode.Option) *countingNode {
	t.Helper()
	srv, err := devnode.NewServer(chainID, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	n := &countingNode{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.requests.Add(1)
		srv.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	n.URL = ts.URL
	return n
}

// statusRecorder collects status transitions of one build.
type statusRecorder struct {
	seen []Status
}

func (r *statusRecorder) record(s Status) { r.seen = append(r.seen, s) }
