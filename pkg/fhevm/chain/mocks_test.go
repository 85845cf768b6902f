package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/devnode"
)

type mockProvider struct {
	RequestFunc func(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

func (m *mockProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return m.RequestFunc(ctx, method, params...)
}

// recordingNode serves a devnode and records the JSON-RPC methods it saw.
type recordingNode struct {
	URL string

	mu      sync.Mutex
	methods []string
}

func startNode(t *testing.T, chainID uint64, opts ...devnode.Option) *recordingNode {
	t.Helper()
	srv, err := devnode.NewServer(chainID, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	n := &recordingNode{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
		}
		if json.Unmarshal(body, &req) == nil && req.Method != "" {
			n.mu.Lock()
			n.methods = append(n.methods, req.Method)
			n.mu.Unlock()
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		srv.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	n.URL = ts.URL
	return n
}

func (n *recordingNode) called(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}
