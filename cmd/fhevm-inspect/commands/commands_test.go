package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/config"
	"github.com/chainsafe/fhevm-session/pkg/devnode"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
)

func startNode(t *testing.T, opts ...devnode.Option) string {
	t.Helper()
	srv, err := devnode.NewServer(chain.LocalChainID, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeHTTP))
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolve(t *testing.T) {
	acl := common.HexToAddress("0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D")
	url := startNode(t, devnode.WithMetadata(devnode.Metadata{
		ACLAddress:           acl,
		InputVerifierAddress: common.HexToAddress("0x901F8942346f7AB3a01F6D7613119Bca447Bb030"),
		KMSVerifierAddress:   common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
	}))

	out, err := run(t, "resolve", "--rpc-url", url, "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	var report struct {
		ChainID       uint64 `json:"chain_id"`
		IsDevelopment bool   `json:"is_development"`
		Addresses     struct {
			ACL common.Address `json:"acl"`
		} `json:"addresses"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, chain.LocalChainID, report.ChainID)
	assert.True(t, report.IsDevelopment)
	assert.Equal(t, acl, report.Addresses.ACL)
}

func TestResolve_EnvFile(t *testing.T) {
	url := startNode(t)
	t.Setenv(config.EnvRPCURL, "")
	require.NoError(t, os.Unsetenv(config.EnvRPCURL))

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(config.EnvRPCURL+"="+url+"\n"), 0o600))

	out, err := run(t, "resolve", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, `"chain_id": 31337`)
}

func TestResolve_InvalidRPCURL(t *testing.T) {
	_, err := run(t, "resolve", "--rpc-url", "not a url")
	assert.Error(t, err)
}

func TestMigrate_Args(t *testing.T) {
	_, err := run(t, "migrate", "sideways")
	assert.Error(t, err)

	_, err = run(t, "migrate")
	assert.Error(t, err)

	_, err = run(t, "migrate", "up")
	assert.ErrorContains(t, err, "postgres")
}

func TestDevnodeFlags(t *testing.T) {
	f := &devnodeFlags{
		acl:           "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D",
		inputVerifier: "0x901F8942346f7AB3a01F6D7613119Bca447Bb030",
		kmsVerifier:   "0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC",
		accounts:      2,
	}
	opts, err := f.options(nil)
	require.NoError(t, err)
	node, err := devnode.NewServer(chain.LocalChainID, opts...)
	require.NoError(t, err)
	defer node.Stop()
	assert.Len(t, node.Accounts(), 2)

	f.accountKeys = []string{"0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"}
	opts, err = f.options(nil)
	require.NoError(t, err)
	node, err = devnode.NewServer(chain.LocalChainID, opts...)
	require.NoError(t, err)
	defer node.Stop()
	assert.Equal(t, []common.Address{common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")}, node.Accounts())

	f.acl = "0x1234"
	_, err = f.options(nil)
	assert.ErrorContains(t, err, "--acl")
}
