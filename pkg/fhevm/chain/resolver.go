// Package chain classifies the network behind a connection handle and
// probes development nodes for FHE infrastructure metadata.
package chain

import (
	"context"
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/ethclient"

	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/wallet"
)

const (
	// LocalChainID is the conventional chain ID of a local development node.
	LocalChainID uint64 = 31337
	// LocalRPCURL is the loopback endpoint of a local development node.
	LocalRPCURL = "http://localhost:8545"
)

// Connection is either a bare RPC URL or a wallet provider handle.
type Connection struct {
	url      string
	provider wallet.Provider
}

// URL returns a connection to a bare RPC endpoint.
func URL(rawURL string) Connection { return Connection{url: rawURL} }

// Provider returns a connection through a wallet provider.
func Provider(p wallet.Provider) Connection { return Connection{provider: p} }

// RPCURL returns the URL of a bare-URL connection.
func (c Connection) RPCURL() (string, bool) { return c.url, c.url != "" }

// WalletProvider returns the provider of a wallet connection.
func (c Connection) WalletProvider() (wallet.Provider, bool) { return c.provider, c.provider != nil }

// IsZero reports whether c names neither a URL nor a provider.
func (c Connection) IsZero() bool { return c.url == "" && c.provider == nil }

func (c Connection) String() string {
	if c.url != "" {
		return c.url
	}
	if c.provider != nil {
		return fmt.Sprintf("provider(%T)", c.provider)
	}
	return "<none>"
}

// DevChains maps development chain IDs to their RPC endpoints.
type DevChains map[uint64]string

// WithDefaults returns a copy of d that always contains the local
// development chain. Entries in d win over the default.
func (d DevChains) WithDefaults() DevChains {
	out := DevChains{LocalChainID: LocalRPCURL}
	maps.Copy(out, d)
	return out
}

// Classification describes the network a session is built against.
type Classification struct {
	ChainID       uint64 `json:"chain_id"`
	IsDevelopment bool   `json:"is_development"`
	RPCURL        string `json:"rpc_url,omitempty"`
}

// ChainID determines the numeric chain ID behind conn.
func ChainID(ctx context.Context, conn Connection) (uint64, error) {
	if rawURL, ok := conn.RPCURL(); ok {
		client, err := ethclient.DialContext(ctx, rawURL)
		if err != nil {
			return 0, apperrors.NetworkError(err, "failed to connect to "+rawURL)
		}
		defer client.Close()

		id, err := client.ChainID(ctx)
		if err != nil {
			return 0, apperrors.NetworkError(err, "failed to query chain id")
		}
		return id.Uint64(), nil
	}

	p, ok := conn.WalletProvider()
	if !ok {
		return 0, apperrors.InvalidConfigError(nil, "connection has neither an rpc url nor a provider")
	}
	id, err := wallet.ChainID(ctx, p)
	if err != nil {
		return 0, apperrors.NetworkError(err, "failed to query chain id")
	}
	return id, nil
}

// Resolve classifies the chain behind conn. A chain listed in devChains (or
// the built-in local chain) is a development chain; its RPC URL comes from
// the connection when that is a URL, else from the table.
func Resolve(ctx context.Context, conn Connection, devChains DevChains) (Classification, error) {
	id, err := ChainID(ctx, conn)
	if err != nil {
		return Classification{}, err
	}

	rpcURL, _ := conn.RPCURL()
	table := devChains.WithDefaults()
	if tableURL, ok := table[id]; ok {
		if rpcURL == "" {
			rpcURL = tableURL
		}
		return Classification{ChainID: id, IsDevelopment: true, RPCURL: rpcURL}, nil
	}
	return Classification{ChainID: id, RPCURL: rpcURL}, nil
}
