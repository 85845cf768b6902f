// Package wallet models the EIP-1193 style wallet connection consumed by the
// session core: request/response calls plus connection-state events.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the request side of a wallet connection.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// EventKind names a wallet connection event.
type EventKind string

const (
	EventConnect         EventKind = "connect"
	EventDisconnect      EventKind = "disconnect"
	EventChainChanged    EventKind = "chainChanged"
	EventAccountsChanged EventKind = "accountsChanged"
)

// Event is a single connection-state notification.
// ChainID is the hex string the wallet reported for connect and chainChanged.
type Event struct {
	Kind     EventKind
	ChainID  string
	Accounts []string
	Err      error
}

// EventSource delivers connection events. Subscribe returns a function that
// removes the subscription; calling it more than once is safe.
type EventSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// RPCProvider adapts a go-ethereum RPC client to Provider.
type RPCProvider struct {
	client *rpc.Client
}

// NewRPCProvider wraps an existing RPC client.
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

// DialRPCProvider dials rawURL (http, ws or ipc) and wraps the client.
func DialRPCProvider(ctx context.Context, rawURL string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &RPCProvider{client: client}, nil
}

// Request issues a JSON-RPC call and returns the raw result.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := p.client.CallContext(ctx, &out, method, params...); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying client.
func (p *RPCProvider) Close() { p.client.Close() }

// ChainID issues eth_chainId through p and parses the hex result.
func ChainID(ctx context.Context, p Provider) (uint64, error) {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return 0, fmt.Errorf("decode eth_chainId result: %w", err)
	}
	return ParseChainID(hexID)
}

// Accounts issues method (eth_accounts or eth_requestAccounts) through p.
func Accounts(ctx context.Context, p Provider, method string) ([]string, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return accounts, nil
}

// ParseChainID parses a 0x-prefixed hexadecimal chain ID.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("invalid chain id %q: missing 0x prefix", s)
	}
	id, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return id, nil
}
