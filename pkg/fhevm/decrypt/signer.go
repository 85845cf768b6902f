package decrypt

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/chainsafe/fhevm-session/pkg/wallet"
)

// Signer produces EIP-712 signatures on behalf of one account.
type Signer interface {
	Address(ctx context.Context) (common.Address, error)
	SignTypedData(ctx context.Context, td *apitypes.TypedData) ([]byte, error)
}

// KeySigner signs with a local private key.
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner returns a signer for key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

func (s *KeySigner) Address(context.Context) (common.Address, error) {
	return crypto.PubkeyToAddress(s.key.PublicKey), nil
}

func (s *KeySigner) SignTypedData(ctx context.Context, td *apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if td == nil {
		return nil, errors.New("nil typed data")
	}
	return wallet.SignTypedData(s.key, *td)
}

// ProviderSigner asks a wallet to sign through eth_signTypedData_v4.
type ProviderSigner struct {
	provider wallet.Provider

	mu      sync.Mutex
	account common.Address
}

// NewProviderSigner returns a signer for account on p. A zero account means
// the first account the wallet reports.
func NewProviderSigner(p wallet.Provider, account common.Address) *ProviderSigner {
	return &ProviderSigner{provider: p, account: account}
}

func (s *ProviderSigner) Address(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != (common.Address{}) {
		return s.account, nil
	}
	accounts, err := wallet.Accounts(ctx, s.provider, "eth_accounts")
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 || !common.IsHexAddress(accounts[0]) {
		return common.Address{}, errors.New("wallet reports no accounts")
	}
	s.account = common.HexToAddress(accounts[0])
	return s.account, nil
}

func (s *ProviderSigner) SignTypedData(ctx context.Context, td *apitypes.TypedData) ([]byte, error) {
	account, err := s.Address(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("encode typed data: %w", err)
	}
	// Wallets expect the typed data as a JSON string, not an object.
	raw, err := s.provider.Request(ctx, "eth_signTypedData_v4", account.Hex(), string(payload))
	if err != nil {
		return nil, err
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("decode eth_signTypedData_v4 result: %w", err)
	}
	sig, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	return sig, nil
}
