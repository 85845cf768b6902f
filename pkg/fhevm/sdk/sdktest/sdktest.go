// Package sdktest provides an in-memory relayer SDK for tests. It performs
// no cryptography: handles and keys are deterministic digests.
package sdktest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/handle"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// SDK is a fake sdk.SDK. Nil funcs fall back to succeeding defaults.
type SDK struct {
	InitFunc           func(ctx context.Context) error
	CreateInstanceFunc func(ctx context.Context, cfg sdk.Config) (sdk.Instance, error)
	Defaults           *sdk.Config

	initCalls   atomic.Int64
	createCalls atomic.Int64

	mu      sync.Mutex
	configs []sdk.Config
}

// InitSDK counts the call and runs InitFunc.
func (s *SDK) InitSDK(ctx context.Context) error {
	s.initCalls.Add(1)
	if s.InitFunc != nil {
		return s.InitFunc(ctx)
	}
	return nil
}

// CreateInstance records cfg and runs CreateInstanceFunc, or returns a
// fresh Instance.
func (s *SDK) CreateInstance(ctx context.Context, cfg sdk.Config) (sdk.Instance, error) {
	s.createCalls.Add(1)
	s.mu.Lock()
	s.configs = append(s.configs, cfg.Clone())
	s.mu.Unlock()
	if s.CreateInstanceFunc != nil {
		return s.CreateInstanceFunc(ctx, cfg)
	}
	return NewInstance(cfg), nil
}

// DefaultConfig returns Defaults, or the Sepolia defaults.
func (s *SDK) DefaultConfig() *sdk.Config {
	if s.Defaults != nil {
		c := s.Defaults.Clone()
		return &c
	}
	return sdk.SepoliaDefaults()
}

// InitCalls returns the number of InitSDK calls.
func (s *SDK) InitCalls() int { return int(s.initCalls.Load()) }

// CreateCalls returns the number of CreateInstance calls.
func (s *SDK) CreateCalls() int { return int(s.createCalls.Load()) }

// Configs returns the configs passed to CreateInstance, in call order.
func (s *SDK) Configs() []sdk.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sdk.Config(nil), s.configs...)
}

// Instance is a fake sdk.Instance.
type Instance struct {
	Config sdk.Config

	// Values holds the clear value UserDecrypt returns per handle.
	Values map[handle.Handle]*big.Int
	// UserDecryptFunc overrides UserDecrypt when set.
	UserDecryptFunc func(ctx context.Context, reqs []sdk.HandleContractPair, auth sdk.DecryptAuthorization) (map[handle.Handle]*big.Int, error)
	// EIP712Err makes CreateEIP712 fail.
	EIP712Err error

	keypairs atomic.Int64
	closes   atomic.Int64

	mu       sync.Mutex
	requests [][]sdk.HandleContractPair
}

// Close counts the call.
func (i *Instance) Close() error {
	i.closes.Add(1)
	return nil
}

// Closes returns the number of Close calls.
func (i *Instance) Closes() int { return int(i.closes.Load()) }

// NewInstance creates an instance for cfg. Key material missing from cfg is
// derived from the ACL address.
func NewInstance(cfg sdk.Config) *Instance {
	cfg = cfg.Clone()
	if len(cfg.PublicKey) == 0 {
		cfg.PublicKey = crypto.Keccak256([]byte("public-key"), cfg.Addresses.ACL.Bytes())
	}
	if len(cfg.PublicParams) == 0 {
		cfg.PublicParams = crypto.Keccak256([]byte("public-params"), cfg.Addresses.ACL.Bytes())
	}
	return &Instance{Config: cfg, Values: make(map[handle.Handle]*big.Int)}
}

// CreateEncryptedInput returns an input collector whose handles are digests
// of the target, the user and the added values.
func (i *Instance) CreateEncryptedInput(contract, user common.Address) sdk.EncryptedInput {
	return &Input{contract: contract, user: user}
}

// GenerateKeypair returns a new deterministic keypair per call.
func (i *Instance) GenerateKeypair() (sdk.Keypair, error) {
	n := i.keypairs.Add(1)
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, uint64(n))
	return sdk.Keypair{
		PublicKey:  hexutil.Encode(crypto.Keccak256([]byte("pub"), seed)),
		PrivateKey: hexutil.Encode(crypto.Keccak256([]byte("priv"), seed)),
	}, nil
}

// Keypairs returns the number of generated keypairs.
func (i *Instance) Keypairs() int { return int(i.keypairs.Load()) }

// CreateEIP712 builds the user-decrypt authorization typed data.
func (i *Instance) CreateEIP712(publicKey string, contracts []common.Address, start int64, days int) (*apitypes.TypedData, error) {
	if i.EIP712Err != nil {
		return nil, i.EIP712Err
	}
	addrs := make([]interface{}, len(contracts))
	for idx, c := range contracts {
		addrs[idx] = c.Hex()
	}
	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"UserDecryptRequestVerification": {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: "UserDecryptRequestVerification",
		Domain: apitypes.TypedDataDomain{
			Name:              "Decryption",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(int64(i.Config.GatewayChainID)),
			VerifyingContract: i.Config.VerifyingContractDecryption.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         publicKey,
			"contractAddresses": addrs,
			"startTimestamp":    fmt.Sprintf("%d", start),
			"durationDays":      fmt.Sprintf("%d", days),
		},
	}, nil
}

// UserDecrypt records the request and answers from Values.
func (i *Instance) UserDecrypt(ctx context.Context, reqs []sdk.HandleContractPair, auth sdk.DecryptAuthorization) (map[handle.Handle]*big.Int, error) {
	i.mu.Lock()
	i.requests = append(i.requests, append([]sdk.HandleContractPair(nil), reqs...))
	i.mu.Unlock()
	if i.UserDecryptFunc != nil {
		return i.UserDecryptFunc(ctx, reqs, auth)
	}
	out := make(map[handle.Handle]*big.Int, len(reqs))
	for _, r := range reqs {
		v, ok := i.Values[r.Handle]
		if !ok {
			return nil, fmt.Errorf("unknown handle %s", r.Handle)
		}
		out[r.Handle] = new(big.Int).Set(v)
	}
	return out, nil
}

// Requests returns every batch passed to UserDecrypt.
func (i *Instance) Requests() [][]sdk.HandleContractPair {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([][]sdk.HandleContractPair(nil), i.requests...)
}

// PublicKey returns the configured public key.
func (i *Instance) PublicKey() []byte { return append([]byte(nil), i.Config.PublicKey...) }

// PublicParams returns the configured public parameters for any size.
func (i *Instance) PublicParams(int) []byte { return append([]byte(nil), i.Config.PublicParams...) }

// Input is a fake sdk.EncryptedInput.
type Input struct {
	contract, user common.Address
	values         [][]byte
}

// Add32 appends a 32-bit value.
func (in *Input) Add32(v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	in.values = append(in.values, b)
}

// Add64 appends a 64-bit value.
func (in *Input) Add64(v uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	in.values = append(in.values, b)
}

// Encrypt returns one digest handle per value and a digest proof.
func (in *Input) Encrypt(ctx context.Context) (*sdk.EncryptedPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &sdk.EncryptedPayload{}
	proof := []byte{byte(len(in.values))}
	for idx, v := range in.values {
		digest := crypto.Keccak256(in.contract.Bytes(), in.user.Bytes(), []byte{byte(idx)}, v)
		var h handle.Handle
		copy(h[:], digest)
		out.Handles = append(out.Handles, h)
		proof = append(proof, digest...)
	}
	out.InputProof = proof
	return out, nil
}
