// Package sdk declares the capability contract the session core expects from
// the relayer SDK. The FHE primitives live behind these interfaces and are
// never implemented here.
package sdk

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/handle"
)

// PublicParamsBits is the size of the public computation parameters the
// session caches alongside the public key.
const PublicParamsBits = 2048

// SDK is the relayer SDK capability object. At most one is initialized
// per process; see session.Runtime.
type SDK interface {
	// InitSDK performs the library's one-time initialization.
	// The library supports only one successful call per process.
	InitSDK(ctx context.Context) error

	// CreateInstance builds a network-bound FHE instance. When cfg carries
	// no public key the library fetches it as part of creation.
	CreateInstance(ctx context.Context, cfg Config) (Instance, error)

	// DefaultConfig returns the built-in production network configuration.
	DefaultConfig() *Config
}

// Instance is a ready FHE session bound to one network and one set of
// infrastructure contracts. Instances that hold host resources also
// implement io.Closer.
type Instance interface {
	// CreateEncryptedInput builds an input collector bound to the target
	// contract and the user submitting the transaction.
	CreateEncryptedInput(contract, user common.Address) EncryptedInput

	// GenerateKeypair returns a fresh ephemeral keypair for user decryption.
	GenerateKeypair() (Keypair, error)

	// CreateEIP712 produces the "user-decrypt" typed-data structure the
	// wallet signs to authorize decryption.
	CreateEIP712(publicKey string, contracts []common.Address, startTimestamp int64, durationDays int) (*apitypes.TypedData, error)

	// UserDecrypt decrypts a batch of handles under the given authorization.
	UserDecrypt(ctx context.Context, reqs []HandleContractPair, auth DecryptAuthorization) (map[handle.Handle]*big.Int, error)

	// PublicKey returns the network public key currently in use.
	PublicKey() []byte

	// PublicParams returns the public computation parameters of the given size.
	PublicParams(bits int) []byte
}

// EncryptedInput collects plaintext values to be encrypted together under a
// single validity proof.
type EncryptedInput interface {
	Add32(v uint32)
	Add64(v uint64)
	Encrypt(ctx context.Context) (*EncryptedPayload, error)
}

// EncryptedPayload is the output of EncryptedInput.Encrypt: one handle per
// added value and the proof the contract verifies.
type EncryptedPayload struct {
	Handles    []handle.Handle
	InputProof []byte
}

// Keypair is an ephemeral decryption keypair, hex encoded.
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// HandleContractPair names a handle together with the contract that holds it.
type HandleContractPair struct {
	Handle   handle.Handle
	Contract common.Address
}

// DecryptAuthorization carries the signed authorization UserDecrypt requires.
type DecryptAuthorization struct {
	PrivateKey        string
	PublicKey         string
	Signature         string
	ContractAddresses []common.Address
	UserAddress       common.Address
	StartTimestamp    int64
	DurationDays      int
}

// InfrastructureAddresses are the FHE infrastructure contracts a session is
// configured against.
type InfrastructureAddresses struct {
	ACL           common.Address `json:"acl"`
	InputVerifier common.Address `json:"input_verifier"`
	KMSVerifier   common.Address `json:"kms_verifier"`
}

// Config is the per-session configuration passed to CreateInstance.
// It is built fresh for every session and never persisted.
type Config struct {
	Addresses InfrastructureAddresses

	VerifyingContractDecryption        common.Address
	VerifyingContractInputVerification common.Address

	ChainID        uint64
	GatewayChainID uint64
	RelayerURL     string

	Network chain.Connection

	PublicKey    []byte
	PublicParams []byte
}

// Clone returns a copy of c that shares no slices with it.
func (c *Config) Clone() Config {
	out := *c
	out.PublicKey = append([]byte(nil), c.PublicKey...)
	out.PublicParams = append([]byte(nil), c.PublicParams...)
	return out
}

// SepoliaDefaults is the built-in production configuration shipped with the
// relayer SDK for the Sepolia deployment.
func SepoliaDefaults() *Config {
	return &Config{
		Addresses: InfrastructureAddresses{
			ACL:           common.HexToAddress("0x687820221192C5B662b25367F70076A37bc79b6c"),
			InputVerifier: common.HexToAddress("0xbc91f3daD1A5F19F8390c400196e58073B6a0BC4"),
			KMSVerifier:   common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
		},
		VerifyingContractDecryption:        common.HexToAddress("0xb6E160B1ff80D67Bfe90A85eE06Ce0A2613607D1"),
		VerifyingContractInputVerification: common.HexToAddress("0x7048C39f048125eDa9d678AEbaDfB22F7900a29F"),
		ChainID:                            11155111,
		GatewayChainID:                     55815,
		RelayerURL:                         "https://relayer.testnet.zama.cloud",
	}
}
