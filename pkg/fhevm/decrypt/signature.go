package decrypt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// KeyPrefix prefixes every store key written by the manager.
const KeyPrefix = "fhevm.decsig."

const secondsPerDay = 24 * 60 * 60

// Signature is a user's signed authorization to decrypt values held by a
// set of contracts, together with the ephemeral keypair it was issued for.
// PrivateKey is secret: stores that persist signatures should seal them.
type Signature struct {
	PublicKey         string              `json:"publicKey"`
	PrivateKey        string              `json:"privateKey"`
	Signature         string              `json:"signature"`
	StartTimestamp    int64               `json:"startTimestamp"`
	DurationDays      int                 `json:"durationDays"`
	UserAddress       common.Address      `json:"userAddress"`
	ContractAddresses []common.Address    `json:"contractAddresses"`
	EIP712            *apitypes.TypedData `json:"eip712,omitempty"`
}

// ExpiresAt returns the first instant the signature is no longer valid.
func (s *Signature) ExpiresAt() time.Time {
	return time.Unix(s.StartTimestamp+int64(s.DurationDays)*secondsPerDay, 0)
}

// ValidAt reports whether t lies in [start, start + durationDays).
func (s *Signature) ValidAt(t time.Time) bool {
	now := t.Unix()
	return s.DurationDays > 0 && now >= s.StartTimestamp && t.Before(s.ExpiresAt())
}

// Covers reports whether every address in contracts is authorized.
func (s *Signature) Covers(contracts ...common.Address) bool {
	for _, c := range contracts {
		if !slices.Contains(s.ContractAddresses, c) {
			return false
		}
	}
	return true
}

// Authorization converts s into the argument UserDecrypt expects.
func (s *Signature) Authorization() sdk.DecryptAuthorization {
	return sdk.DecryptAuthorization{
		PrivateKey:        s.PrivateKey,
		PublicKey:         s.PublicKey,
		Signature:         s.Signature,
		ContractAddresses: slices.Clone(s.ContractAddresses),
		UserAddress:       s.UserAddress,
		StartTimestamp:    s.StartTimestamp,
		DurationDays:      s.DurationDays,
	}
}

func (s *Signature) encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSignature(raw string) (*Signature, error) {
	var s Signature
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode decryption signature: %w", err)
	}
	if s.Signature == "" || s.PrivateKey == "" || len(s.ContractAddresses) == 0 {
		return nil, fmt.Errorf("decode decryption signature: incomplete entry")
	}
	return &s, nil
}

// NormalizeContracts returns contracts sorted and without duplicates.
func NormalizeContracts(contracts []common.Address) []common.Address {
	out := slices.Clone(contracts)
	slices.SortFunc(out, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(out)
}

// Key returns the store key for user and contracts: the keccak256 of the
// lowercase user address and the lowercase, sorted, deduplicated contract
// addresses.
func Key(user common.Address, contracts []common.Address) string {
	normalized := NormalizeContracts(contracts)
	parts := make([]string, len(normalized))
	for i, c := range normalized {
		parts[i] = strings.ToLower(c.Hex())
	}
	preimage := strings.ToLower(user.Hex()) + ":" + strings.Join(parts, ",")
	return KeyPrefix + common.Bytes2Hex(crypto.Keccak256([]byte(preimage)))
}
