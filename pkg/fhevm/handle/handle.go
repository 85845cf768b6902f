// Package handle defines ciphertext handles returned by FHE-enabled contracts
// and the conventions callers follow when decrypting them.
package handle

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Length is the byte length of a ciphertext handle.
const Length = common.HashLength

// Handle is an opaque fixed-width identifier referencing an encrypted value
// held by a contract. It is not secret.
type Handle common.Hash

// Zero is the sentinel a contract returns when no ciphertext was recorded.
var Zero = Handle{}

// Parse decodes a 0x-prefixed 32-byte hex handle.
func Parse(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Handle{}, fmt.Errorf("invalid handle %q: missing 0x prefix", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return Handle{}, fmt.Errorf("invalid handle hex: %w", err)
	}
	if len(b) != Length {
		return Handle{}, fmt.Errorf("invalid handle length: expected %d, got %d", Length, len(b))
	}
	var h Handle
	copy(h[:], b)
	return h, nil
}

// FromBytes32 converts an ABI-decoded bytes32 value.
func FromBytes32(b [32]byte) Handle { return Handle(b) }

// IsZero reports whether h is the "no ciphertext" sentinel.
func (h Handle) IsZero() bool { return h == Zero }

// Hex returns the 0x-prefixed lowercase encoding.
func (h Handle) Hex() string { return common.Hash(h).Hex() }

func (h Handle) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// FormatUnits renders a decrypted integer with the given number of decimals,
// e.g. FormatUnits(1500000000000000000, 18) == "1.5". A nil value renders as "0".
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}
