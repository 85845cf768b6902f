package session

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// Environment variables overriding the infrastructure addresses.
const (
	EnvACL           = "FHEVM_ACL"
	EnvKMSVerifier   = "FHEVM_KMS_VERIFIER"
	EnvInputVerifier = "FHEVM_INPUT_VERIFIER"
)

// EnvLookup reads one environment variable.
type EnvLookup func(key string) (string, bool)

// OSEnv reads the process environment.
func OSEnv(key string) (string, bool) { return os.LookupEnv(key) }

// NoEnv never finds a variable.
func NoEnv(string) (string, bool) { return "", false }

// ParseOverride returns the address in s when it is "0x" followed by
// exactly 40 hex digits. Surrounding whitespace is ignored.
func ParseOverride(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// ResolveAddresses applies, in increasing precedence, the defaults, the dev
// node metadata (nil when absent) and well-formed environment overrides.
// It returns the environment variables that were ignored as malformed.
func ResolveAddresses(defaults sdk.InfrastructureAddresses, meta *chain.Metadata, env EnvLookup) (sdk.InfrastructureAddresses, []string) {
	out := defaults
	if meta != nil {
		out.ACL = meta.ACLAddress
		out.KMSVerifier = meta.KMSVerifierAddress
		out.InputVerifier = meta.InputVerifierAddress
	}
	if env == nil {
		return out, nil
	}

	var ignored []string
	for _, o := range []struct {
		key    string
		target *common.Address
	}{
		{EnvACL, &out.ACL},
		{EnvKMSVerifier, &out.KMSVerifier},
		{EnvInputVerifier, &out.InputVerifier},
	} {
		raw, ok := env(o.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		addr, ok := ParseOverride(raw)
		if !ok {
			ignored = append(ignored, o.key)
			continue
		}
		*o.target = addr
	}
	return out, ignored
}
