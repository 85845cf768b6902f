// Package devnode serves a minimal development-node JSON-RPC surface: chain
// identification, a Hardhat-style client version, relayer metadata and
// typed-data signing with local dev accounts.
package devnode

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// DefaultClientVersion mirrors what a Hardhat node with the FHE plugin reports.
const DefaultClientVersion = "HardhatNetwork/2.22.19/@fhevm/mock-utils"

// Metadata is the payload served by fhevm_relayer_metadata.
type Metadata struct {
	ACLAddress           common.Address `json:"ACLAddress"`
	InputVerifierAddress common.Address `json:"InputVerifierAddress"`
	KMSVerifierAddress   common.Address `json:"KMSVerifierAddress"`
}

// Server handles development-node JSON-RPC requests.
type Server struct {
	logger        *zap.Logger
	chainID       uint64
	clientVersion string
	metadata      json.RawMessage
	accounts      []common.Address
	keys          map[common.Address]*ecdsa.PrivateKey

	rpcServer *rpc.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClientVersion overrides the web3_clientVersion answer.
func WithClientVersion(v string) Option {
	return func(s *Server) { s.clientVersion = v }
}

// WithMetadata enables fhevm_relayer_metadata with m.
func WithMetadata(m Metadata) Option {
	return func(s *Server) {
		raw, _ := json.Marshal(m)
		s.metadata = raw
	}
}

// WithRawMetadata serves raw verbatim from fhevm_relayer_metadata.
func WithRawMetadata(raw json.RawMessage) Option {
	return func(s *Server) { s.metadata = raw }
}

// WithAccounts registers dev accounts exposed by eth_accounts and usable by
// eth_signTypedData_v4.
func WithAccounts(keys ...*ecdsa.PrivateKey) Option {
	return func(s *Server) {
		for _, k := range keys {
			addr := crypto.PubkeyToAddress(k.PublicKey)
			if _, ok := s.keys[addr]; ok {
				continue
			}
			s.keys[addr] = k
			s.accounts = append(s.accounts, addr)
		}
	}
}

// NewServer creates a development node for chainID.
func NewServer(chainID uint64, opts ...Option) (*Server, error) {
	s := &Server{
		logger:        zap.NewNop(),
		chainID:       chainID,
		clientVersion: DefaultClientVersion,
		keys:          make(map[common.Address]*ecdsa.PrivateKey),
		rpcServer:     rpc.NewServer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	apis := map[string]any{
		"eth":   NewEthAPI(s),
		"net":   NewNetAPI(s),
		"web3":  NewWeb3API(s),
		"fhevm": NewFhevmAPI(s),
	}
	for namespace, api := range apis {
		if err := s.rpcServer.RegisterName(namespace, api); err != nil {
			return nil, fmt.Errorf("failed to register %s API: %w", namespace, err)
		}
	}

	s.logger.Info("development node initialized",
		zap.Uint64("chain_id", chainID),
		zap.String("client_version", s.clientVersion),
		zap.Bool("relayer_metadata", s.metadata != nil),
		zap.Int("accounts", len(s.accounts)))

	return s, nil
}

// Accounts returns the dev account addresses in registration order.
func (s *Server) Accounts() []common.Address {
	return append([]common.Address(nil), s.accounts...)
}

// Stop shuts down the RPC server.
func (s *Server) Stop() { s.rpcServer.Stop() }

// ServeHTTP handles HTTP requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.rpcServer.ServeHTTP(w, r)
}
