package commands

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/pkg/app/httpserver"
	"github.com/chainsafe/fhevm-session/pkg/devnode"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/chain"
)

type devnodeFlags struct {
	addr          string
	chainID       uint64
	clientVersion string
	noMetadata    bool
	acl           string
	inputVerifier string
	kmsVerifier   string
	accountKeys   []string
	accounts      int
}

func devnodeCmd() *cobra.Command {
	f := &devnodeFlags{}
	cmd := &cobra.Command{
		Use:   "devnode",
		Short: "Run a development JSON-RPC node that serves relayer metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts, err := f.options(logger)
			if err != nil {
				return err
			}
			node, err := devnode.NewServer(f.chainID, opts...)
			if err != nil {
				return err
			}
			defer node.Stop()

			for _, a := range node.Accounts() {
				logger.Info("dev account", zap.String("address", a.Hex()))
			}

			srv := &http.Server{
				Addr:         f.addr,
				Handler:      node,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			return httpserver.ServeAndWait(cmd.Context(), logger, srv, nil, cfg.Server.ShutdownTimeout)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "127.0.0.1:8545", "listen address")
	fl.Uint64Var(&f.chainID, "chain-id", chain.LocalChainID, "chain id reported by eth_chainId")
	fl.StringVar(&f.clientVersion, "client-version", devnode.DefaultClientVersion, "web3_clientVersion answer")
	fl.BoolVar(&f.noMetadata, "no-metadata", false, "do not serve fhevm_relayer_metadata")
	fl.StringVar(&f.acl, "acl", "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D", "ACL address served as metadata")
	fl.StringVar(&f.inputVerifier, "input-verifier", "0x901F8942346f7AB3a01F6D7613119Bca447Bb030", "input verifier address served as metadata")
	fl.StringVar(&f.kmsVerifier, "kms-verifier", "0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC", "KMS verifier address served as metadata")
	fl.StringSliceVar(&f.accountKeys, "account-key", nil, "hex private key of a dev account (repeatable)")
	fl.IntVar(&f.accounts, "accounts", 1, "number of random dev accounts to create when no --account-key is given")
	return cmd
}

func (f *devnodeFlags) options(logger *zap.Logger) ([]devnode.Option, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []devnode.Option{
		devnode.WithLogger(logger),
		devnode.WithClientVersion(f.clientVersion),
	}

	if !f.noMetadata {
		var meta devnode.Metadata
		for _, a := range []struct {
			flag   string
			value  string
			target *common.Address
		}{
			{"acl", f.acl, &meta.ACLAddress},
			{"input-verifier", f.inputVerifier, &meta.InputVerifierAddress},
			{"kms-verifier", f.kmsVerifier, &meta.KMSVerifierAddress},
		} {
			if !common.IsHexAddress(a.value) {
				return nil, fmt.Errorf("--%s: invalid address %q", a.flag, a.value)
			}
			*a.target = common.HexToAddress(a.value)
		}
		opts = append(opts, devnode.WithMetadata(meta))
	}

	keys := make([]*ecdsa.PrivateKey, 0, max(len(f.accountKeys), f.accounts))
	for _, raw := range f.accountKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
		if err != nil {
			return nil, fmt.Errorf("--account-key: %w", err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		for range f.accounts {
			key, err := crypto.GenerateKey()
			if err != nil {
				return nil, fmt.Errorf("generate dev account: %w", err)
			}
			keys = append(keys, key)
		}
	}
	return append(opts, devnode.WithAccounts(keys...)), nil
}
